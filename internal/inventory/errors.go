package inventory

import "errors"

// Structured outcomes. Handlers map each to a distinct user-facing
// notification; none of them ever leaves a partially written table behind.
var (
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrInvalidDate       = errors.New("invalid expiration date")
	ErrItemNotFound      = errors.New("item not found in inventory")
	ErrBatchNotFound     = errors.New("batch not found in inventory")
	ErrInsufficientStock = errors.New("insufficient stock")
)
