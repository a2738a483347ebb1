package inventory

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"pharmaledger/m/domain"
)

// The presentation layer hands the engine raw table-cell text. Everything
// below converts that text into a strict field value or rejects the whole
// operation before any write happens.

// ParseQuantity parses a non-negative integer quantity.
func ParseQuantity(raw string) (int64, error) {
	qty, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a whole number", ErrInvalidQuantity, raw)
	}
	if qty < 0 {
		return 0, fmt.Errorf("%w: %d is negative", ErrInvalidQuantity, qty)
	}
	return qty, nil
}

// ParsePrice parses a non-negative decimal price and normalizes it to two
// decimal places, the form the backing table stores.
func ParsePrice(raw string) (string, error) {
	price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a number", ErrInvalidPrice, raw)
	}
	if price < 0 {
		return "", fmt.Errorf("%w: price is negative", ErrInvalidPrice)
	}
	return strconv.FormatFloat(price, 'f', 2, 64), nil
}

// ParseExpiration accepts a YYYY-MM-DD date or the no-expiration sentinel.
func ParseExpiration(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == domain.NoExpiration {
		return domain.NoExpiration, nil
	}
	t, err := time.Parse(domain.DateLayout, trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not %s", ErrInvalidDate, raw, domain.DateLayout)
	}
	return t.Format(domain.DateLayout), nil
}
