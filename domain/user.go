package domain

// Pharmacy staff roles.
const (
	RoleManager    = "manager"
	RolePharmacist = "pharmacist"
	RoleTechnician = "technician"
	RoleCashier    = "cashier"
)

// ValidRole reports whether role is one of the known staff roles.
func ValidRole(role string) bool {
	switch role {
	case RoleManager, RolePharmacist, RoleTechnician, RoleCashier:
		return true
	}
	return false
}

type User struct {
	ID             int64  `json:"id" db:"id"`
	Username       string `json:"username" db:"username"`
	Password       string `json:"password,omitempty" db:"password"`
	Role           string `json:"role" db:"role"`
	FailedAttempts int64  `json:"-" db:"failed_attempts"`
	CreatedAt      string `json:"created_at,omitempty" db:"created_at"`
}
