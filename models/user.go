package models

// UserRole defines allowed roles in the system
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleStaff   UserRole = "staff"
)

// Valid reports whether r is a role this service knows about
func (r UserRole) Valid() bool {
	return r == RoleStudent || r == RoleStaff
}

// Student is the caller identity handed over by the identity provider.
// It is never persisted on its own; order-sets snapshot the name.
type Student struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Role UserRole `json:"role"`
}
