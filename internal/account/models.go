package account

import (
	"time"

	"member-portal/internal/rbac"
)

// Member is a station member as returned to clients. The password hash never
// leaves the repository layer.
type Member struct {
	ID               int64                  `json:"id"`
	FirstName        string                 `json:"firstName"`
	LastName         string                 `json:"lastName"`
	Email            string                 `json:"email"`
	Active           bool                   `json:"active"`
	PermissionLevels []rbac.PermissionLevel `json:"permissionLevels"`
	CreatedAt        time.Time              `json:"createdAt"`
}

// NewMember is the insert shape for registration.
type NewMember struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	// InitialLevels are granted in the same transaction as the insert.
	InitialLevels []rbac.PermissionLevel
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}
