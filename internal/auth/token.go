package auth

import (
	"time"

	"member-portal/internal/rbac"
)

// TokenLifetime is fixed; there is no sliding renewal.
const TokenLifetime = 7 * 24 * time.Hour

// AuthToken is the identity carried inside a session token.
// It is minted once per login/registration and never mutated.
type AuthToken struct {
	Email            string
	ID               int64
	AuthorizedAt     time.Time
	PermissionLevels []rbac.PermissionLevel
}

func NewAuthToken(email string, id int64, levels []rbac.PermissionLevel, now time.Time) AuthToken {
	return AuthToken{
		Email:            email,
		ID:               id,
		AuthorizedAt:     now.UTC(),
		PermissionLevels: rbac.Normalize(levels),
	}
}

func (t AuthToken) ExpiresAt() time.Time {
	return t.AuthorizedAt.Add(TokenLifetime)
}

// IsExpired is true iff now is strictly after AuthorizedAt + TokenLifetime.
func IsExpired(t AuthToken, now time.Time) bool {
	return now.After(t.ExpiresAt())
}

func (t AuthToken) IsZero() bool {
	return t.Email == "" && t.ID == 0 && t.AuthorizedAt.IsZero() && len(t.PermissionLevels) == 0
}

// Equal compares all four fields; issue times compare by instant.
func (t AuthToken) Equal(o AuthToken) bool {
	if t.Email != o.Email || t.ID != o.ID || !t.AuthorizedAt.Equal(o.AuthorizedAt) {
		return false
	}
	a, b := rbac.Normalize(t.PermissionLevels), rbac.Normalize(o.PermissionLevels)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
