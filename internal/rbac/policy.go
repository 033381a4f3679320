package rbac

import "errors"

// ErrEmptyRequirement marks a secure route declared without any permission.
var ErrEmptyRequirement = errors.New("rbac: secure route requires at least one permission level")

// IsAuthorized reports whether held satisfies required.
// Rules:
// - an empty requirement denies everyone, including the superuser
// - WEBMASTER bypasses any non-empty requirement
// - otherwise the two sets must share at least one level
func IsAuthorized(held, required []PermissionLevel) bool {
	if len(required) == 0 {
		return false
	}
	if Contains(held, Superuser) {
		return true
	}
	for _, p := range held {
		if Contains(required, p) {
			return true
		}
	}
	return false
}

// ValidateRequirement is run once per secure route at registration.
func ValidateRequirement(required []PermissionLevel) error {
	if len(required) == 0 {
		return ErrEmptyRequirement
	}
	for _, p := range required {
		if !p.Valid() {
			return ErrUnknownPermission
		}
	}
	return nil
}
