package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"member-portal/internal/rbac"
	"member-portal/internal/security"
)

var (
	ErrNoToken = errors.New("auth: no token")
	ErrDecode  = errors.New("auth: token does not decrypt")
	ErrShape   = errors.New("auth: token payload has wrong shape")
)

// Codec maps an AuthToken to and from its encrypted hex wire form.
// The payload is not versioned; adding a field needs a backward-compatible decode.
type Codec struct {
	cipher *security.Cipher
}

func NewCodec(c *security.Cipher) (*Codec, error) {
	if c == nil {
		return nil, errors.New("auth: cipher is required")
	}
	return &Codec{cipher: c}, nil
}

type wirePayload struct {
	Email            string                 `json:"email"`
	ID               int64                  `json:"id"`
	AuthorizedAt     time.Time              `json:"authorizedAt"`
	PermissionLevels []rbac.PermissionLevel `json:"permissionLevels"`
}

// readPayload uses pointers so a missing field is distinguishable from a zero one.
type readPayload struct {
	Email            *string                 `json:"email"`
	ID               *int64                  `json:"id"`
	AuthorizedAt     *time.Time              `json:"authorizedAt"`
	PermissionLevels *[]rbac.PermissionLevel `json:"permissionLevels"`
}

func (c *Codec) Encode(t AuthToken) (string, error) {
	b, err := json.Marshal(wirePayload{
		Email:            t.Email,
		ID:               t.ID,
		AuthorizedAt:     t.AuthorizedAt.UTC(),
		PermissionLevels: rbac.Normalize(t.PermissionLevels),
	})
	if err != nil {
		return "", fmt.Errorf("auth: marshal token: %w", err)
	}
	return c.cipher.Encrypt(string(b))
}

// Decode never fails loudly: any problem with raw yields ok == false.
func (c *Codec) Decode(raw string) (AuthToken, bool) {
	t, err := c.DecodeWithReason(raw)
	return t, err == nil
}

// DecodeWithReason is Decode with the failure kind kept for server-side logs.
// The error is one of ErrNoToken, ErrDecode or ErrShape.
func (c *Codec) DecodeWithReason(raw string) (tok AuthToken, err error) {
	defer func() {
		if r := recover(); r != nil {
			tok, err = AuthToken{}, fmt.Errorf("%w: %v", ErrDecode, r)
		}
	}()

	if raw == "" {
		return AuthToken{}, ErrNoToken
	}

	plain, err := c.cipher.Decrypt(raw)
	if err != nil {
		return AuthToken{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var p readPayload
	if err := json.Unmarshal([]byte(plain), &p); err != nil {
		return AuthToken{}, fmt.Errorf("%w: %v", ErrShape, err)
	}
	switch {
	case p.Email == nil || *p.Email == "":
		return AuthToken{}, fmt.Errorf("%w: email missing", ErrShape)
	case p.ID == nil || *p.ID <= 0:
		return AuthToken{}, fmt.Errorf("%w: id missing", ErrShape)
	case p.AuthorizedAt == nil || p.AuthorizedAt.IsZero():
		return AuthToken{}, fmt.Errorf("%w: authorizedAt missing", ErrShape)
	case p.PermissionLevels == nil || *p.PermissionLevels == nil:
		return AuthToken{}, fmt.Errorf("%w: permissionLevels missing", ErrShape)
	}

	return AuthToken{
		Email:            *p.Email,
		ID:               *p.ID,
		AuthorizedAt:     p.AuthorizedAt.UTC(),
		PermissionLevels: rbac.Normalize(*p.PermissionLevels),
	}, nil
}

func (c *Codec) IsExpired(t AuthToken, now time.Time) bool {
	return IsExpired(t, now)
}

// Issue mints the wire token for a freshly verified principal.
func (c *Codec) Issue(email string, id int64, levels []rbac.PermissionLevel, now time.Time) (string, AuthToken, error) {
	t := NewAuthToken(email, id, levels, now)
	s, err := c.Encode(t)
	if err != nil {
		return "", AuthToken{}, err
	}
	return s, t, nil
}
