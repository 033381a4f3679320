package security

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// HashPassword returns hex(HMAC-SHA512(key=salt, password)).
// The accounts table stores this exact format, so it must not change.
func HashPassword(salt, password string) string {
	mac := hmac.New(sha512.New, []byte(salt))
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}

// NormalizeEmail is the canonical salt form used on both register and login.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PasswordMatches compares a candidate against a stored hash in constant time.
func PasswordMatches(salt, password, stored string) bool {
	return hmac.Equal([]byte(HashPassword(salt, password)), []byte(stored))
}
