package audit

import "time"

// Event is an append-only record of a session-issuing action.
//
// Invariants:
// - Events are never updated or deleted.
// - Password material never appears in an event.
// - Recording is best-effort; login and registration never fail because of it.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// MemberID is zero when the attempt did not resolve to a member.
	MemberID int64  `json:"memberId,omitempty" db:"member_id"`
	Email    string `json:"email" db:"email"`

	// IPAddress is the client IP as resolved by gin.
	IPAddress string `json:"ipAddress,omitempty" db:"ip_address"`

	// Reason is a short machine code for failures (invalid_credentials, deactivated, throttled).
	Reason string `json:"reason,omitempty" db:"reason"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type EventType string

const (
	EventLoginSucceeded   EventType = "login_succeeded"
	EventLoginFailed      EventType = "login_failed"
	EventMemberRegistered EventType = "member_registered"
)
