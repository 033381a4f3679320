package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
// It is append-only: there is no Update or Delete.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records session-issuing actions for operators.
// Callers should treat recording as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" || e.Email == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) LoginSucceeded(ctx context.Context, memberID int64, email, ip string) error {
	return s.Append(ctx, Event{Type: EventLoginSucceeded, MemberID: memberID, Email: email, IPAddress: ip})
}

func (s *Service) LoginFailed(ctx context.Context, email, ip, reason string) error {
	return s.Append(ctx, Event{Type: EventLoginFailed, Email: email, IPAddress: ip, Reason: reason})
}

func (s *Service) MemberRegistered(ctx context.Context, memberID int64, email, ip string) error {
	return s.Append(ctx, Event{Type: EventMemberRegistered, MemberID: memberID, Email: email, IPAddress: ip})
}
