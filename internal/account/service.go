package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"member-portal/internal/rbac"
	"member-portal/internal/security"
	"member-portal/pkg/logger"
)

var (
	ErrNotFound           = errors.New("account: not found")
	ErrAlreadyExists      = errors.New("account: already exists")
	ErrInvalidCredentials = errors.New("account: invalid credentials")
	ErrDeactivated        = errors.New("account: deactivated")
	ErrThrottled          = errors.New("account: too many failed logins")
	ErrInvalidArgument    = errors.New("account: invalid argument")
)

// DefaultLevels are granted to every newly registered member.
var DefaultLevels = []rbac.PermissionLevel{rbac.CommunityDJ}

// Throttle limits failed login attempts per email.
type Throttle interface {
	Blocked(ctx context.Context, email string) (bool, error)
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}

// Service is the credential verifier: it turns email + password into a Member
// whose permission levels go into the session token.
type Service struct {
	repo     Repository
	throttle Throttle
}

// NewService accepts a nil throttle, which disables login throttling.
func NewService(repo Repository, throttle Throttle) *Service {
	return &Service{repo: repo, throttle: throttle}
}

func (s *Service) Verify(ctx context.Context, email, password string) (Member, error) {
	email = security.NormalizeEmail(email)
	if email == "" || password == "" {
		return Member{}, ErrInvalidCredentials
	}

	if s.blocked(ctx, email) {
		return Member{}, ErrThrottled
	}

	m, hash, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		s.recordFailure(ctx, email)
		return Member{}, ErrInvalidCredentials
	}
	if err != nil {
		return Member{}, fmt.Errorf("find member: %w", err)
	}
	if !security.PasswordMatches(email, password, hash) {
		s.recordFailure(ctx, email)
		return Member{}, ErrInvalidCredentials
	}
	if !m.Active {
		return Member{}, ErrDeactivated
	}

	s.reset(ctx, email)
	return m, nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Member, error) {
	email := security.NormalizeEmail(in.Email)
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	if email == "" || first == "" || last == "" || in.Password == "" {
		return Member{}, ErrInvalidArgument
	}

	id, err := s.repo.Create(ctx, NewMember{
		FirstName:     first,
		LastName:      last,
		Email:         email,
		PasswordHash:  security.HashPassword(email, in.Password),
		InitialLevels: DefaultLevels,
	})
	if err != nil {
		return Member{}, err
	}

	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Member{}, fmt.Errorf("load new member: %w", err)
	}
	logger.From(ctx).Info("member registered", "member_id", id, "email", email)
	return m, nil
}

func (s *Service) Profile(ctx context.Context, id int64) (Member, error) {
	if id <= 0 {
		return Member{}, ErrInvalidArgument
	}
	return s.repo.FindByID(ctx, id)
}

// Throttle failures are logged and otherwise ignored; a Redis outage must not
// lock every member out.

func (s *Service) blocked(ctx context.Context, email string) bool {
	if s.throttle == nil {
		return false
	}
	b, err := s.throttle.Blocked(ctx, email)
	if err != nil {
		logger.From(ctx).Warn("login throttle check failed", "err", err)
		return false
	}
	return b
}

func (s *Service) recordFailure(ctx context.Context, email string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.RecordFailure(ctx, email); err != nil {
		logger.From(ctx).Warn("login throttle record failed", "err", err)
	}
}

func (s *Service) reset(ctx context.Context, email string) {
	if s.throttle == nil {
		return
	}
	if err := s.throttle.Reset(ctx, email); err != nil {
		logger.From(ctx).Warn("login throttle reset failed", "err", err)
	}
}
