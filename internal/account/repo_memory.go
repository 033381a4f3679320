package account

import (
	"context"
	"sync"
	"time"

	"member-portal/internal/rbac"
)

// MemoryRepo is a simple in-memory repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	members map[int64]Member
	hashes  map[int64]string
	byEmail map[string]int64
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		members: make(map[int64]Member),
		hashes:  make(map[int64]string),
		byEmail: make(map[string]int64),
	}
}

func (r *MemoryRepo) FindByEmail(ctx context.Context, email string) (Member, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[email]
	if !ok {
		return Member{}, "", ErrNotFound
	}
	return r.members[id], r.hashes[id], nil
}

func (r *MemoryRepo) FindByID(ctx context.Context, id int64) (Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return Member{}, ErrNotFound
	}
	return m, nil
}

func (r *MemoryRepo) Create(ctx context.Context, nm NewMember) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byEmail[nm.Email]; dup {
		return 0, ErrAlreadyExists
	}
	r.nextID++
	id := r.nextID
	r.members[id] = Member{
		ID:               id,
		FirstName:        nm.FirstName,
		LastName:         nm.LastName,
		Email:            nm.Email,
		Active:           true,
		PermissionLevels: rbac.Normalize(nm.InitialLevels),
		CreatedAt:        time.Now().UTC(),
	}
	r.hashes[id] = nm.PasswordHash
	r.byEmail[nm.Email] = id
	return id, nil
}

func (r *MemoryRepo) PermissionLevels(ctx context.Context, id int64) ([]rbac.PermissionLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]rbac.PermissionLevel(nil), m.PermissionLevels...), nil
}

// SetActive flips a member's active flag.
func (r *MemoryRepo) SetActive(id int64, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[id]; ok {
		m.Active = active
		r.members[id] = m
	}
}

// Grant replaces a member's permission levels.
func (r *MemoryRepo) Grant(id int64, levels ...rbac.PermissionLevel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[id]; ok {
		m.PermissionLevels = rbac.Normalize(levels)
		r.members[id] = m
	}
}
