package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"member-portal/internal/rbac"
	"member-portal/pkg/utils"
)

// NOTE: This repository assumes the following tables exist:
//
//	members (
//	  id BIGSERIAL PRIMARY KEY,
//	  first_name TEXT NOT NULL,
//	  last_name TEXT NOT NULL,
//	  email TEXT NOT NULL UNIQUE,
//	  password_hash TEXT NOT NULL,
//	  active BOOLEAN NOT NULL DEFAULT TRUE,
//	  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	)
//	member_permissions (
//	  member_id BIGINT NOT NULL REFERENCES members(id),
//	  permission_level TEXT NOT NULL,
//	  PRIMARY KEY (member_id, permission_level)
//	)

// Repository is the persistence contract used by Service.
type Repository interface {
	// FindByEmail returns the member and stored password hash.
	FindByEmail(ctx context.Context, email string) (Member, string, error)
	FindByID(ctx context.Context, id int64) (Member, error)
	Create(ctx context.Context, m NewMember) (int64, error)
	PermissionLevels(ctx context.Context, id int64) ([]rbac.PermissionLevel, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Member, string, error) {
	const q = `
SELECT id, first_name, last_name, email, active, created_at, password_hash
FROM members
WHERE email = $1
`
	var m Member
	var hash string
	if err := r.db.QueryRowContext(ctx, q, email).Scan(
		&m.ID,
		&m.FirstName,
		&m.LastName,
		&m.Email,
		&m.Active,
		&m.CreatedAt,
		&hash,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Member{}, "", ErrNotFound
		}
		return Member{}, "", err
	}

	levels, err := r.PermissionLevels(ctx, m.ID)
	if err != nil {
		return Member{}, "", err
	}
	m.PermissionLevels = levels
	return m, hash, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (Member, error) {
	const q = `
SELECT id, first_name, last_name, email, active, created_at
FROM members
WHERE id = $1
`
	var m Member
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
		&m.ID,
		&m.FirstName,
		&m.LastName,
		&m.Email,
		&m.Active,
		&m.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Member{}, ErrNotFound
		}
		return Member{}, err
	}

	levels, err := r.PermissionLevels(ctx, m.ID)
	if err != nil {
		return Member{}, err
	}
	m.PermissionLevels = levels
	return m, nil
}

// Create inserts the member and its initial permission levels atomically.
func (r *PostgresRepository) Create(ctx context.Context, nm NewMember) (int64, error) {
	const insertMember = `
INSERT INTO members (first_name, last_name, email, password_hash)
VALUES ($1, $2, $3, $4)
RETURNING id
`
	const insertLevel = `
INSERT INTO member_permissions (member_id, permission_level)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`
	var id int64
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, insertMember, nm.FirstName, nm.LastName, nm.Email, nm.PasswordHash).Scan(&id); err != nil {
			return err
		}
		for _, p := range rbac.Normalize(nm.InitialLevels) {
			if _, err := tx.ExecContext(ctx, insertLevel, id, string(p)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if utils.IsUniqueViolation(err) {
			return 0, ErrAlreadyExists
		}
		return 0, fmt.Errorf("create member: %w", err)
	}
	return id, nil
}

// PermissionLevels drops tags the enum does not know, so a stale row cannot
// grant anything.
func (r *PostgresRepository) PermissionLevels(ctx context.Context, id int64) ([]rbac.PermissionLevel, error) {
	const q = `
SELECT permission_level
FROM member_permissions
WHERE member_id = $1
`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var levels []rbac.PermissionLevel
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		levels = append(levels, rbac.PermissionLevel(s))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rbac.Normalize(levels), nil
}
