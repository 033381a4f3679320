package audit

import (
	"context"
	"database/sql"
)

// NOTE: PostgresRepo assumes:
//
//	auth_events (
//	  id UUID PRIMARY KEY,
//	  type TEXT NOT NULL,
//	  member_id BIGINT NULL,
//	  email TEXT NOT NULL,
//	  ip_address TEXT NULL,
//	  reason TEXT NULL,
//	  created_at TIMESTAMPTZ NOT NULL
//	)
//
// Grant the app role INSERT only.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO auth_events (id, type, member_id, email, ip_address, reason, created_at)
VALUES ($1, $2, NULLIF($3, 0), $4, NULLIF($5, ''), NULLIF($6, ''), $7)
`
	_, err := r.db.ExecContext(ctx, q, e.ID, string(e.Type), e.MemberID, e.Email, e.IPAddress, e.Reason, e.CreatedAt)
	return err
}
