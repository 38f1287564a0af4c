package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PG is a PostgreSQL-backed limiter with a fixed window and lockout.
type PG struct {
	pool     Querier
	window   time.Duration
	maxFails int
	blockFor time.Duration
}

// Querier is the subset of a pgx pool the limiter needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter.
func NewPG(q Querier, window time.Duration, maxFails int, blockFor time.Duration) *PG {
	return &PG{pool: q, window: window, maxFails: maxFails, blockFor: blockFor}
}

// Allow reports whether the client is currently allowed and a retry-after duration.
func (l *PG) Allow(ctx context.Context, ipHash []byte) (bool, time.Duration, error) {
	const q = `SELECT blocked_until FROM verify_limiter WHERE ip_hash=$1`
	var blockedUntil time.Time
	err := l.pool.QueryRow(ctx, q, ipHash).Scan(&blockedUntil)
	switch {
	case err == nil:
		if d := time.Until(blockedUntil); d > 0 {
			return false, d, nil
		}
		return true, 0, nil
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	default:
		return false, 0, err
	}
}

// Failure records an unknown-token lookup; may set a block until a future time.
func (l *PG) Failure(ctx context.Context, ipHash []byte) (bool, time.Duration, error) {
	const q = `
INSERT INTO verify_limiter (ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1,1,'epoch',now())
ON CONFLICT (ip_hash) DO UPDATE
SET
  fail_count = CASE WHEN EXCLUDED.updated_at - verify_limiter.updated_at > $2::interval THEN 1 ELSE verify_limiter.fail_count + 1 END,
  updated_at = now()
RETURNING fail_count`
	var fails int
	if err := l.pool.QueryRow(ctx, q, ipHash, l.window).Scan(&fails); err != nil {
		return false, 0, err
	}
	if fails < l.maxFails {
		return false, 0, nil
	}

	const upd = `UPDATE verify_limiter SET blocked_until=$2 WHERE ip_hash=$1`
	if _, err := l.pool.Exec(ctx, upd, ipHash, time.Now().Add(l.blockFor)); err != nil {
		return false, 0, err
	}
	return true, l.blockFor, nil
}
