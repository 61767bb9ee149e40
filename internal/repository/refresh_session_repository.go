package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kc-reserve/hut-api/internal/models"
	"github.com/kc-reserve/hut-api/pkg/database"
)

const sessionColumns = `id, user_id, token_hash, user_agent, ip_address, created_at, expires_at, revoked_at`

// RefreshSessionRepository stores refresh sessions keyed by secret digest.
type RefreshSessionRepository struct {
	db *sqlx.DB
}

// NewRefreshSessionRepository constructs the repository.
func NewRefreshSessionRepository(db *sqlx.DB) *RefreshSessionRepository {
	return &RefreshSessionRepository{db: db}
}

// Create persists a new session.
func (r *RefreshSessionRepository) Create(ctx context.Context, session *models.RefreshSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	const query = `INSERT INTO refresh_tokens (` + sessionColumns + `)
        VALUES (:id, :user_id, :token_hash, :user_agent, :ip_address, :created_at, :expires_at, :revoked_at)`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create refresh session: %w", mapWriteError(err))
	}
	return nil
}

// FindActiveByHash returns the unrevoked, unexpired session for hash.
func (r *RefreshSessionRepository) FindActiveByHash(ctx context.Context, hash string, now time.Time) (*models.RefreshSession, error) {
	const query = `SELECT ` + sessionColumns + ` FROM refresh_tokens WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2 LIMIT 1`
	var session models.RefreshSession
	if err := database.Conn(ctx, r.db).GetContext(ctx, &session, query, hash, now); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh session: %w", err)
	}
	return &session, nil
}

// Revoke marks the session revoked only if nobody else did first. It reports
// whether this call performed the revocation.
func (r *RefreshSessionRepository) Revoke(ctx context.Context, id string, now time.Time) (bool, error) {
	const query = `UPDATE refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, id, now)
	if err != nil {
		return false, fmt.Errorf("revoke refresh session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RevokeByHash revokes the unrevoked session matching hash, if any.
func (r *RefreshSessionRepository) RevokeByHash(ctx context.Context, hash string, now time.Time) (bool, error) {
	const query = `UPDATE refresh_tokens SET revoked_at = $2 WHERE token_hash = $1 AND revoked_at IS NULL`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, hash, now)
	if err != nil {
		return false, fmt.Errorf("revoke refresh session by hash: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RevokeAllForUser revokes every active session of an account.
func (r *RefreshSessionRepository) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	const query = `UPDATE refresh_tokens SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, userID, now)
	if err != nil {
		return 0, fmt.Errorf("revoke user sessions: %w", err)
	}
	return res.RowsAffected()
}
