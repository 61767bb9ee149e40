package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kc-reserve/hut-api/internal/models"
)

func TestCreateRefreshSession(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRefreshSessionRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(0, 1))

	session := &models.RefreshSession{UserID: "u1", TokenHash: "abc", CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Create(context.Background(), session))
	assert.NotEmpty(t, session.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveByHashFiltersRevokedAndExpired(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRefreshSessionRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2")).
		WithArgs("digest", now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "user_agent", "ip_address", "created_at", "expires_at", "revoked_at"}).
			AddRow("s1", "u1", "digest", "curl", "127.0.0.1", now, now.Add(time.Hour), nil))

	session, err := repo.FindActiveByHash(context.Background(), "digest", now)
	require.NoError(t, err)
	assert.Equal(t, "s1", session.ID)
	assert.True(t, session.Usable(now))
}

func TestFindActiveByHashMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRefreshSessionRepository(db)

	mock.ExpectQuery("FROM refresh_tokens").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActiveByHash(context.Background(), "digest", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRevokeIsConditional(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRefreshSessionRepository(db)

	query := regexp.QuoteMeta("UPDATE refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL")
	mock.ExpectExec(query).WithArgs("s1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("s1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := repo.Revoke(context.Background(), "s1", time.Now())
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.Revoke(context.Background(), "s1", time.Now())
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeAllForUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRefreshSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE user_id = $1 AND revoked_at IS NULL")).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.RevokeAllForUser(context.Background(), "u1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
