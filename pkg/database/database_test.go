package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kc-reserve/hut-api/pkg/config"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestWithinTxCommitsOnSuccess(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE refresh_tokens").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewTxManager(db).WithinTx(context.Background(), func(ctx context.Context) error {
		_, ok := Conn(ctx, db).(*sqlx.Tx)
		assert.True(t, ok)
		_, err := Conn(ctx, db).ExecContext(ctx, "UPDATE refresh_tokens SET revoked_at = now()")
		return err
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := NewTxManager(db).WithinTx(context.Background(), func(ctx context.Context) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnPanic(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = NewTxManager(db).WithinTx(context.Background(), func(ctx context.Context) error {
			panic("kaput")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxNestedReusesOuter(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	mgr := NewTxManager(db)
	err := mgr.WithinTx(context.Background(), func(ctx context.Context) error {
		return mgr.WithinTx(ctx, func(context.Context) error { return nil })
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnFallsBackToDB(t *testing.T) {
	db, _ := newMock(t)
	assert.Equal(t, db, Conn(context.Background(), db))
}

func TestMigrateUsesEmbeddedRoot(t *testing.T) {
	db, _ := newMock(t)

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()
	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, Migrate(context.Background(), db.DB, ""))
	assert.Equal(t, ".", gotDir)
}

func TestMigratePropagatesError(t *testing.T) {
	db, _ := newMock(t)

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	assert.EqualError(t, Migrate(context.Background(), db.DB, "."), "boom")
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "hut", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=hut sslmode=disable", dsn)
}
