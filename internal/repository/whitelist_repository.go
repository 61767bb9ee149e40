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

const whitelistColumns = `id, email, display_name, is_admin_default, added_by_user_id, created_at`

// WhitelistRepository manages registration eligibility entries.
type WhitelistRepository struct {
	db *sqlx.DB
}

// NewWhitelistRepository constructs the repository.
func NewWhitelistRepository(db *sqlx.DB) *WhitelistRepository {
	return &WhitelistRepository{db: db}
}

// FindByEmail returns the entry for a normalized email.
func (r *WhitelistRepository) FindByEmail(ctx context.Context, email string) (*models.WhitelistEntry, error) {
	const query = `SELECT ` + whitelistColumns + ` FROM whitelist_entries WHERE email = $1 LIMIT 1`
	var entry models.WhitelistEntry
	if err := database.Conn(ctx, r.db).GetContext(ctx, &entry, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find whitelist entry by email: %w", err)
	}
	return &entry, nil
}

// FindByID returns an entry by identifier.
func (r *WhitelistRepository) FindByID(ctx context.Context, id string) (*models.WhitelistEntry, error) {
	const query = `SELECT ` + whitelistColumns + ` FROM whitelist_entries WHERE id = $1 LIMIT 1`
	var entry models.WhitelistEntry
	if err := database.Conn(ctx, r.db).GetContext(ctx, &entry, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find whitelist entry: %w", err)
	}
	return &entry, nil
}

// List returns all entries, newest first.
func (r *WhitelistRepository) List(ctx context.Context) ([]models.WhitelistEntry, error) {
	const query = `SELECT ` + whitelistColumns + ` FROM whitelist_entries ORDER BY created_at DESC, email ASC`
	var entries []models.WhitelistEntry
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list whitelist entries: %w", err)
	}
	return entries, nil
}

// Create inserts a new entry. Duplicate emails yield ErrDuplicate.
func (r *WhitelistRepository) Create(ctx context.Context, entry *models.WhitelistEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO whitelist_entries (` + whitelistColumns + `)
        VALUES (:id, :email, :display_name, :is_admin_default, :added_by_user_id, :created_at)`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create whitelist entry: %w", mapWriteError(err))
	}
	return nil
}

// Update persists the mutable fields of an entry.
func (r *WhitelistRepository) Update(ctx context.Context, entry *models.WhitelistEntry) error {
	const query = `UPDATE whitelist_entries SET display_name = :display_name, is_admin_default = :is_admin_default WHERE id = :id`
	res, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, entry)
	if err != nil {
		return fmt.Errorf("update whitelist entry: %w", err)
	}
	return requireAffected(res)
}

// Delete removes an entry. Unknown ids yield sql.ErrNoRows.
func (r *WhitelistRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM whitelist_entries WHERE id = $1`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete whitelist entry: %w", err)
	}
	return requireAffected(res)
}

// UpsertAdmin whitelists email as a default admin, promoting an existing
// entry if needed. It reports whether a new row was inserted.
func (r *WhitelistRepository) UpsertAdmin(ctx context.Context, email, displayName string) (bool, error) {
	const query = `INSERT INTO whitelist_entries (id, email, display_name, is_admin_default, created_at)
        VALUES ($1, $2, $3, TRUE, $4)
        ON CONFLICT (email) DO UPDATE SET is_admin_default = TRUE
        RETURNING (xmax = 0) AS inserted`
	var inserted bool
	if err := database.Conn(ctx, r.db).GetContext(ctx, &inserted, query, uuid.NewString(), email, displayName, time.Now().UTC()); err != nil {
		return false, fmt.Errorf("upsert admin whitelist entry: %w", err)
	}
	return inserted, nil
}
