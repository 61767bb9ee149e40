package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/kc-reserve/hut-api/internal/models"
	"github.com/kc-reserve/hut-api/pkg/database"
)

// SettingRepository reads and writes system_settings.
type SettingRepository struct {
	db *sqlx.DB
}

// NewSettingRepository constructs the repository.
func NewSettingRepository(db *sqlx.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// Get returns the setting for key or sql.ErrNoRows.
func (r *SettingRepository) Get(ctx context.Context, key string) (*models.SystemSetting, error) {
	const query = `SELECT key, value, updated_at FROM system_settings WHERE key = $1`
	var setting models.SystemSetting
	if err := database.Conn(ctx, r.db).GetContext(ctx, &setting, query, key); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get setting %s: %w", key, err)
	}
	return &setting, nil
}

// GetOrInit returns the stored value, inserting fallback first when the key is absent.
func (r *SettingRepository) GetOrInit(ctx context.Context, key, fallback string) (*models.SystemSetting, error) {
	const insert = `INSERT INTO system_settings (key, value, updated_at) VALUES ($1, $2, $3) ON CONFLICT (key) DO NOTHING`
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, insert, key, fallback, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("init setting %s: %w", key, err)
	}
	return r.Get(ctx, key)
}

// Upsert stores value under key.
func (r *SettingRepository) Upsert(ctx context.Context, key, value string) (*models.SystemSetting, error) {
	setting := &models.SystemSetting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	const query = `INSERT INTO system_settings (key, value, updated_at) VALUES (:key, :value, :updated_at)
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, setting); err != nil {
		return nil, fmt.Errorf("upsert setting %s: %w", key, err)
	}
	return setting, nil
}
