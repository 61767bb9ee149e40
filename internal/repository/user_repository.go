package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/kc-reserve/hut-api/internal/models"
	"github.com/kc-reserve/hut-api/pkg/database"
)

// The display name falls back to the whitelist entry the account registered with.
const userColumns = `u.id, u.email, u.password_hash, COALESCE(u.display_name, w.display_name) AS display_name,
u.is_admin, u.is_active, u.receives_notification, u.created_at, u.updated_at`

const userFrom = `FROM users u LEFT JOIN whitelist_entries w ON w.email = u.email`

// UserRepository provides database access for accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` ` + userFrom + ` WHERE u.email = $1 LIMIT 1`
	var user models.User
	if err := database.Conn(ctx, r.db).GetContext(ctx, &user, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` ` + userFrom + ` WHERE u.id = $1 LIMIT 1`
	var user models.User
	if err := database.Conn(ctx, r.db).GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// Create inserts a new account.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `INSERT INTO users (id, email, password_hash, display_name, is_admin, is_active, receives_notification, created_at, updated_at)
        VALUES (:id, :email, :password_hash, :display_name, :is_admin, :is_active, :receives_notification, :created_at, :updated_at)`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", mapWriteError(err))
	}
	return nil
}

// UpdateProfile persists the self-service fields of an account.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET email = :email, display_name = :display_name, receives_notification = :receives_notification, updated_at = :updated_at WHERE id = :id`
	res, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, user)
	if err != nil {
		return fmt.Errorf("update user profile: %w", mapWriteError(err))
	}
	return requireAffected(res)
}

// SetActive flips the activation flag of an account.
func (r *UserRepository) SetActive(ctx context.Context, id string, active bool) error {
	const query = `UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	return requireAffected(res)
}

// List returns accounts matching the filter ordered by email.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("u.is_active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.IsAdmin != nil {
		conditions = append(conditions, fmt.Sprintf("u.is_admin = $%d", len(args)+1))
		args = append(args, *filter.IsAdmin)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf("(u.email ILIKE $%d OR COALESCE(u.display_name, w.display_name) ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+search+"%")
	}

	query := `SELECT ` + userColumns + ` ` + userFrom
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY u.email ASC"

	var users []models.User
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// NotificationRecipients returns the emails of active admins who opted into mail.
func (r *UserRepository) NotificationRecipients(ctx context.Context) ([]string, error) {
	const query = `SELECT email FROM users WHERE is_admin = TRUE AND is_active = TRUE AND receives_notification = TRUE ORDER BY email`
	var emails []string
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &emails, query); err != nil {
		return nil, fmt.Errorf("list notification recipients: %w", err)
	}
	return emails, nil
}

// EnableAdminNotifications opts every admin into notification mail.
func (r *UserRepository) EnableAdminNotifications(ctx context.Context) (int64, error) {
	const query = `UPDATE users SET receives_notification = TRUE, updated_at = $1 WHERE is_admin = TRUE AND receives_notification = FALSE`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("enable admin notifications: %w", err)
	}
	return res.RowsAffected()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
