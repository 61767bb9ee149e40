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

const reservationSelect = `SELECT r.id, r.user_id, r.status, r.visibility, r.purpose, r.display_message, r.description,
r.cancellation_reason, r.rejection_reason, r.approval_message, r.attendee_count, r.allow_additional_members,
r.start_time, r.end_time, r.is_notification_sent, r.created_at, r.updated_at,
u.email AS owner_email, COALESCE(u.display_name, w.display_name) AS owner_display_name
FROM reservations r
JOIN users u ON u.id = r.user_id
LEFT JOIN whitelist_entries w ON w.email = u.email`

// ReservationRepository provides database access for reservations.
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository constructs the repository.
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Create inserts a reservation.
func (r *ReservationRepository) Create(ctx context.Context, res *models.Reservation) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	res.CreatedAt = now
	res.UpdatedAt = now

	const query = `INSERT INTO reservations (id, user_id, status, visibility, purpose, display_message, description,
        cancellation_reason, rejection_reason, approval_message, attendee_count, allow_additional_members,
        start_time, end_time, is_notification_sent, created_at, updated_at)
        VALUES (:id, :user_id, :status, :visibility, :purpose, :display_message, :description,
        :cancellation_reason, :rejection_reason, :approval_message, :attendee_count, :allow_additional_members,
        :start_time, :end_time, :is_notification_sent, :created_at, :updated_at)`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, res); err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

// FindByID returns a reservation with its owner columns.
func (r *ReservationRepository) FindByID(ctx context.Context, id string) (*models.Reservation, error) {
	query := reservationSelect + ` WHERE r.id = $1 LIMIT 1`
	var res models.Reservation
	if err := database.Conn(ctx, r.db).GetContext(ctx, &res, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find reservation: %w", err)
	}
	return &res, nil
}

// List returns reservations matching filter ordered by start time ascending.
func (r *ReservationRepository) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, error) {
	var conditions []string
	var args []interface{}

	if filter.Start != nil {
		conditions = append(conditions, fmt.Sprintf("r.end_time >= $%d", len(args)+1))
		args = append(args, *filter.Start)
	}
	if filter.End != nil {
		conditions = append(conditions, fmt.Sprintf("r.start_time <= $%d", len(args)+1))
		args = append(args, *filter.End)
	}
	if filter.Visibility != nil {
		conditions = append(conditions, fmt.Sprintf("r.visibility = $%d", len(args)+1))
		args = append(args, string(*filter.Visibility))
	}
	if filter.Visible {
		if filter.OwnerID != "" {
			conditions = append(conditions, fmt.Sprintf("(r.status = $%d OR r.user_id = $%d)", len(args)+1, len(args)+2))
			args = append(args, string(models.StatusApproved), filter.OwnerID)
		} else {
			conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)+1))
			args = append(args, string(models.StatusApproved))
		}
	}

	query := reservationSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY r.start_time ASC, r.id ASC"

	var reservations []models.Reservation
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &reservations, query, args...); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return reservations, nil
}

// ListByOwner returns an account's reservations, latest start first.
func (r *ReservationRepository) ListByOwner(ctx context.Context, userID string) ([]models.Reservation, error) {
	query := reservationSelect + ` WHERE r.user_id = $1 ORDER BY r.start_time DESC, r.id ASC`
	var reservations []models.Reservation
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &reservations, query, userID); err != nil {
		return nil, fmt.Errorf("list reservations by owner: %w", err)
	}
	return reservations, nil
}

// Update persists workflow and free-text fields.
func (r *ReservationRepository) Update(ctx context.Context, res *models.Reservation) error {
	res.UpdatedAt = time.Now().UTC()
	const query = `UPDATE reservations SET status = :status, visibility = :visibility, display_message = :display_message,
        description = :description, cancellation_reason = :cancellation_reason, rejection_reason = :rejection_reason,
        approval_message = :approval_message, updated_at = :updated_at WHERE id = :id`
	result, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, res)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	return requireAffected(result)
}

// Delete hard-deletes a reservation.
func (r *ReservationRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM reservations WHERE id = $1`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return requireAffected(res)
}

// CountActionable counts reservations waiting on an admin decision.
func (r *ReservationRepository) CountActionable(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM reservations WHERE status IN ($1, $2)`
	var count int
	if err := database.Conn(ctx, r.db).GetContext(ctx, &count, query, string(models.StatusPending), string(models.StatusCancellationRequested)); err != nil {
		return 0, fmt.Errorf("count actionable reservations: %w", err)
	}
	return count, nil
}

// MarkNotificationSent records that the new-reservation mail went out.
func (r *ReservationRepository) MarkNotificationSent(ctx context.Context, id string) error {
	const query = `UPDATE reservations SET is_notification_sent = TRUE WHERE id = $1`
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}
