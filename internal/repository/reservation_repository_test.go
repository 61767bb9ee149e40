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

var reservationRowColumns = []string{
	"id", "user_id", "status", "visibility", "purpose", "display_message", "description",
	"cancellation_reason", "rejection_reason", "approval_message", "attendee_count", "allow_additional_members",
	"start_time", "end_time", "is_notification_sent", "created_at", "updated_at", "owner_email", "owner_display_name",
}

func reservationRow(rows *sqlmock.Rows, id, status, visibility string, start time.Time) *sqlmock.Rows {
	return rows.AddRow(id, "u1", status, visibility, "Hike", nil, nil, nil, nil, nil, 2, false,
		start, start.Add(24*time.Hour), false, start, start, "alice@example.com", "Alice")
}

func TestListVisibleIncludesOwnReservations(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(30 * 24 * time.Hour)
	public := models.VisibilityPublic

	rows := reservationRow(sqlmock.NewRows(reservationRowColumns), "r1", "approved", "public", start)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.end_time >= $1 AND r.start_time <= $2 AND r.visibility = $3 AND (r.status = $4 OR r.user_id = $5) ORDER BY r.start_time ASC")).
		WithArgs(start, end, "public", "approved", "u1").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.ReservationFilter{Start: &start, End: &end, Visibility: &public, Visible: true, OwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.StatusApproved, list[0].Status)
	assert.Equal(t, "alice@example.com", list[0].OwnerEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAnonymousViewerOnlyApproved(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.status = $1 ORDER BY")).
		WithArgs("approved").
		WillReturnRows(sqlmock.NewRows(reservationRowColumns))

	list, err := repo.List(context.Background(), models.ReservationFilter{Visible: true})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListRejectsUnknownStatusLiteral(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	rows := reservationRow(sqlmock.NewRows(reservationRowColumns), "r1", "APPROVED", "public", time.Now())
	mock.ExpectQuery("FROM reservations r").WillReturnRows(rows)

	_, err := repo.List(context.Background(), models.ReservationFilter{})
	assert.Error(t, err)
}

func TestCreateReservation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectExec("INSERT INTO reservations").WillReturnResult(sqlmock.NewResult(0, 1))

	res := &models.Reservation{
		UserID: "u1", Status: models.StatusPending, Visibility: models.VisibilityPublic, Purpose: "Hike",
		AttendeeCount: 1, StartTime: time.Now(), EndTime: time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), res))
	assert.NotEmpty(t, res.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReservationRejectsUnknownStatusOnWrite(t *testing.T) {
	db, _, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	res := &models.Reservation{UserID: "u1", Status: "Approved", Visibility: models.VisibilityPublic, Purpose: "Hike"}
	assert.Error(t, repo.Create(context.Background(), res))
}

func TestDeleteReservationUnknown(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reservations WHERE id = $1")).WithArgs("nope").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), "nope"), sql.ErrNoRows)
}

func TestCountActionable(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reservations WHERE status IN ($1, $2)")).
		WithArgs("pending", "cancellation_requested").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountActionable(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestListByOwnerOrdersDescending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	rows := reservationRow(sqlmock.NewRows(reservationRowColumns), "r2", "pending", "anonymous", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE r.user_id = $1 ORDER BY r.start_time DESC")).WithArgs("u1").WillReturnRows(rows)

	list, err := repo.ListByOwner(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.VisibilityAnonymous, list[0].Visibility)
}
