package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kc-reserve/hut-api/internal/dto"
	"github.com/kc-reserve/hut-api/internal/models"
	"github.com/kc-reserve/hut-api/internal/notification"
	"github.com/kc-reserve/hut-api/pkg/database"
	appErrors "github.com/kc-reserve/hut-api/pkg/errors"
)

type reservationRepository interface {
	Create(ctx context.Context, res *models.Reservation) error
	FindByID(ctx context.Context, id string) (*models.Reservation, error)
	List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, error)
	ListByOwner(ctx context.Context, userID string) ([]models.Reservation, error)
	Update(ctx context.Context, res *models.Reservation) error
	Delete(ctx context.Context, id string) error
	CountActionable(ctx context.Context) (int, error)
}

type recipientSource interface {
	NotificationRecipients(ctx context.Context) ([]string, error)
}

// ReservationService runs the reservation workflow.
type ReservationService struct {
	repo       reservationRepository
	recipients recipientSource
	notifier   notification.Dispatcher
	cache      *CacheService
	tx         database.Transactor
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewReservationService constructs the service. cache may be nil.
func NewReservationService(repo reservationRepository, recipients recipientSource, notifier notification.Dispatcher, cache *CacheService, tx database.Transactor, validate *validator.Validate, logger *zap.Logger) *ReservationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &ReservationService{
		repo:       repo,
		recipients: recipients,
		notifier:   notifier,
		cache:      cache,
		tx:         tx,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
	svc.validator.RegisterValidation("reservation_status", func(fl validator.FieldLevel) bool {
		return models.ReservationStatus(fl.Field().String()).Valid()
	})
	svc.validator.RegisterValidation("reservation_visibility", func(fl validator.FieldLevel) bool {
		return models.ReservationVisibility(fl.Field().String()).Valid()
	})
	svc.validator.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return svc
}

// Create submits a new pending reservation for viewer and notifies admins.
func (s *ReservationService) Create(ctx context.Context, viewer models.Viewer, req models.CreateReservationRequest) (*dto.ReservationView, error) {
	if !viewer.Authenticated() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}

	req.Purpose = strings.TrimSpace(req.Purpose)
	var problems []string
	if err := s.validator.Struct(req); err != nil {
		problems = append(problems, validationMessages(err)...)
	}
	start, startErr := parseTimestamp("startTime", req.StartTime)
	if startErr != "" {
		problems = append(problems, startErr)
	}
	end, endErr := parseTimestamp("endTime", req.EndTime)
	if endErr != "" {
		problems = append(problems, endErr)
	}
	if startErr == "" && endErr == "" && !end.After(start) {
		problems = append(problems, "endTime must be after startTime")
	}
	if len(problems) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, strings.Join(problems, "; "))
	}

	res := &models.Reservation{
		UserID:                 viewer.UserID,
		Status:                 models.StatusPending,
		Visibility:             models.VisibilityPublic,
		Purpose:                req.Purpose,
		DisplayMessage:         trimmedOrNil(req.DisplayMessage),
		Description:            trimmedOrNil(req.Description),
		AttendeeCount:          1,
		AllowAdditionalMembers: req.AllowAdditionalMembers,
		StartTime:              start,
		EndTime:                end,
	}
	if req.Visibility != nil && *req.Visibility != "" {
		res.Visibility = models.ReservationVisibility(*req.Visibility)
	}
	if req.AttendeeCount != nil {
		res.AttendeeCount = *req.AttendeeCount
	}

	var stored *models.Reservation
	var msg notification.Message
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, res); err != nil {
			return err
		}
		var err error
		if stored, err = s.repo.FindByID(ctx, res.ID); err != nil {
			return err
		}
		recipients, err := s.recipients.NotificationRecipients(ctx)
		if err != nil {
			return err
		}
		msg = notification.Snapshot(notification.KindNewReservation, stored, recipients, s.now())
		return nil
	})
	if err != nil {
		return nil, internalError(err, "failed to create reservation")
	}

	s.afterMutation(ctx, &msg)
	s.logger.Info("reservation created", zap.String("reservation_id", stored.ID), zap.String("user_id", viewer.UserID))
	view := ToView(viewer, stored)
	return &view, nil
}

// List returns the reservations viewer may see, ascending by start time.
func (s *ReservationService) List(ctx context.Context, viewer models.Viewer, query models.ReservationQuery) ([]dto.ReservationView, error) {
	filter, err := parseFilter(query)
	if err != nil {
		return nil, err
	}
	scopeFilter(viewer, &filter)

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reservations")
	}
	return ToViews(viewer, items), nil
}

// Calendar returns redacted calendar events for viewer. Anonymous payloads
// are served from cache when enabled.
func (s *ReservationService) Calendar(ctx context.Context, viewer models.Viewer, query models.ReservationQuery) ([]dto.CalendarEvent, error) {
	filter, err := parseFilter(query)
	if err != nil {
		return nil, err
	}
	scopeFilter(viewer, &filter)

	var key string
	if !viewer.Authenticated() {
		key = calendarCacheKey(filter)
		var cached []dto.CalendarEvent
		if s.cache.Get(ctx, key, &cached) {
			return cached, nil
		}
	}

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar")
	}
	events := ToEvents(viewer, items)
	if key != "" {
		s.cache.Set(ctx, key, events, 0)
	}
	return events, nil
}

// Mine returns viewer's own reservations, latest start first.
func (s *ReservationService) Mine(ctx context.Context, viewer models.Viewer) ([]dto.ReservationView, error) {
	if !viewer.Authenticated() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	items, err := s.repo.ListByOwner(ctx, viewer.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reservations")
	}
	return ToViews(viewer, items), nil
}

// Update applies an owner patch. The only status an owner may set is
// cancellation_requested, and only on an approved reservation.
func (s *ReservationService) Update(ctx context.Context, viewer models.Viewer, id string, req models.UpdateReservationRequest) (*dto.ReservationView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, strings.Join(validationMessages(err), "; "))
	}

	var updated *models.Reservation
	var msg *notification.Message
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.findReservation(ctx, id)
		if err != nil {
			return err
		}
		if res.UserID != viewer.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the owner may update this reservation")
		}

		editsText := req.Description != nil || req.DisplayMessage != nil
		if editsText && res.Status.Terminal() {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("reservation is %s and can no longer be edited", res.Status))
		}
		if req.Description != nil {
			res.Description = trimmedOrNil(req.Description)
		}
		if req.DisplayMessage != nil {
			res.DisplayMessage = trimmedOrNil(req.DisplayMessage)
		}

		if req.Status != nil {
			target := models.ReservationStatus(*req.Status)
			if target != models.StatusCancellationRequested {
				return appErrors.Clone(appErrors.ErrValidation, "owners may only request cancellation")
			}
			if !OwnerTransitionAllowed(res.Status, target) {
				return appErrors.Clone(appErrors.ErrValidation, "cancellation can only be requested for approved reservations")
			}
			res.Status = target
			res.CancellationReason = trimmedOrNil(req.CancellationReason)
		}

		if err := s.repo.Update(ctx, res); err != nil {
			return err
		}
		if updated, err = s.repo.FindByID(ctx, id); err != nil {
			return err
		}

		if req.Status != nil {
			recipients, err := s.recipients.NotificationRecipients(ctx)
			if err != nil {
				return err
			}
			snapshot := notification.Snapshot(notification.KindCancellationRequest, updated, recipients, s.now())
			msg = &snapshot
		}
		return nil
	})
	if err != nil {
		return nil, internalError(err, "failed to update reservation")
	}

	s.afterMutation(ctx, msg)
	view := ToView(viewer, updated)
	return &view, nil
}

// AdminUpdateStatus force-sets status and optionally visibility.
func (s *ReservationService) AdminUpdateStatus(ctx context.Context, viewer models.Viewer, id string, req models.AdminStatusRequest) (*dto.ReservationView, error) {
	if !viewer.IsAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin privileges required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, strings.Join(validationMessages(err), "; "))
	}
	target := models.ReservationStatus(req.Status)

	var updated *models.Reservation
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.findReservation(ctx, id)
		if err != nil {
			return err
		}
		if !AdminTransitionAllowed(res.Status, target) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cannot move reservation from %s to %s", res.Status, target))
		}

		res.Status = target
		if req.Visibility != nil && *req.Visibility != "" {
			res.Visibility = models.ReservationVisibility(*req.Visibility)
		}
		switch target {
		case models.StatusRejected:
			res.RejectionReason = trimmedOrNil(req.RejectionReason)
		case models.StatusApproved, models.StatusCancelled:
			res.ApprovalMessage = trimmedOrNil(req.ApprovalMessage)
		}

		if err := s.repo.Update(ctx, res); err != nil {
			return err
		}
		updated, err = s.repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, internalError(err, "failed to update reservation status")
	}

	s.afterMutation(ctx, nil)
	s.logger.Info("reservation status changed",
		zap.String("reservation_id", id),
		zap.String("status", string(target)),
		zap.String("admin_id", viewer.UserID),
	)
	view := ToView(viewer, updated)
	return &view, nil
}

// PendingCount counts reservations awaiting an admin decision.
func (s *ReservationService) PendingCount(ctx context.Context) (int, error) {
	count, err := s.repo.CountActionable(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count reservations")
	}
	return count, nil
}

// Delete hard-deletes a reservation.
func (s *ReservationService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "reservation not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete reservation")
	}
	s.afterMutation(ctx, nil)
	return nil
}

func (s *ReservationService) findReservation(ctx context.Context, id string) (*models.Reservation, error) {
	res, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reservation not found")
		}
		return nil, err
	}
	return res, nil
}

// afterMutation runs post-commit side effects. msg may be nil.
func (s *ReservationService) afterMutation(ctx context.Context, msg *notification.Message) {
	s.cache.InvalidateCalendar(ctx)
	if msg != nil && s.notifier != nil {
		s.notifier.Dispatch(ctx, *msg)
	}
}

func scopeFilter(viewer models.Viewer, filter *models.ReservationFilter) {
	if viewer.IsAdmin {
		return
	}
	filter.Visible = true
	filter.OwnerID = viewer.UserID
}

func parseFilter(query models.ReservationQuery) (models.ReservationFilter, error) {
	var filter models.ReservationFilter
	var problems []string

	if query.Start != "" {
		if t, msg := parseTimestamp("start", query.Start); msg != "" {
			problems = append(problems, msg)
		} else {
			filter.Start = &t
		}
	}
	if query.End != "" {
		if t, msg := parseTimestamp("end", query.End); msg != "" {
			problems = append(problems, msg)
		} else {
			filter.End = &t
		}
	}
	if query.Visibility != "" {
		v := models.ReservationVisibility(query.Visibility)
		if !v.Valid() {
			problems = append(problems, "visibility must be public or anonymous")
		} else {
			filter.Visibility = &v
		}
	}

	if len(problems) > 0 {
		return filter, appErrors.Clone(appErrors.ErrValidation, strings.Join(problems, "; "))
	}
	return filter, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp accepts RFC 3339 and naive ISO 8601 values; naive values
// are taken as UTC. The second return is a user-facing problem, empty on success.
func parseTimestamp(field, raw string) (time.Time, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, field + " is required"
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), ""
		}
	}
	return time.Time{}, field + " must be an ISO 8601 timestamp"
}

// validationError reports every failing check in one message.
func validationError(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, strings.Join(validationMessages(err), "; "))
}

func validationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			messages = append(messages, field+" is required")
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		case "email":
			messages = append(messages, field+" must be a valid email address")
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "reservation_visibility":
			messages = append(messages, field+" must be public or anonymous")
		case "reservation_status":
			messages = append(messages, field+" must be one of pending, approved, rejected, cancelled, cancellation_requested")
		default:
			messages = append(messages, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
		}
	}
	return messages
}
