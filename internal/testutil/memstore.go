// Package testutil provides in-memory stand-ins for the PostgreSQL
// repositories, the transaction manager and the notification dispatcher.
// Service and router tests share them so end-to-end flows run without a
// database. The stores mirror the repository contracts: unknown ids yield
// sql.ErrNoRows and unique violations yield repository.ErrDuplicate.
package testutil

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kc-reserve/hut-api/internal/models"
	"github.com/kc-reserve/hut-api/internal/notification"
	"github.com/kc-reserve/hut-api/internal/repository"
)

// Store holds every table. Access it through the typed views.
type Store struct {
	mu           sync.Mutex
	users        map[string]models.User
	whitelist    map[string]models.WhitelistEntry
	sessions     map[string]models.RefreshSession
	reservations map[string]models.Reservation
	settings     map[string]models.SystemSetting

	Users        *Users
	Whitelist    *Whitelist
	Sessions     *Sessions
	Reservations *Reservations
	Settings     *Settings
}

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{
		users:        map[string]models.User{},
		whitelist:    map[string]models.WhitelistEntry{},
		sessions:     map[string]models.RefreshSession{},
		reservations: map[string]models.Reservation{},
		settings:     map[string]models.SystemSetting{},
	}
	s.Users = &Users{s}
	s.Whitelist = &Whitelist{s}
	s.Sessions = &Sessions{s}
	s.Reservations = &Reservations{s}
	s.Settings = &Settings{s}
	return s
}

func (s *Store) withDisplayName(u models.User) models.User {
	if u.DisplayName == nil {
		for _, w := range s.whitelist {
			if w.Email == u.Email {
				u.DisplayName = w.DisplayName
				break
			}
		}
	}
	return u
}

// Users mirrors repository.UserRepository.
type Users struct{ s *Store }

// FindByEmail implements the user repository.
func (r *Users) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			out := r.s.withDisplayName(u)
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

// FindByID implements the user repository.
func (r *Users) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := r.s.withDisplayName(u)
	return &out, nil
}

// Create implements the user repository.
func (r *Users) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	r.s.users[user.ID] = *user
	return nil
}

// UpdateProfile implements the user repository.
func (r *Users) UpdateProfile(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.users[user.ID]
	if !ok {
		return sql.ErrNoRows
	}
	for id, u := range r.s.users {
		if id != user.ID && u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	stored.Email = user.Email
	stored.DisplayName = user.DisplayName
	stored.ReceivesNotification = user.ReceivesNotification
	stored.UpdatedAt = time.Now().UTC()
	r.s.users[user.ID] = stored
	return nil
}

// SetActive implements the user repository.
func (r *Users) SetActive(ctx context.Context, id string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.IsActive = active
	r.s.users[id] = u
	return nil
}

// List implements the user repository.
func (r *Users) List(ctx context.Context, filter models.UserFilter) ([]models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.User
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	for _, u := range r.s.users {
		u = r.s.withDisplayName(u)
		if filter.Active != nil && u.IsActive != *filter.Active {
			continue
		}
		if filter.IsAdmin != nil && u.IsAdmin != *filter.IsAdmin {
			continue
		}
		if search != "" && !strings.Contains(u.Email, search) &&
			(u.DisplayName == nil || !strings.Contains(strings.ToLower(*u.DisplayName), search)) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// NotificationRecipients implements the user repository.
func (r *Users) NotificationRecipients(ctx context.Context) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []string
	for _, u := range r.s.users {
		if u.IsAdmin && u.IsActive && u.ReceivesNotification {
			out = append(out, u.Email)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Whitelist mirrors repository.WhitelistRepository.
type Whitelist struct{ s *Store }

// FindByEmail implements the whitelist repository.
func (r *Whitelist) FindByEmail(ctx context.Context, email string) (*models.WhitelistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range r.s.whitelist {
		if w.Email == email {
			out := w
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

// FindByID implements the whitelist repository.
func (r *Whitelist) FindByID(ctx context.Context, id string) (*models.WhitelistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.whitelist[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &w, nil
}

// List implements the whitelist repository.
func (r *Whitelist) List(ctx context.Context) ([]models.WhitelistEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.WhitelistEntry, 0, len(r.s.whitelist))
	for _, w := range r.s.whitelist {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Create implements the whitelist repository.
func (r *Whitelist) Create(ctx context.Context, entry *models.WhitelistEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range r.s.whitelist {
		if w.Email == entry.Email {
			return repository.ErrDuplicate
		}
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	r.s.whitelist[entry.ID] = *entry
	return nil
}

// Update implements the whitelist repository.
func (r *Whitelist) Update(ctx context.Context, entry *models.WhitelistEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.whitelist[entry.ID]; !ok {
		return sql.ErrNoRows
	}
	r.s.whitelist[entry.ID] = *entry
	return nil
}

// Delete implements the whitelist repository.
func (r *Whitelist) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.whitelist[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.s.whitelist, id)
	return nil
}

// Sessions mirrors repository.RefreshSessionRepository.
type Sessions struct{ s *Store }

// Create implements the session repository.
func (r *Sessions) Create(ctx context.Context, session *models.RefreshSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.sessions {
		if existing.TokenHash == session.TokenHash {
			return repository.ErrDuplicate
		}
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	r.s.sessions[session.ID] = *session
	return nil
}

// FindActiveByHash implements the session repository.
func (r *Sessions) FindActiveByHash(ctx context.Context, hash string, now time.Time) (*models.RefreshSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, session := range r.s.sessions {
		if session.TokenHash == hash && session.Usable(now) {
			out := session
			return &out, nil
		}
	}
	return nil, sql.ErrNoRows
}

// Revoke implements the session repository.
func (r *Sessions) Revoke(ctx context.Context, id string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	session, ok := r.s.sessions[id]
	if !ok || session.RevokedAt != nil {
		return false, nil
	}
	session.RevokedAt = &now
	r.s.sessions[id] = session
	return true, nil
}

// RevokeByHash implements the session repository.
func (r *Sessions) RevokeByHash(ctx context.Context, hash string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, session := range r.s.sessions {
		if session.TokenHash == hash && session.RevokedAt == nil {
			session.RevokedAt = &now
			r.s.sessions[id] = session
			return true, nil
		}
	}
	return false, nil
}

// RevokeAllForUser implements the session repository.
func (r *Sessions) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, session := range r.s.sessions {
		if session.UserID == userID && session.RevokedAt == nil {
			session.RevokedAt = &now
			r.s.sessions[id] = session
			n++
		}
	}
	return n, nil
}

// All returns a copy of every stored session.
func (r *Sessions) All() []models.RefreshSession {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.RefreshSession, 0, len(r.s.sessions))
	for _, session := range r.s.sessions {
		out = append(out, session)
	}
	return out
}

// Reservations mirrors repository.ReservationRepository.
type Reservations struct{ s *Store }

func (r *Reservations) joined(res models.Reservation) models.Reservation {
	if owner, ok := r.s.users[res.UserID]; ok {
		owner = r.s.withDisplayName(owner)
		res.OwnerEmail = owner.Email
		res.OwnerDisplayName = owner.DisplayName
	}
	return res
}

// Create implements the reservation repository.
func (r *Reservations) Create(ctx context.Context, res *models.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	res.CreatedAt, res.UpdatedAt = now, now
	r.s.reservations[res.ID] = *res
	return nil
}

// FindByID implements the reservation repository.
func (r *Reservations) FindByID(ctx context.Context, id string) (*models.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := r.joined(res)
	return &out, nil
}

// List implements the reservation repository.
func (r *Reservations) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Reservation
	for _, res := range r.s.reservations {
		if filter.Start != nil && res.EndTime.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && res.StartTime.After(*filter.End) {
			continue
		}
		if filter.Visibility != nil && res.Visibility != *filter.Visibility {
			continue
		}
		if filter.Visible && res.Status != models.StatusApproved && (filter.OwnerID == "" || res.UserID != filter.OwnerID) {
			continue
		}
		out = append(out, r.joined(res))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out, nil
}

// ListByOwner implements the reservation repository.
func (r *Reservations) ListByOwner(ctx context.Context, userID string) ([]models.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Reservation
	for _, res := range r.s.reservations {
		if res.UserID == userID {
			out = append(out, r.joined(res))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

// Update implements the reservation repository.
func (r *Reservations) Update(ctx context.Context, res *models.Reservation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.reservations[res.ID]
	if !ok {
		return sql.ErrNoRows
	}
	stored.Status = res.Status
	stored.Visibility = res.Visibility
	stored.DisplayMessage = res.DisplayMessage
	stored.Description = res.Description
	stored.CancellationReason = res.CancellationReason
	stored.RejectionReason = res.RejectionReason
	stored.ApprovalMessage = res.ApprovalMessage
	stored.UpdatedAt = time.Now().UTC()
	r.s.reservations[res.ID] = stored
	return nil
}

// Delete implements the reservation repository.
func (r *Reservations) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.reservations[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.s.reservations, id)
	return nil
}

// CountActionable implements the reservation repository.
func (r *Reservations) CountActionable(ctx context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, res := range r.s.reservations {
		if res.Status == models.StatusPending || res.Status == models.StatusCancellationRequested {
			n++
		}
	}
	return n, nil
}

// MarkNotificationSent implements the reservation repository.
func (r *Reservations) MarkNotificationSent(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if res, ok := r.s.reservations[id]; ok {
		res.IsNotificationSent = true
		r.s.reservations[id] = res
	}
	return nil
}

// Settings mirrors repository.SettingRepository.
type Settings struct{ s *Store }

// GetOrInit implements the setting repository.
func (r *Settings) GetOrInit(ctx context.Context, key, fallback string) (*models.SystemSetting, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	setting, ok := r.s.settings[key]
	if !ok {
		setting = models.SystemSetting{Key: key, Value: fallback, UpdatedAt: time.Now().UTC()}
		r.s.settings[key] = setting
	}
	return &setting, nil
}

// Upsert implements the setting repository.
func (r *Settings) Upsert(ctx context.Context, key, value string) (*models.SystemSetting, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	setting := models.SystemSetting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	r.s.settings[key] = setting
	return &setting, nil
}

// Tx runs units of work inline and counts them.
type Tx struct {
	mu    sync.Mutex
	calls int
}

// WithinTx implements database.Transactor.
func (t *Tx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	return fn(ctx)
}

// Calls reports how many units of work ran.
func (t *Tx) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Dispatcher records dispatched notifications.
type Dispatcher struct {
	mu       sync.Mutex
	messages []notification.Message
}

// Dispatch implements notification.Dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, msg notification.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
}

// Messages returns the recorded notifications in dispatch order.
func (d *Dispatcher) Messages() []notification.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]notification.Message(nil), d.messages...)
}
