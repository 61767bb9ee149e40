package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kc-reserve/hut-api/internal/models"
	"github.com/kc-reserve/hut-api/internal/testutil"
)

const testPassword = "correct-horse"

type fixture struct {
	store        *testutil.Store
	tx           *testutil.Tx
	dispatcher   *testutil.Dispatcher
	tokens       *TokenIssuer
	sessions     *SessionService
	whitelist    *WhitelistService
	auth         *AuthService
	users        *UserService
	reservations *ReservationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewStore()
	tx := &testutil.Tx{}
	dispatcher := &testutil.Dispatcher{}
	validate := validator.New()
	logger := zap.NewNop()

	tokens := NewTokenIssuer(TokenConfig{Secret: "test-secret", Issuer: "hut-api", TTL: 15 * time.Minute})
	sessions := NewSessionService(store.Sessions, store.Users, tx, 24*time.Hour, logger)
	whitelist := NewWhitelistService(store.Whitelist, nil, tx, validate, logger)

	return &fixture{
		store:        store,
		tx:           tx,
		dispatcher:   dispatcher,
		tokens:       tokens,
		sessions:     sessions,
		whitelist:    whitelist,
		auth:         NewAuthService(store.Users, whitelist, tokens, sessions, nil, tx, validate, logger),
		users:        NewUserService(store.Users, sessions, tx, validate, logger),
		reservations: NewReservationService(store.Reservations, store.Users, dispatcher, nil, tx, validate, logger),
	}
}

// seedUser whitelists email and creates an active account for it.
func (f *fixture) seedUser(t *testing.T, email, name string, admin bool) *models.User {
	t.Helper()
	ctx := context.Background()
	displayName := name
	require.NoError(t, f.store.Whitelist.Create(ctx, &models.WhitelistEntry{Email: email, DisplayName: &displayName, IsAdminDefault: admin}))

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		Email:                email,
		PasswordHash:         string(hash),
		IsAdmin:              admin,
		IsActive:             true,
		ReceivesNotification: admin,
	}
	require.NoError(t, f.store.Users.Create(ctx, user))
	return user
}

func viewerOf(u *models.User) models.Viewer {
	return models.Viewer{UserID: u.ID, IsAdmin: u.IsAdmin}
}

func strPtr(s string) *string { return &s }
