package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/kc-reserve/hut-api/internal/models"
	"github.com/kc-reserve/hut-api/pkg/database"
	appErrors "github.com/kc-reserve/hut-api/pkg/errors"
)

const refreshSecretBytes = 32

type sessionRepository interface {
	Create(ctx context.Context, session *models.RefreshSession) error
	FindActiveByHash(ctx context.Context, hash string, now time.Time) (*models.RefreshSession, error)
	Revoke(ctx context.Context, id string, now time.Time) (bool, error)
	RevokeByHash(ctx context.Context, hash string, now time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error)
}

type sessionUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// SessionService owns the refresh-secret lifecycle. Raw secrets never touch
// storage; only their BLAKE3 digest is persisted.
type SessionService struct {
	sessions sessionRepository
	users    sessionUserLookup
	tx       database.Transactor
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(sessions sessionRepository, users sessionUserLookup, tx database.Transactor, ttl time.Duration, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &SessionService{sessions: sessions, users: users, tx: tx, ttl: ttl, logger: logger, now: time.Now}
}

// TTL is the lifetime of a freshly minted session.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// HashSecret returns the hex BLAKE3-256 digest of a raw refresh secret.
func HashSecret(raw string) string {
	sum := blake3.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Mint creates a session for user and returns the raw secret.
func (s *SessionService) Mint(ctx context.Context, user *models.User, meta models.ClientMeta) (string, *models.RefreshSession, error) {
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)

	now := s.now().UTC()
	session := &models.RefreshSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: HashSecret(raw),
		UserAgent: optionalString(meta.UserAgent),
		IPAddress: optionalString(meta.IP),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}
	return raw, session, nil
}

// VerifyAndRotate consumes raw and issues a replacement. A replayed,
// expired or unknown secret is unauthorized. A session whose account is gone
// or inactive is revoked and reported as forbidden.
func (s *SessionService) VerifyAndRotate(ctx context.Context, raw string, meta models.ClientMeta) (*models.User, string, error) {
	if raw == "" {
		return nil, "", appErrors.Clone(appErrors.ErrUnauthorized, "refresh token missing")
	}

	var (
		user     *models.User
		newRaw   string
		outcome  *appErrors.Error
		hash     = HashSecret(raw)
		now      = s.now().UTC()
		rejected = appErrors.Clone(appErrors.ErrUnauthorized, "refresh token is invalid or expired")
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		session, err := s.sessions.FindActiveByHash(ctx, hash, now)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				outcome = rejected
				return nil
			}
			return err
		}

		account, err := s.users.FindByID(ctx, session.UserID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if account == nil || !account.IsActive {
			if _, err := s.sessions.Revoke(ctx, session.ID, now); err != nil {
				return err
			}
			outcome = appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive or no longer exists")
			return nil
		}

		revoked, err := s.sessions.Revoke(ctx, session.ID, now)
		if err != nil {
			return err
		}
		if !revoked {
			outcome = rejected
			return nil
		}

		newRaw, _, err = s.Mint(ctx, account, meta)
		if err != nil {
			return err
		}
		user = account
		return nil
	})
	if err != nil {
		return nil, "", internalError(err, "failed to rotate refresh token")
	}
	if outcome != nil {
		return nil, "", outcome
	}
	return user, newRaw, nil
}

// RevokeBySecret revokes the session matching raw if it is still active.
func (s *SessionService) RevokeBySecret(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	revoked, err := s.sessions.RevokeByHash(ctx, HashSecret(raw), s.now().UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh token")
	}
	if !revoked {
		s.logger.Debug("logout with unknown or revoked refresh token")
	}
	return nil
}

// RevokeAll revokes every active session of userID.
func (s *SessionService) RevokeAll(ctx context.Context, userID string) (int64, error) {
	count, err := s.sessions.RevokeAllForUser(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh tokens")
	}
	return count, nil
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// internalError passes typed errors through and wraps everything else as 500.
func internalError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
