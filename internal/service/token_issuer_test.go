package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kc-reserve/hut-api/internal/models"
	appErrors "github.com/kc-reserve/hut-api/pkg/errors"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer(TokenConfig{Secret: "secret", Issuer: "hut-api", TTL: time.Minute})

	token, err := issuer.Issue(&models.User{ID: "u1", Email: "a@example.com", IsAdmin: true})
	require.NoError(t, err)

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "u1", claims.Subject)
	assert.True(t, claims.IsAdmin)
}

func TestTokenIssuerRejectsExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer(TokenConfig{Secret: "secret", TTL: time.Minute})
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := issuer.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.ValidateToken(token)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestTokenIssuerRejectsForeignSecretAndIssuer(t *testing.T) {
	ours := NewTokenIssuer(TokenConfig{Secret: "secret", Issuer: "hut-api"})
	other := NewTokenIssuer(TokenConfig{Secret: "other", Issuer: "hut-api"})
	wrongIssuer := NewTokenIssuer(TokenConfig{Secret: "secret", Issuer: "someone-else"})

	forged, err := other.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)
	_, err = ours.ValidateToken(forged)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	misissued, err := wrongIssuer.Issue(&models.User{ID: "u1"})
	require.NoError(t, err)
	_, err = ours.ValidateToken(misissued)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestTokenIssuerRejectsNoneAlgorithm(t *testing.T) {
	issuer := NewTokenIssuer(TokenConfig{Secret: "secret"})
	claims := &models.JWTClaims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.ValidateToken(unsigned)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
