package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kc-reserve/hut-api/internal/models"
	appErrors "github.com/kc-reserve/hut-api/pkg/errors"
)

func TestWhitelistCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.whitelist.Create(ctx, "admin-id", models.CreateWhitelistRequest{Email: " New@Example.com", DisplayName: strPtr("New")})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", entry.Email)
	assert.Equal(t, "admin-id", *entry.AddedByUserID)

	_, err = f.whitelist.Create(ctx, "admin-id", models.CreateWhitelistRequest{Email: "new@example.com"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = f.whitelist.Create(ctx, "admin-id", models.CreateWhitelistRequest{Email: "not-an-email"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	promote := true
	updated, err := f.whitelist.Update(ctx, entry.ID, models.UpdateWhitelistRequest{IsAdminDefault: &promote})
	require.NoError(t, err)
	assert.True(t, updated.IsAdminDefault)
	assert.Equal(t, "New", *updated.DisplayName)

	_, err = f.whitelist.Update(ctx, "missing", models.UpdateWhitelistRequest{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	entries, err := f.whitelist.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, f.whitelist.Delete(ctx, entry.ID))
	assert.ErrorIs(t, f.whitelist.Delete(ctx, entry.ID), appErrors.ErrNotFound)
}

func TestWhitelistCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "admin@example.com", "Admin", true)

	check, err := f.whitelist.Check(ctx, "ADMIN@example.com")
	require.NoError(t, err)
	assert.True(t, check.Allowed)
	assert.True(t, *check.DefaultAdmin)

	check, err = f.whitelist.Check(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Nil(t, check.DefaultAdmin)

	_, err = f.whitelist.Check(ctx, " ")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
