package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kc-reserve/hut-api/internal/models"
	"github.com/kc-reserve/hut-api/internal/testutil"
	appErrors "github.com/kc-reserve/hut-api/pkg/errors"
)

func TestVideoURLDefaultsThenUpdates(t *testing.T) {
	store := testutil.NewStore()
	svc := NewSettingService(store.Settings, nil, "https://video.example/default")
	ctx := context.Background()

	url, err := svc.VideoURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://video.example/default", url)

	url, err = svc.UpdateVideoURL(ctx, models.VideoURLRequest{VideoURL: " https://video.example/new "})
	require.NoError(t, err)
	assert.Equal(t, "https://video.example/new", url)

	url, err = svc.VideoURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://video.example/new", url)

	_, err = svc.UpdateVideoURL(ctx, models.VideoURLRequest{VideoURL: "not a url"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
