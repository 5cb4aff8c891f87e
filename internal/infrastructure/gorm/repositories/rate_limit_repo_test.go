package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vibepay/newebpay-bridge/internal/domain"
)

func TestRateLimitRepo_UpsertReplacesWindow(t *testing.T) {
	db := setupDB(t)
	repo := NewRateLimitRepo(db)
	ctx := context.Background()
	reset := time.Now().Add(time.Minute)

	require.NoError(t, repo.Upsert(ctx, &domain.RateLimitWindow{Identifier: "1.2.3.4", Endpoint: "webhook", Count: 1, WindowResetAt: reset}))
	require.NoError(t, repo.Upsert(ctx, &domain.RateLimitWindow{Identifier: "1.2.3.4", Endpoint: "webhook", Count: 2, WindowResetAt: reset}))
	require.NoError(t, repo.Upsert(ctx, &domain.RateLimitWindow{Identifier: "1.2.3.4", Endpoint: "payment", Count: 1, WindowResetAt: reset}))

	var stored domain.RateLimitWindow
	require.NoError(t, db.Where("identifier = ? AND endpoint = ?", "1.2.3.4", "webhook").First(&stored).Error)
	assert.Equal(t, 2, stored.Count)

	var total int64
	require.NoError(t, db.Model(&domain.RateLimitWindow{}).Count(&total).Error)
	assert.Equal(t, int64(2), total)
}

func TestRateLimitRepo_DeleteExpired(t *testing.T) {
	repo := NewRateLimitRepo(setupDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.RateLimitWindow{Identifier: "a", Endpoint: "payment", Count: 1, WindowResetAt: time.Now().Add(-time.Second)}))
	require.NoError(t, repo.Upsert(ctx, &domain.RateLimitWindow{Identifier: "b", Endpoint: "payment", Count: 1, WindowResetAt: time.Now().Add(time.Minute)}))

	n, err := repo.DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
