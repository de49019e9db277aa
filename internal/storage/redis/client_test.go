package storage_test

import (
	"context"
	"testing"
	"time"

	redisapp "arcfolio/internal/storage/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_HealthCheck(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redisapp.NewClient(mr.Addr(), "", 0, time.Second)
	defer client.Close()

	t.Run("healthy", func(t *testing.T) {
		assert.NoError(t, client.HealthCheck(context.Background()))
	})

	t.Run("unavailable", func(t *testing.T) {
		mr.Close()

		err := client.HealthCheck(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "storage.redis.HealthCheck")
	})
}
