package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pinger struct{ err error }

func (p pinger) Ping() error { return p.err }

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return rdb
}

func TestCollectHealth_WithNilRedis(t *testing.T) {
	ctx := context.Background()
	result := CollectHealth(ctx, nil, nil)
	assert.Equal(t, StatusIssue, result.Status)
	assert.Equal(t, DepDisconnected, result.Dependencies["database"].Status)
	assert.Equal(t, DepNotConfigured, result.Dependencies["redis"].Status)
	assert.Equal(t, 0, result.Traffic.TotalRequests)

	// The database alone is enough when Redis is not configured.
	result = CollectHealth(ctx, nil, pinger{})
	assert.Equal(t, StatusOK, result.Status)
	assert.Equal(t, DepConnected, result.Dependencies["database"].Status)
	assert.NotNil(t, result.Dependencies["database"].PingMs)
}

func TestCollectHealth_DatabaseError(t *testing.T) {
	result := CollectHealth(context.Background(), nil, pinger{err: errors.New("closed")})
	assert.Equal(t, StatusIssue, result.Status)
	assert.Equal(t, DepError, result.Dependencies["database"].Status)
}

func TestCollectHealth_WithMiniredis(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	result := CollectHealth(ctx, rdb, pinger{})
	assert.Equal(t, StatusOK, result.Status)
	assert.Equal(t, DepConnected, result.Dependencies["redis"].Status)
	assert.Equal(t, 0, result.Traffic.TotalRequests)
	assert.Equal(t, "100", result.Traffic.SuccessRate)
	// the first collection records a start time
	_, err := rdb.Get(ctx, "health:global:start_time").Result()
	assert.NoError(t, err)

	require.NoError(t, rdb.Set(ctx, "health:global:req_total", "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:req_errors", "2", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:res_time_total", "150.5", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:res_count", "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:start_time", "1000000", 0).Err())
	require.NoError(t, rdb.Set(ctx, "health:global:last_request", `{"method":"GET","path":"/api/v1/projects"}`, 0).Err())

	result2 := CollectHealth(ctx, rdb, nil)
	assert.Equal(t, 10, result2.Traffic.TotalRequests)
	assert.Equal(t, 2, result2.Traffic.FailedCount)
	assert.Equal(t, 8, result2.Traffic.SuccessCount)
	assert.Equal(t, "80.0", result2.Traffic.SuccessRate)
	assert.Equal(t, "15.05", result2.Traffic.AvgResponseTime)
	assert.Equal(t, "/api/v1/projects", result2.Traffic.LastRequest.(map[string]interface{})["path"])
	assert.Greater(t, result2.Runtime.UptimeSeconds, int64(0))
}

func TestResetTrafficAndRecentErrors(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()
	require.NoError(t, rdb.Set(ctx, "health:global:req_total", "5", 0).Err())
	require.NoError(t, rdb.LPush(ctx, "health:global:error_log", `{"message":"older"}`, "not json", `{"message":"newest"}`).Err())

	entries, err := RecentErrors(ctx, rdb, 50)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "newest", entries[0]["message"])

	now := time.UnixMilli(1700000000000)
	require.NoError(t, ResetTraffic(ctx, rdb, now))
	_, err = rdb.Get(ctx, "health:global:req_total").Result()
	assert.ErrorIs(t, err, redis.Nil)
	start, err := rdb.Get(ctx, "health:global:start_time").Result()
	require.NoError(t, err)
	assert.Equal(t, "1700000000000", start)

	entries, err = RecentErrors(ctx, rdb, 50)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
