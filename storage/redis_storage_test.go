package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vultisig/multisig-demo/internal/types"
)

func TestRedisStorageHonoursCancellation(t *testing.T) {
	// never dialed: every call returns before touching the connection
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()
	r := newRedisStorage(client, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, r.SaveRun(ctx, &types.RunRecord{RunID: "run-1"}), context.Canceled)

	_, err := r.GetRun(ctx, "run-1")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = r.RecentRuns(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)

	ids, err := r.RecentRuns(context.Background(), 0)
	assert.NoError(t, err)
	assert.Empty(t, ids)
}

func newMiniRedisStorage(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return newRedisStorage(client, time.Hour), mr
}

func TestRedisStorageSaveAndGetRun(t *testing.T) {
	r, mr := newMiniRedisStorage(t)
	ctx := context.Background()

	record := &types.RunRecord{
		RunID:              "run-1",
		StartedAt:          time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt:         time.Date(2024, 5, 1, 10, 0, 3, 0, time.UTC),
		AccountIDs:         []string{"acc-0", "acc-1", "acc-2"},
		WalletID:           "wal-1",
		MinWeightOfSigners: 2,
		SignersAdded:       3,
		RegisteredWeight:   3,
		ProcessID:          "proc-1",
		SignaturesSent:     3,
		Status:             types.SignatureStatusComplete,
	}
	require.NoError(t, r.SaveRun(ctx, record))

	got, err := r.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, record, got)
	assert.Equal(t, time.Hour, mr.TTL(record.Key()))

	_, err = r.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestRedisStorageRecentRuns(t *testing.T) {
	r, _ := newMiniRedisStorage(t)
	ctx := context.Background()

	total := maxRecentRuns + 5
	for i := 0; i < total; i++ {
		require.NoError(t, r.SaveRun(ctx, &types.RunRecord{RunID: fmt.Sprintf("run-%d", i)}))
	}

	ids, err := r.RecentRuns(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{
		fmt.Sprintf("run-%d", total-1),
		fmt.Sprintf("run-%d", total-2),
		fmt.Sprintf("run-%d", total-3),
	}, ids)

	ids, err = r.RecentRuns(ctx, 1000)
	require.NoError(t, err)
	assert.Len(t, ids, maxRecentRuns)
	assert.Equal(t, "run-5", ids[len(ids)-1])
}
