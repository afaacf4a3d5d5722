package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vultisig/multisig-demo/config"
	"github.com/vultisig/multisig-demo/contexthelper"
	"github.com/vultisig/multisig-demo/internal/types"
)

const (
	recentRunsKey = "multisig-demo-runs"
	maxRecentRuns = 100
)

// RedisStorage is the run journal: one JSON record per run plus a capped
// list of recent run ids.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStorage(cfg config.Config) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Username: cfg.Redis.User,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	status := client.Ping(context.Background())
	if status.Err() != nil {
		return nil, status.Err()
	}
	return newRedisStorage(client, cfg.Redis.TTL), nil
}

func newRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	return &RedisStorage{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisStorage) SaveRun(ctx context.Context, record *types.RunRecord) error {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return err
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("fail to serialize run record to json, err: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, record.Key(), string(recordJSON), r.ttl)
	pipe.LPush(ctx, recentRunsKey, record.RunID)
	pipe.LTrim(ctx, recentRunsKey, 0, maxRecentRuns-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fail to save run record, err: %w", err)
	}
	return nil
}

// GetRun returns a run record by its run id.
func (r *RedisStorage) GetRun(ctx context.Context, runID string) (*types.RunRecord, error) {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return nil, err
	}
	key := types.RunRecord{RunID: runID}.Key()
	recordJSON, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("fail to get run record, err: %w", err)
	}
	var record types.RunRecord
	if err := json.Unmarshal([]byte(recordJSON), &record); err != nil {
		return nil, fmt.Errorf("fail to deserialize run record, err: %w", err)
	}
	return &record, nil
}

// RecentRuns returns up to n run ids, newest first.
func (r *RedisStorage) RecentRuns(ctx context.Context, n int64) ([]string, error) {
	if err := contexthelper.CheckCancellation(ctx); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	ids, err := r.client.LRange(ctx, recentRunsKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("fail to list recent runs, err: %w", err)
	}
	return ids, nil
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
