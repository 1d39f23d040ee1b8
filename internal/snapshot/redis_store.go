package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"poolgateway/internal/config"
	"poolgateway/internal/logging"
)

// RedisStore is an optional SnapshotStore backend, grounded on the
// teacher's pkg/utils/redis.go client wrapper, repurposed from
// conversation-history persistence to snapshot persistence.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger logging.Logger
}

func NewRedisStore(cfg *config.Config, logger logging.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Redis.Password != "" {
		opt.Password = cfg.Redis.Password
	}
	opt.DB = cfg.Redis.DB
	opt.DialTimeout = cfg.Redis.Timeout
	opt.ReadTimeout = cfg.Redis.Timeout
	opt.WriteTimeout = cfg.Redis.Timeout

	return &RedisStore{
		client: redis.NewClient(opt),
		ttl:    cfg.Snapshot.TTL,
		logger: logger,
	}, nil
}

func (s *RedisStore) key(sessionID string) string {
	return fmt.Sprintf("snapshot:%s", sessionID)
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, snap map[string]interface{}) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sessionID), data, s.ttl).Err(); err != nil {
		s.logger.Warn("snapshot redis save failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		return err
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (map[string]interface{}, bool, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		s.logger.Warn("snapshot redis load failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
		return nil, false, nil
	}
	var snap map[string]interface{}
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, false, nil
	}
	return snap, true, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
