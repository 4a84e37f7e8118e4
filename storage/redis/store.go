// Package redis stores vision cache entries and run results in Redis.
//
// Each cache entry is a hash under {prefix}:vision:entry:{id}. A sorted set
// per cache key, scored by creation time, indexes the entries so the newest
// readable one can be found and its hit count bumped inside one Lua script.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/flowguard/config"
	"github.com/BaSui01/flowguard/internal/tlsutil"
	"github.com/BaSui01/flowguard/storage"
	"github.com/BaSui01/flowguard/types"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("redis store is closed")

// =============================================================================
// 💾 Redis 存储
// =============================================================================

// findAndHit 从最新条目开始查找首个未过期条目并原子地增加命中次数。
// KEYS[1] 索引键，ARGV[1] 当前毫秒时间戳，ARGV[2] 条目键前缀。
var findAndHit = redis.NewScript(`
local ids = redis.call('ZREVRANGE', KEYS[1], 0, -1)
local now = tonumber(ARGV[1])
for _, id in ipairs(ids) do
  local key = ARGV[2] .. id
  local exp = redis.call('HGET', key, 'expires_at')
  if not exp then
    redis.call('ZREM', KEYS[1], id)
  elseif tonumber(exp) >= now then
    local hits = redis.call('HINCRBY', key, 'hit_count', 1)
    return {redis.call('HGET', key, 'data'), hits}
  end
end
return false
`)

// extendIndex 仅在本条目为索引中最新成员时设置索引过期时间，较旧条目不会缩短它。
// KEYS[1] 索引键，ARGV[1] 本条目创建毫秒时间戳，ARGV[2] 本条目过期毫秒时间戳。
var extendIndex = redis.NewScript(`
local top = redis.call('ZREVRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if top[2] and tonumber(top[2]) > tonumber(ARGV[1]) then
  return 0
end
redis.call('PEXPIREAT', KEYS[1], ARGV[2])
return 1
`)

// Store is a storage.Repository backed by Redis.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

var _ storage.Repository = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used to judge expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open connects to Redis using cfg and verifies the connection.
func Open(cfg config.RedisConfig, logger *zap.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		TLSConfig:    tlsutil.RedisConfig(cfg),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis store initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize),
		zap.Bool("tls", cfg.TLS),
	)
	return New(client, cfg.KeyPrefix, logger, opts...), nil
}

// New wraps an existing client. Keys are namespaced under prefix.
func New(client redis.UniversalClient, prefix string, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "flowguard"
	}
	s := &Store{
		redis:  client,
		prefix: prefix,
		now:    time.Now,
		logger: logger.With(zap.String("component", "redis_store")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// GetCachedVisionResult implements storage.VisionCacheStore.
func (s *Store) GetCachedVisionResult(ctx context.Context, key types.VisionCacheKey) (*types.VisionCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	res, err := findAndHit.Run(ctx, s.redis,
		[]string{s.indexKey(key)},
		s.now().UnixMilli(), s.entryPrefix(),
	).Slice()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrCacheMiss
	}
	if err != nil {
		s.logger.Error("vision cache lookup failed", zap.Error(err))
		return nil, fmt.Errorf("vision cache lookup failed: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected script reply of length %d", len(res))
	}

	data, ok := res[0].(string)
	if !ok {
		return nil, fmt.Errorf("unexpected entry payload type %T", res[0])
	}
	hits, ok := res[1].(int64)
	if !ok {
		return nil, fmt.Errorf("unexpected hit count type %T", res[1])
	}

	var entry types.VisionCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	entry.HitCount = hits
	return &entry, nil
}

// CacheVisionResult implements storage.VisionCacheStore.
func (s *Store) CacheVisionResult(ctx context.Context, entry *types.VisionCacheEntry) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	id := uuid.NewString()
	entryKey := s.entryPrefix() + id
	idxKey := s.indexKey(entry.Key)
	created := entry.CreatedAt.UnixMilli()

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, entryKey,
			"data", string(data),
			"expires_at", entry.ExpiresAt.UnixMilli(),
			"hit_count", entry.HitCount,
		)
		pipe.PExpireAt(ctx, entryKey, entry.ExpiresAt)
		pipe.ZAdd(ctx, idxKey, redis.Z{Score: float64(created), Member: id})
		// 索引中超过 TTL 的成员一并清理
		pipe.ZRemRangeByScore(ctx, idxKey, "-inf",
			fmt.Sprintf("(%d", created-types.VisionCacheTTL.Milliseconds()))
		extendIndex.Eval(ctx, pipe, []string{idxKey}, created, entry.ExpiresAt.UnixMilli())
		return nil
	})
	if err != nil {
		s.logger.Error("vision cache insert failed", zap.String("key", idxKey), zap.Error(err))
		return fmt.Errorf("vision cache insert failed: %w", err)
	}
	return nil
}

// SaveTestResult implements storage.ResultSaver. Results are stored as JSON
// and indexed by start time per flow.
func (s *Store) SaveTestResult(ctx context.Context, result *types.FlowRunResult) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	id := result.ID
	if id == "" {
		id = uuid.NewString()
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal test result: %w", err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.resultKey(id), data, 0)
		pipe.ZAdd(ctx, s.resultIndexKey(result.FlowName), redis.Z{
			Score:  float64(result.StartedAt.UnixMilli()),
			Member: id,
		})
		return nil
	})
	if err != nil {
		s.logger.Error("test result save failed", zap.String("run_id", id), zap.Error(err))
		return fmt.Errorf("test result save failed: %w", err)
	}
	return nil
}

// RecentResults returns up to limit results for flow, newest first.
func (s *Store) RecentResults(ctx context.Context, flow string, limit int64) ([]types.FlowRunResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		return nil, nil
	}

	ids, err := s.redis.ZRevRange(ctx, s.resultIndexKey(flow), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	out := make([]types.FlowRunResult, 0, len(ids))
	for _, id := range ids {
		raw, err := s.redis.Get(ctx, s.resultKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load result %s: %w", id, err)
		}
		var r types.FlowRunResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result %s: %w", id, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Ping checks the Redis connection.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.redis.Ping(ctx).Err()
}

// Close closes the underlying client. It is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.logger.Info("closing redis store")
	return s.redis.Close()
}

// =============================================================================
// 🔧 键布局
// =============================================================================

func (s *Store) entryPrefix() string {
	return s.prefix + ":vision:entry:"
}

func (s *Store) indexKey(key types.VisionCacheKey) string {
	h := sha256.Sum256([]byte(strings.Join([]string{
		key.ScreenshotHash, key.Assertion, key.Model, key.PromptVersion,
	}, "\x00")))
	return s.prefix + ":vision:idx:" + hex.EncodeToString(h[:])
}

func (s *Store) resultKey(id string) string {
	return s.prefix + ":results:" + id
}

func (s *Store) resultIndexKey(flow string) string {
	return s.prefix + ":results:flow:" + flow
}
