// Package sql stores vision cache entries and run results in a relational
// database through GORM.
package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/flowguard/internal/database"
	"github.com/BaSui01/flowguard/storage"
	"github.com/BaSui01/flowguard/types"
)

const defaultMaxAttempts = 5

// Store is a storage.Repository backed by a GORM connection pool.
type Store struct {
	pool        *database.PoolManager
	now         func() time.Time
	maxAttempts int
	logger      *zap.Logger
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

// WithMaxAttempts bounds how often a hit increment is retried after a
// deadlock or serialization failure.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// New creates a Store on top of pool.
func New(pool *database.PoolManager, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		pool:        pool,
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
		logger:      logger.With(zap.String("component", "sql_store")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AutoMigrate creates the tables when versioned migrations are not in use.
func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.pool.DB().WithContext(ctx).AutoMigrate(&visionCacheRow{}, &testResultRow{})
}

// GetCachedVisionResult implements storage.VisionCacheStore. The newest
// readable row is locked with SELECT ... FOR UPDATE and its hit count bumped
// in the same transaction, so concurrent readers queue on the row instead of
// racing. Deadlocks and serialization failures are retried.
func (s *Store) GetCachedVisionResult(ctx context.Context, key types.VisionCacheKey) (*types.VisionCacheEntry, error) {
	now := normalize(s.now())
	var entry types.VisionCacheEntry

	err := s.pool.WithTransactionRetry(ctx, s.maxAttempts, func(tx *gorm.DB) error {
		var row visionCacheRow
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("screenshot_hash = ? AND assertion = ? AND model = ? AND prompt_version = ?",
				key.ScreenshotHash, key.Assertion, key.Model, key.PromptVersion).
			Where("expires_at >= ?", now).
			Order("created_at DESC").
			Order("id DESC").
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return storage.ErrCacheMiss
		}
		if err != nil {
			return err
		}

		res := tx.Model(&visionCacheRow{}).
			Where("id = ?", row.ID).
			UpdateColumn("hit_count", gorm.Expr("hit_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 行在加锁后被清理
			return database.ErrConflict
		}

		row.HitCount++
		entry = row.toEntry()
		return nil
	})
	if errors.Is(err, storage.ErrCacheMiss) {
		return nil, storage.ErrCacheMiss
	}
	if err != nil {
		s.logger.Error("vision cache lookup failed", zap.Error(err))
		return nil, fmt.Errorf("vision cache lookup failed: %w", err)
	}
	return &entry, nil
}

// CacheVisionResult implements storage.VisionCacheStore.
func (s *Store) CacheVisionResult(ctx context.Context, entry *types.VisionCacheEntry) error {
	row := fromEntry(entry)
	if err := s.pool.DB().WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("vision cache insert failed: %w", err)
	}
	return nil
}

// SaveTestResult implements storage.ResultSaver.
func (s *Store) SaveTestResult(ctx context.Context, result *types.FlowRunResult) error {
	id := result.ID
	if id == "" {
		id = uuid.NewString()
	}
	row := fromResult(id, result)
	if err := s.pool.DB().WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("test result save failed: %w", err)
	}
	s.logger.Debug("测试结果已保存", zap.String("run_id", id), zap.String("flow", result.FlowName))
	return nil
}

// RecentResults returns up to limit results for flow, newest first.
func (s *Store) RecentResults(ctx context.Context, flow string, limit int) ([]types.FlowRunResult, error) {
	var rows []testResultRow
	err := s.pool.DB().WithContext(ctx).
		Where("flow_name = ?", flow).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	out := make([]types.FlowRunResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toResult())
	}
	return out, nil
}

// PurgeExpired deletes cache rows that expired before now and returns how
// many were removed.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.pool.DB().WithContext(ctx).
		Where("expires_at < ?", normalize(s.now())).
		Delete(&visionCacheRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge expired entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
