// Package mongo stores vision cache entries and run results in MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"

	"github.com/BaSui01/flowguard/config"
	"github.com/BaSui01/flowguard/storage"
	"github.com/BaSui01/flowguard/types"
)

const (
	visionCacheCollection = "vision_cache"
	testResultsCollection = "test_results"
	defaultOpTimeout      = 10 * time.Second
)

// Store is a storage.Repository backed by MongoDB.
type Store struct {
	client  *mongodriver.Client
	entries collection
	results collection
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

var _ storage.Repository = (*Store)(nil)

// Open connects to MongoDB, verifies the connection and ensures indexes.
func Open(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	if cfg.Database == "" {
		return nil, errors.New("database name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := mongodriver.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	entries := mongoCollection{coll: db.Collection(visionCacheCollection)}
	results := mongoCollection{coll: db.Collection(testResultsCollection)}
	if err := ensureIndexes(pingCtx, entries, results); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create mongo indexes: %w", err)
	}

	s := newStoreWithCollections(entries, results, timeout, logger)
	s.client = client
	logger.Info("MongoDB 存储已连接",
		zap.String("database", cfg.Database))
	return s, nil
}

func newStoreWithCollections(entries, results collection, timeout time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	return &Store{
		entries: entries,
		results: results,
		timeout: timeout,
		now:     time.Now,
		logger:  logger.With(zap.String("component", "mongo_store")),
	}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// GetCachedVisionResult implements storage.VisionCacheStore with a single
// FindOneAndUpdate, so the read and the hit increment are one atomic step.
func (s *Store) GetCachedVisionResult(ctx context.Context, key types.VisionCacheKey) (*types.VisionCacheEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{
		"screenshot_hash": key.ScreenshotHash,
		"assertion":       key.Assertion,
		"model":           key.Model,
		"prompt_version":  key.PromptVersion,
		"expires_at":      bson.M{"$gte": s.now().UTC()},
	}
	update := bson.M{"$inc": bson.M{"hit_count": 1}}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetReturnDocument(options.After)

	var doc entryDocument
	if err := s.entries.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, storage.ErrCacheMiss
		}
		return nil, fmt.Errorf("find vision cache entry: %w", err)
	}
	entry := doc.toEntry()
	return &entry, nil
}

// CacheVisionResult implements storage.VisionCacheStore.
func (s *Store) CacheVisionResult(ctx context.Context, entry *types.VisionCacheEntry) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.entries.InsertOne(ctx, fromEntry(entry)); err != nil {
		return fmt.Errorf("insert vision cache entry: %w", err)
	}
	return nil
}

// SaveTestResult implements storage.ResultSaver.
func (s *Store) SaveTestResult(ctx context.Context, result *types.FlowRunResult) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if _, err := s.results.InsertOne(ctx, fromResult(result)); err != nil {
		return fmt.Errorf("insert test result: %w", err)
	}
	s.logger.Debug("测试结果已保存",
		zap.String("run_id", result.ID),
		zap.String("flow", result.FlowName))
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func ensureIndexes(ctx context.Context, entries, results collection) error {
	lookup := mongodriver.IndexModel{
		Keys: bson.D{
			{Key: "screenshot_hash", Value: 1},
			{Key: "assertion", Value: 1},
			{Key: "model", Value: 1},
			{Key: "prompt_version", Value: 1},
			{Key: "created_at", Value: -1},
		},
	}
	if _, err := entries.Indexes().CreateOne(ctx, lookup); err != nil {
		return err
	}
	// TTL 索引，MongoDB 在 expires_at 之后自动清理
	ttl := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := entries.Indexes().CreateOne(ctx, ttl); err != nil {
		return err
	}
	byFlow := mongodriver.IndexModel{
		Keys: bson.D{
			{Key: "flow_name", Value: 1},
			{Key: "started_at", Value: -1},
		},
	}
	if _, err := results.Indexes().CreateOne(ctx, byFlow); err != nil {
		return err
	}
	return nil
}
