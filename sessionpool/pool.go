package sessionpool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/flowguard/config"
	"github.com/BaSui01/flowguard/internal/metrics"
	"github.com/BaSui01/flowguard/types"
)

var (
	// ErrPoolExhausted AcquireTimeout 内没有可用会话
	ErrPoolExhausted = types.NewError(types.ErrPoolExhausted, "no session available before acquire timeout")
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = types.NewError(types.ErrPoolClosed, "session pool is shut down")
)

// 销毁原因，用作指标标签
const (
	reasonExpired  = "expired"
	reasonOverused = "overused"
	reasonIdle     = "idle_timeout"
	reasonStale    = "stale_on_acquire"
	reasonShutdown = "shutdown"
	reasonLate     = "created_after_shutdown"
)

// Provider 远程会话提供方
type Provider interface {
	Create(ctx context.Context) (string, error)
	Terminate(ctx context.Context, id string) error
}

// Session 池中的一个会话。UseCount 只增不减。
type Session struct {
	ID         string
	CreatedAt  time.Time
	LastUsedAt time.Time
	UseCount   int
}

// Stats 池的只读快照
type Stats struct {
	Idle    int `json:"idle"`
	Active  int `json:"active"`
	Total   int `json:"total"`
	Pending int `json:"pending"`
}

// Pool 会话池
type Pool struct {
	provider  Provider
	cfg       config.PoolConfig
	now       func() time.Time
	collector *metrics.Collector
	logger    *zap.Logger

	opTimeout time.Duration

	mu      sync.Mutex
	idle    map[string]*Session
	active  map[string]*Session
	pending int
	closed  bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option 池选项
type Option func(*Pool)

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(p *Pool) { p.now = now }
}

// WithCollector 注入指标收集器
func WithCollector(c *metrics.Collector) Option {
	return func(p *Pool) { p.collector = c }
}

// WithProviderTimeout 设置单次提供方调用的超时
func WithProviderTimeout(d time.Duration) Option {
	return func(p *Pool) { p.opTimeout = d }
}

// New 创建会话池，启动后台清理并异步预热 MinSessions 个会话
func New(provider Provider, cfg config.PoolConfig, logger *zap.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = normalize(cfg)

	p := &Pool{
		provider:  provider,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger.With(zap.String("component", "session_pool")),
		opTimeout: 30 * time.Second,
		idle:      make(map[string]*Session),
		active:    make(map[string]*Session),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		p.cleanupLoop()
	}()
	go func() {
		defer p.wg.Done()
		p.warmPool()
	}()

	p.logger.Info("session pool created",
		zap.Int("min_sessions", cfg.MinSessions),
		zap.Int("max_sessions", cfg.MaxSessions))
	return p
}

func normalize(cfg config.PoolConfig) config.PoolConfig {
	def := config.DefaultPoolConfig()
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = def.MaxSessions
	}
	if cfg.MinSessions < 0 {
		cfg.MinSessions = 0
	}
	if cfg.MinSessions > cfg.MaxSessions {
		cfg.MinSessions = cfg.MaxSessions
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.SessionLifetime <= 0 {
		cfg.SessionLifetime = def.SessionLifetime
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = def.AcquireTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.MaxUseCount <= 0 {
		cfg.MaxUseCount = def.MaxUseCount
	}
	return cfg
}

// =============================================================================
// 🔥 预热
// =============================================================================

// warmPool 尽力创建 MinSessions 个空闲会话，失败只记录日志
func (p *Pool) warmPool() {
	for i := 0; i < p.cfg.MinSessions; i++ {
		if !p.reserve() {
			return
		}
		ctx, cancel := p.providerContext()
		id, err := p.provider.Create(ctx)
		cancel()
		if err != nil {
			p.unreserve()
			p.logger.Warn("预热会话失败", zap.Int("index", i), zap.Error(err))
			continue
		}

		now := p.now()
		if !p.commit(&Session{ID: id, CreatedAt: now, LastUsedAt: now}, false) {
			p.destroy(id, reasonLate)
		}
	}
}

// =============================================================================
// 🎯 获取与归还
// =============================================================================

// Acquire 获取一个会话 ID。AcquireTimeout 内无可用会话时返回 ErrPoolExhausted。
func (p *Pool) Acquire(ctx context.Context) (string, error) {
	start := p.now()
	deadline := time.NewTimer(p.cfg.AcquireTimeout)
	defer deadline.Stop()

	var poll *time.Ticker
	for {
		id, create, stale, err := p.tryAcquire()
		for _, s := range stale {
			p.destroyAsync(s.ID, reasonStale)
		}
		if err != nil {
			p.collector.RecordPoolAcquire(false, p.now().Sub(start))
			return "", err
		}
		if id != "" {
			p.collector.RecordPoolAcquire(true, p.now().Sub(start))
			return id, nil
		}
		if create {
			id, err := p.createActive(ctx)
			p.collector.RecordPoolAcquire(err == nil, p.now().Sub(start))
			return id, err
		}

		if poll == nil {
			poll = time.NewTicker(p.cfg.PollInterval)
			defer poll.Stop()
			p.logger.Debug("会话池已满，等待释放",
				zap.Int("max_sessions", p.cfg.MaxSessions))
		}
		select {
		case <-ctx.Done():
			p.collector.RecordPoolAcquire(false, p.now().Sub(start))
			return "", ctx.Err()
		case <-deadline.C:
			p.collector.RecordPoolAcquire(false, p.now().Sub(start))
			p.logger.Warn("获取会话超时", zap.Duration("timeout", p.cfg.AcquireTimeout))
			return "", ErrPoolExhausted
		case <-poll.C:
		}
	}
}

// tryAcquire 在锁内完成一次获取尝试：复用空闲会话，或预留新建名额。
// 顺带移出已过期的空闲会话，由调用方在锁外销毁。
func (p *Pool) tryAcquire() (id string, create bool, stale []*Session, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return "", false, nil, ErrPoolClosed
	}

	now := p.now()
	var best *Session
	for sid, s := range p.idle {
		if now.Sub(s.CreatedAt) > p.cfg.SessionLifetime || now.Sub(s.LastUsedAt) > p.cfg.IdleTimeout {
			delete(p.idle, sid)
			stale = append(stale, s)
			continue
		}
		if best == nil || s.UseCount < best.UseCount ||
			(s.UseCount == best.UseCount && s.LastUsedAt.Before(best.LastUsedAt)) {
			best = s
		}
	}

	if best != nil {
		delete(p.idle, best.ID)
		best.UseCount++
		best.LastUsedAt = now
		p.active[best.ID] = best
		p.recordGaugesLocked()
		return best.ID, false, stale, nil
	}

	if len(p.idle)+len(p.active)+p.pending < p.cfg.MaxSessions {
		p.pending++
		return "", true, stale, nil
	}
	p.recordGaugesLocked()
	return "", false, stale, nil
}

// createActive 使用已预留的名额新建会话并直接标记为 active
func (p *Pool) createActive(ctx context.Context) (string, error) {
	cctx, cancel := p.providerContext()
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	id, err := p.provider.Create(cctx)
	if err != nil {
		p.unreserve()
		p.logger.Warn("创建远程会话失败", zap.Error(err))
		return "", fmt.Errorf("create remote session: %w", err)
	}

	now := p.now()
	if !p.commit(&Session{ID: id, CreatedAt: now, LastUsedAt: now, UseCount: 1}, true) {
		p.destroy(id, reasonLate)
		return "", ErrPoolClosed
	}
	p.logger.Debug("created remote session", zap.String("session_id", id))
	return id, nil
}

// Release 归还会话。未知 ID 只记录警告。
func (p *Pool) Release(ctx context.Context, id string) {
	p.mu.Lock()
	s, ok := p.active[id]
	if !ok {
		p.mu.Unlock()
		if _, idle := p.idleContains(id); idle {
			p.logger.Warn("归还的会话已处于空闲状态", zap.String("session_id", id))
			return
		}
		p.logger.Warn("归还未知会话", zap.String("session_id", id))
		return
	}
	delete(p.active, id)

	now := p.now()
	reason := ""
	switch {
	case p.closed:
		reason = reasonShutdown
	case now.Sub(s.CreatedAt) > p.cfg.SessionLifetime:
		reason = reasonExpired
	case s.UseCount > p.cfg.MaxUseCount:
		reason = reasonOverused
	default:
		s.LastUsedAt = now
		p.idle[id] = s
	}
	p.recordGaugesLocked()
	p.mu.Unlock()

	if reason != "" {
		p.logger.Debug("销毁会话",
			zap.String("session_id", id),
			zap.String("reason", reason),
			zap.Int("use_count", s.UseCount))
		p.destroyWith(ctx, id, reason)
	}
}

func (p *Pool) idleContains(id string) (*Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.idle[id]
	return s, ok
}

// =============================================================================
// 🧹 清理与关闭
// =============================================================================

func (p *Pool) cleanupLoop() {
	ticker := time.NewTicker(p.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.cleanupStale()
		}
	}
}

// cleanupStale 销毁空闲超时或超过寿命的空闲会话
func (p *Pool) cleanupStale() int {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0
	}
	now := p.now()
	var victims []string
	for id, s := range p.idle {
		if now.Sub(s.LastUsedAt) > p.cfg.IdleTimeout || now.Sub(s.CreatedAt) > p.cfg.SessionLifetime {
			delete(p.idle, id)
			victims = append(victims, id)
		}
	}
	p.recordGaugesLocked()
	p.mu.Unlock()

	for _, id := range victims {
		p.destroy(id, reasonIdle)
	}
	if len(victims) > 0 {
		p.logger.Debug("清理过期会话", zap.Int("count", len(victims)))
	}
	return len(victims)
}

// Shutdown 停止后台清理并销毁所有会话，可重复调用
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stop) })

	p.mu.Lock()
	p.closed = true
	ids := make([]string, 0, len(p.idle)+len(p.active))
	for id := range p.idle {
		ids = append(ids, id)
	}
	for id := range p.active {
		ids = append(ids, id)
	}
	p.idle = make(map[string]*Session)
	p.active = make(map[string]*Session)
	p.recordGaugesLocked()
	p.mu.Unlock()

	sort.Strings(ids)
	var g errgroup.Group
	g.SetLimit(8)
	for _, id := range ids {
		g.Go(func() error {
			p.destroyWith(ctx, id, reasonShutdown)
			return nil
		})
	}
	_ = g.Wait()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	p.logger.Info("session pool shut down", zap.Int("destroyed", len(ids)))
	return nil
}

// Stats 返回当前快照
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Idle:    len(p.idle),
		Active:  len(p.active),
		Total:   len(p.idle) + len(p.active),
		Pending: p.pending,
	}
}

// =============================================================================
// 🔧 内部辅助
// =============================================================================

// reserve 预留一个新建名额
func (p *Pool) reserve() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || len(p.idle)+len(p.active)+p.pending >= p.cfg.MaxSessions {
		return false
	}
	p.pending++
	return true
}

func (p *Pool) unreserve() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending--
}

// commit 将新建会话放入 active 或 idle，池已关闭时返回 false
func (p *Pool) commit(s *Session, active bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending--
	if p.closed {
		return false
	}
	if active {
		p.active[s.ID] = s
	} else {
		p.idle[s.ID] = s
	}
	p.recordGaugesLocked()
	return true
}

func (p *Pool) providerContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), p.opTimeout)
}

func (p *Pool) destroy(id, reason string) {
	p.destroyWith(context.Background(), id, reason)
}

func (p *Pool) destroyAsync(id, reason string) {
	go p.destroy(id, reason)
}

// destroyWith 终止远程会话。记账已在调用前移除，失败只记录日志。
func (p *Pool) destroyWith(ctx context.Context, id, reason string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opTimeout)
	defer cancel()

	p.collector.RecordSessionDestroyed(reason)
	if err := p.provider.Terminate(cctx, id); err != nil {
		p.logger.Warn("终止远程会话失败",
			zap.String("session_id", id),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

func (p *Pool) recordGaugesLocked() {
	p.collector.RecordPoolSessions(len(p.idle), len(p.active))
}

// checkInvariants 校验 idle/active 互斥且总数不超上限
func (p *Pool) checkInvariants() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id := range p.idle {
		if _, ok := p.active[id]; ok {
			return fmt.Errorf("session %s is both idle and active", id)
		}
	}
	if total := len(p.idle) + len(p.active) + p.pending; total > p.cfg.MaxSessions {
		return fmt.Errorf("tracked %d sessions, max %d", total, p.cfg.MaxSessions)
	}
	if p.pending < 0 {
		return fmt.Errorf("negative pending count %d", p.pending)
	}
	return nil
}
