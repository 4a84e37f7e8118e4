package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.flowRunsTotal)
	assert.NotNil(t, collector.poolSessions)
	assert.NotNil(t, collector.visionRequestsTotal)
	assert.NotNil(t, collector.cacheHits)
}

func TestCollector_NilReceiverIsNoop(t *testing.T) {
	var collector *Collector

	assert.NotPanics(t, func() {
		collector.RecordHTTPRequest("GET", "/healthz", 200, time.Millisecond)
		collector.RecordFlowRun("local", "pass", time.Second)
		collector.RecordStep("click", true, time.Millisecond)
		collector.RecordPoolSessions(1, 2)
		collector.RecordPoolAcquire(false, time.Second)
		collector.RecordSessionDestroyed("expired")
		collector.RecordVisionRequest("m", "pass", time.Second, 1, 1, 0.1)
		collector.RecordCacheHit("vision")
		collector.RecordCacheMiss("vision")
		collector.RecordDBConnections("postgres", 1, 1)
	})
}

func TestCollector_RecordFlowRun(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordFlowRun("local", "pass", 3*time.Second)
	collector.RecordFlowRun("local", "pass", 2*time.Second)
	collector.RecordFlowRun("cloud", "error", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.flowRunsTotal.WithLabelValues("local", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.flowRunsTotal.WithLabelValues("cloud", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.flowRunDuration))
}

func TestCollector_RecordStep(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordStep("navigate", true, 500*time.Millisecond)
	collector.RecordStep("click", false, 30*time.Second)

	assert.Equal(t, 2, testutil.CollectAndCount(collector.stepDuration))
}

func TestCollector_RecordPool(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordPoolSessions(3, 2)
	collector.RecordPoolAcquire(true, 10*time.Millisecond)
	collector.RecordSessionDestroyed("use_count")
	collector.RecordSessionDestroyed("use_count")

	assert.Equal(t, 3.0, testutil.ToFloat64(collector.poolSessions.WithLabelValues("idle")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.poolSessions.WithLabelValues("active")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.poolSessionsDestroyed.WithLabelValues("use_count")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.poolAcquireWait))
}

func TestCollector_RecordVisionRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordVisionRequest("claude", "pass", 800*time.Millisecond, 1500, 120, 0.0063)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.visionRequestsTotal.WithLabelValues("claude", "pass")))
	assert.Equal(t, 1500.0, testutil.ToFloat64(collector.visionTokensUsed.WithLabelValues("claude", "input")))
	assert.Equal(t, 120.0, testutil.ToFloat64(collector.visionTokensUsed.WithLabelValues("claude", "output")))
	assert.InDelta(t, 0.0063, testutil.ToFloat64(collector.visionCost.WithLabelValues("claude")), 1e-9)
}

func TestCollector_RecordCacheOperation(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordCacheHit("vision")
	collector.RecordCacheMiss("vision")
	collector.RecordCacheMiss("vision")

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.cacheHits.WithLabelValues("vision")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.cacheMisses.WithLabelValues("vision")))
}

func TestCollector_UpdateConnectionPool(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDBConnections("postgres", 10, 5)

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.dbConnectionsOpen.WithLabelValues("postgres")))
	assert.Equal(t, 5.0, testutil.ToFloat64(collector.dbConnectionsIdle.WithLabelValues("postgres")))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("GET", "/metrics", 200, 100*time.Millisecond)
			collector.RecordVisionRequest("claude", "fail", 500*time.Millisecond, 100, 50, 0.01)
			collector.RecordCacheHit("vision")
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/metrics", "2xx")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.visionRequestsTotal.WithLabelValues("claude", "fail")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.cacheHits.WithLabelValues("vision")))
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(204))
	assert.Equal(t, "3xx", statusCode(301))
	assert.Equal(t, "4xx", statusCode(404))
	assert.Equal(t, "5xx", statusCode(503))
	assert.Equal(t, "unknown", statusCode(100))
}
