// Package monitor tracks runtime performance and exposes it two ways:
// a lightweight in-process snapshot (sliding-window latency histograms,
// grounded on the reference service's own hand-rolled SystemMetrics)
// for the JSON status endpoint, and a github.com/prometheus/client_golang
// registry for a standard /metrics scrape target.
package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SystemMetrics tracks overall Brain platform performance.
type SystemMetrics struct {
	mu sync.RWMutex

	APILatency   *LatencyHistogram
	SignalLatency *LatencyHistogram
	DBLatency    *LatencyHistogram

	apiRequests      uint64
	apiErrors        uint64
	signalsGenerated uint64
	tradesOpened     uint64
	tradesClosed     uint64
	royaltiesRecorded uint64
	errorsCount      uint64

	lastUpdate time.Time

	prom *promCollectors
}

// promCollectors holds the client_golang instruments backing /metrics.
type promCollectors struct {
	apiRequests       prometheus.Counter
	apiErrors         prometheus.Counter
	signalsGenerated  prometheus.Counter
	tradesOpened      prometheus.Counter
	tradesClosed      prometheus.Counter
	royaltiesRecorded prometheus.Counter
	apiLatency        prometheus.Histogram
}

// LatencyHistogram tracks latency samples with a sliding window and
// lazily recomputed percentile stats.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// NewSystemMetrics creates a metrics instance and registers its
// Prometheus collectors against reg (pass prometheus.DefaultRegisterer
// for the usual global registry).
func NewSystemMetrics(reg prometheus.Registerer) *SystemMetrics {
	prom := &promCollectors{
		apiRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brain_api_requests_total", Help: "Total HTTP API requests served.",
		}),
		apiErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brain_api_errors_total", Help: "Total HTTP API requests that returned >=400.",
		}),
		signalsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brain_signals_generated_total", Help: "Total signals emitted by the Brain assembler.",
		}),
		tradesOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brain_paper_trades_opened_total", Help: "Total paper trades opened.",
		}),
		tradesClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brain_paper_trades_closed_total", Help: "Total paper trades closed.",
		}),
		royaltiesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brain_royalties_recorded_total", Help: "Total royalty ledger rows recorded.",
		}),
		apiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "brain_api_latency_ms", Help: "API request latency in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
	}
	if reg != nil {
		reg.MustRegister(prom.apiRequests, prom.apiErrors, prom.signalsGenerated,
			prom.tradesOpened, prom.tradesClosed, prom.royaltiesRecorded, prom.apiLatency)
	}

	return &SystemMetrics{
		APILatency:    NewLatencyHistogram(1000),
		SignalLatency: NewLatencyHistogram(1000),
		DBLatency:     NewLatencyHistogram(1000),
		lastUpdate:    time.Now(),
		prom:          prom,
	}
}

func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{samples: make([]float64, 0, size), maxSize: size, dirty: true}
}

func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}
	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}
	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	h.cachedStats = LatencyStats{
		Min: sorted[0], Max: sorted[n-1], Avg: sum / float64(n),
		P50: sorted[n/2], P95: sorted[int(float64(n)*0.95)], P99: sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false
	return h.cachedStats
}

type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

func (m *SystemMetrics) IncrementAPI() {
	atomic.AddUint64(&m.apiRequests, 1)
	m.prom.apiRequests.Inc()
}

func (m *SystemMetrics) IncrementAPIErrors() {
	atomic.AddUint64(&m.apiErrors, 1)
	m.prom.apiErrors.Inc()
}

func (m *SystemMetrics) IncrementSignals() {
	atomic.AddUint64(&m.signalsGenerated, 1)
	m.prom.signalsGenerated.Inc()
}

func (m *SystemMetrics) IncrementTradesOpened() {
	atomic.AddUint64(&m.tradesOpened, 1)
	m.prom.tradesOpened.Inc()
}

func (m *SystemMetrics) IncrementTradesClosed() {
	atomic.AddUint64(&m.tradesClosed, 1)
	m.prom.tradesClosed.Inc()
}

func (m *SystemMetrics) IncrementRoyaltiesRecorded() {
	atomic.AddUint64(&m.royaltiesRecorded, 1)
	m.prom.royaltiesRecorded.Inc()
}

func (m *SystemMetrics) IncrementErrors() {
	atomic.AddUint64(&m.errorsCount, 1)
}

// RecordAPILatency feeds both the in-process histogram and the
// Prometheus histogram from a single call site.
func (m *SystemMetrics) RecordAPILatency(d time.Duration) {
	m.APILatency.RecordDuration(d)
	m.prom.apiLatency.Observe(float64(d.Nanoseconds()) / 1e6)
}

type MetricsSnapshot struct {
	APILatency       LatencyStats `json:"api_latency"`
	SignalLatency    LatencyStats `json:"signal_latency"`
	DBLatency        LatencyStats `json:"db_latency"`
	APIRequests      uint64       `json:"api_requests"`
	APIErrors        uint64       `json:"api_errors"`
	SignalsGenerated uint64       `json:"signals_generated"`
	TradesOpened     uint64       `json:"trades_opened"`
	TradesClosed     uint64       `json:"trades_closed"`
	RoyaltiesRecorded uint64      `json:"royalties_recorded"`
	ErrorsCount      uint64       `json:"errors_count"`
	GoroutineCount   int          `json:"goroutine_count"`
	HeapAlloc        uint64       `json:"heap_alloc_bytes"`
	HeapSys          uint64       `json:"heap_sys_bytes"`
	Timestamp        time.Time    `json:"timestamp"`
}

func (m *SystemMetrics) GetSnapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return MetricsSnapshot{
		APILatency:        m.APILatency.Stats(),
		SignalLatency:     m.SignalLatency.Stats(),
		DBLatency:         m.DBLatency.Stats(),
		APIRequests:       atomic.LoadUint64(&m.apiRequests),
		APIErrors:         atomic.LoadUint64(&m.apiErrors),
		SignalsGenerated:  atomic.LoadUint64(&m.signalsGenerated),
		TradesOpened:      atomic.LoadUint64(&m.tradesOpened),
		TradesClosed:      atomic.LoadUint64(&m.tradesClosed),
		RoyaltiesRecorded: atomic.LoadUint64(&m.royaltiesRecorded),
		ErrorsCount:       atomic.LoadUint64(&m.errorsCount),
		GoroutineCount:    runtime.NumGoroutine(),
		HeapAlloc:         memStats.HeapAlloc,
		HeapSys:           memStats.HeapSys,
		Timestamp:         time.Now(),
	}
}

// Timer measures an operation's duration against a histogram.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{start: time.Now(), histogram: h}
}

func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}
