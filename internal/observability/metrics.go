package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/yungbote/ncertlens-backend/internal/platform/envutil"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

// Metrics is a process-wide registry rendered in Prometheus text format.
// All methods are safe on a nil receiver so callers never branch on
// METRICS_ENABLED themselves.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	pipelineRuns  *CounterVec
	pipelineStage *HistogramVec
	mappings      *HistogramVec

	aiCalls   *CounterVec
	aiLatency *HistogramVec

	queueDepth     *GaugeVec
	workerInflight *Gauge
	staleReset     *Counter
	indexWrites    *CounterVec

	vectorOps     *CounterVec
	vectorLatency *HistogramVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func MetricsEnabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Init returns the shared registry, or nil when metrics are disabled.
func Init() *Metrics {
	if !MetricsEnabled() {
		return nil
	}
	initOnce.Do(func() { instance = NewMetrics() })
	return instance
}

// NewMetrics builds an unshared registry.
func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("ncl_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"ncl_api_request_duration_seconds",
			"API request latency by method/route.",
			[]string{"method", "route"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		),
		apiInflight: NewGauge("ncl_api_inflight_requests", "In-flight API requests."),

		pipelineRuns: NewCounterVec("ncl_pipeline_runs_total", "Video processing runs by outcome.", []string{"outcome"}),
		pipelineStage: NewHistogramVec(
			"ncl_pipeline_stage_duration_seconds",
			"Video processing stage latency by stage/status.",
			[]string{"stage", "status"},
			[]float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		),
		mappings: NewHistogramVec(
			"ncl_pipeline_mappings_per_video",
			"Concept mappings persisted per completed video.",
			nil,
			[]float64{0, 1, 2, 5, 10, 20, 50},
		),

		aiCalls: NewCounterVec("ncl_ai_calls_total", "Model calls by provider/op/status.", []string{"provider", "op", "status"}),
		aiLatency: NewHistogramVec(
			"ncl_ai_call_duration_seconds",
			"Model call latency by provider/op.",
			[]string{"provider", "op"},
			[]float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),

		queueDepth:     NewGaugeVec("ncl_queue_depth", "Jobs waiting by queue kind.", []string{"kind"}),
		workerInflight: NewGauge("ncl_worker_inflight_jobs", "Jobs currently being processed."),
		staleReset:     NewCounter("ncl_stale_videos_reset_total", "Processing records reset to failed by the sweeper."),
		indexWrites:    NewCounterVec("ncl_index_writes_total", "Similarity index upserts by collection/status.", []string{"collection", "status"}),

		vectorOps: NewCounterVec("ncl_vector_ops_total", "Vector store operations by op/status.", []string{"op", "status"}),
		vectorLatency: NewHistogramVec(
			"ncl_vector_op_duration_seconds",
			"Vector store operation latency by op.",
			[]string{"op"},
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		),
	}
}

func (m *Metrics) collectors() []collector {
	return []collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.pipelineRuns, m.pipelineStage, m.mappings,
		m.aiCalls, m.aiLatency,
		m.queueDepth, m.workerInflight, m.staleReset, m.indexWrites,
		m.vectorOps, m.vectorLatency,
	}
}

// StartServer serves /metrics on addr until ctx is done.
func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil || addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed && log != nil {
			log.Error("metrics server failed", "error", err, "addr", addr)
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range m.collectors() {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, strconv.Itoa(status))
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflightInc() {
	if m != nil {
		m.apiInflight.Add(1)
	}
}

func (m *Metrics) APIInflightDec() {
	if m != nil {
		m.apiInflight.Add(-1)
	}
}

func (m *Metrics) ObservePipelineStage(stage string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	m.pipelineStage.Observe(dur.Seconds(), stage, statusOf(err))
}

// ObservePipelineRun records a finished run; outcome is completed, failed or lost.
func (m *Metrics) ObservePipelineRun(outcome string, mappings int) {
	if m == nil {
		return
	}
	m.pipelineRuns.Inc(outcome)
	if outcome == "completed" {
		m.mappings.Observe(float64(mappings))
	}
}

func (m *Metrics) ObserveAICall(provider, op string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	m.aiCalls.Inc(provider, op, statusOf(err))
	m.aiLatency.Observe(dur.Seconds(), provider, op)
}

func (m *Metrics) SetQueueDepth(kind string, depth int) {
	if m != nil {
		m.queueDepth.Set(float64(depth), kind)
	}
}

func (m *Metrics) WorkerInflight(delta int) {
	if m != nil {
		m.workerInflight.Add(float64(delta))
	}
}

func (m *Metrics) StaleReset(n int64) {
	if m != nil && n > 0 {
		m.staleReset.Add(float64(n))
	}
}

func (m *Metrics) ObserveIndexWrite(collection string, err error) {
	if m != nil {
		m.indexWrites.Inc(collection, statusOf(err))
	}
}

func (m *Metrics) ObserveVectorOp(op string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	m.vectorOps.Inc(op, statusOf(err))
	m.vectorLatency.Observe(dur.Seconds(), op)
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
