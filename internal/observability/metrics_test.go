package observability

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/api/x", 200, time.Millisecond)
	m.ObservePipelineRun("completed", 3)
	m.WorkerInflight(1)
	if err := m.WritePrometheus(&strings.Builder{}); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
}

func TestInitDisabled(t *testing.T) {
	t.Setenv("METRICS_ENABLED", "false")
	if m := Init(); m != nil {
		t.Fatalf("Init: want=nil when disabled")
	}
}

func TestWritePrometheusRendersObservations(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("POST", "/api/videos/process", 202, 30*time.Millisecond)
	m.ObserveAPI("POST", "/api/videos/process", 202, 40*time.Millisecond)
	m.ObservePipelineStage("transcript", errors.New("boom"), 2*time.Second)
	m.ObservePipelineRun("completed", 4)
	m.ObserveAICall("openai", "extract", nil, time.Second)
	m.SetQueueDepth("memory", 7)

	var b strings.Builder
	if err := m.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := b.String()
	for _, want := range []string{
		`ncl_api_requests_total{method="POST",route="/api/videos/process",status="202"} 2`,
		`ncl_pipeline_stage_duration_seconds_count{stage="transcript",status="error"} 1`,
		`ncl_pipeline_runs_total{outcome="completed"} 1`,
		`ncl_pipeline_mappings_per_video_bucket{le="5"} 1`,
		`ncl_pipeline_mappings_per_video_bucket{le="2"} 0`,
		`ncl_ai_calls_total{provider="openai",op="extract",status="ok"} 1`,
		`ncl_queue_depth{kind="memory"} 7`,
		"# TYPE ncl_api_inflight_requests gauge",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing line %q in:\n%s", want, out)
		}
	}
}

func TestLabelEscaping(t *testing.T) {
	got := labelString([]string{"a", "b"}, []string{`x"y`, ""})
	if got != `{a="x\"y",b="unknown"}` {
		t.Fatalf("labelString: got=%s", got)
	}
	if got := withLe("", "+Inf"); got != `{le="+Inf"}` {
		t.Fatalf("withLe: got=%s", got)
	}
}

func TestParseHeaders(t *testing.T) {
	h := parseHeaders(" authorization = Bearer x , junk, k=")
	if len(h) != 1 || h["authorization"] != "Bearer x" {
		t.Fatalf("parseHeaders: got=%v", h)
	}
	if parseHeaders("") != nil {
		t.Fatalf("parseHeaders empty: want=nil")
	}
}
