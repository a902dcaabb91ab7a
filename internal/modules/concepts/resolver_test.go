package concepts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/ncertlens-backend/internal/modules/transcript"
	"github.com/yungbote/ncertlens-backend/internal/platform/llm"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

func testChunks() []transcript.Chunk {
	return []transcript.Chunk{
		{StartTime: 0, EndTime: 30, Duration: 30, Text: "Newton's first law"},
		{StartTime: 60, EndTime: 90, Duration: 30, Text: "friction slows things"},
	}
}

func TestParseRanges(t *testing.T) {
	raw := `[
		{"startTime": 0, "endTime": 30, "confidence": 0.9, "relevantText": "first law"},
		{"start": "1:00", "end": "1:30", "confidence": "0.7"},
		{"startTime": 40, "endTime": 35, "confidence": 0.9},
		{"startTime": -5, "endTime": 10, "confidence": 0.9},
		{"startTime": 10, "endTime": 20, "confidence": 0.3}
	]`
	got, ok := ParseRanges(raw, 0.6)
	if !ok {
		t.Fatalf("ParseRanges: expected ok")
	}
	if len(got) != 2 {
		t.Fatalf("ranges: want=2 got=%+v", got)
	}
	if got[1].Start != 60 || got[1].End != 90 {
		t.Fatalf("m:ss parsing: got=%+v", got[1])
	}
	for _, r := range got {
		if r.Start < 0 || r.End < r.Start || r.Confidence < 0.6 {
			t.Fatalf("invalid range kept: %+v", r)
		}
	}
}

func TestParseRangesConfidenceRange(t *testing.T) {
	cases := []struct {
		name string
		conf string
		want float64
		kept bool
	}{
		{name: "unit", conf: `0.75`, want: 0.75, kept: true},
		{name: "percent", conf: `90`, want: 0.9, kept: true},
		{name: "percent below threshold", conf: `7`},
		{name: "negative", conf: `-1`},
		{name: "above hundred", conf: `"250"`},
	}
	for _, tc := range cases {
		raw := `[{"startTime":0,"endTime":30,"confidence":` + tc.conf + `}]`
		got, ok := ParseRanges(raw, 0.6)
		if !ok {
			t.Fatalf("%s: expected ok", tc.name)
		}
		if !tc.kept {
			if len(got) != 0 {
				t.Fatalf("%s: range kept: %+v", tc.name, got)
			}
			continue
		}
		if len(got) != 1 {
			t.Fatalf("%s: ranges: want=1 got=%+v", tc.name, got)
		}
		if c := got[0].Confidence; c < tc.want-1e-9 || c > tc.want+1e-9 {
			t.Fatalf("%s: confidence: want=%v got=%v", tc.name, tc.want, c)
		}
		if got[0].Confidence < 0 || got[0].Confidence > 1 {
			t.Fatalf("%s: confidence out of [0,1]: %v", tc.name, got[0].Confidence)
		}
	}
}

func TestParseRangesUnparseable(t *testing.T) {
	got, ok := ParseRanges("Sorry, I cannot help with that.", 0.6)
	if ok {
		t.Fatalf("expected ok=false")
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("want empty slice, got=%v", got)
	}
}

func TestResolvePromptFormat(t *testing.T) {
	f := &fakeLLM{reply: func(string) (string, error) { return "not json", nil }}
	r := NewTimestampResolver(logger.Nop(), f)

	got, err := r.Resolve(context.Background(), testChunks(), "Inertia", 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("unparseable reply should yield empty ranges, got=%v", got)
	}
	p := f.lastPrompt()
	if !strings.Contains(p, "[0:00 - 0:30]: Newton's first law\n\n[1:00 - 1:30]: friction slows things") {
		t.Fatalf("chunk formatting:\n%s", p)
	}
	if !strings.Contains(p, "confidence >= 0.6") {
		t.Fatalf("default threshold missing:\n%s", p)
	}
}

func TestResolveSkipsModelWithoutChunks(t *testing.T) {
	f := &fakeLLM{reply: func(string) (string, error) { return "[]", nil }}
	r := NewTimestampResolver(logger.Nop(), f)
	got, err := r.Resolve(context.Background(), nil, "Inertia", 0.6)
	if err != nil || len(got) != 0 || len(f.prompts) != 0 {
		t.Fatalf("got=%v err=%v calls=%d", got, err, len(f.prompts))
	}
}

func TestResolveAllPreservesAttribution(t *testing.T) {
	var inFlight, peak int32
	f := &fakeLLM{reply: func(p string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		switch conceptFromPrompt(p) {
		case "Inertia":
			return `[{"startTime":0,"endTime":30,"confidence":0.9}]`, nil
		case "Friction":
			return `[{"startTime":60,"endTime":90,"confidence":0.8}]`, nil
		}
		return "[]", nil
	}}
	r := NewTimestampResolver(logger.Nop(), f)

	concepts := []string{"Inertia", "Friction", "Momentum", "Inertia", "Friction"}
	got, err := r.ResolveAll(context.Background(), testChunks(), concepts, 0.6, 2)
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if len(got) != len(concepts) {
		t.Fatalf("len: want=%d got=%d", len(concepts), len(got))
	}
	if got[0][0].Start != 0 || got[1][0].Start != 60 || len(got[2]) != 0 || got[4][0].Start != 60 {
		t.Fatalf("attribution: got=%v", got)
	}
	if peak > 2 {
		t.Fatalf("concurrency limit exceeded: peak=%d", peak)
	}
}

func TestResolveAllFailsOnModelError(t *testing.T) {
	boom := errors.New("provider down")
	f := &fakeLLM{reply: func(p string) (string, error) {
		if conceptFromPrompt(p) == "Friction" {
			return "", boom
		}
		return "[]", nil
	}}
	r := NewTimestampResolver(logger.Nop(), f)
	_, err := r.ResolveAll(context.Background(), testChunks(), []string{"Inertia", "Friction"}, 0.6, 4)
	if !errors.Is(err, boom) {
		t.Fatalf("want provider error, got=%v", err)
	}
}

func TestResolveAllEmptyReplyYieldsNoRanges(t *testing.T) {
	f := &fakeLLM{reply: func(prompt string) (string, error) {
		if strings.Contains(prompt, `"Friction"`) {
			return "", fmt.Errorf("openai: %w", llm.ErrEmptyResponse)
		}
		return `[{"startTime":0,"endTime":30,"confidence":0.9}]`, nil
	}}
	r := NewTimestampResolver(logger.Nop(), f)
	got, err := r.ResolveAll(context.Background(), testChunks(), []string{"Inertia", "Friction"}, 0.6, 2)
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	if len(got) != 2 || len(got[0]) != 1 {
		t.Fatalf("ranges: got=%+v", got)
	}
	if got[1] == nil || len(got[1]) != 0 {
		t.Fatalf("empty reply: want empty ranges got=%v", got[1])
	}
}
