package transcript

import (
	"errors"
	"strings"
	"testing"

	types "github.com/yungbote/ncertlens-backend/internal/domain"
)

func TestProcessCleansBracketsAndWhitespace(t *testing.T) {
	res, err := Process([]RawSegment{
		{OffsetMs: 0, DurationMs: 4000, Text: "[music]   Newton's First Law"},
		{OffsetMs: 4000, DurationMs: 5000, Text: "states that an object   at rest [applause] stays at rest"},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := "Newton's First Law states that an object at rest stays at rest"
	if res.FullText != want {
		t.Fatalf("FullText: want=%q got=%q", want, res.FullText)
	}
	if strings.Contains(res.FullText, "[") || strings.Contains(res.FullText, "  ") {
		t.Fatalf("FullText not clean: %q", res.FullText)
	}
	if res.Segments[0].Text != "Newton's First Law" {
		t.Fatalf("segment text: got=%q", res.Segments[0].Text)
	}
	if res.WordCount != len(strings.Fields(res.FullText)) {
		t.Fatalf("WordCount: want=%d got=%d", len(strings.Fields(res.FullText)), res.WordCount)
	}
	if res.TotalDuration != 9 {
		t.Fatalf("TotalDuration: want=9 got=%v", res.TotalDuration)
	}
}

func TestProcessConvertsMillisecondsToSeconds(t *testing.T) {
	res, err := Process([]RawSegment{{OffsetMs: 1500, DurationMs: 2250, Text: "hello"}})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	seg := res.Segments[0]
	if seg.Start != 1.5 || seg.Duration != 2.25 {
		t.Fatalf("segment: want start=1.5 duration=2.25 got=%+v", seg)
	}
	if res.TotalDuration != 3.75 {
		t.Fatalf("TotalDuration: want=3.75 got=%v", res.TotalDuration)
	}
}

func TestProcessEmpty(t *testing.T) {
	_, err := Process(nil)
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Fatalf("nil input: want ErrEmptyTranscript got=%v", err)
	}
	_, err = Process([]RawSegment{{Text: "[music]"}, {OffsetMs: 1000, Text: "   "}})
	var ete *EmptyTranscriptError
	if !errors.As(err, &ete) {
		t.Fatalf("blank input: want *EmptyTranscriptError got=%T", err)
	}
	if ete.Segments != 2 {
		t.Fatalf("Segments: want=2 got=%d", ete.Segments)
	}
}

func TestChunkBoundariesRealignAfterGaps(t *testing.T) {
	res, err := Process([]RawSegment{
		{OffsetMs: 0, DurationMs: 5000, Text: "a"},
		{OffsetMs: 29000, DurationMs: 2000, Text: "b"},
		{OffsetMs: 31000, DurationMs: 2000, Text: "c"},
		// Gap: nothing between 33s and 95s.
		{OffsetMs: 95000, DurationMs: 3000, Text: "d"},
		{OffsetMs: 100000, DurationMs: 3000, Text: "e"},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := []Chunk{
		{StartTime: 0, EndTime: 30, Duration: 30, Text: "a b", SegmentCount: 2},
		{StartTime: 30, EndTime: 60, Duration: 30, Text: "c", SegmentCount: 1},
		{StartTime: 90, EndTime: 120, Duration: 30, Text: "d e", SegmentCount: 2},
	}
	if len(res.Chunks) != len(want) {
		t.Fatalf("chunks: want=%d got=%d (%+v)", len(want), len(res.Chunks), res.Chunks)
	}
	for i := range want {
		if res.Chunks[i] != want[i] {
			t.Fatalf("chunk[%d]: want=%+v got=%+v", i, want[i], res.Chunks[i])
		}
	}
}

func TestChunksSkipEmptyWindows(t *testing.T) {
	res, err := Process([]RawSegment{
		{OffsetMs: 0, DurationMs: 1000, Text: "[music]"},
		{OffsetMs: 40000, DurationMs: 1000, Text: "first words"},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Chunks) != 1 {
		t.Fatalf("chunks: want=1 got=%d", len(res.Chunks))
	}
	for _, c := range res.Chunks {
		if c.Text == "" {
			t.Fatalf("chunk with empty text: %+v", c)
		}
		if c.EndTime-c.Duration != c.StartTime {
			t.Fatalf("chunk duration invariant broken: %+v", c)
		}
	}
}

func TestSearch(t *testing.T) {
	segs := []types.TranscriptSegment{
		{Start: 0, Text: "intro"},
		{Start: 5, Text: "Newton's laws of Motion"},
		{Start: 9, Text: "outro"},
	}
	got := Search(segs, "motion")
	if len(got) != 1 {
		t.Fatalf("matches: want=1 got=%d", len(got))
	}
	if got[0].Timestamp != 5 || got[0].ContextBefore != "intro" || got[0].ContextAfter != "outro" {
		t.Fatalf("match: got=%+v", got[0])
	}
	if len(Search(segs, "  ")) != 0 {
		t.Fatalf("blank query should return no matches")
	}
}

func TestFormatTime(t *testing.T) {
	cases := map[float64]string{0: "0:00", 65: "1:05", 600.9: "10:00", 59.99: "0:59"}
	for in, want := range cases {
		if got := FormatTime(in); got != want {
			t.Fatalf("FormatTime(%v): want=%q got=%q", in, want, got)
		}
	}
}
