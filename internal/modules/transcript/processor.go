package transcript

import (
	"errors"
	"math"
	"regexp"
	"strings"

	types "github.com/yungbote/ncertlens-backend/internal/domain"
)

// ChunkSeconds is the width of one relevance window.
const ChunkSeconds = 30.0

var (
	bracketed  = regexp.MustCompile(`\[.*?\]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// ErrEmptyTranscript is matched by errors.Is for every *EmptyTranscriptError.
var ErrEmptyTranscript = errors.New("empty transcript")

type EmptyTranscriptError struct {
	Segments int
}

func (e *EmptyTranscriptError) Error() string {
	if e == nil || e.Segments == 0 {
		return "empty transcript: no caption segments"
	}
	return "empty transcript: all caption segments are blank after cleaning"
}

func (e *EmptyTranscriptError) Is(target error) bool { return target == ErrEmptyTranscript }

// RawSegment is one caption line as returned by the platform, in milliseconds.
type RawSegment struct {
	OffsetMs   float64
	DurationMs float64
	Text       string
}

type Chunk struct {
	StartTime    float64 `json:"startTime"`
	EndTime      float64 `json:"endTime"`
	Duration     float64 `json:"duration"`
	Text         string  `json:"text"`
	SegmentCount int     `json:"segmentCount"`
}

type Result struct {
	FullText      string                    `json:"fullText"`
	Segments      []types.TranscriptSegment `json:"timestampedSegments"`
	Chunks        []Chunk                   `json:"chunks"`
	TotalDuration float64                   `json:"totalDuration"`
	WordCount     int                       `json:"wordCount"`
}

// Clean strips bracketed stage directions and collapses whitespace.
func Clean(s string) string {
	s = bracketed.ReplaceAllString(s, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Process normalizes raw caption segments into full text and 30 second chunks.
func Process(raw []RawSegment) (*Result, error) {
	if len(raw) == 0 {
		return nil, &EmptyTranscriptError{}
	}

	texts := make([]string, 0, len(raw))
	segments := make([]types.TranscriptSegment, 0, len(raw))
	nonEmpty := 0
	for _, r := range raw {
		texts = append(texts, r.Text)
		text := Clean(r.Text)
		if text != "" {
			nonEmpty++
		}
		segments = append(segments, types.TranscriptSegment{
			Start:    r.OffsetMs / 1000,
			Duration: r.DurationMs / 1000,
			Text:     text,
		})
	}
	if nonEmpty == 0 {
		return nil, &EmptyTranscriptError{Segments: len(raw)}
	}

	fullText := Clean(strings.Join(texts, " "))
	last := segments[len(segments)-1]
	return &Result{
		FullText:      fullText,
		Segments:      segments,
		Chunks:        buildChunks(segments),
		TotalDuration: last.Start + last.Duration,
		WordCount:     len(strings.Fields(fullText)),
	}, nil
}

// buildChunks opens a new window whenever a segment starts at or past the current
// window's end; the new window is re-aligned to floor(start/30)*30, so gaps in the
// captions skip windows instead of producing empty ones.
func buildChunks(segments []types.TranscriptSegment) []Chunk {
	out := make([]Chunk, 0, len(segments)/4+1)
	cur := Chunk{StartTime: 0, EndTime: ChunkSeconds}
	var text strings.Builder

	flush := func() {
		t := strings.TrimSpace(whitespace.ReplaceAllString(text.String(), " "))
		if t == "" {
			return
		}
		cur.Text = t
		cur.Duration = cur.EndTime - cur.StartTime
		out = append(out, cur)
	}

	for _, seg := range segments {
		if seg.Start >= cur.EndTime {
			flush()
			start := math.Floor(seg.Start/ChunkSeconds) * ChunkSeconds
			cur = Chunk{StartTime: start, EndTime: start + ChunkSeconds, SegmentCount: 1}
			text.Reset()
			text.WriteString(seg.Text)
			continue
		}
		text.WriteString(" ")
		text.WriteString(seg.Text)
		cur.SegmentCount++
	}
	flush()
	return out
}
