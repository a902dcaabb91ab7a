package concepts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/ncertlens-backend/internal/domain"
	"github.com/yungbote/ncertlens-backend/internal/modules/transcript"
	"github.com/yungbote/ncertlens-backend/internal/platform/llm"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

// TimestampResolver finds the chunks of a video relevant to one concept.
type TimestampResolver struct {
	log *logger.Logger
	llm llm.Client
}

func NewTimestampResolver(log *logger.Logger, client llm.Client) *TimestampResolver {
	if log == nil {
		log = logger.Nop()
	}
	return &TimestampResolver{log: log.With("component", "TimestampResolver"), llm: client}
}

// Resolve costs one model call per concept. threshold <= 0 means DefaultTimestampThreshold.
func (r *TimestampResolver) Resolve(ctx context.Context, chunks []transcript.Chunk, concept string, threshold float64) ([]types.TimestampRange, error) {
	if threshold <= 0 {
		threshold = DefaultTimestampThreshold
	}
	if len(chunks) == 0 || strings.TrimSpace(concept) == "" {
		return []types.TimestampRange{}, nil
	}

	prompt := render(timestampsTmpl, map[string]any{
		"Concept":   concept,
		"Chunks":    formatChunks(chunks),
		"Threshold": strconv.FormatFloat(threshold, 'f', -1, 64),
	})
	raw, err := r.llm.GenerateText(ctx, systemPrompt, prompt)
	if errors.Is(err, llm.ErrEmptyResponse) {
		r.log.Warn("Timestamp response was empty", "concept", concept, "error", err)
		return []types.TimestampRange{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find relevant timestamps for %q: %w", concept, err)
	}

	ranges, ok := ParseRanges(raw, threshold)
	if !ok {
		r.log.Warn("Timestamp response was not a JSON array", "concept", concept)
	}
	return ranges, nil
}

// ResolveAll runs Resolve for every concept with at most concurrency calls in flight.
// out[i] belongs to concepts[i]. The first error cancels the remaining calls.
func (r *TimestampResolver) ResolveAll(ctx context.Context, chunks []transcript.Chunk, concepts []string, threshold float64, concurrency int) ([][]types.TimestampRange, error) {
	out := make([][]types.TimestampRange, len(concepts))
	if len(concepts) == 0 {
		return out, nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, c := range concepts {
		i, c := i, c
		g.Go(func() error {
			ranges, err := r.Resolve(gctx, chunks, c, threshold)
			if err != nil {
				return err
			}
			out[i] = ranges
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func formatChunks(chunks []transcript.Chunk) string {
	lines := make([]string, 0, len(chunks))
	for _, c := range chunks {
		lines = append(lines, fmt.Sprintf("[%s - %s]: %s", transcript.FormatTime(c.StartTime), transcript.FormatTime(c.EndTime), c.Text))
	}
	return strings.Join(lines, "\n\n")
}

type rawRange struct {
	StartTime    flexNumber `json:"startTime"`
	EndTime      flexNumber `json:"endTime"`
	Start        flexNumber `json:"start"`
	End          flexNumber `json:"end"`
	Confidence   flexNumber `json:"confidence"`
	RelevantText string     `json:"relevantText"`
	Explanation  string     `json:"explanation"`
}

// ParseRanges keeps ranges with confidence >= threshold and 0 <= start <= end.
// Percent-scale confidences are normalised; others outside [0,1] are dropped.
// ok is false when raw is not a JSON array; the result is then empty.
func ParseRanges(raw string, threshold float64) ([]types.TimestampRange, bool) {
	out := []types.TimestampRange{}
	var items []rawRange
	if !decodeArray(raw, &items) {
		return out, false
	}
	for _, it := range items {
		start, end := it.StartTime, it.EndTime
		if !start.Valid {
			start = it.Start
		}
		if !end.Valid {
			end = it.End
		}
		if !start.Valid || !end.Valid || !it.Confidence.Valid {
			continue
		}
		conf, ok := unitConfidence(it.Confidence.Value)
		if !ok || start.Value < 0 || end.Value < start.Value || conf < threshold {
			continue
		}
		out = append(out, types.TimestampRange{
			Start:        start.Value,
			End:          end.Value,
			Confidence:   conf,
			RelevantText: strings.TrimSpace(it.RelevantText),
			Explanation:  strings.TrimSpace(it.Explanation),
		})
	}
	return out, true
}
