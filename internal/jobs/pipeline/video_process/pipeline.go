package video_process

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/yungbote/ncertlens-backend/internal/data/repos"
	types "github.com/yungbote/ncertlens-backend/internal/domain"
	"github.com/yungbote/ncertlens-backend/internal/jobs/runtime"
	"github.com/yungbote/ncertlens-backend/internal/modules/concepts"
	"github.com/yungbote/ncertlens-backend/internal/modules/similarity"
	"github.com/yungbote/ncertlens-backend/internal/modules/transcript"
	"github.com/yungbote/ncertlens-backend/internal/observability"
	"github.com/yungbote/ncertlens-backend/internal/platform/llm"
	"github.com/yungbote/ncertlens-backend/internal/platform/youtube"
)

// Outcome summarizes a finished run.
type Outcome struct {
	Status     string
	Concepts   int
	Mappings   []types.ConceptMapping
	Extraction concepts.ExtractionKind
	Indexed    bool
}

// Run executes one claimed job. The record is always resolved by the time it
// returns, so the worker never needs to fail it.
func (p *Pipeline) Run(jc *runtime.Context) error {
	if jc == nil {
		return nil
	}
	_, _ = p.Execute(jc)
	return nil
}

// Execute is Run with the outcome exposed. A non-nil error has already been
// written to the record, or is runtime.ErrLostOwnership.
func (p *Pipeline) Execute(jc *runtime.Context) (*Outcome, error) {
	job := jc.Job
	if !types.IsVideoID(job.VideoID) {
		err := fmt.Errorf("invalid video id %q", job.VideoID)
		jc.Fail("validate", err)
		return nil, err
	}

	ctx := jc.Ctx
	if p.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.RunTimeout)
		defer cancel()
	}
	ctx, span := observability.StartSpan(ctx, "video_process.run",
		attribute.String("video.id", job.VideoID),
		attribute.String("run.id", job.RunID),
	)

	started := time.Now()
	out, err := p.execute(ctx, jc)
	observability.EndSpan(span, err)

	switch {
	case errors.Is(err, runtime.ErrLostOwnership):
		jc.Log.Warn("Run lost ownership; result dropped", "stage", jc.Stage())
		p.deps.Metrics.ObservePipelineRun("lost", 0)
		return nil, err
	case err != nil:
		jc.Fail(jc.Stage(), err)
		p.deps.Metrics.ObservePipelineRun(types.VideoStatusFailed, 0)
		return nil, err
	}
	p.deps.Metrics.ObservePipelineRun(types.VideoStatusCompleted, len(out.Mappings))
	jc.Log.Info("Video processed",
		"concepts", out.Concepts,
		"extraction", string(out.Extraction),
		"indexed", out.Indexed,
		"elapsed", time.Since(started).String(),
	)
	return out, nil
}

// step heartbeats, then runs fn inside a span. After the run is terminal the
// heartbeat is a no-op.
func (p *Pipeline) step(ctx context.Context, jc *runtime.Context, stage string, fn func(ctx context.Context) error) error {
	if err := jc.Progress(stage); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	sctx, span := observability.StartSpan(ctx, "video_process."+stage, attribute.String("video.id", jc.Job.VideoID))
	start := time.Now()
	err := fn(sctx)
	p.deps.Metrics.ObservePipelineStage(stage, err, time.Since(start))
	observability.EndSpan(span, err)
	return err
}

func (p *Pipeline) aiCall(op string, err error, start time.Time) {
	provider := "unknown"
	if p.deps.Embedder != nil {
		provider = p.deps.Embedder.Provider()
	}
	p.deps.Metrics.ObserveAICall(provider, op, err, time.Since(start))
}

func (p *Pipeline) execute(ctx context.Context, jc *runtime.Context) (*Outcome, error) {
	job := jc.Job
	video := &types.Video{VideoID: job.VideoID}
	var metadata *types.Video

	if p.deps.Metadata != nil {
		err := p.step(ctx, jc, StageMetadata, func(ctx context.Context) error {
			meta, err := p.deps.Metadata.VideoDetails(ctx, job.VideoID)
			if err != nil {
				return err
			}
			v, err := toVideo(meta)
			if err != nil {
				return err
			}
			v.VideoID = job.VideoID
			video, metadata = v, v
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	var captions []youtube.Caption
	if err := p.step(ctx, jc, StageTranscript, func(ctx context.Context) error {
		var err error
		captions, err = p.deps.Transcripts.Transcript(ctx, job.VideoID)
		return err
	}); err != nil {
		return nil, err
	}

	var tr *transcript.Result
	if err := p.step(ctx, jc, StageProcess, func(context.Context) error {
		raw := make([]transcript.RawSegment, 0, len(captions))
		for _, c := range captions {
			raw = append(raw, transcript.RawSegment{OffsetMs: c.OffsetMs, DurationMs: c.DurationMs, Text: c.Text})
		}
		var err error
		tr, err = transcript.Process(raw)
		return err
	}); err != nil {
		return nil, err
	}

	var embedding []float32
	if err := p.step(ctx, jc, StageEmbedding, func(ctx context.Context) error {
		start := time.Now()
		var err error
		embedding, err = llm.EmbedOne(ctx, p.deps.Embedder, llm.Truncate(tr.FullText, p.cfg.EmbeddingMaxChars))
		p.aiCall("embed", err, start)
		return err
	}); err != nil {
		return nil, err
	}

	var extraction concepts.Extraction
	if err := p.step(ctx, jc, StageConcepts, func(ctx context.Context) error {
		start := time.Now()
		var err error
		extraction, err = p.deps.Extractor.Extract(ctx, tr.FullText, concepts.ExtractOptions{
			MaxConcepts:         p.cfg.MaxConcepts,
			ConfidenceThreshold: p.cfg.ConceptThreshold,
			Subject:             job.Subject,
			Class:               job.Class,
		})
		p.aiCall("extract", err, start)
		return err
	}); err != nil {
		return nil, err
	}

	var ranges [][]types.TimestampRange
	if err := p.step(ctx, jc, StageTimestamps, func(ctx context.Context) error {
		names := make([]string, len(extraction.Concepts))
		for i, c := range extraction.Concepts {
			names[i] = c.Concept
		}
		start := time.Now()
		var err error
		ranges, err = p.deps.Resolver.ResolveAll(ctx, tr.Chunks, names, p.cfg.TimestampThreshold, p.cfg.TimestampConcurrency)
		p.aiCall("timestamps", err, start)
		return err
	}); err != nil {
		return nil, err
	}
	mappings := buildMappings(extraction.Concepts, ranges)

	if err := p.step(ctx, jc, StageComplete, func(context.Context) error {
		ok, err := jc.Succeed(repos.Completion{
			Metadata:   metadata,
			Transcript: tr.FullText,
			Segments:   tr.Segments,
			Embedding:  embedding,
			Mappings:   mappings,
		})
		if err != nil {
			return err
		}
		if !ok {
			return runtime.ErrLostOwnership
		}
		return nil
	}); err != nil {
		return nil, err
	}

	out := &Outcome{
		Status:     types.VideoStatusCompleted,
		Concepts:   len(mappings),
		Mappings:   mappings,
		Extraction: extraction.Kind,
	}

	// past this point the record is completed; failures only leave it unindexed
	if p.deps.Index != nil {
		err := p.step(ctx, jc, StageIndex, func(ctx context.Context) error {
			doc := similarity.VideoDocFor(video, embedding, mappings, job.Subject, job.Class)
			if err := p.deps.Index.UpsertVideo(ctx, doc); err != nil {
				return err
			}
			if p.deps.MarkIndexed != nil {
				return p.deps.MarkIndexed(ctx, job.VideoID, time.Now().UTC())
			}
			return nil
		})
		if err != nil {
			jc.Log.Warn("Similarity index upsert failed; left for reindex", "error", err)
		} else {
			out.Indexed = true
		}
	}
	if p.deps.Graph != nil {
		if err := p.step(ctx, jc, StageGraph, func(ctx context.Context) error {
			return p.deps.Graph.ProjectVideo(ctx, video, mappings)
		}); err != nil {
			jc.Log.Warn("Graph projection failed", "error", err)
		}
	}
	return out, nil
}

// buildMappings pairs candidates with their ranges by index. Concepts with no
// confident range are kept with an empty list.
func buildMappings(candidates []concepts.Candidate, ranges [][]types.TimestampRange) []types.ConceptMapping {
	out := make([]types.ConceptMapping, 0, len(candidates))
	for i, c := range candidates {
		rs := []types.TimestampRange{}
		if i < len(ranges) && ranges[i] != nil {
			rs = ranges[i]
		}
		out = append(out, types.ConceptMapping{
			Concept:            c.Concept,
			Subject:            c.Subject,
			Class:              c.Class,
			Chapter:            c.Chapter,
			Section:            c.Section,
			Confidence:         c.Confidence,
			Explanation:        c.Explanation,
			Keywords:           c.Keywords,
			RelevantTimestamps: rs,
		})
	}
	return out
}

func toVideo(m *youtube.VideoMetadata) (*types.Video, error) {
	if m == nil {
		return nil, fmt.Errorf("empty video metadata")
	}
	thumbMap := m.Thumbnails
	if thumbMap == nil {
		thumbMap = map[string]youtube.Thumbnail{}
	}
	thumbs, err := json.Marshal(thumbMap)
	if err != nil {
		return nil, err
	}
	tags := m.Tags
	if tags == nil {
		tags = []string{}
	}
	rawTags, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	return &types.Video{
		VideoID:         m.VideoID,
		Title:           m.Title,
		Description:     m.Description,
		ChannelID:       m.ChannelID,
		ChannelTitle:    m.ChannelTitle,
		Duration:        m.Duration,
		DurationSeconds: m.DurationSeconds,
		PublishedAt:     m.PublishedAt,
		CategoryID:      m.CategoryID,
		DefaultLanguage: m.DefaultLanguage,
		ViewCount:       int64(m.ViewCount),
		LikeCount:       int64(m.LikeCount),
		Thumbnails:      datatypes.JSON(thumbs),
		Tags:            datatypes.JSON(rawTags),
	}, nil
}
