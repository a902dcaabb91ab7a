package video_process

import (
	"context"
	"time"

	types "github.com/yungbote/ncertlens-backend/internal/domain"
	"github.com/yungbote/ncertlens-backend/internal/modules/concepts"
	"github.com/yungbote/ncertlens-backend/internal/modules/similarity"
	"github.com/yungbote/ncertlens-backend/internal/modules/transcript"
	"github.com/yungbote/ncertlens-backend/internal/observability"
	"github.com/yungbote/ncertlens-backend/internal/platform/envutil"
	"github.com/yungbote/ncertlens-backend/internal/platform/llm"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
	"github.com/yungbote/ncertlens-backend/internal/platform/youtube"
)

const (
	StageMetadata   = "metadata"
	StageTranscript = "transcript"
	StageProcess    = "process"
	StageEmbedding  = "embedding"
	StageConcepts   = "concepts"
	StageTimestamps = "timestamps"
	StageComplete   = "complete"
	StageIndex      = "index"
	StageGraph      = "graph"
)

type MetadataSource interface {
	VideoDetails(ctx context.Context, videoID string) (*youtube.VideoMetadata, error)
}

type ConceptExtractor interface {
	Extract(ctx context.Context, text string, opts concepts.ExtractOptions) (concepts.Extraction, error)
}

type TimestampResolver interface {
	ResolveAll(ctx context.Context, chunks []transcript.Chunk, concepts []string, threshold float64, concurrency int) ([][]types.TimestampRange, error)
}

type VideoIndex interface {
	UpsertVideo(ctx context.Context, doc similarity.VideoDoc) error
}

type VideoGraph interface {
	ProjectVideo(ctx context.Context, v *types.Video, mappings []types.ConceptMapping) error
}

type Config struct {
	MaxConcepts          int
	ConceptThreshold     float64
	TimestampThreshold   float64
	TimestampConcurrency int
	// EmbeddingMaxChars caps the transcript text sent to the embedder.
	EmbeddingMaxChars int
	// RunTimeout bounds one run end to end; 0 disables it.
	RunTimeout time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		MaxConcepts:          envutil.Int("PIPELINE_MAX_CONCEPTS", concepts.DefaultMaxConcepts),
		ConceptThreshold:     envutil.Float("PIPELINE_CONCEPT_THRESHOLD", concepts.DefaultConceptThreshold),
		TimestampThreshold:   envutil.Float("PIPELINE_TIMESTAMP_THRESHOLD", concepts.DefaultTimestampThreshold),
		TimestampConcurrency: envutil.Int("TIMESTAMP_CONCURRENCY", 4),
		EmbeddingMaxChars:    envutil.Int("EMBEDDING_MAX_CHARS", 8000),
		RunTimeout:           envutil.Duration("PIPELINE_TIMEOUT", 20*time.Minute),
	}
}

// Deps lists the collaborators of a run. Metadata, Index and Graph are
// optional; the others are required.
type Deps struct {
	Metadata    MetadataSource
	Transcripts youtube.TranscriptSource
	Embedder    llm.Client
	Extractor   ConceptExtractor
	Resolver    TimestampResolver
	Index       VideoIndex
	Graph       VideoGraph
	MarkIndexed func(ctx context.Context, videoID string, at time.Time) error
	Metrics     *observability.Metrics
}

type Pipeline struct {
	log  *logger.Logger
	cfg  Config
	deps Deps
}

func New(baseLog *logger.Logger, cfg Config, deps Deps) *Pipeline {
	if cfg.TimestampConcurrency < 1 {
		cfg.TimestampConcurrency = 1
	}
	return &Pipeline{
		log:  baseLog.With("job", "video_process"),
		cfg:  cfg,
		deps: deps,
	}
}

func (p *Pipeline) Type() string { return "video_process" }
