package app

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/ncertlens-backend/internal/data/graph"
	"github.com/yungbote/ncertlens-backend/internal/data/repos"
	"github.com/yungbote/ncertlens-backend/internal/jobs/pipeline/video_process"
	"github.com/yungbote/ncertlens-backend/internal/jobs/queue"
	"github.com/yungbote/ncertlens-backend/internal/jobs/worker"
	"github.com/yungbote/ncertlens-backend/internal/modules/concepts"
	"github.com/yungbote/ncertlens-backend/internal/modules/curriculum"
	"github.com/yungbote/ncertlens-backend/internal/modules/similarity"
	"github.com/yungbote/ncertlens-backend/internal/observability"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
	"github.com/yungbote/ncertlens-backend/internal/platform/redisx"
	"github.com/yungbote/ncertlens-backend/internal/platform/youtube"
	"github.com/yungbote/ncertlens-backend/internal/services"
)

type Services struct {
	Videos    services.VideoService
	AI        services.AIService
	Discovery services.DiscoveryService
	Concepts  services.ConceptService
	Reindex   services.ReindexService

	Seeder   *curriculum.Seeder
	Pipeline *video_process.Pipeline
	Worker   *worker.Worker
	Queue    queue.Queue
	Index    *similarity.Index
	Graph    *graph.VideoGraph
}

func wireServices(
	ctx context.Context,
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	rs repos.Set,
	clients *Clients,
	vs *vectorStore,
	metrics *observability.Metrics,
) (Services, error) {
	log.Info("Wiring services...")
	out := Services{}

	q, err := queue.FromEnv(log, clients.Redis)
	if err != nil {
		return out, fmt.Errorf("init job queue: %w", err)
	}
	out.Queue = q

	// optional collaborators stay untyped nil when absent
	var (
		videoIndex   video_process.VideoIndex
		conceptIndex curriculum.ConceptIndex
		searchIndex  services.SimilaritySearch
		videoIndexer services.VideoIndexer
		videoGraph   video_process.VideoGraph
		conceptGraph curriculum.ConceptGraph
		graphReader  services.ConceptVideoGraph
		metadata     video_process.MetadataSource
		channels     services.ChannelLister
		analysis     services.ConceptAI
	)
	if vs != nil {
		out.Index = similarity.New(log, vs.Store, rs.Points, vs.VideoCollection, vs.ConceptCollection)
		videoIndex, conceptIndex, searchIndex, videoIndexer = out.Index, out.Index, out.Index, out.Index
	}
	if g := graph.NewVideoGraph(clients.Neo4j, log); g != nil {
		g.EnsureSchema(ctx)
		out.Graph = g
		videoGraph, conceptGraph, graphReader = g, g, g
	}
	if clients.YouTube != nil {
		metadata, channels = clients.YouTube, clients.YouTube
	}

	out.Seeder = curriculum.NewSeeder(log, rs.Concepts, clients.LLM, conceptIndex, conceptGraph)

	if clients.LLM != nil {
		extractor := concepts.NewExtractor(log, clients.LLM)
		analysis = extractor
		out.Pipeline = video_process.New(log, cfg.Pipeline, video_process.Deps{
			Metadata:    metadata,
			Transcripts: wireTranscripts(log, cfg, clients.Redis),
			Embedder:    clients.LLM,
			Extractor:   extractor,
			Resolver:    concepts.NewTimestampResolver(log, clients.LLM),
			Index:       videoIndex,
			Graph:       videoGraph,
			MarkIndexed: func(ctx context.Context, videoID string, at time.Time) error {
				return rs.Videos.MarkIndexed(dbctx.New(ctx), videoID, at)
			},
			Metrics: metrics,
		})
		if cfg.RunWorkers {
			out.Worker = worker.NewWorker(log, cfg.Worker, q, out.Pipeline, rs.Videos, metrics)
		}
	} else {
		log.Warn("Video processing disabled: no LLM provider")
	}

	// without a pipeline nothing would drain the queue, so process requests are refused
	var processQueue queue.Queue
	if out.Pipeline != nil {
		processQueue = q
	}
	out.Videos = services.NewVideoService(log, rs.Videos, processQueue)

	probes := []services.HealthProbe{
		{Name: "database", Required: true, Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
		services.LLMProbe(clients.LLM),
		{Name: "vectorDb", Required: true},
		{Name: "redis"},
		{Name: "neo4j"},
	}
	if out.Index != nil {
		probes[2].Check = out.Index.Ping
	}
	if clients.Redis != nil {
		probes[3].Check = clients.Redis.Ping
	}
	if clients.Neo4j != nil {
		probes[4].Check = clients.Neo4j.Ping
	}
	out.AI = services.NewAIService(log, services.AIDeps{
		LLM:      clients.LLM,
		Analysis: analysis,
		Index:    searchIndex,
		Videos:   rs.Videos,
		Concepts: rs.Concepts,
		Probes:   probes,
	})

	out.Discovery = services.NewDiscoveryService(log, channels, rs.Videos)
	out.Concepts = services.NewConceptService(log, rs.Concepts, graphReader)
	out.Reindex = services.NewReindexService(log, rs.Videos, videoIndexer, out.Seeder, clients.LLM, metrics, cfg.Pipeline.EmbeddingMaxChars)

	return out, nil
}

func wireTranscripts(log *logger.Logger, cfg Config, rc *redisx.Client) youtube.TranscriptSource {
	opts := []youtube.SourceOption{
		youtube.WithRetry(cfg.TranscriptRetry),
		youtube.WithLanguage(cfg.TranscriptLanguage),
	}
	if rc != nil && cfg.TranscriptCacheTTL > 0 {
		opts = append(opts, youtube.WithCache(redisx.NewCache(rc, "ncertlens:"), cfg.TranscriptCacheTTL))
	}
	fetcher := youtube.NewTimedtextClient(log, cfg.TranscriptBaseURL, cfg.TranscriptTimeout)
	return youtube.NewRetryingTranscriptSource(log, fetcher, opts...)
}
