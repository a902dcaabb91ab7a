package app

import (
	"strings"
	"time"

	"github.com/yungbote/ncertlens-backend/internal/data/db"
	httpMW "github.com/yungbote/ncertlens-backend/internal/http/middleware"
	"github.com/yungbote/ncertlens-backend/internal/jobs/pipeline/video_process"
	"github.com/yungbote/ncertlens-backend/internal/jobs/worker"
	"github.com/yungbote/ncertlens-backend/internal/observability"
	"github.com/yungbote/ncertlens-backend/internal/platform/envutil"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
	"github.com/yungbote/ncertlens-backend/internal/platform/retry"
)

const (
	LLMProviderAuto   = "auto"
	LLMProviderGemini = "gemini"
	LLMProviderOpenAI = "openai"
	LLMProviderNone   = "none"
)

type Config struct {
	Addr          string
	ShutdownGrace time.Duration

	LLMProvider    string
	VectorProvider string

	DB             db.Config
	MigrateOnStart bool
	SeedOnStart    bool

	Worker     worker.Config
	Pipeline   video_process.Config
	RunWorkers bool

	TranscriptLanguage string
	TranscriptBaseURL  string
	TranscriptTimeout  time.Duration
	TranscriptCacheTTL time.Duration
	TranscriptRetry    retry.Config

	CORSOrigins []string
	MetricsAddr string
	Otel        observability.OtelConfig
}

func LoadConfig(log *logger.Logger) Config {
	addr := envutil.String("HTTP_ADDR", "")
	if addr == "" {
		addr = ":" + envutil.String("PORT", "8080")
	}
	cfg := Config{
		Addr:          addr,
		ShutdownGrace: envutil.Duration("SHUTDOWN_GRACE", 15*time.Second),

		LLMProvider:    strings.ToLower(envutil.String("LLM_PROVIDER", LLMProviderAuto)),
		VectorProvider: defaultVectorProvider(),

		DB:             db.ConfigFromEnv(),
		MigrateOnStart: envutil.Bool("DB_MIGRATE_ON_START", true),
		SeedOnStart:    envutil.Bool("SEED_CONCEPTS_ON_START", false),

		Worker:     worker.ConfigFromEnv(),
		Pipeline:   video_process.ConfigFromEnv(),
		RunWorkers: envutil.Bool("RUN_WORKERS", true),

		TranscriptLanguage: envutil.String("TRANSCRIPT_LANGUAGE", "en"),
		TranscriptBaseURL:  envutil.String("TRANSCRIPT_BASE_URL", ""),
		TranscriptTimeout:  envutil.Duration("TRANSCRIPT_TIMEOUT", 15*time.Second),
		TranscriptCacheTTL: envutil.Duration("TRANSCRIPT_CACHE_TTL", 24*time.Hour),
		TranscriptRetry: retry.Config{
			Attempts:  envutil.Int("TRANSCRIPT_RETRY_ATTEMPTS", 3),
			BaseDelay: envutil.Duration("TRANSCRIPT_RETRY_BASE", time.Second),
		},

		CORSOrigins: httpMW.AllowedOrigins(),
		MetricsAddr: envutil.String("METRICS_ADDR", ""),
		Otel:        observability.OtelConfigFromEnv(),
	}
	if log != nil {
		log.Info("Loaded config",
			"addr", cfg.Addr,
			"db_driver", cfg.DB.Driver,
			"llm_provider", cfg.LLMProvider,
			"vector_provider", cfg.VectorProvider,
			"run_workers", cfg.RunWorkers,
			"worker_concurrency", cfg.Worker.Concurrency,
		)
	}
	return cfg
}

// defaultVectorProvider picks qdrant when QDRANT_URL is set so local runs work without a vector DB.
func defaultVectorProvider() string {
	if v := strings.ToLower(envutil.String("VECTOR_PROVIDER", "")); v != "" {
		return v
	}
	if envutil.String("QDRANT_URL", "") != "" {
		return VectorProviderQdrant
	}
	return VectorProviderNone
}
