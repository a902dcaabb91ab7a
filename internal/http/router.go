package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/ncertlens-backend/internal/http/handlers"
	httpMW "github.com/yungbote/ncertlens-backend/internal/http/middleware"
	"github.com/yungbote/ncertlens-backend/internal/observability"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics
	// ServiceName enables otelgin spans when set.
	ServiceName string
	CORSOrigins []string

	VideoHandler   *httpH.VideoHandler
	AIHandler      *httpH.AIHandler
	ChannelHandler *httpH.ChannelHandler
	ConceptHandler *httpH.ConceptHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = httpMW.AllowedOrigins()
	}
	r.Use(httpMW.CORS(origins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	{
		// Videos
		if cfg.VideoHandler != nil {
			api.POST("/videos/process", cfg.VideoHandler.Process)
			api.GET("/videos/:videoId", cfg.VideoHandler.Get)
			api.GET("/videos/:videoId/status", cfg.VideoHandler.Status)
			api.GET("/videos/:videoId/ncert-mappings", cfg.VideoHandler.MappingsAt)
			api.GET("/videos/:videoId/transcript/search", cfg.VideoHandler.SearchTranscript)
		}

		// AI
		if cfg.AIHandler != nil {
			api.POST("/ai/find-ncert-concepts", cfg.AIHandler.FindConcepts)
			api.POST("/ai/search-similar-videos", cfg.AIHandler.SearchSimilarVideos)
			api.GET("/ai/videos/:videoId/ncert-concepts", cfg.AIHandler.VideoConcepts)
			api.GET("/ai/videos/:videoId/summary", cfg.AIHandler.Summary)
			api.POST("/ai/generate-embedding", cfg.AIHandler.GenerateEmbedding)
			api.POST("/ai/extract-keywords", cfg.AIHandler.ExtractKeywords)
			api.GET("/ai/vector-db/info", cfg.AIHandler.VectorInfo)
			api.GET("/ai/health", cfg.AIHandler.Health)
		}

		// Channels
		if cfg.ChannelHandler != nil {
			api.POST("/channels/:channelId/discover", cfg.ChannelHandler.Discover)
		}

		// Concepts
		if cfg.ConceptHandler != nil {
			api.GET("/concepts", cfg.ConceptHandler.List)
			api.GET("/concepts/:conceptId", cfg.ConceptHandler.Get)
			api.GET("/concepts/:conceptId/videos", cfg.ConceptHandler.Videos)
		}
	}

	return r
}
