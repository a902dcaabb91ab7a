package app

import (
	httpx "github.com/yungbote/ncertlens-backend/internal/http"
	httpH "github.com/yungbote/ncertlens-backend/internal/http/handlers"
	"github.com/yungbote/ncertlens-backend/internal/observability"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg Config, svc Services, metrics *observability.Metrics) *httpx.Server {
	log.Info("Wiring router...")
	return httpx.NewServer(httpx.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    cfg.Otel.ServiceName,
		CORSOrigins:    cfg.CORSOrigins,
		VideoHandler:   httpH.NewVideoHandler(svc.Videos),
		AIHandler:      httpH.NewAIHandler(svc.AI),
		ChannelHandler: httpH.NewChannelHandler(svc.Discovery),
		ConceptHandler: httpH.NewConceptHandler(svc.Concepts),
		HealthHandler:  httpH.NewHealthHandler(),
	})
}
