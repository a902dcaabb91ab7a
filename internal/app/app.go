package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/ncertlens-backend/internal/data/db"
	"github.com/yungbote/ncertlens-backend/internal/data/repos"
	types "github.com/yungbote/ncertlens-backend/internal/domain"
	httpx "github.com/yungbote/ncertlens-backend/internal/http"
	"github.com/yungbote/ncertlens-backend/internal/jobs/pipeline/video_process"
	"github.com/yungbote/ncertlens-backend/internal/jobs/queue"
	"github.com/yungbote/ncertlens-backend/internal/jobs/runtime"
	"github.com/yungbote/ncertlens-backend/internal/jobs/worker"
	"github.com/yungbote/ncertlens-backend/internal/modules/curriculum"
	"github.com/yungbote/ncertlens-backend/internal/observability"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/platform/envutil"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *db.Service
	Server   *httpx.Server
	Cfg      Config
	Repos    repos.Set
	Services Services
	Clients  *Clients
	Metrics  *observability.Metrics

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	a := &App{Log: log, Cfg: cfg, Metrics: observability.Init()}
	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel)

	a.DB, err = db.Open(log, cfg.DB)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if cfg.MigrateOnStart {
		if err := db.AutoMigrateAll(a.DB.DB()); err != nil {
			a.Close()
			return nil, fmt.Errorf("automigrate: %w", err)
		}
	}
	a.Repos = wireRepos(a.DB.DB(), log)

	a.Clients, err = wireClients(ctx, log, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	vs, err := resolveVectorStore(ctx, log, cfg.VectorProvider, a.Metrics)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Services, err = wireServices(ctx, a.DB.DB(), log, cfg, a.Repos, a.Clients, vs, a.Metrics)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Server = wireServer(log, cfg, a.Services, a.Metrics)

	if cfg.SeedOnStart {
		if _, err := a.SeedConcepts(ctx); err != nil {
			log.Warn("Concept seeding failed (continuing)", "error", err)
		}
	}
	return a, nil
}

// Start launches the worker pool and the standalone metrics listener.
func (a *App) Start(ctx context.Context) {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Services.Worker != nil {
		a.Services.Worker.Start(ctx)
	}
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
}

// Run serves HTTP until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("HTTP server listening", "addr", a.Cfg.Addr)
	return a.Server.Run(ctx, a.Cfg.Addr, a.Cfg.ShutdownGrace)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.Queue != nil {
		_ = a.Services.Queue.Close()
	}
	if a.Services.Worker != nil {
		a.Services.Worker.Wait()
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.Clients.Close(closeCtx)
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(closeCtx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

// ProcessNow claims and runs one video in the calling goroutine.
func (a *App) ProcessNow(ctx context.Context, videoID string, force bool, subject string, class int) (*video_process.Outcome, error) {
	if !types.IsVideoID(videoID) {
		return nil, fmt.Errorf("invalid video id %q: want an 11 character YouTube id", videoID)
	}
	if a.Services.Pipeline == nil {
		return nil, fmt.Errorf("video processing disabled: no LLM provider configured")
	}
	runID := uuid.NewString()
	claim, err := a.Repos.Videos.Claim(dbctx.New(ctx), videoID, force, runID)
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", videoID, err)
	}
	switch claim.Outcome {
	case repos.ClaimAlreadyCompleted:
		mappings, err := claim.Video.Mappings()
		if err != nil {
			return nil, fmt.Errorf("decode stored mappings: %w", err)
		}
		return &video_process.Outcome{Status: claim.Video.ProcessingStatus, Concepts: len(mappings), Mappings: mappings}, nil
	case repos.ClaimAlreadyRunning:
		return nil, fmt.Errorf("video %s is already processing", videoID)
	}
	job := queue.Job{
		VideoID:    videoID,
		RunID:      runID,
		Subject:    subject,
		Class:      class,
		Force:      force,
		EnqueuedAt: time.Now().UTC(),
	}
	return a.Services.Pipeline.Execute(runtime.NewContext(ctx, a.Log, job, a.Repos.Videos))
}

// SeedConcepts loads the embedded catalog into the database, index and graph.
func (a *App) SeedConcepts(ctx context.Context) (curriculum.SeedResult, error) {
	catalog, err := curriculum.LoadCatalog()
	if err != nil {
		return curriculum.SeedResult{}, fmt.Errorf("load catalog: %w", err)
	}
	return a.Services.Seeder.Seed(ctx, catalog)
}

func (a *App) SweepStale(ctx context.Context) (int64, error) {
	return worker.SweepStale(ctx, a.Log, a.Repos.Videos, a.Cfg.Worker.StaleAfter, a.Metrics)
}
