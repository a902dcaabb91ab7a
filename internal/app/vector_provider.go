package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"strings"
	"time"

	"github.com/yungbote/ncertlens-backend/internal/modules/similarity"
	"github.com/yungbote/ncertlens-backend/internal/observability"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
	"github.com/yungbote/ncertlens-backend/internal/platform/qdrant"
)

const (
	VectorProviderQdrant = "qdrant"
	VectorProviderNone   = "none"
)

var (
	resolveQdrantConfig = qdrant.ResolveConfigFromEnv
	newQdrantStore      = func(log *logger.Logger, cfg qdrant.Config) (similarity.Store, error) {
		c, err := qdrant.New(log, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
)

type VectorProviderBootstrapErrorCode string

const (
	VectorProviderBootstrapErrorInvalidProvider     VectorProviderBootstrapErrorCode = "invalid_provider"
	VectorProviderBootstrapErrorMissingQdrantURL    VectorProviderBootstrapErrorCode = "missing_qdrant_url"
	VectorProviderBootstrapErrorInvalidQdrantURL    VectorProviderBootstrapErrorCode = "invalid_qdrant_url"
	VectorProviderBootstrapErrorMissingQdrantColl   VectorProviderBootstrapErrorCode = "missing_qdrant_collection"
	VectorProviderBootstrapErrorInvalidQdrantVector VectorProviderBootstrapErrorCode = "invalid_qdrant_vector_dim"
	VectorProviderBootstrapErrorQdrantConfigFailed  VectorProviderBootstrapErrorCode = "qdrant_config_failed"
	VectorProviderBootstrapErrorConnectFailed       VectorProviderBootstrapErrorCode = "connect_failed"
	VectorProviderBootstrapErrorProviderInitFailed  VectorProviderBootstrapErrorCode = "provider_init_failed"
)

type VectorProviderBootstrapError struct {
	Code     VectorProviderBootstrapErrorCode
	Provider string
	Cause    error
}

func (e *VectorProviderBootstrapError) Error() string {
	if e == nil {
		return "vector provider bootstrap failed"
	}
	return fmt.Sprintf("vector provider bootstrap failed (code=%s provider=%q): %v", e.Code, e.Provider, e.Cause)
}

func (e *VectorProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// vectorStore is the resolved store plus the collection names it serves.
type vectorStore struct {
	Store             similarity.Store
	VideoCollection   string
	ConceptCollection string
	VectorDim         int
}

// resolveVectorStore returns nil, nil for the none provider. A configured qdrant
// that cannot be reached or whose collections cannot be created is a bootstrap error.
func resolveVectorStore(ctx context.Context, log *logger.Logger, provider string, metrics *observability.Metrics) (*vectorStore, error) {
	provider = strings.TrimSpace(strings.ToLower(provider))
	switch provider {
	case VectorProviderNone, "":
		log.Warn("Vector provider disabled; similarity search unavailable")
		return nil, nil

	case VectorProviderQdrant:
		cfg, err := resolveQdrantConfig()
		if err != nil {
			return nil, bootstrapFailed(log, provider, err)
		}
		log.Info(
			"Selecting vector store provider",
			"provider", provider,
			"qdrant_url", cfg.URL,
			"video_collection", cfg.VideoCollection,
			"concept_collection", cfg.ConceptCollection,
			"vector_dim", cfg.VectorDim,
		)
		store, err := newQdrantStore(log, cfg)
		if err != nil {
			return nil, bootstrapFailed(log, provider, err)
		}
		store = instrumentVectorStore(store, metrics)

		readyCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := store.Ping(readyCtx); err != nil {
			return nil, bootstrapFailed(log, provider, fmt.Errorf("ready check failed: %w", err))
		}
		for _, name := range []string{cfg.VideoCollection, cfg.ConceptCollection} {
			if err := store.EnsureCollection(readyCtx, name); err != nil {
				return nil, bootstrapFailed(log, provider, fmt.Errorf("ensure collection %s: %w", name, err))
			}
		}
		return &vectorStore{
			Store:             store,
			VideoCollection:   cfg.VideoCollection,
			ConceptCollection: cfg.ConceptCollection,
			VectorDim:         cfg.VectorDim,
		}, nil

	default:
		err := &VectorProviderBootstrapError{
			Code:     VectorProviderBootstrapErrorInvalidProvider,
			Provider: provider,
			Cause:    fmt.Errorf("unsupported vector provider %q", provider),
		}
		log.Error("Vector store provider selection failed", "provider", provider, "error_code", err.Code, "error", err)
		return nil, err
	}
}

func bootstrapFailed(log *logger.Logger, provider string, err error) error {
	classified := classifyVectorProviderBootstrapError(provider, err)
	log.Error(
		"Vector store provider bootstrap failed",
		"provider", provider,
		"error_code", vectorProviderBootstrapErrorCode(classified),
		"error", classified,
	)
	return classified
}

func classifyVectorProviderBootstrapError(provider string, err error) error {
	wrap := func(code VectorProviderBootstrapErrorCode) error {
		return &VectorProviderBootstrapError{Code: code, Provider: provider, Cause: err}
	}

	var cfgErr *qdrant.ConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case qdrant.ConfigErrorMissingURL:
			return wrap(VectorProviderBootstrapErrorMissingQdrantURL)
		case qdrant.ConfigErrorInvalidURL:
			return wrap(VectorProviderBootstrapErrorInvalidQdrantURL)
		case qdrant.ConfigErrorMissingCollection:
			return wrap(VectorProviderBootstrapErrorMissingQdrantColl)
		case qdrant.ConfigErrorInvalidVectorDim:
			return wrap(VectorProviderBootstrapErrorInvalidQdrantVector)
		default:
			return wrap(VectorProviderBootstrapErrorQdrantConfigFailed)
		}
	}

	var urlErr *neturl.Error
	if errors.As(err, &urlErr) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	errLower := strings.ToLower(err.Error())
	if strings.Contains(errLower, "ready check failed") || strings.Contains(errLower, "connection refused") {
		return wrap(VectorProviderBootstrapErrorConnectFailed)
	}
	return wrap(VectorProviderBootstrapErrorProviderInitFailed)
}

func vectorProviderBootstrapErrorCode(err error) VectorProviderBootstrapErrorCode {
	var bootstrapErr *VectorProviderBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return VectorProviderBootstrapErrorConnectFailed
}
