package app

import (
	"context"
	"fmt"
	"io"

	"github.com/yungbote/ncertlens-backend/internal/platform/envutil"
	"github.com/yungbote/ncertlens-backend/internal/platform/gemini"
	"github.com/yungbote/ncertlens-backend/internal/platform/llm"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
	"github.com/yungbote/ncertlens-backend/internal/platform/neo4jdb"
	"github.com/yungbote/ncertlens-backend/internal/platform/openai"
	"github.com/yungbote/ncertlens-backend/internal/platform/redisx"
	"github.com/yungbote/ncertlens-backend/internal/platform/youtube"
)

// Clients holds the optional external clients. Nil fields mean the dependency is not configured.
type Clients struct {
	LLM     llm.Client
	YouTube *youtube.Client
	Redis   *redisx.Client
	Neo4j   *neo4jdb.Client

	closers []io.Closer
}

type llmFactory func(ctx context.Context, log *logger.Logger) (llm.Client, error)

var (
	newGeminiLLM llmFactory = func(ctx context.Context, log *logger.Logger) (llm.Client, error) {
		c, err := gemini.NewFromEnv(ctx, log)
		if err != nil || c == nil {
			return nil, err
		}
		return c, nil
	}
	newOpenAILLM llmFactory = func(_ context.Context, log *logger.Logger) (llm.Client, error) {
		return openai.NewClient(log)
	}
	openAIConfigured = func() bool { return envutil.String("OPENAI_API_KEY", "") != "" }
)

// selectLLM resolves LLM_PROVIDER. auto prefers Gemini, then OpenAI, then none.
func selectLLM(ctx context.Context, log *logger.Logger, provider string) (llm.Client, error) {
	switch provider {
	case LLMProviderNone:
		return nil, nil
	case LLMProviderGemini:
		c, err := newGeminiLLM(ctx, log)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, fmt.Errorf("LLM_PROVIDER=gemini requires GEMINI_API_KEY")
		}
		return c, nil
	case LLMProviderOpenAI:
		return newOpenAILLM(ctx, log)
	case LLMProviderAuto, "":
		c, err := newGeminiLLM(ctx, log)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return c, nil
		}
		if openAIConfigured() {
			return newOpenAILLM(ctx, log)
		}
		log.Warn("No LLM provider configured; AI features disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", provider)
	}
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (*Clients, error) {
	out := &Clients{}

	ai, err := selectLLM(ctx, log, cfg.LLMProvider)
	if err != nil {
		return nil, fmt.Errorf("init llm: %w", err)
	}
	if ai != nil {
		out.LLM = ai
		if c, ok := ai.(io.Closer); ok {
			out.closers = append(out.closers, c)
		}
		log.Info("LLM provider ready", "provider", ai.Provider())
	}

	yt, err := youtube.NewFromEnv(ctx, log)
	if err != nil {
		out.Close(ctx)
		return nil, fmt.Errorf("init youtube: %w", err)
	}
	if yt == nil {
		log.Warn("YOUTUBE_API_KEY not set; metadata and channel discovery disabled")
	}
	out.YouTube = yt

	rc, err := redisx.NewFromEnv(log)
	if err != nil {
		out.Close(ctx)
		return nil, fmt.Errorf("init redis: %w", err)
	}
	if rc != nil {
		out.Redis = rc
		out.closers = append(out.closers, rc)
	}

	nc, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		out.Close(ctx)
		return nil, fmt.Errorf("init neo4j: %w", err)
	}
	out.Neo4j = nc

	return out, nil
}

func (c *Clients) Close(ctx context.Context) {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i].Close()
	}
	c.closers = nil
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(ctx)
	}
}
