package app

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/ncertlens-backend/internal/platform/llm"
	"github.com/yungbote/ncertlens-backend/internal/platform/logger"
)

type namedLLM string

func (n namedLLM) GenerateText(context.Context, string, string) (string, error) { return "", nil }
func (n namedLLM) Embed(context.Context, []string) ([][]float32, error) { return nil, nil }
func (n namedLLM) Provider() string { return string(n) }

func stubLLMFactories(t *testing.T, gem, oa llm.Client, oaConfigured bool) *int {
	t.Helper()
	origGem, origOA, origConfigured := newGeminiLLM, newOpenAILLM, openAIConfigured
	t.Cleanup(func() {
		newGeminiLLM, newOpenAILLM, openAIConfigured = origGem, origOA, origConfigured
	})
	oaCalls := 0
	newGeminiLLM = func(context.Context, *logger.Logger) (llm.Client, error) { return gem, nil }
	newOpenAILLM = func(context.Context, *logger.Logger) (llm.Client, error) {
		oaCalls++
		if oa == nil {
			return nil, errors.New("missing OPENAI_API_KEY")
		}
		return oa, nil
	}
	openAIConfigured = func() bool { return oaConfigured }
	return &oaCalls
}

func TestSelectLLMAutoPrefersGemini(t *testing.T) {
	calls := stubLLMFactories(t, namedLLM("gemini"), namedLLM("openai"), true)
	c, err := selectLLM(context.Background(), testLogger(t), LLMProviderAuto)
	if err != nil {
		t.Fatalf("selectLLM: %v", err)
	}
	if c == nil || c.Provider() != "gemini" {
		t.Fatalf("provider: want=gemini got=%v", c)
	}
	if *calls != 0 {
		t.Fatalf("openai should not be built; calls=%d", *calls)
	}
}

func TestSelectLLMAutoFallsBack(t *testing.T) {
	stubLLMFactories(t, nil, namedLLM("openai"), true)
	c, err := selectLLM(context.Background(), testLogger(t), LLMProviderAuto)
	if err != nil || c == nil || c.Provider() != "openai" {
		t.Fatalf("fallback: want openai got=%v err=%v", c, err)
	}

	stubLLMFactories(t, nil, nil, false)
	c, err = selectLLM(context.Background(), testLogger(t), LLMProviderAuto)
	if err != nil || c != nil {
		t.Fatalf("nothing configured: want nil,nil got=%v,%v", c, err)
	}
}

func TestSelectLLMExplicitProviders(t *testing.T) {
	stubLLMFactories(t, nil, nil, false)
	if _, err := selectLLM(context.Background(), testLogger(t), LLMProviderGemini); err == nil {
		t.Fatalf("gemini without key: want error")
	}
	if _, err := selectLLM(context.Background(), testLogger(t), LLMProviderOpenAI); err == nil {
		t.Fatalf("openai without key: want error")
	}
	if _, err := selectLLM(context.Background(), testLogger(t), "claude"); err == nil {
		t.Fatalf("unknown provider: want error")
	}
	if c, err := selectLLM(context.Background(), testLogger(t), LLMProviderNone); c != nil || err != nil {
		t.Fatalf("none: want nil,nil got=%v,%v", c, err)
	}
}
