package app

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "PORT", "VECTOR_PROVIDER", "QDRANT_URL", "LLM_PROVIDER", "TRANSCRIPT_RETRY_ATTEMPTS"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig(nil)
	if cfg.Addr != ":8080" {
		t.Fatalf("addr: want=:8080 got=%s", cfg.Addr)
	}
	if cfg.VectorProvider != VectorProviderNone || cfg.LLMProvider != LLMProviderAuto {
		t.Fatalf("providers: got vector=%s llm=%s", cfg.VectorProvider, cfg.LLMProvider)
	}
	if cfg.TranscriptRetry.Attempts != 3 || cfg.TranscriptRetry.BaseDelay != time.Second {
		t.Fatalf("retry: got=%+v", cfg.TranscriptRetry)
	}
	if !cfg.RunWorkers || !cfg.MigrateOnStart {
		t.Fatalf("flags: got run_workers=%v migrate=%v", cfg.RunWorkers, cfg.MigrateOnStart)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("PORT", "9090")
	t.Setenv("VECTOR_PROVIDER", "")
	t.Setenv("QDRANT_URL", "http://qdrant:6333")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("RUN_WORKERS", "false")

	cfg := LoadConfig(nil)
	if cfg.Addr != ":9090" {
		t.Fatalf("addr: want=:9090 got=%s", cfg.Addr)
	}
	if cfg.VectorProvider != VectorProviderQdrant {
		t.Fatalf("vector provider: want=qdrant got=%s", cfg.VectorProvider)
	}
	if cfg.LLMProvider != LLMProviderOpenAI {
		t.Fatalf("llm provider: want=openai got=%s", cfg.LLMProvider)
	}
	if cfg.RunWorkers {
		t.Fatalf("RUN_WORKERS=false: want workers off")
	}
}
