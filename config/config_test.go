package config

import (
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.MatchCount != 10 {
		t.Fatalf("MatchCount = %d", cfg.MatchCount)
	}
	if cfg.HighSimilarity != 0.80 || cfg.LowSimilarity != 0.55 {
		t.Fatalf("thresholds = %v/%v", cfg.HighSimilarity, cfg.LowSimilarity)
	}
	if cfg.MaxResults != 5 || cfg.RRFK != 60 {
		t.Fatalf("MaxResults/RRFK = %d/%d", cfg.MaxResults, cfg.RRFK)
	}
	if cfg.EnableReformulation || cfg.EnableReranking || cfg.EnableFaithfulnessAudit {
		t.Fatal("feature gates should default off")
	}
	if cfg.EmbeddingModel != "text-embedding-3-small" {
		t.Fatalf("EmbeddingModel = %q", cfg.EmbeddingModel)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("THERAPYKB_ENABLE_REFORMULATION", "true")
	t.Setenv("THERAPYKB_ENABLE_RERANKING", "1")
	t.Setenv("THERAPYKB_MATCH_COUNT", "25")
	t.Setenv("THERAPYKB_HIGH_SIMILARITY", "0.9")
	t.Setenv("THERAPYKB_LOW_SIMILARITY", "0.4")
	t.Setenv("THERAPYKB_POSTGRES_DSN", "postgres://localhost/kb")
	t.Setenv("THERAPYKB_ENVIRONMENT", "production")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if !cfg.EnableReformulation || !cfg.EnableReranking {
		t.Fatal("gates not enabled")
	}
	if cfg.MatchCount != 25 {
		t.Fatalf("MatchCount = %d", cfg.MatchCount)
	}
	if cfg.HighSimilarity != 0.9 || cfg.LowSimilarity != 0.4 {
		t.Fatalf("thresholds = %v/%v", cfg.HighSimilarity, cfg.LowSimilarity)
	}
	if cfg.PostgresDSN != "postgres://localhost/kb" {
		t.Fatalf("PostgresDSN = %q", cfg.PostgresDSN)
	}
	if cfg.Environment != "production" {
		t.Fatalf("Environment = %q", cfg.Environment)
	}
}

func TestFromEnvIgnoresMalformedNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("THERAPYKB_MATCH_COUNT", "many")
	t.Setenv("THERAPYKB_HIGH_SIMILARITY", "almost one")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.MatchCount != 10 || cfg.HighSimilarity != 0.80 {
		t.Fatalf("malformed values should fall back to defaults, got %d/%v",
			cfg.MatchCount, cfg.HighSimilarity)
	}
}

func TestValidateRejectsInvertedThresholds(t *testing.T) {
	cfg := Default()
	cfg.LowSimilarity = 0.85
	cfg.HighSimilarity = 0.80

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error when low >= high")
	}
	if !strings.Contains(err.Error(), "low_similarity") {
		t.Fatalf("error %q does not name low_similarity", err)
	}
}

func TestValidateAccumulatesErrors(t *testing.T) {
	cfg := Default()
	cfg.MatchCount = 0
	cfg.MaxResults = -1
	cfg.HighSimilarity = 1.5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"match_count", "max_results", "high_similarity"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error %q missing field %s", err, field)
		}
	}
}

func TestEnvBoolSpellings(t *testing.T) {
	cases := map[string]bool{
		"true": true, "TRUE": true, "yes": true, "on": true, "1": true,
		"false": false, "no": false, "off": false, "0": false,
		"maybe": false,
	}
	for raw, want := range cases {
		t.Setenv("THERAPYKB_TEST_BOOL", raw)
		if got := envBool("THERAPYKB_TEST_BOOL", false); got != want {
			t.Fatalf("envBool(%q) = %v, want %v", raw, got, want)
		}
	}
}

// clearEnv blanks every variable FromEnv reads so a developer's shell cannot
// leak into assertions.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"THERAPYKB_ENABLE_REFORMULATION", "THERAPYKB_ENABLE_RERANKING",
		"THERAPYKB_ENABLE_AUDIT", "THERAPYKB_DEVLOG", "THERAPYKB_DEVLOG_DIR",
		"THERAPYKB_DEVLOG_ECHO", "OPENAI_API_KEY", "OPENAI_BASE_URL",
		"ANTHROPIC_API_KEY", "COHERE_API_KEY", "THERAPYKB_EMBEDDING_MODEL",
		"THERAPYKB_GENERATION_MODEL", "THERAPYKB_RERANK_MODEL",
		"THERAPYKB_MATCH_COUNT", "THERAPYKB_HIGH_SIMILARITY",
		"THERAPYKB_LOW_SIMILARITY", "THERAPYKB_MAX_RESULTS", "THERAPYKB_RRF_K",
		"THERAPYKB_FULLTEXT_WEIGHT", "THERAPYKB_SEMANTIC_WEIGHT",
		"THERAPYKB_POSTGRES_DSN", "THERAPYKB_MONGO_URI", "THERAPYKB_REDIS_ADDR",
		"THERAPYKB_REDIS_DB", "THERAPYKB_DISABLE_TELEMETRY",
		"THERAPYKB_ENVIRONMENT",
	} {
		t.Setenv(key, "")
	}
}
