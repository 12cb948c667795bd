// Package config builds the process configuration once, upfront, from the
// environment. Nothing else in the module reads environment variables at call
// time; every feature gate and tuning value flows down explicitly.
package config

import (
	"os"
	"strconv"
	"strings"
)

// EmbeddingDimension is the vector size used across embedding, storage, and
// search. It must match the dimension the corpus was embedded with: a mismatch
// does not error, it silently corrupts similarity scores.
const EmbeddingDimension = 512

// Config is the full process configuration.
type Config struct {
	// Feature gates.
	EnableReformulation     bool
	EnableReranking         bool
	EnableFaithfulnessAudit bool
	DevLogEnabled           bool
	DevLogDir               string
	DevLogEcho              bool

	// Collaborator credentials and models.
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	GeminiAPIKey    string
	CohereAPIKey    string
	EmbeddingModel  string
	GenerationModel string
	RerankModel     string

	// Retrieval tuning. Provisional values carried as configuration because
	// they are expected to be retuned against evaluation sets.
	MatchCount     int
	HighSimilarity float64
	LowSimilarity  float64
	MaxResults     int
	RRFK           int
	FullTextWeight float64
	SemanticWeight float64

	// Storage.
	PostgresDSN string
	MongoURI    string
	RedisAddr   string
	RedisDB     int

	// Telemetry.
	DisableTelemetry bool
	Environment      string
}

// Default returns the configuration with every tunable at its current default.
func Default() *Config {
	return &Config{
		DevLogDir:       "devlogs",
		EmbeddingModel:  "text-embedding-3-small",
		GenerationModel: "gpt-4o-mini",
		RerankModel:     "rerank-english-v3.0",
		MatchCount:      10,
		HighSimilarity:  0.80,
		LowSimilarity:   0.55,
		MaxResults:      5,
		RRFK:            60,
		FullTextWeight:  1.0,
		SemanticWeight:  1.0,
		Environment:     "development",
	}
}

// FromEnv constructs the configuration from the environment, applying defaults
// for anything unset, and validates it.
func FromEnv() (*Config, error) {
	cfg := Default()

	cfg.EnableReformulation = envBool("THERAPYKB_ENABLE_REFORMULATION", false)
	cfg.EnableReranking = envBool("THERAPYKB_ENABLE_RERANKING", false)
	cfg.EnableFaithfulnessAudit = envBool("THERAPYKB_ENABLE_AUDIT", false)
	cfg.DevLogEnabled = envBool("THERAPYKB_DEVLOG", false)
	cfg.DevLogDir = envString("THERAPYKB_DEVLOG_DIR", cfg.DevLogDir)
	cfg.DevLogEcho = envBool("THERAPYKB_DEVLOG_ECHO", false)

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.CohereAPIKey = os.Getenv("COHERE_API_KEY")
	cfg.EmbeddingModel = envString("THERAPYKB_EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.GenerationModel = envString("THERAPYKB_GENERATION_MODEL", cfg.GenerationModel)
	cfg.RerankModel = envString("THERAPYKB_RERANK_MODEL", cfg.RerankModel)

	cfg.MatchCount = envInt("THERAPYKB_MATCH_COUNT", cfg.MatchCount)
	cfg.HighSimilarity = envFloat("THERAPYKB_HIGH_SIMILARITY", cfg.HighSimilarity)
	cfg.LowSimilarity = envFloat("THERAPYKB_LOW_SIMILARITY", cfg.LowSimilarity)
	cfg.MaxResults = envInt("THERAPYKB_MAX_RESULTS", cfg.MaxResults)
	cfg.RRFK = envInt("THERAPYKB_RRF_K", cfg.RRFK)
	cfg.FullTextWeight = envFloat("THERAPYKB_FULLTEXT_WEIGHT", cfg.FullTextWeight)
	cfg.SemanticWeight = envFloat("THERAPYKB_SEMANTIC_WEIGHT", cfg.SemanticWeight)

	cfg.PostgresDSN = os.Getenv("THERAPYKB_POSTGRES_DSN")
	cfg.MongoURI = os.Getenv("THERAPYKB_MONGO_URI")
	cfg.RedisAddr = os.Getenv("THERAPYKB_REDIS_ADDR")
	cfg.RedisDB = envInt("THERAPYKB_REDIS_DB", 0)

	cfg.DisableTelemetry = envBool("THERAPYKB_DISABLE_TELEMETRY", false)
	cfg.Environment = envString("THERAPYKB_ENVIRONMENT", cfg.Environment)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks internal consistency of the tuning values.
func (c *Config) Validate() error {
	v := NewValidator()
	v.RequirePositive("match_count", c.MatchCount)
	v.RequirePositive("max_results", c.MaxResults)
	v.RequirePositive("rrf_k", c.RRFK)
	v.ValidateFloatRange("high_similarity", c.HighSimilarity, 0, 1)
	v.ValidateFloatRange("low_similarity", c.LowSimilarity, 0, 1)
	v.ValidateFloatRange("fulltext_weight", c.FullTextWeight, 0, 10)
	v.ValidateFloatRange("semantic_weight", c.SemanticWeight, 0, 10)
	if c.LowSimilarity >= c.HighSimilarity {
		v.ValidateFloatRange("low_similarity", c.LowSimilarity, 0, c.HighSimilarity)
	}
	return v.Error()
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return fallback
	}
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}

func envInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
