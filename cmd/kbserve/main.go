// Command kbserve runs the knowledge base MCP server over stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/thomassleeman/therapy-app-sub000/audit"
	"github.com/thomassleeman/therapy-app-sub000/confidence"
	"github.com/thomassleeman/therapy-app-sub000/config"
	"github.com/thomassleeman/therapy-app-sub000/contrib/corpus/pg"
	cacheembed "github.com/thomassleeman/therapy-app-sub000/contrib/embedder/cache"
	openaiembed "github.com/thomassleeman/therapy-app-sub000/contrib/embedder/openai"
	claudegen "github.com/thomassleeman/therapy-app-sub000/contrib/generate/claude"
	geminigen "github.com/thomassleeman/therapy-app-sub000/contrib/generate/gemini"
	openaigen "github.com/thomassleeman/therapy-app-sub000/contrib/generate/openai"
	"github.com/thomassleeman/therapy-app-sub000/contrib/rerank/cohere"
	"github.com/thomassleeman/therapy-app-sub000/devlog"
	"github.com/thomassleeman/therapy-app-sub000/fusion"
	"github.com/thomassleeman/therapy-app-sub000/generate"
	"github.com/thomassleeman/therapy-app-sub000/mcpserver"
	"github.com/thomassleeman/therapy-app-sub000/pkg/logging"
	"github.com/thomassleeman/therapy-app-sub000/pkg/telemetry"
	"github.com/thomassleeman/therapy-app-sub000/promptctx"
	"github.com/thomassleeman/therapy-app-sub000/reformulate"
	"github.com/thomassleeman/therapy-app-sub000/rerank"
	"github.com/thomassleeman/therapy-app-sub000/retrieval"
)

func main() {
	cmd := &cobra.Command{
		Use:          "kbserve",
		Short:        "Serve the therapy knowledge base as MCP tools over stdio",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return run(cmd.Context(), envFile)
		},
	}
	cmd.Flags().String("env-file", ".env", "environment file to load before reading configuration")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, envFile string) error {
	// Missing .env is fine: production supplies real environment variables.
	_ = godotenv.Load(envFile)

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.WithComponent("kbserve")

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "therapy-kb",
		ServiceVersion: mcpserver.Version,
		Environment:    cfg.Environment,
		Disable:        cfg.DisableTelemetry,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	if cfg.PostgresDSN == "" {
		return fmt.Errorf("THERAPYKB_POSTGRES_DSN is required")
	}
	store, err := pg.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	var embedder retrieval.Embedder = openaiembed.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL,
		openaiembed.WithModel(cfg.EmbeddingModel))
	if cfg.RedisAddr != "" {
		cached := cacheembed.New(embedder, cacheembed.Config{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		defer cached.Close()
		embedder = cached
	}

	opts := []retrieval.Option{
		retrieval.WithMatchCount(cfg.MatchCount),
		retrieval.WithWeights(cfg.FullTextWeight, cfg.SemanticWeight),
		retrieval.WithSearchRRFK(cfg.RRFK),
		retrieval.WithMerger(fusion.New(fusion.WithRRFK(cfg.RRFK))),
		retrieval.WithAssessor(confidence.NewAssessor(confidence.WithThresholds(confidence.Thresholds{
			High:       cfg.HighSimilarity,
			Low:        cfg.LowSimilarity,
			MaxResults: cfg.MaxResults,
		}))),
		retrieval.WithFormatter(promptctx.New(promptctx.WithMaxChunks(cfg.MaxResults))),
	}

	generator := generationClient(cfg)
	if generator != nil {
		opts = append(opts, retrieval.WithReformulator(
			reformulate.New(generator, reformulate.WithEnabled(cfg.EnableReformulation))))
	}

	var rerankClient rerank.Client
	if cfg.CohereAPIKey != "" {
		rerankClient = cohere.New(cfg.CohereAPIKey, cohere.WithModel(cfg.RerankModel))
	}
	opts = append(opts, retrieval.WithReranker(
		rerank.New(rerankClient, rerank.WithEnabled(cfg.EnableReranking))))

	if cfg.DevLogEnabled {
		recorder, err := devlog.NewFile(cfg.DevLogDir, cfg.DevLogEcho)
		if err != nil {
			logger.Warn("devlog disabled", "error", err)
		} else {
			defer recorder.Close()
			opts = append(opts, retrieval.WithRecorder(recorder))
		}
	}

	orchestrator := retrieval.NewOrchestrator(store, embedder, opts...)

	var serverOpts []mcpserver.Option
	if cfg.EnableFaithfulnessAudit && generator != nil {
		serverOpts = append(serverOpts, mcpserver.WithAuditor(
			audit.New(generator, audit.WithEnabled(true))))
	}
	server := mcpserver.New(orchestrator, serverOpts...)

	logger.Info("serving knowledge base over stdio",
		"reformulation", cfg.EnableReformulation,
		"reranking", cfg.EnableReranking)
	return server.RunStdio(ctx, "therapy-kb")
}

// generationClient picks the provider for reformulation by available
// credential, preferring OpenAI.
func generationClient(cfg *config.Config) generate.Client {
	switch {
	case cfg.OpenAIAPIKey != "":
		return openaigen.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL,
			openaigen.WithModel(cfg.GenerationModel))
	case cfg.AnthropicAPIKey != "":
		return claudegen.New(cfg.AnthropicAPIKey, "")
	case cfg.GeminiAPIKey != "":
		return geminigen.New(cfg.GeminiAPIKey)
	default:
		return nil
	}
}
