// Command kbingest loads source documents into the knowledge base: parse
// frontmatter, chunk by category, embed child chunks, and replace each
// document in the store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/thomassleeman/therapy-app-sub000/config"
	kbmongo "github.com/thomassleeman/therapy-app-sub000/contrib/corpus/mongo"
	"github.com/thomassleeman/therapy-app-sub000/contrib/corpus/pg"
	openaiembed "github.com/thomassleeman/therapy-app-sub000/contrib/embedder/openai"
	openaigen "github.com/thomassleeman/therapy-app-sub000/contrib/generate/openai"
	"github.com/thomassleeman/therapy-app-sub000/corpus"
	"github.com/thomassleeman/therapy-app-sub000/ingest"
	"github.com/thomassleeman/therapy-app-sub000/pkg/logging"
)

func main() {
	root := &cobra.Command{
		Use:          "kbingest",
		Short:        "Manage therapy knowledge base content",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("env-file", ".env", "environment file to load before reading configuration")
	root.PersistentFlags().String("store", "postgres", "corpus store backend (postgres or mongo)")

	root.AddCommand(ingestCmd(), deleteCmd(), countCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <source-dir>",
		Short: "Ingest every .md and .html document under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, closeStore, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			embedder := openaiembed.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL,
				openaiembed.WithModel(cfg.EmbeddingModel))

			var opts []ingest.Option
			if cfg.OpenAIAPIKey != "" {
				opts = append(opts, ingest.WithTitleGenerator(
					openaigen.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL,
						openaigen.WithModel(cfg.GenerationModel))))
			}

			report, err := ingest.New(store, embedder, opts...).Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			logging.WithComponent("kbingest").Info("ingestion complete",
				"documents", report.Documents,
				"chunks", report.Chunks,
				"parents", report.Parents,
				"skipped", len(report.Skipped))
			for _, path := range report.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %s\n", path)
			}
			return nil
		},
	}
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <title>",
		Short: "Remove a document and its chunks by title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, closeStore, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closeStore()
			if err := store.DeleteDocument(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %q\n", args[0])
			return nil
		},
	}
}

func countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Report the number of searchable chunks in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, closeStore, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closeStore()
			n, err := store.CountChunks(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d searchable chunks\n", n)
			return nil
		},
	}
}

func setup(cmd *cobra.Command) (*config.Config, corpus.Store, func(), error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	_ = godotenv.Load(envFile)

	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	backend, _ := cmd.Flags().GetString("store")
	ctx := cmd.Context()
	switch backend {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, nil, nil, fmt.Errorf("THERAPYKB_POSTGRES_DSN is required")
		}
		store, err := pg.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		return cfg, store, func() { store.Close() }, nil
	case "mongo":
		mcfg := kbmongo.DefaultConfig()
		if cfg.MongoURI != "" {
			mcfg.URI = cfg.MongoURI
		}
		store, err := kbmongo.Open(ctx, mcfg)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open mongo: %w", err)
		}
		return cfg, store, func() { store.Close(context.Background()) }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
