package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"codemind/internal/chunker"
	"codemind/internal/config"
	"codemind/internal/embeddings"
	"codemind/internal/indexer"
	"codemind/internal/jobs"
	"codemind/internal/search"
	"codemind/internal/server"
	"codemind/internal/vectorstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the codemind HTTP server",
	Long:  `Starts the HTTP API serving code search, indexing triggers, and job-lifecycle queries over the configured backends.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		embedder, err := embeddings.FromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}

		backend, err := vectorstore.FromConfig(cfg, embedder)
		if err != nil {
			return fmt.Errorf("creating vector backend: %w", err)
		}
		defer backend.Close()

		store, err := jobs.FromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating metadata store: %w", err)
		}
		defer store.Close()

		tracker := jobs.NewTracker(store)
		svc := search.NewService(backend, embedder, cfg.CandidateK, cfg.TopK)
		runner := indexer.NewRunner(
			tracker, backend, embedder,
			indexer.GitCloner{}, chunker.New(),
			cfg.CheckoutRoot, cfg.MaxIndexWorkers,
		)

		srv := server.New(cfg, backend, tracker, svc, runner)
		return srv.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
