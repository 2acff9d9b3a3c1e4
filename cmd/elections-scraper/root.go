package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"elections-scraper/internal/app"
	"elections-scraper/internal/config"
	"elections-scraper/internal/fetcher"
	"elections-scraper/internal/normalize"
	"elections-scraper/internal/observability"
	"elections-scraper/internal/scraper"
	"elections-scraper/internal/storage"
	"elections-scraper/internal/storage/mssql"
	"elections-scraper/internal/storage/sqlite"
)

const (
	exitFailure    = 1
	exitInvalidArg = 2
)

type options struct {
	configPath string
	workers    int
	logLevel   string
	store      bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "elections-scraper <index-url> <output.csv>",
		Short: "Scrapes per-precinct election results from volby.cz into a CSV file.",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return &exitError{
					code: exitFailure,
					err:  fmt.Errorf("wrong number of arguments, usage: %s", cmd.UseLine()),
				}
			}
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args[0], args[1])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file (defaults apply when empty)")
	flags.IntVar(&opts.workers, "workers", 0, "number of precinct pages fetched in parallel")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	flags.BoolVar(&opts.store, "store", false, "upsert results into the configured database")

	return cmd
}

func run(cmd *cobra.Command, opts *options, indexURL, outputPath string) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return &exitError{code: exitFailure, err: fmt.Errorf("failed to load config: %w", err)}
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Pipeline.Workers = opts.workers
	}
	if flags.Changed("log-level") {
		cfg.Observability.LogLevel = opts.logLevel
	}
	if flags.Changed("store") {
		cfg.Storage.Enabled = opts.store
	}
	if err := cfg.Validate(); err != nil {
		return &exitError{code: exitInvalidArg, err: fmt.Errorf("invalid configuration: %w", err)}
	}

	if err := app.ValidateArgs(cfg, indexURL, outputPath); err != nil {
		return &exitError{code: exitInvalidArg, err: err}
	}

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		return &exitError{code: exitFailure, err: fmt.Errorf("failed to create logger: %w", err)}
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := app.GracefulShutdown(logger, cfg.GetShutdownTimeout())
	defer cancel()

	var f fetcher.Fetcher = fetcher.NewFetcher(cfg, logger)
	if cfg.Rod.Enabled {
		browser := fetcher.NewBrowserFetcher(cfg, logger)
		defer func() {
			if err := browser.Close(); err != nil {
				logger.Warn("Failed to close browser", "error", err.Error())
			}
		}()
		f = browser
	}

	var repo storage.Repository
	if cfg.Storage.Enabled {
		repo, err = openRepository(cfg, logger)
		if err != nil {
			return &exitError{code: exitFailure, err: err}
		}
		defer func() {
			if err := repo.Close(); err != nil {
				logger.Warn("Failed to close repository", "error", err.Error())
			}
		}()
	}

	extractor := scraper.NewExtractor(cfg.Layout, normalize.NewNormalizer(cfg.Normalize))
	orchestrator := app.NewOrchestrator(cfg, logger, f, extractor, repo)

	logger.Info("Scraping selected URL", "url", indexURL, "output", outputPath)
	stats, err := orchestrator.Run(ctx, indexURL, outputPath)
	if errors.Is(err, app.ErrNoPrecincts) {
		return &exitError{code: exitFailure, err: fmt.Errorf("no data found for %s, check the input address", indexURL)}
	}
	if err != nil {
		logger.Error("Run failed", "url", indexURL, "error", err.Error())
		return &exitError{code: exitFailure, err: err}
	}

	logger.Info("Finished", "output", outputPath, "rows", stats.Written, "duration", stats.Duration)
	printSummary(cmd.OutOrStdout(), indexURL, outputPath, stats)
	return nil
}

func openRepository(cfg *config.Config, logger *observability.Logger) (storage.Repository, error) {
	switch cfg.Storage.Driver {
	case "mssql":
		repo, err := mssql.NewRepository(cfg.Storage.DSN, cfg.GetCommandTimeout(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open mssql store: %w", err)
		}
		return repo, nil
	case "sqlite":
		repo, err := sqlite.NewRepository(cfg.Storage.DSN, cfg.GetCommandTimeout(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
