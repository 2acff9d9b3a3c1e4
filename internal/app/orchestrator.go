package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"elections-scraper/internal/checksum"
	"elections-scraper/internal/config"
	"elections-scraper/internal/fetcher"
	"elections-scraper/internal/observability"
	"elections-scraper/internal/results"
	"elections-scraper/internal/scraper"
	"elections-scraper/internal/storage"
	"elections-scraper/internal/table"
	"elections-scraper/internal/workers"
)

var (
	// ErrNoPrecincts means the index page loaded but listed no precinct links.
	ErrNoPrecincts = errors.New("no precinct links found on index page")
	// ErrNoParties means the first precinct page yielded an empty party schema.
	ErrNoParties = errors.New("no parties found on first precinct page")
)

type Orchestrator struct {
	cfg       *config.Config
	logger    *observability.Logger
	fetcher   fetcher.Fetcher
	extractor *scraper.Extractor
	repo      storage.Repository
	checksum  *checksum.Generator
}

// NewOrchestrator wires a run. repo may be nil when results are not stored.
func NewOrchestrator(
	cfg *config.Config,
	logger *observability.Logger,
	f fetcher.Fetcher,
	e *scraper.Extractor,
	repo storage.Repository,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		logger:    logger,
		fetcher:   f,
		extractor: e,
		repo:      repo,
		checksum:  checksum.NewGenerator(),
	}
}

type RunStats struct {
	Precincts int
	Parties   int
	Written   int
	Skipped   int
	Stored    int
	Unchanged int
	Duration  time.Duration
}

type outcome struct {
	row results.OutputRow
	ok  bool
}

// Run scrapes every precinct listed on the index page and writes one CSV row
// per precinct to outputPath. Nothing is written unless the pass completes.
func (o *Orchestrator) Run(ctx context.Context, indexURL, outputPath string) (*RunStats, error) {
	start := time.Now()
	stats := &RunStats{}

	o.logger.Info("Downloading index page", "url", indexURL)
	index := o.load(ctx, indexURL)
	if index.Status == scraper.PageError {
		return stats, fmt.Errorf("failed to load index page: %w", index.Err)
	}

	urls := o.extractor.DiscoverLinks(index, o.cfg.Source.ResultBaseURL)
	if len(urls) == 0 {
		return stats, ErrNoPrecincts
	}

	refs, err := results.AlignPrecincts(
		o.extractor.VillageCodes(index),
		o.extractor.VillageNames(index),
		urls,
	)
	if err != nil {
		return stats, fmt.Errorf("index page %s: %w", indexURL, err)
	}
	stats.Precincts = len(refs)

	first := o.load(ctx, refs[0].ResultURL)
	schema := o.extractor.PartyNames(first)
	if len(schema) == 0 {
		if first.Status == scraper.PageError {
			return stats, fmt.Errorf("failed to load first precinct page: %w", first.Err)
		}
		return stats, ErrNoParties
	}
	stats.Parties = len(schema)

	o.logger.Info("Precincts discovered",
		"precincts", len(refs),
		"parties", len(schema),
		"workers", o.cfg.Pipeline.Workers,
	)

	outcomes, err := workers.Map(ctx, refs, o.cfg.Pipeline.Workers, func(ctx context.Context, i int, ref results.PrecinctRef) (outcome, error) {
		page := first
		if i > 0 {
			page = o.load(ctx, ref.ResultURL)
		}

		row, err := o.assemble(page, ref, schema)
		if err != nil {
			if ctx.Err() != nil {
				return outcome{}, ctx.Err()
			}
			if o.cfg.Pipeline.SkipFailedPrecincts {
				o.logger.Warn("Skipping precinct", "code", ref.Code, "url", ref.ResultURL, "error", err.Error())
				return outcome{}, nil
			}
			return outcome{}, fmt.Errorf("precinct %s: %w", ref.Code, err)
		}

		o.logger.Debug("Precinct assembled", "index", i, "code", ref.Code, "location", ref.Name)
		return outcome{row: row, ok: true}, nil
	})
	if err != nil {
		return stats, err
	}

	rows := make([]results.OutputRow, 0, len(outcomes))
	for _, out := range outcomes {
		if !out.ok {
			stats.Skipped++
			continue
		}
		rows = append(rows, out.row)
	}

	o.logger.Info("Writing output", "path", outputPath, "rows", len(rows))
	if err := table.WriteFile(outputPath, schema, rows); err != nil {
		return stats, err
	}
	stats.Written = len(rows)

	if o.repo != nil {
		if err := o.store(ctx, rows, schema, stats); err != nil {
			return stats, err
		}
	}

	stats.Duration = time.Since(start)
	o.logger.Info("Run completed",
		"precincts", stats.Precincts,
		"parties", stats.Parties,
		"written", stats.Written,
		"skipped", stats.Skipped,
		"stored", stats.Stored,
		"unchanged", stats.Unchanged,
		"duration", stats.Duration,
	)
	return stats, nil
}

// load fetches url once and classifies the outcome.
func (o *Orchestrator) load(ctx context.Context, url string) scraper.Page {
	resp, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		o.logger.Warn("Fetch failed", "url", url, "error", err.Error())
		return scraper.NewPage(url, nil, err)
	}
	return scraper.NewPage(url, resp.Body, nil)
}

func (o *Orchestrator) assemble(page scraper.Page, ref results.PrecinctRef, schema results.PartySchema) (results.OutputRow, error) {
	if page.Status == scraper.PageError {
		return results.OutputRow{}, page.Err
	}

	summary, err := o.extractor.Summary(page)
	if err != nil {
		return results.OutputRow{}, err
	}
	votes, err := o.extractor.PartyVotes(page)
	if err != nil {
		return results.OutputRow{}, err
	}
	return results.Assemble(ref, summary, results.NewVoteTally(votes), schema), nil
}

func (o *Orchestrator) store(ctx context.Context, rows []results.OutputRow, schema results.PartySchema, stats *RunStats) error {
	for _, row := range rows {
		isNew, isUpdated, err := o.repo.UpsertPrecinct(ctx, row, schema, o.checksum.RowHash(row))
		if err != nil {
			return fmt.Errorf("failed to store precinct %s: %w", row.Code, err)
		}
		if isNew || isUpdated {
			stats.Stored++
		} else {
			stats.Unchanged++
		}
	}
	o.logger.Info("Results stored", "stored", stats.Stored, "unchanged", stats.Unchanged)
	return nil
}
