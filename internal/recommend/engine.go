// Package recommend implements the supporter-based recommendation engine:
// it fans fetch work out across the supporters of a seed item, aggregates
// what those supporters bought or wishlisted, and ranks candidate items by
// co-occurrence or by tag similarity to the seed.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bandwagon-dev/bandwagon/internal/domain"
	"github.com/bandwagon-dev/bandwagon/internal/fanout"
	"github.com/bandwagon-dev/bandwagon/internal/pool"
	"github.com/bandwagon-dev/bandwagon/internal/store"
	"github.com/bandwagon-dev/bandwagon/internal/tags"
)

// Config bounds the engine's resource usage and sets ranking defaults.
type Config struct {
	MaxSessions        int           // Upper bound on pooled fetch sessions
	MaxWorkers         int           // Upper bound on concurrent supporter tasks
	TaskTimeout        time.Duration // Per-supporter fetch ceiling
	MinSupporters      int           // Co-occurrence cutoff
	MaxRecommendations int           // Result list cap
	MinSimilarity      float64       // Tag similarity cutoff
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxSessions:        10,
		MaxWorkers:         15,
		TaskTimeout:        30 * time.Second,
		MinSupporters:      2,
		MaxRecommendations: 10,
		MinSimilarity:      0.1,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxSessions <= 0 {
		c.MaxSessions = def.MaxSessions
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = def.MaxWorkers
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = def.TaskTimeout
	}
	if c.MinSupporters <= 0 {
		c.MinSupporters = def.MinSupporters
	}
	if c.MaxRecommendations <= 0 {
		c.MaxRecommendations = def.MaxRecommendations
	}
	if c.MinSimilarity <= 0 {
		c.MinSimilarity = def.MinSimilarity
	}
	return c
}

// Deps are the external collaborators the engine drives.
type Deps struct {
	Source   domain.SupporterSource
	Fetcher  domain.CollectionFetcher
	Sessions domain.SessionFactory
}

// Engine generates recommendations from supporter collections. All mutable
// state (the item metadata store) is owned by the instance; one engine can
// serve multiple ranking calls and reuses cached metadata across them.
type Engine struct {
	source  domain.SupporterSource
	fetcher domain.CollectionFetcher
	factory domain.SessionFactory
	norm    *tags.Normalizer
	items   *store.ItemStore
	cfg     Config
	logger  *slog.Logger
}

// New creates an engine. A nil normalizer gets the default synonym table;
// a nil logger discards nothing and falls back to slog.Default.
func New(deps Deps, cfg Config, norm *tags.Normalizer, logger *slog.Logger) *Engine {
	if norm == nil {
		norm = tags.NewNormalizer(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		source:  deps.Source,
		fetcher: deps.Fetcher,
		factory: deps.Sessions,
		norm:    norm,
		items:   store.NewItemStore(),
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// Store exposes the engine's metadata cache, mainly for tests and warm
// starts.
func (e *Engine) Store() *store.ItemStore {
	return e.items
}

// collect fans out one fetch task per supporter and returns the raw
// occurrence multiset: every (supporter, item) observation, one id per
// pair. Duplicates across supporters are the signal being measured, so
// nothing is deduplicated here.
func (e *Engine) collect(ctx context.Context, supporters []string, fetchOpts domain.FetchOptions, progress domain.ProgressFunc) ([]string, error) {
	total := len(supporters)
	if total == 0 {
		return nil, nil
	}

	poolSize := e.cfg.MaxSessions
	if total < poolSize {
		poolSize = total
	}

	progress("Initializing session pool (this may take a moment)...", 0, total, 0)
	sessions, err := pool.New(ctx, e.factory, poolSize, func(ready, requested int) {
		progress(fmt.Sprintf("Initialized session %d/%d...", ready, requested), 0, total, 0)
	}, e.logger)
	if err != nil {
		return nil, fmt.Errorf("initializing session pool: %w", err)
	}
	defer sessions.Close()

	if got := sessions.Size(); got < poolSize {
		progress(fmt.Sprintf("Session pool degraded: %d/%d sessions available", got, poolSize), 0, total, 0)
	}
	progress(fmt.Sprintf("Session pool ready. Fetching items from %d supporters...", total), 0, total, 0)

	tasks := make([]fanout.Task[[]string], total)
	for i, username := range supporters {
		username := username
		tasks[i] = func(tctx context.Context) ([]string, error) {
			sess, err := sessions.Acquire(tctx)
			if err != nil {
				return nil, fmt.Errorf("acquiring session: %w", err)
			}
			defer sessions.Release(sess)
			return e.fetcher.FetchItems(tctx, sess, username, fetchOpts, e.items)
		}
	}

	var occurrences []string
	results := fanout.Run(ctx, tasks, fanout.Options[[]string]{
		MaxWorkers:  e.cfg.MaxWorkers,
		TaskTimeout: e.cfg.TaskTimeout,
		OnComplete: func(r fanout.Result[[]string], p fanout.Progress) {
			// Runs on the collector goroutine: merging and the progress
			// callback are both serialized here.
			username := supporters[r.Index]
			switch {
			case r.Err != nil:
				e.logger.Warn("supporter fetch failed", "supporter", username, "error", r.Err)
				progress(fmt.Sprintf("Error from %s: %v (%d/%d)", username, r.Err, p.Completed, p.Total),
					p.Completed, p.Total, 0)
			default:
				occurrences = append(occurrences, r.Value...)
				progress(fmt.Sprintf("Fetched %d items from %s (%d/%d)...", len(r.Value), username, p.Completed, p.Total),
					p.Completed, p.Total, int(p.ETA.Seconds()))
			}
		},
	})

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	e.logger.Info("supporter collection complete",
		"supporters", total, "failed", failed, "observations", len(occurrences), "cached_items", e.items.Len())

	return occurrences, ctx.Err()
}

// countOccurrences folds the multiset into per-id counts, preserving
// first-seen order for stable tie-breaking.
func countOccurrences(occurrences []string) (map[string]int, []string) {
	counts := make(map[string]int)
	var order []string
	for _, id := range occurrences {
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
	}
	return counts, order
}
