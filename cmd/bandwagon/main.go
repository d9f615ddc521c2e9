package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/bandwagon-dev/bandwagon/internal/bandcamp"
	"github.com/bandwagon-dev/bandwagon/internal/config"
	"github.com/bandwagon-dev/bandwagon/internal/domain"
	"github.com/bandwagon-dev/bandwagon/internal/log"
	"github.com/bandwagon-dev/bandwagon/internal/recommend"
	"github.com/bandwagon-dev/bandwagon/internal/search"
	"github.com/bandwagon-dev/bandwagon/internal/tags"
)

// Version is set at build time via -ldflags
var Version = "dev"

type options struct {
	mode    string
	seedURL string

	numItems      int
	minSupporters int
	minSimilarity float64
	maxSupporters int
	minOverlap    int
	wishlist      bool
	noFallback    bool
	plain         bool
	filter        string
}

func main() {
	var (
		showVersion bool
		opts        options
	)

	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.IntVar(&opts.numItems, "n", 0, "number of results (default from config)")
	flag.IntVar(&opts.minSupporters, "min-supporters", 0, "co-occurrence cutoff for recommend mode")
	flag.Float64Var(&opts.minSimilarity, "min-similarity", 0, "similarity cutoff for similar mode")
	flag.IntVar(&opts.maxSupporters, "max-supporters", 0, "sample at most this many supporters (0 = all)")
	flag.IntVar(&opts.minOverlap, "min-overlap", 0, "random mode: items held by at least this many supporters")
	flag.BoolVar(&opts.wishlist, "wishlist", false, "random mode: sample wishlists instead of purchases")
	flag.BoolVar(&opts.noFallback, "no-fallback", false, "random mode: never relax the overlap threshold")
	flag.BoolVar(&opts.plain, "plain", false, "plain output, no interactive UI")
	flag.StringVar(&opts.filter, "filter", "", "fuzzy-filter results by title, artist or tag")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("bandwagon %s\n", Version)
		return
	}

	if flag.NArg() != 2 {
		usage()
		os.Exit(2)
	}
	opts.mode = flag.Arg(0)
	opts.seedURL = flag.Arg(1)

	switch opts.mode {
	case "recommend", "similar", "random":
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n\n", opts.mode)
		usage()
		os.Exit(2)
	}

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: bandwagon [flags] <mode> <album-url>

Modes:
  recommend   rank items other supporters of the album also bought
  similar     rank supporter items by tag similarity to the album
  random      pick random items from random supporters' collections

Flags:
`)
	flag.PrintDefaults()
}

func run(opts options) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting bandwagon", "version", Version, "mode", opts.mode, "url", opts.seedURL)

	engine := buildEngine(cfg, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if opts.plain || !term.IsTerminal(int(os.Stdout.Fd())) {
		return runPlain(ctx, engine, opts)
	}
	return runUI(ctx, engine, opts)
}

// buildEngine wires the bandcamp adapter into the recommendation engine.
// One rate limiter spans the seed client, every pooled session and the
// collection fetcher, so pool size never multiplies request pressure.
func buildEngine(cfg *config.Config, logger *slog.Logger) *recommend.Engine {
	bc := cfg.Bandcamp
	limiter := rate.NewLimiter(rate.Limit(bc.RatePerSecond), bc.RateBurst)

	deps := recommend.Deps{
		Source:   bandcamp.NewClient(bc.BaseURL, bc.UserAgent, bc.RequestTimeout, limiter, logger),
		Fetcher:  bandcamp.NewFetcher(bc.BaseURL, bc.UserAgent, limiter, logger),
		Sessions: bandcamp.NewSessionFactory(bc.BaseURL, bc.UserAgent, bc.RequestTimeout, limiter, logger),
	}

	engineCfg := recommend.Config{
		MaxSessions:        cfg.Engine.MaxSessions,
		MaxWorkers:         cfg.Engine.MaxWorkers,
		TaskTimeout:        cfg.Engine.TaskTimeout,
		MinSupporters:      cfg.Engine.MinSupporters,
		MaxRecommendations: cfg.Engine.MaxRecommendations,
		MinSimilarity:      cfg.Engine.MinSimilarity,
	}

	return recommend.New(deps, engineCfg, tags.NewNormalizer(cfg.Tags.Synonyms), logger)
}

// runMode dispatches one ranking call and reports progress through fn.
// The note is extra context for the result header, currently only the
// relaxed-overlap warning from random mode.
func runMode(ctx context.Context, engine *recommend.Engine, opts options, fn domain.ProgressFunc) ([]domain.Item, string, error) {
	switch opts.mode {
	case "recommend":
		items, err := engine.Recommendations(ctx, opts.seedURL, recommend.RecommendOptions{
			MaxRecommendations: opts.numItems,
			MinSupporters:      opts.minSupporters,
		}, fn)
		return items, "", err

	case "similar":
		items, err := engine.TagSimilar(ctx, opts.seedURL, recommend.SimilarOptions{
			MaxRecommendations: opts.numItems,
			MinSimilarity:      opts.minSimilarity,
			MaxSupporters:      opts.maxSupporters,
		}, fn)
		return items, "", err

	default:
		res, err := engine.RandomItems(ctx, opts.seedURL, recommend.RandomOptions{
			NumItems:      opts.numItems,
			NumSupporters: opts.maxSupporters,
			Wishlist:      opts.wishlist,
			MinOverlap:    opts.minOverlap,
			UseFallback:   !opts.noFallback,
		}, fn)
		var note string
		if err == nil && res.Relaxed() {
			note = fmt.Sprintf("overlap threshold relaxed from %d to %d", res.RequestedOverlap, res.UsedOverlap)
		}
		return res.Items, note, err
	}
}

// runPlain is the non-interactive path for pipes and dumb terminals.
// Progress goes to stderr, results to stdout.
func runPlain(ctx context.Context, engine *recommend.Engine, opts options) error {
	var lastStatus string
	progress := func(status string, current, total, _ int) {
		if status != lastStatus {
			lastStatus = status
			fmt.Fprintln(os.Stderr, status)
		}
		if total > 0 && current == total {
			fmt.Fprintf(os.Stderr, "  %d/%d supporters done\n", current, total)
		}
	}

	items, note, err := runMode(ctx, engine, opts, progress)
	if err != nil {
		return err
	}
	if note != "" {
		fmt.Fprintln(os.Stderr, note)
	}
	items = applyFilter(items, opts.filter)
	if len(items) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, item := range items {
		fmt.Printf("%2d. %s\n", i+1, item.Label())
		fmt.Printf("    %s\n", describeMetric(opts.mode, item))
		if item.URL != "" {
			fmt.Printf("    %s\n", item.URL)
		}
	}
	return nil
}

// applyFilter narrows results with the -filter flag query.
func applyFilter(items []domain.Item, query string) []domain.Item {
	if query == "" {
		return items
	}
	f := search.NewFilter(nil)
	f.Index(items)
	results := f.Filter(query)

	filtered := make([]domain.Item, len(results))
	for i, res := range results {
		filtered[i] = res.Item
	}
	return filtered
}

// describeMetric renders the ranking metric relevant to the mode.
func describeMetric(mode string, item domain.Item) string {
	if mode == "similar" {
		return fmt.Sprintf("similarity %.2f, %d supporters", item.Similarity, item.SupportersCount)
	}
	return fmt.Sprintf("%d supporters", item.SupportersCount)
}
