package recommend

import (
	"context"
	"fmt"

	"github.com/bandwagon-dev/bandwagon/internal/domain"
)

// RandomOptions tunes a random-sampling call.
type RandomOptions struct {
	NumItems      int  // How many items to return (default 5)
	NumSupporters int  // How many random supporters to check (default 20)
	Wishlist      bool // Sample wishlists instead of purchases
	MinOverlap    int  // Only items held by at least this many supporters (0 = any)
	UseFallback   bool // Relax MinOverlap by 1 at a time when too few items match
}

// RandomResult carries sampled items plus the overlap threshold that was
// actually applied, which differs from the requested one after a fallback.
type RandomResult struct {
	Items            []domain.Item
	RequestedOverlap int
	UsedOverlap      int
}

// Relaxed reports whether the overlap threshold had to be lowered.
func (r RandomResult) Relaxed() bool {
	return r.UsedOverlap > 0 && r.UsedOverlap != r.RequestedOverlap
}

// RandomItems picks random items from random supporters' collections,
// optionally restricted to items that several supporters share. This is
// the discovery mode: fast first-page fetches, no tag enrichment.
func (e *Engine) RandomItems(ctx context.Context, seedURL string, opts RandomOptions, progress domain.ProgressFunc) (RandomResult, error) {
	if progress == nil {
		progress = domain.NopProgress
	}
	if opts.NumItems <= 0 {
		opts.NumItems = 5
	}
	if opts.NumSupporters <= 0 {
		opts.NumSupporters = 20
	}
	result := RandomResult{RequestedOverlap: opts.MinOverlap}

	progress("Extracting supporters from item page...", 0, 0, 0)
	supporters, err := e.source.ListSupporters(ctx, seedURL)
	if err != nil {
		return result, fmt.Errorf("listing supporters: %w", err)
	}
	if len(supporters) == 0 {
		progress("No supporters found.", 0, 0, 0)
		return result, domain.ErrNoSupporters
	}
	progress(fmt.Sprintf("Found %d supporters", len(supporters)), 0, 0, 0)

	if len(supporters) > opts.NumSupporters {
		supporters = sample(supporters, opts.NumSupporters)
	}
	progress(fmt.Sprintf("Checking %d random supporters...", len(supporters)), 0, len(supporters), 0)

	occurrences, err := e.collect(ctx, supporters, domain.FetchOptions{
		Wishlist:      opts.Wishlist,
		FirstPageOnly: true,
	}, progress)
	if err != nil {
		return result, err
	}
	if len(occurrences) == 0 {
		progress("No items found.", len(supporters), len(supporters), 0)
		return result, nil
	}

	counts, order := countOccurrences(occurrences)
	delete(counts, e.resolveSeedID(ctx, seedURL))

	candidates, usedOverlap, err := e.applyOverlapFilter(counts, order, opts, len(supporters), progress)
	if err != nil {
		return result, err
	}
	result.UsedOverlap = usedOverlap

	if len(candidates) > opts.NumItems {
		candidates = sample(candidates, opts.NumItems)
	}

	if result.Relaxed() {
		progress(fmt.Sprintf("Selected %d random items (using overlap >= %d, requested >= %d).",
			len(candidates), result.UsedOverlap, result.RequestedOverlap),
			len(supporters), len(supporters), 0)
	} else {
		progress(fmt.Sprintf("Selected %d random items.", len(candidates)), len(supporters), len(supporters), 0)
	}

	for _, id := range candidates {
		item, ok := e.items.Get(id)
		if !ok {
			// First-page-only fetches can miss metadata; keep the pick
			// with a placeholder rather than dropping it.
			item = domain.Item{
				ID:     id,
				Title:  "Unknown Title",
				Artist: "Unknown Artist",
			}
		}
		item.SupportersCount = counts[id]
		result.Items = append(result.Items, item)
	}
	return result, nil
}

// applyOverlapFilter keeps ids whose supporter count meets the requested
// overlap, progressively relaxing the threshold by 1 while the fallback is
// enabled and too few items qualify. It returns the surviving ids and the
// threshold actually used (0 when no filtering applied).
func (e *Engine) applyOverlapFilter(counts map[string]int, order []string, opts RandomOptions, totalSupporters int, progress domain.ProgressFunc) ([]string, int, error) {
	all := make([]string, 0, len(counts))
	for _, id := range order {
		if counts[id] > 0 {
			all = append(all, id)
		}
	}

	if opts.MinOverlap <= 1 {
		return all, opts.MinOverlap, nil
	}

	for overlap := opts.MinOverlap; overlap >= 1; overlap-- {
		var filtered []string
		for _, id := range all {
			if counts[id] >= overlap {
				filtered = append(filtered, id)
			}
		}

		if len(filtered) >= opts.NumItems {
			if overlap < opts.MinOverlap {
				progress(fmt.Sprintf("Found %d items with overlap >= %d (fallback from %d)",
					len(filtered), overlap, opts.MinOverlap), totalSupporters, totalSupporters, 0)
			}
			return filtered, overlap, nil
		}

		if !opts.UseFallback || overlap == 1 {
			if len(filtered) == 0 {
				progress(fmt.Sprintf("No items found in at least %d collections.", opts.MinOverlap),
					totalSupporters, totalSupporters, 0)
				return nil, overlap, nil
			}
			progress(fmt.Sprintf("Found %d items with overlap >= %d (need %d).",
				len(filtered), overlap, opts.NumItems), totalSupporters, totalSupporters, 0)
			return filtered, overlap, nil
		}

		progress(fmt.Sprintf("Found %d items with overlap >= %d (need %d), trying overlap >= %d...",
			len(filtered), overlap, opts.NumItems, overlap-1), totalSupporters, totalSupporters, 0)
	}

	return nil, 1, nil
}
