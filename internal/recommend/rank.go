package recommend

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/bandwagon-dev/bandwagon/internal/domain"
)

// RecommendOptions tunes a co-occurrence ranking call. Zero values fall
// back to the engine config.
type RecommendOptions struct {
	MaxRecommendations int
	MinSupporters      int
}

// Recommendations ranks items by how many of the seed item's supporters
// also have them: collaborative filtering over the occurrence multiset.
func (e *Engine) Recommendations(ctx context.Context, seedURL string, opts RecommendOptions, progress domain.ProgressFunc) ([]domain.Item, error) {
	if progress == nil {
		progress = domain.NopProgress
	}
	maxRecs := opts.MaxRecommendations
	if maxRecs <= 0 {
		maxRecs = e.cfg.MaxRecommendations
	}
	minSupporters := opts.MinSupporters
	if minSupporters <= 0 {
		minSupporters = e.cfg.MinSupporters
	}

	progress("Extracting supporters from item page...", 0, 0, 0)
	supporters, err := e.source.ListSupporters(ctx, seedURL)
	if err != nil {
		return nil, fmt.Errorf("listing supporters: %w", err)
	}
	if len(supporters) == 0 {
		progress("No supporters found.", 0, 0, 0)
		return nil, domain.ErrNoSupporters
	}
	progress(fmt.Sprintf("Found %d supporters", len(supporters)), 0, len(supporters), 0)

	seedID := e.resolveSeedID(ctx, seedURL)

	occurrences, err := e.collect(ctx, supporters, domain.FetchOptions{WantTags: true}, progress)
	if err != nil {
		return nil, err
	}

	progress(fmt.Sprintf("Processing %d observations from %d supporters...", len(occurrences), len(supporters)),
		len(supporters), len(supporters), 0)
	if len(occurrences) == 0 {
		progress("Note: no purchases found. Collections may be private.", len(supporters), len(supporters), 0)
	}

	counts, order := countOccurrences(occurrences)
	delete(counts, seedID)

	var ranked []string
	for _, id := range order {
		if counts[id] >= minSupporters {
			ranked = append(ranked, id)
		}
	}
	// Stable sort on a first-seen-ordered slice: ties keep that order.
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})
	if len(ranked) > maxRecs {
		ranked = ranked[:maxRecs]
	}

	progress("Building recommendations...", len(supporters), len(supporters), 0)

	var recs []domain.Item
	for _, id := range ranked {
		item, ok := e.items.Get(id)
		if !ok {
			continue
		}
		item.SupportersCount = counts[id]
		recs = append(recs, item)
	}

	progress(fmt.Sprintf("Complete! Found %d recommendations.", len(recs)), len(supporters), len(supporters), 0)
	return recs, nil
}

// SimilarOptions tunes a tag-similarity ranking call.
type SimilarOptions struct {
	MaxRecommendations int
	MinSimilarity      float64
	MaxSupporters      int // Random sample cap on the supporter list, 0 = all
}

// TagSimilar ranks supporter-collection items by tag similarity to the
// seed item: content-based filtering via IDF-weighted Jaccard similarity.
func (e *Engine) TagSimilar(ctx context.Context, seedURL string, opts SimilarOptions, progress domain.ProgressFunc) ([]domain.Item, error) {
	if progress == nil {
		progress = domain.NopProgress
	}
	maxRecs := opts.MaxRecommendations
	if maxRecs <= 0 {
		maxRecs = e.cfg.MaxRecommendations
	}
	minSimilarity := opts.MinSimilarity
	if minSimilarity <= 0 {
		minSimilarity = e.cfg.MinSimilarity
	}

	progress("Extracting tags from seed item...", 0, 0, 0)
	seedTags, err := e.seedTagsWithRetry(ctx, seedURL)
	if err != nil {
		return nil, err
	}
	if len(seedTags) == 0 {
		progress("No tags found for seed item.", 0, 0, 0)
		return nil, domain.ErrNoSeedTags
	}
	progress(fmt.Sprintf("Found %d seed tags", len(seedTags)), 0, 0, 0)

	seedID := e.resolveSeedID(ctx, seedURL)

	progress("Extracting supporters from item page...", 0, 0, 0)
	supporters, err := e.source.ListSupporters(ctx, seedURL)
	if err != nil {
		return nil, fmt.Errorf("listing supporters: %w", err)
	}
	if len(supporters) == 0 {
		progress("No supporters found.", 0, 0, 0)
		return nil, domain.ErrNoSupporters
	}
	progress(fmt.Sprintf("Found %d supporters", len(supporters)), 0, len(supporters), 0)

	if opts.MaxSupporters > 0 && opts.MaxSupporters < len(supporters) {
		supporters = sample(supporters, opts.MaxSupporters)
		progress(fmt.Sprintf("Using %d random supporters", len(supporters)), 0, len(supporters), 0)
	}

	occurrences, err := e.collect(ctx, supporters, domain.FetchOptions{WantTags: true}, progress)
	if err != nil {
		return nil, err
	}

	progress("Calculating tag similarities...", len(supporters), len(supporters), 0)

	counts, order := countOccurrences(occurrences)
	delete(counts, seedID)

	// Candidates are the unique ids with non-empty cached tags; document
	// frequencies are built once over exactly that set.
	type candidate struct {
		item  domain.Item
		score float64
	}
	var tagSets [][]string
	var withTags []domain.Item
	for _, id := range order {
		if counts[id] == 0 {
			continue // the seed id
		}
		item, ok := e.items.Get(id)
		if !ok || !item.HasTags() {
			continue
		}
		withTags = append(withTags, item)
		tagSets = append(tagSets, item.Tags)
	}
	freqs := e.norm.DocumentFrequencies(tagSets)
	totalItems := len(withTags)
	if totalItems == 0 {
		totalItems = 1
	}

	var scored []candidate
	for _, item := range withTags {
		score := e.norm.Similarity(seedTags, item.Tags, freqs, totalItems)
		if score >= minSimilarity {
			scored = append(scored, candidate{item: item, score: score})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > maxRecs {
		scored = scored[:maxRecs]
	}

	var recs []domain.Item
	for _, c := range scored {
		item := c.item
		item.Similarity = c.score
		item.SupportersCount = counts[item.ID]
		recs = append(recs, item)
	}

	progress(fmt.Sprintf("Complete! Found %d tag-similar recommendations.", len(recs)), len(supporters), len(supporters), 0)
	return recs, nil
}

// seedTagsWithRetry fetches the seed item's tags, retrying exactly once on
// an empty or failed response to ride out transient page hiccups.
func (e *Engine) seedTagsWithRetry(ctx context.Context, seedURL string) ([]string, error) {
	seedTags, err := e.source.SeedTags(ctx, seedURL)
	if err != nil || len(seedTags) == 0 {
		if err != nil {
			e.logger.Warn("seed tag fetch failed, retrying once", "url", seedURL, "error", err)
		}
		seedTags, err = e.source.SeedTags(ctx, seedURL)
		if err != nil {
			return nil, fmt.Errorf("fetching seed tags: %w", err)
		}
	}
	return seedTags, nil
}

// resolveSeedID looks up the seed item's id so it can be excluded from
// results. Failure is non-fatal: the seed simply is not filtered out.
func (e *Engine) resolveSeedID(ctx context.Context, seedURL string) string {
	id, err := e.source.ResolveItemID(ctx, seedURL)
	if err != nil {
		e.logger.Warn("seed id resolution failed", "url", seedURL, "error", err)
		return ""
	}
	return id
}

// sample returns k elements drawn without replacement, input order not
// preserved.
func sample(list []string, k int) []string {
	out := make([]string, len(list))
	copy(out, list)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out[:k]
}
