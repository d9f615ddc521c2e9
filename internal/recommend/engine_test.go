package recommend

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bandwagon-dev/bandwagon/internal/domain"
	"github.com/bandwagon-dev/bandwagon/internal/log"
)

const seedURL = "https://label.bandcamp.com/album/seed"

type fakeSession struct{}

func (fakeSession) Close() error { return nil }

type fakeFactory struct{}

func (fakeFactory) NewSession(ctx context.Context) (domain.Session, error) {
	return fakeSession{}, nil
}

// fakeSource serves a fixed supporter list and scripted tag responses.
type fakeSource struct {
	supporters []string
	seedID     string
	tagCalls   int
	tagScript  [][]string // Response per SeedTags call; last entry repeats
	tagErr     error      // Error for the first SeedTags call only
}

func (f *fakeSource) ListSupporters(ctx context.Context, itemURL string) ([]string, error) {
	return f.supporters, nil
}

func (f *fakeSource) SeedTags(ctx context.Context, itemURL string) ([]string, error) {
	call := f.tagCalls
	f.tagCalls++
	if call == 0 && f.tagErr != nil {
		return nil, f.tagErr
	}
	if len(f.tagScript) == 0 {
		return nil, nil
	}
	if call >= len(f.tagScript) {
		call = len(f.tagScript) - 1
	}
	return f.tagScript[call], nil
}

func (f *fakeSource) ResolveItemID(ctx context.Context, itemURL string) (string, error) {
	return f.seedID, nil
}

// fakeFetcher serves per-supporter collections and counts how many
// metadata fetches it performed, mimicking the real adapter's
// check-cache-before-fetch discipline.
type fakeFetcher struct {
	collections map[string][]string
	wishlists   map[string][]string
	meta        map[string]domain.Item

	mu          sync.Mutex
	metaFetches int
}

func (f *fakeFetcher) FetchItems(ctx context.Context, sess domain.Session, username string, opts domain.FetchOptions, sink domain.MetadataSink) ([]string, error) {
	ids := f.collections[username]
	if opts.Wishlist {
		ids = f.wishlists[username]
	}
	for _, id := range ids {
		if _, ok := sink.Get(id); ok {
			continue
		}
		f.mu.Lock()
		f.metaFetches++
		f.mu.Unlock()

		item, ok := f.meta[id]
		if !ok {
			item = domain.Item{ID: id, Title: "Title " + id, Artist: "Artist " + id}
		}
		if !opts.WantTags {
			item.Tags = nil
		}
		sink.StoreIfAbsent(item)
	}
	return ids, nil
}

func (f *fakeFetcher) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metaFetches
}

func newTestEngine(source *fakeSource, fetcher *fakeFetcher) *Engine {
	return New(Deps{
		Source:   source,
		Fetcher:  fetcher,
		Sessions: fakeFactory{},
	}, Config{}, nil, log.NullLogger())
}

func TestRecommendationsCoOccurrence(t *testing.T) {
	// Item A appears in 3 of 5 collections, B in 1; the seed item itself
	// appears everywhere and must be excluded.
	source := &fakeSource{
		supporters: []string{"s1", "s2", "s3", "s4", "s5"},
		seedID:     "seed",
	}
	fetcher := &fakeFetcher{
		collections: map[string][]string{
			"s1": {"seed", "A"},
			"s2": {"seed", "A", "B"},
			"s3": {"seed", "A"},
			"s4": {"seed"},
			"s5": {"seed"},
		},
	}

	recs, err := newTestEngine(source, fetcher).Recommendations(
		context.Background(), seedURL, RecommendOptions{MinSupporters: 2}, nil)
	if err != nil {
		t.Fatalf("Recommendations() error = %v", err)
	}

	if len(recs) != 1 {
		t.Fatalf("got %d recommendations, want 1: %+v", len(recs), recs)
	}
	if recs[0].ID != "A" {
		t.Errorf("top recommendation = %q, want A", recs[0].ID)
	}
	if recs[0].SupportersCount != 3 {
		t.Errorf("SupportersCount = %d, want 3", recs[0].SupportersCount)
	}
}

func TestRecommendationsSortAndTruncate(t *testing.T) {
	source := &fakeSource{supporters: []string{"s1", "s2", "s3", "s4"}}
	fetcher := &fakeFetcher{
		collections: map[string][]string{
			"s1": {"A", "B", "C"},
			"s2": {"A", "B", "C"},
			"s3": {"A", "B"},
			"s4": {"A"},
		},
	}

	recs, err := newTestEngine(source, fetcher).Recommendations(
		context.Background(), seedURL, RecommendOptions{MaxRecommendations: 2, MinSupporters: 2}, nil)
	if err != nil {
		t.Fatalf("Recommendations() error = %v", err)
	}

	if len(recs) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(recs))
	}
	if recs[0].ID != "A" || recs[1].ID != "B" {
		t.Errorf("order = [%s %s], want [A B]", recs[0].ID, recs[1].ID)
	}
	if recs[0].SupportersCount != 4 || recs[1].SupportersCount != 3 {
		t.Errorf("counts = [%d %d], want [4 3]", recs[0].SupportersCount, recs[1].SupportersCount)
	}
}

func TestRecommendationsNoSupporters(t *testing.T) {
	source := &fakeSource{}
	fetcher := &fakeFetcher{}

	_, err := newTestEngine(source, fetcher).Recommendations(context.Background(), seedURL, RecommendOptions{}, nil)
	if !errors.Is(err, domain.ErrNoSupporters) {
		t.Errorf("error = %v, want ErrNoSupporters", err)
	}
}

func TestRecommendationsIdempotentMetadata(t *testing.T) {
	source := &fakeSource{supporters: []string{"s1", "s2"}}
	fetcher := &fakeFetcher{
		collections: map[string][]string{
			"s1": {"A", "B"},
			"s2": {"A", "C"},
		},
	}

	engine := newTestEngine(source, fetcher)
	if _, err := engine.Recommendations(context.Background(), seedURL, RecommendOptions{MinSupporters: 1}, nil); err != nil {
		t.Fatalf("first run error = %v", err)
	}
	warm := fetcher.fetches()
	if warm != 3 {
		t.Fatalf("cold run metadata fetches = %d, want 3", warm)
	}

	// Second run against the warm cache must not re-fetch metadata.
	if _, err := engine.Recommendations(context.Background(), seedURL, RecommendOptions{MinSupporters: 1}, nil); err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if got := fetcher.fetches(); got != warm {
		t.Errorf("warm run metadata fetches = %d, want %d", got, warm)
	}
}

func TestTagSimilarRanking(t *testing.T) {
	source := &fakeSource{
		supporters: []string{"s1", "s2"},
		seedID:     "seed",
		tagScript:  [][]string{{"ambient", "drone", "tape"}},
	}
	fetcher := &fakeFetcher{
		collections: map[string][]string{
			"s1": {"close", "far", "untagged"},
			"s2": {"close"},
		},
		meta: map[string]domain.Item{
			"close":    {ID: "close", Title: "Close", Tags: []string{"ambient", "drone", "tape"}},
			"far":      {ID: "far", Title: "Far", Tags: []string{"harsh noise", "power electronics"}},
			"untagged": {ID: "untagged", Title: "Untagged"},
		},
	}

	recs, err := newTestEngine(source, fetcher).TagSimilar(
		context.Background(), seedURL, SimilarOptions{MinSimilarity: 0.5}, nil)
	if err != nil {
		t.Fatalf("TagSimilar() error = %v", err)
	}

	if len(recs) != 1 {
		t.Fatalf("got %d recommendations, want 1: %+v", len(recs), recs)
	}
	got := recs[0]
	if got.ID != "close" {
		t.Errorf("top recommendation = %q, want close", got.ID)
	}
	if got.Similarity < 0.5 || got.Similarity > 1.0 {
		t.Errorf("Similarity = %v, want within [0.5, 1.0]", got.Similarity)
	}
	if got.SupportersCount != 2 {
		t.Errorf("SupportersCount = %d, want 2", got.SupportersCount)
	}
}

func TestTagSimilarRetriesSeedTagsOnce(t *testing.T) {
	source := &fakeSource{
		supporters: []string{"s1"},
		tagErr:     errors.New("transient"),
		tagScript:  [][]string{nil, {"ambient"}},
	}
	fetcher := &fakeFetcher{
		collections: map[string][]string{"s1": {"A"}},
		meta: map[string]domain.Item{
			"A": {ID: "A", Tags: []string{"ambient"}},
		},
	}

	recs, err := newTestEngine(source, fetcher).TagSimilar(context.Background(), seedURL, SimilarOptions{}, nil)
	if err != nil {
		t.Fatalf("TagSimilar() error = %v", err)
	}
	if source.tagCalls != 2 {
		t.Errorf("SeedTags calls = %d, want 2", source.tagCalls)
	}
	if len(recs) != 1 {
		t.Errorf("got %d recommendations, want 1", len(recs))
	}
}

func TestTagSimilarNoSeedTags(t *testing.T) {
	source := &fakeSource{supporters: []string{"s1"}}
	fetcher := &fakeFetcher{}

	_, err := newTestEngine(source, fetcher).TagSimilar(context.Background(), seedURL, SimilarOptions{}, nil)
	if !errors.Is(err, domain.ErrNoSeedTags) {
		t.Errorf("error = %v, want ErrNoSeedTags", err)
	}
	if source.tagCalls != 2 {
		t.Errorf("SeedTags calls = %d, want 2 (one retry)", source.tagCalls)
	}
}

func TestRandomItemsOverlapFallback(t *testing.T) {
	// Occurrence multiset {X:3, Y:2, Z:1} with min overlap 3: only X
	// qualifies, so with fallback enabled the engine relaxes to 2 and
	// returns X and Y.
	source := &fakeSource{supporters: []string{"s1", "s2", "s3"}}
	fetcher := &fakeFetcher{
		collections: map[string][]string{
			"s1": {"X", "Y"},
			"s2": {"X", "Y"},
			"s3": {"X", "Z"},
		},
	}

	result, err := newTestEngine(source, fetcher).RandomItems(context.Background(), seedURL, RandomOptions{
		NumItems:    2,
		MinOverlap:  3,
		UseFallback: true,
	}, nil)
	if err != nil {
		t.Fatalf("RandomItems() error = %v", err)
	}

	if result.UsedOverlap != 2 {
		t.Errorf("UsedOverlap = %d, want 2", result.UsedOverlap)
	}
	if !result.Relaxed() {
		t.Error("Relaxed() = false, want true")
	}
	if len(result.Items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(result.Items), result.Items)
	}
	got := map[string]int{}
	for _, item := range result.Items {
		got[item.ID] = item.SupportersCount
	}
	if got["X"] != 3 || got["Y"] != 2 {
		t.Errorf("items = %v, want X:3 and Y:2", got)
	}
}

func TestRandomItemsNoFallbackReturnsEmpty(t *testing.T) {
	source := &fakeSource{supporters: []string{"s1", "s2"}}
	fetcher := &fakeFetcher{
		collections: map[string][]string{
			"s1": {"X"},
			"s2": {"Y"},
		},
	}

	result, err := newTestEngine(source, fetcher).RandomItems(context.Background(), seedURL, RandomOptions{
		NumItems:   2,
		MinOverlap: 2,
	}, nil)
	if err != nil {
		t.Fatalf("RandomItems() error = %v", err)
	}
	if len(result.Items) != 0 {
		t.Errorf("got %d items, want 0", len(result.Items))
	}
}

func TestRandomItemsWishlistSource(t *testing.T) {
	source := &fakeSource{supporters: []string{"s1"}}
	fetcher := &fakeFetcher{
		collections: map[string][]string{"s1": {"bought"}},
		wishlists:   map[string][]string{"s1": {"wished"}},
	}

	result, err := newTestEngine(source, fetcher).RandomItems(context.Background(), seedURL, RandomOptions{
		NumItems: 5,
		Wishlist: true,
	}, nil)
	if err != nil {
		t.Fatalf("RandomItems() error = %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].ID != "wished" {
		t.Errorf("items = %+v, want the single wishlist item", result.Items)
	}
}

func TestProgressReportsCompletion(t *testing.T) {
	source := &fakeSource{supporters: []string{"s1", "s2", "s3"}}
	fetcher := &fakeFetcher{
		collections: map[string][]string{
			"s1": {"A"}, "s2": {"A"}, "s3": {"A"},
		},
	}

	var finalCurrent, finalTotal int
	progress := func(status string, current, total, eta int) {
		finalCurrent, finalTotal = current, total
	}

	if _, err := newTestEngine(source, fetcher).Recommendations(
		context.Background(), seedURL, RecommendOptions{MinSupporters: 1}, progress); err != nil {
		t.Fatalf("Recommendations() error = %v", err)
	}

	if finalCurrent != 3 || finalTotal != 3 {
		t.Errorf("final progress = %d/%d, want 3/3", finalCurrent, finalTotal)
	}
}
