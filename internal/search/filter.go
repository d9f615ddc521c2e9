package search

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	lfuzzy "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sahilm/fuzzy"

	"github.com/bandwagon-dev/bandwagon/internal/domain"
)

// Result is a filtered recommendation with match metadata for
// highlighting.
type Result struct {
	Item           domain.Item
	MatchedIndexes []int // Character positions in the label that matched
	Score          int   // Match score (higher is better)
}

// index implements sahilm/fuzzy.Source so filtering runs without
// per-query label allocation.
type index struct {
	items  []domain.Item
	labels []string // Pre-computed lowercase "artist - title [tags]" labels
}

func (idx *index) String(i int) string { return idx.labels[i] }
func (idx *index) Len() int            { return len(idx.items) }

// Filter holds an index of recommendation results and answers fuzzy
// queries against it. Safe for concurrent use.
type Filter struct {
	mu     sync.RWMutex
	idx    *index
	logger *slog.Logger
}

// NewFilter creates an empty result filter.
func NewFilter(logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{idx: &index{}, logger: logger}
}

// Index replaces the filter's contents with the given items.
func (f *Filter) Index(items []domain.Item) {
	idx := &index{
		items:  items,
		labels: make([]string, len(items)),
	}
	for i, item := range items {
		idx.labels[i] = searchLabel(item)
	}

	f.mu.Lock()
	f.idx = idx
	f.mu.Unlock()

	f.logger.Debug("indexed results", "count", len(items))
}

// Filter returns the indexed items matching the query, best match first.
// An empty query returns everything in index order.
func (f *Filter) Filter(query string) []Result {
	f.mu.RLock()
	idx := f.idx
	f.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		results := make([]Result, len(idx.items))
		for i, item := range idx.items {
			results[i] = Result{Item: item}
		}
		return results
	}

	matches := fuzzy.FindFrom(query, idx)
	if len(matches) > 0 {
		results := make([]Result, len(matches))
		for i, m := range matches {
			results[i] = Result{
				Item:           idx.items[m.Index],
				MatchedIndexes: m.MatchedIndexes,
				Score:          m.Score,
			}
		}
		return results
	}

	return f.looseFilter(query, idx)
}

// looseFilter is the fallback pass for queries the subsequence matcher
// rejects, ranking by edit distance instead.
func (f *Filter) looseFilter(query string, idx *index) []Result {
	ranks := lfuzzy.RankFindNormalizedFold(query, idx.labels)
	sort.Sort(ranks)

	results := make([]Result, 0, len(ranks))
	for _, r := range ranks {
		results = append(results, Result{
			Item:  idx.items[r.OriginalIndex],
			Score: -r.Distance,
		})
	}
	return results
}

// searchLabel builds the lowercase text a query matches against. Tags are
// included so "ambient" finds tagged items whose titles never say so.
func searchLabel(item domain.Item) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(item.Artist))
	sb.WriteString(" - ")
	sb.WriteString(strings.ToLower(item.Title))
	for _, tag := range item.Tags {
		sb.WriteByte(' ')
		sb.WriteString(strings.ToLower(tag))
	}
	return sb.String()
}
