// Package tags implements tag normalization and the tag-similarity score
// used by content-based ranking: Jaccard similarity over normalized tag
// sets, optionally blended with an IDF-weighted variant that discounts
// common tags and emphasizes rare, more discriminating ones.
package tags

import (
	"math"
	"strings"
)

// DefaultSynonyms maps common tag spellings to one canonical form. It is
// data, not logic: callers can extend or replace it via NewNormalizer.
var DefaultSynonyms = map[string]string{
	"uk":     "united kingdom",
	"u.k.":   "united kingdom",
	"usa":    "united states",
	"u.s.a.": "united states",
}

// Normalizer folds tag spelling variants together before comparison.
type Normalizer struct {
	synonyms map[string]string
}

// NewNormalizer returns a Normalizer using DefaultSynonyms extended by
// extra. Entries in extra win on conflict.
func NewNormalizer(extra map[string]string) *Normalizer {
	synonyms := make(map[string]string, len(DefaultSynonyms)+len(extra))
	for k, v := range DefaultSynonyms {
		synonyms[k] = v
	}
	for k, v := range extra {
		synonyms[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &Normalizer{synonyms: synonyms}
}

// Normalize lowercases and trims a tag, then maps it through the synonym
// table. Unmapped tags pass through unchanged.
func (n *Normalizer) Normalize(tag string) string {
	normalized := strings.ToLower(strings.TrimSpace(tag))
	if canonical, ok := n.synonyms[normalized]; ok {
		return canonical
	}
	return normalized
}

// NormalizeSet normalizes tags into a set, dropping empties.
func (n *Normalizer) NormalizeSet(tagList []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tagList))
	for _, t := range tagList {
		if norm := n.Normalize(t); norm != "" {
			set[norm] = struct{}{}
		}
	}
	return set
}

// DocumentFrequencies counts, per normalized tag, how many of the given
// tag sets contain it. Built once per ranking call over the full candidate
// set, not per pair.
func (n *Normalizer) DocumentFrequencies(tagSets [][]string) map[string]int {
	freqs := make(map[string]int)
	for _, tagList := range tagSets {
		for norm := range n.NormalizeSet(tagList) {
			freqs[norm]++
		}
	}
	return freqs
}

// Similarity scores two tag lists in [0, 1]. Either list being empty
// scores 0. With freqs supplied and totalItems > 1 the plain Jaccard score
// is blended with an IDF-weighted Jaccard: rare shared tags count for more
// than ubiquitous ones.
func (n *Normalizer) Similarity(original, candidate []string, freqs map[string]int, totalItems int) float64 {
	if len(original) == 0 || len(candidate) == 0 {
		return 0.0
	}

	originalSet := n.NormalizeSet(original)
	candidateSet := n.NormalizeSet(candidate)
	if len(originalSet) == 0 || len(candidateSet) == 0 {
		return 0.0
	}

	intersection := 0
	for tag := range originalSet {
		if _, ok := candidateSet[tag]; ok {
			intersection++
		}
	}
	union := len(originalSet) + len(candidateSet) - intersection
	if union == 0 {
		return 0.0
	}
	jaccard := float64(intersection) / float64(union)

	if len(freqs) == 0 || totalItems <= 1 {
		return jaccard
	}

	// IDF-weighted Jaccard: numerator sums idf over the intersection,
	// denominator over the whole union.
	idf := func(tag string) float64 {
		return math.Log(float64(totalItems) / float64(freqs[tag]+1))
	}

	var numerator, denominator float64
	for tag := range originalSet {
		w := idf(tag)
		denominator += w
		if _, ok := candidateSet[tag]; ok {
			numerator += w
		}
	}
	for tag := range candidateSet {
		if _, ok := originalSet[tag]; !ok {
			denominator += idf(tag)
		}
	}

	if denominator <= 0 {
		return jaccard
	}
	weighted := numerator / denominator
	// A tag present in every document gets a slightly negative idf, which
	// can push the weighted term out of range. Clamp the blend.
	return math.Max(0, math.Min(1, 0.6*jaccard+0.4*weighted))
}
