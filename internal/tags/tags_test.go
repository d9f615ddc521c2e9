package tags

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer(nil)

	tests := []struct {
		name string
		tag  string
		want string
	}{
		{name: "lowercases", tag: "Ambient", want: "ambient"},
		{name: "trims whitespace", tag: "  drone  ", want: "drone"},
		{name: "uk synonym", tag: "UK", want: "united kingdom"},
		{name: "dotted uk synonym", tag: "U.K.", want: "united kingdom"},
		{name: "usa synonym", tag: "USA", want: "united states"},
		{name: "dotted usa synonym", tag: "u.s.a.", want: "united states"},
		{name: "unmapped passes through", tag: "post-rock", want: "post-rock"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.Normalize(tt.tag); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.tag, got, tt.want)
			}
		})
	}
}

func TestNormalizerExtraSynonyms(t *testing.T) {
	n := NewNormalizer(map[string]string{"NYC": "new york", "uk": "britain"})

	if got := n.Normalize("nyc"); got != "new york" {
		t.Errorf("Normalize(nyc) = %q, want %q", got, "new york")
	}
	// Extra entries override the built-in table.
	if got := n.Normalize("UK"); got != "britain" {
		t.Errorf("Normalize(UK) = %q, want %q", got, "britain")
	}
}

func TestSimilarity(t *testing.T) {
	n := NewNormalizer(nil)

	tests := []struct {
		name      string
		original  []string
		candidate []string
		want      float64
	}{
		{
			name:      "identical sets score 1",
			original:  []string{"ambient", "drone", "field recordings"},
			candidate: []string{"ambient", "drone", "field recordings"},
			want:      1.0,
		},
		{
			name:      "empty original scores 0",
			original:  nil,
			candidate: []string{"ambient"},
			want:      0.0,
		},
		{
			name:      "empty candidate scores 0",
			original:  []string{"ambient"},
			candidate: nil,
			want:      0.0,
		},
		{
			name:      "disjoint sets score 0",
			original:  []string{"ambient"},
			candidate: []string{"grindcore"},
			want:      0.0,
		},
		{
			name:      "synonyms unify before comparison",
			original:  []string{"UK"},
			candidate: []string{"united kingdom"},
			want:      1.0,
		},
		{
			name:      "half overlap",
			original:  []string{"ambient", "drone"},
			candidate: []string{"ambient", "techno"},
			want:      1.0 / 3.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Similarity(tt.original, tt.candidate, nil, 1)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Similarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSimilarityWeighted(t *testing.T) {
	n := NewNormalizer(nil)

	// "ambient" is everywhere, "dungeon synth" is rare. A match on the
	// rare tag should outscore a match on the common one.
	corpus := [][]string{
		{"ambient", "dungeon synth"},
		{"ambient", "techno"},
		{"ambient", "house"},
		{"ambient", "noise"},
		{"ambient", "drone"},
		{"ambient"},
		{"ambient"},
		{"ambient"},
		{"dungeon synth"},
		{"ambient"},
	}
	freqs := n.DocumentFrequencies(corpus)
	total := len(corpus)

	original := []string{"ambient", "dungeon synth"}
	rareMatch := n.Similarity(original, []string{"dungeon synth", "noise"}, freqs, total)
	commonMatch := n.Similarity(original, []string{"ambient", "noise"}, freqs, total)

	if rareMatch <= commonMatch {
		t.Errorf("rare-tag match %v should outscore common-tag match %v", rareMatch, commonMatch)
	}
}

func TestSimilarityBounds(t *testing.T) {
	n := NewNormalizer(nil)

	sets := [][]string{
		nil,
		{},
		{"ambient"},
		{"ambient", "drone"},
		{"ambient", "drone", "noise", "techno"},
		{"UK", "usa", "u.k."},
		{"", "  ", "ambient"},
	}
	// Frequencies where a tag appears in every document (idf < 0).
	freqs := map[string]int{"ambient": 5, "drone": 1, "noise": 2}

	for _, a := range sets {
		for _, b := range sets {
			for _, total := range []int{1, 2, 5} {
				got := n.Similarity(a, b, freqs, total)
				if got < 0.0 || got > 1.0 {
					t.Errorf("Similarity(%v, %v, total=%d) = %v, out of [0,1]", a, b, total, got)
				}
			}
		}
	}
}

func TestDocumentFrequencies(t *testing.T) {
	n := NewNormalizer(nil)

	freqs := n.DocumentFrequencies([][]string{
		{"Ambient", "UK"},
		{"ambient", "ambient", "drone"}, // duplicate within a document counts once
		{"united kingdom"},
	})

	if got := freqs["ambient"]; got != 2 {
		t.Errorf("freq(ambient) = %d, want 2", got)
	}
	if got := freqs["united kingdom"]; got != 2 {
		t.Errorf("freq(united kingdom) = %d, want 2", got)
	}
	if got := freqs["drone"]; got != 1 {
		t.Errorf("freq(drone) = %d, want 1", got)
	}
}
