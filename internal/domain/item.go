package domain

import "fmt"

// Item represents a Bandcamp release (album or track) observed in a
// supporter's collection. The ID is the tralbum id Bandcamp assigns to a
// release; it is stable across pages and supporters.
type Item struct {
	ID     string   // Stable release identifier (tralbum id)
	Title  string   // Display title
	Artist string   // Band or artist name
	URL    string   // Canonical item URL
	Tags   []string // Genre/location tags (may be empty)

	// Derived at ranking time, zero until then
	SupportersCount int     // Distinct supporters observed with this item
	Similarity      float64 // Tag similarity to the seed (similarity mode only)
}

// Label returns "Artist - Title" for display.
func (i Item) Label() string {
	if i.Artist == "" {
		return i.Title
	}
	return fmt.Sprintf("%s - %s", i.Artist, i.Title)
}

// HasTags reports whether the item carries at least one tag.
func (i Item) HasTags() bool {
	return len(i.Tags) > 0
}
