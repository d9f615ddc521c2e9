package domain

import (
	"context"
	"io"
)

// Session is an opaque authenticated fetch context. A session is owned by
// the pool; at most one task uses a session at a time.
type Session interface {
	io.Closer
}

// SessionFactory creates fetch sessions. Creation is expensive (cookie
// warm-up round trip), so sessions are created once and pooled.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// SupporterSource resolves seed item pages: who supported an item, what
// tags it carries, and its stable id.
type SupporterSource interface {
	// ListSupporters returns supporter usernames in page order,
	// deduplicated. An item with no public supporters yields an empty
	// slice, not an error.
	ListSupporters(ctx context.Context, itemURL string) ([]string, error)

	// SeedTags returns the item's tags. May be empty.
	SeedTags(ctx context.Context, itemURL string) ([]string, error)

	// ResolveItemID returns the item's tralbum id, or "" when the page
	// does not expose one.
	ResolveItemID(ctx context.Context, itemURL string) (string, error)
}

// FetchOptions controls a single supporter fetch.
type FetchOptions struct {
	Wishlist      bool // Fetch wishlist items instead of purchases
	FirstPageOnly bool // Skip API pagination, first page only (fast path)
	WantTags      bool // Enrich newly seen items with tags
}

// MetadataSink receives item metadata as a side channel of collection
// fetches. First writer wins; StoreIfAbsent reports whether this call
// stored the item.
type MetadataSink interface {
	Get(id string) (Item, bool)
	StoreIfAbsent(item Item) bool
}

// CollectionFetcher fetches one supporter's collection using a borrowed
// session. Implementations deduplicate ids within the supporter's
// paginated results and return an empty slice for private or missing
// profiles rather than an error.
type CollectionFetcher interface {
	FetchItems(ctx context.Context, sess Session, username string, opts FetchOptions, sink MetadataSink) ([]string, error)
}
