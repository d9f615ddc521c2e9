package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrNoSupporters indicates the seed item page lists no public supporters
	ErrNoSupporters = errors.New("no supporters found for item")

	// ErrNoSeedTags indicates no tags could be resolved for the seed item
	ErrNoSeedTags = errors.New("no tags found for item")

	// ErrItemNotFound indicates the item page does not exist or has no id
	ErrItemNotFound = errors.New("item not found")

	// ErrServerUnreachable indicates bandcamp.com is unreachable
	ErrServerUnreachable = errors.New("bandcamp is unreachable")

	// ErrPoolClosed indicates the session pool has been torn down
	ErrPoolClosed = errors.New("session pool is closed")

	// ErrPoolExhausted indicates no session became available in time
	ErrPoolExhausted = errors.New("no fetch session available")
)
