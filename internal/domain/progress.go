package domain

// ProgressFunc reports engine progress to the caller: a human-readable
// status line, completed and total task counts, and an estimate of the
// seconds remaining (0 when unknown).
//
// The engine serializes calls through a single consumer goroutine, so
// implementations do not need to be reentrant-safe.
type ProgressFunc func(status string, current, total, etaSeconds int)

// NopProgress discards progress updates.
func NopProgress(string, int, int, int) {}
