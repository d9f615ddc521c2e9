// Package pool provides a fixed-size pool of reusable fetch sessions.
// Session setup is expensive, so the pool pre-warms every session
// synchronously at construction; fetch tasks then borrow and return them.
// The pool size is the hard upper bound on live fetch concurrency.
package pool

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bandwagon-dev/bandwagon/internal/domain"
)

// WarmFunc is notified as each session comes up during pre-warm.
type WarmFunc func(ready, requested int)

// Pool is a bounded pool of fetch sessions. Borrow with Acquire, return
// with Release. No session is handed to two callers at once.
type Pool struct {
	free chan domain.Session

	mu       sync.Mutex
	sessions []domain.Session // All sessions ever created, for teardown
	closed   bool

	logger *slog.Logger
}

// New pre-warms up to size sessions from the factory. A session that fails
// to initialize is skipped: the pool proceeds with fewer sessions and
// callers observe the degraded count via Size. New fails only when not a
// single session could be created or the context expired first.
func New(ctx context.Context, factory domain.SessionFactory, size int, warm WarmFunc, logger *slog.Logger) (*Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		free:   make(chan domain.Session, size),
		logger: logger,
	}

	var lastErr error
	for i := 0; i < size; i++ {
		if err := ctx.Err(); err != nil {
			p.Close()
			return nil, err
		}

		sess, err := factory.NewSession(ctx)
		if err != nil {
			logger.Warn("session init failed, continuing with fewer", "index", i, "error", err)
			lastErr = err
			continue
		}

		p.sessions = append(p.sessions, sess)
		p.free <- sess
		if warm != nil {
			warm(len(p.sessions), size)
		}
	}

	if len(p.sessions) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, domain.ErrPoolExhausted
	}

	logger.Info("session pool ready", "sessions", len(p.sessions), "requested", size)
	return p, nil
}

// Size returns the number of sessions the pool actually holds, which may
// be lower than requested after a partial pre-warm.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Acquire blocks until a session is free or ctx is done. Callers bound the
// wait with a context deadline.
func (p *Pool) Acquire(ctx context.Context) (domain.Session, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, domain.ErrPoolClosed
	}

	select {
	case sess, ok := <-p.free:
		if !ok {
			return nil, domain.ErrPoolClosed
		}
		return sess, nil
	case <-ctx.Done():
		return nil, domain.ErrPoolExhausted
	}
}

// Release returns a session to the pool. It is a no-op for nil sessions
// and closes the session instead when the pool is already torn down, so
// tasks can call it unconditionally on every exit path.
func (p *Pool) Release(sess domain.Session) {
	if sess == nil {
		return
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		_ = sess.Close()
		return
	}

	select {
	case p.free <- sess:
	default:
		// Pool already full: foreign or double-released session.
		_ = sess.Close()
	}
}

// Close tears the pool down and closes every session it ever created,
// including ones still borrowed. Close errors are swallowed.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	sessions := p.sessions
	p.sessions = nil
	p.mu.Unlock()

	// Drain so late Release calls hit the closed path.
	for {
		select {
		case <-p.free:
			continue
		default:
		}
		break
	}

	for _, sess := range sessions {
		if err := sess.Close(); err != nil {
			p.logger.Debug("session close failed", "error", err)
		}
	}
}
