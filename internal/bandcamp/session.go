package bandcamp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bandwagon-dev/bandwagon/internal/domain"
)

// Session is one authenticated browsing context: an HTTP client with its
// own cookie jar, warmed against bandcamp.com once at creation so the
// identity cookies the collection API wants are already present. Sessions
// are pooled and reused; a session serves one task at a time.
type Session struct {
	id     string
	client *http.Client
}

// ID returns the session's correlation id for logging.
func (s *Session) ID() string { return s.id }

// Close releases the session's idle connections.
func (s *Session) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// SessionFactory creates warmed sessions for the pool.
type SessionFactory struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewSessionFactory builds a factory from adapter configuration. The rate
// limiter is shared across all sessions so total request pressure on
// bandcamp.com stays bounded no matter the pool size.
func NewSessionFactory(baseURL, userAgent string, timeout time.Duration, limiter *rate.Limiter, logger *slog.Logger) *SessionFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionFactory{
		baseURL:   baseURL,
		userAgent: userAgent,
		timeout:   timeout,
		limiter:   limiter,
		logger:    logger,
	}
}

// NewSession creates a session and performs the warm-up round trip. The
// cost is paid once per pooled session, not once per fetch task.
func (f *SessionFactory) NewSession(ctx context.Context) (domain.Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	sess := &Session{
		id: uuid.NewString()[:8],
		client: &http.Client{
			Jar:     jar,
			Timeout: f.timeout,
		},
	}

	if err := f.warmUp(ctx, sess); err != nil {
		return nil, fmt.Errorf("warming session: %w", err)
	}

	f.logger.Debug("session ready", "session", sess.id)
	return sess, nil
}

// warmUp hits the site root to collect identity cookies.
func (f *SessionFactory) warmUp(ctx context.Context, sess *Session) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := sess.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
