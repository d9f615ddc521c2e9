package bandcamp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/bandwagon-dev/bandwagon/internal/domain"
)

// Client implements domain.SupporterSource against bandcamp.com item
// pages. Seed page fetches go through a shared rate limiter and a circuit
// breaker, so a flapping or blocking upstream trips fast instead of
// burning the whole request budget.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
}

// NewClient creates a seed-page client.
func NewClient(baseURL, userAgent string, timeout time.Duration, limiter *rate.Limiter, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "bandcamp-pages",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		baseURL:    baseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		breaker:    breaker,
		logger:     logger,
	}
}

// fetchPage GETs a page body under the rate limit and circuit breaker.
func (c *Client) fetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

		c.logger.Debug("page request", "url", pageURL)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, domain.ErrServerUnreachable
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, domain.ErrItemNotFound
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return body, nil
	})
}

// ListSupporters extracts supporter usernames from an item page,
// deduplicated in page order. The collectors data blob is authoritative;
// fan profile anchors are the fallback for older page variants.
func (c *Client) ListSupporters(ctx context.Context, itemURL string) ([]string, error) {
	body, err := c.fetchPage(ctx, itemURL)
	if err != nil {
		return nil, err
	}

	var usernames []string
	if blob := findDataBlob(body, "collectors-data"); blob != "" {
		var collectors collectorsBlob
		if err := json.Unmarshal([]byte(blob), &collectors); err != nil {
			c.logger.Warn("collectors blob parse failed", "url", itemURL, "error", err)
		}
		for _, thumb := range collectors.Thumbs {
			if thumb.Username != "" {
				usernames = append(usernames, thumb.Username)
			}
		}
	}
	if len(usernames) == 0 {
		usernames = extractFanLinks(body)
	}

	return dedupe(usernames), nil
}

// SeedTags returns the tags on an item page. May be empty.
func (c *Client) SeedTags(ctx context.Context, itemURL string) ([]string, error) {
	body, err := c.fetchPage(ctx, itemURL)
	if err != nil {
		return nil, err
	}
	return extractTagAnchors(body), nil
}

// ResolveItemID returns the item's tralbum id, or "" when the page does
// not expose one.
func (c *Client) ResolveItemID(ctx context.Context, itemURL string) (string, error) {
	body, err := c.fetchPage(ctx, itemURL)
	if err != nil {
		return "", err
	}

	blob := findDataBlob(body, "pagedata")
	if blob == "" {
		return "", nil
	}
	var page pageBlob
	if err := json.Unmarshal([]byte(blob), &page); err != nil {
		return "", fmt.Errorf("parsing pagedata: %w", err)
	}

	var id int64
	switch {
	case page.TralbumData != nil && page.TralbumData.TralbumID != 0:
		id = page.TralbumData.TralbumID
	case page.FanTralbumData != nil && page.FanTralbumData.TralbumID != 0:
		id = page.FanTralbumData.TralbumID
	case page.AlbumID != 0:
		id = page.AlbumID
	default:
		return "", nil
	}
	return strconv.FormatInt(id, 10), nil
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	var out []string
	for _, s := range list {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
