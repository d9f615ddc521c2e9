package bandcamp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/bandwagon-dev/bandwagon/internal/domain"
)

// collectionAPIPath is the fan collection pagination endpoint.
const collectionAPIPath = "/api/fancollection/1/collection_items"

// wishlistAPIPath is the wishlist pagination endpoint.
const wishlistAPIPath = "/api/fancollection/1/wishlist_items"

// pageSize is deliberately oversized so pagination completes in a single
// API round trip for all but pathological collections.
const pageSize = 10000

// Fetcher implements domain.CollectionFetcher over fan profile pages and
// the fan collection API. Requests ride the borrowed session's cookie jar
// so the collection API accepts them.
type Fetcher struct {
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewFetcher creates a collection fetcher sharing the adapter's rate
// limiter.
func NewFetcher(baseURL, userAgent string, limiter *rate.Limiter, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		baseURL:   baseURL,
		userAgent: userAgent,
		limiter:   limiter,
		logger:    logger,
	}
}

// FetchItems fetches one supporter's collection or wishlist. Private and
// missing profiles yield an empty result, not an error, so a single
// locked-down supporter never sinks the whole aggregation.
func (f *Fetcher) FetchItems(ctx context.Context, sess domain.Session, username string, opts domain.FetchOptions, sink domain.MetadataSink) ([]string, error) {
	bcSess, ok := sess.(*Session)
	if !ok {
		return nil, fmt.Errorf("unexpected session type %T", sess)
	}

	page, found, err := f.fanPageData(ctx, bcSess, username, opts.Wishlist)
	if err != nil {
		return nil, err
	}
	if !found || page.FanData.FanID == 0 {
		f.logger.Debug("fan page unavailable", "username", username)
		return nil, nil
	}

	data := page.CollectionData
	cache := page.ItemCache.Collection
	if opts.Wishlist {
		data = page.WishlistData
		cache = page.ItemCache.Wishlist
	}

	sequence := data.Sequence
	if len(sequence) == 0 {
		sequence = data.PendingSequence
	}

	seen := make(map[string]struct{}, len(sequence))
	var ids []string
	add := func(key string, entry collectionEntry, cached bool) {
		id := key
		if entry.TralbumID != 0 {
			id = strconv.FormatInt(entry.TralbumID, 10)
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
		if cached {
			f.storeMetadata(ctx, bcSess, id, entry, opts.WantTags, sink)
		}
	}

	for _, key := range sequence {
		entry, cached := cache[key]
		add(key, entry, cached)
	}

	if opts.FirstPageOnly || data.LastToken == "" || len(ids) >= data.ItemCount {
		return ids, nil
	}

	rest, err := f.fetchRemaining(ctx, bcSess, page.FanData.FanID, data.LastToken, opts.Wishlist)
	if err != nil {
		f.logger.Warn("collection pagination failed, returning first page",
			"username", username, "session", bcSess.ID(), "error", err)
		return ids, nil
	}
	for _, entry := range rest {
		add(strconv.FormatInt(entry.TralbumID, 10), entry, true)
	}

	return ids, nil
}

// fanPageData fetches and parses the pagedata blob of a fan profile page.
// The second return reports whether the profile exists at all.
func (f *Fetcher) fanPageData(ctx context.Context, sess *Session, username string, wishlist bool) (*pageBlob, bool, error) {
	pageURL := f.baseURL + "/" + username
	if wishlist {
		pageURL += "/wishlist"
	}

	body, status, err := f.get(ctx, sess, pageURL)
	if err != nil {
		return nil, false, err
	}
	if status == http.StatusNotFound {
		return nil, false, nil
	}
	if status != http.StatusOK {
		return nil, false, fmt.Errorf("fan page status %d", status)
	}

	blob := findDataBlob(body, "pagedata")
	if blob == "" {
		return nil, false, nil
	}
	var page pageBlob
	if err := json.Unmarshal([]byte(blob), &page); err != nil {
		return nil, false, fmt.Errorf("parsing fan pagedata: %w", err)
	}
	return &page, true, nil
}

// fetchRemaining pages through the rest of a collection via the fan
// collection API in one oversized request.
func (f *Fetcher) fetchRemaining(ctx context.Context, sess *Session, fanID int64, token string, wishlist bool) ([]collectionEntry, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	path := collectionAPIPath
	if wishlist {
		path = wishlistAPIPath
	}

	payload, err := json.Marshal(collectionItemsRequest{
		FanID:          fanID,
		OlderThanToken: token,
		Count:          pageSize,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := sess.client.Do(req)
	if err != nil {
		return nil, domain.ErrServerUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("collection API status %d", resp.StatusCode)
	}

	var parsed collectionItemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parsing collection API response: %w", err)
	}
	return parsed.Items, nil
}

// storeMetadata records an item's metadata if it is not already known.
// The existence check runs before any tag fetch so an already cached item
// costs nothing.
func (f *Fetcher) storeMetadata(ctx context.Context, sess *Session, id string, entry collectionEntry, wantTags bool, sink domain.MetadataSink) {
	if _, ok := sink.Get(id); ok {
		return
	}

	item := domain.Item{
		ID:     id,
		Title:  entry.ItemTitle,
		Artist: entry.BandName,
		URL:    entry.ItemURL,
	}
	if item.Title == "" {
		item.Title = "Unknown Title"
	}
	if item.Artist == "" {
		item.Artist = "Unknown Artist"
	}

	if wantTags && entry.ItemURL != "" {
		tags, err := f.itemTags(ctx, sess, entry.ItemURL)
		if err != nil {
			f.logger.Debug("tag fetch failed", "url", entry.ItemURL, "error", err)
		} else {
			item.Tags = tags
		}
	}

	sink.StoreIfAbsent(item)
}

// itemTags fetches an item page and extracts its tag anchors.
func (f *Fetcher) itemTags(ctx context.Context, sess *Session, itemURL string) ([]string, error) {
	body, status, err := f.get(ctx, sess, itemURL)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("item page status %d", status)
	}
	return extractTagAnchors(body), nil
}

// get performs a rate limited GET through the session's client.
func (f *Fetcher) get(ctx context.Context, sess *Session, pageURL string) ([]byte, int, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := sess.client.Do(req)
	if err != nil {
		return nil, 0, domain.ErrServerUnreachable
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}
