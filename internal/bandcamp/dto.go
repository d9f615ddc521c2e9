package bandcamp

// Wire structures for the JSON blobs Bandcamp embeds in its pages and the
// fan collection API. Only the fields the engine needs are mapped.

// collectorsBlob is the #collectors-data data-blob on album/track pages.
type collectorsBlob struct {
	Thumbs []struct {
		Username string `json:"username"`
	} `json:"thumbs"`
}

// pageBlob is the #pagedata data-blob. Album pages carry tralbum data; fan
// pages carry the fan id plus the first page of the collection/wishlist.
type pageBlob struct {
	AlbumID int64 `json:"album_id"`

	TralbumData *struct {
		TralbumID int64 `json:"tralbum_id"`
	} `json:"tralbum_data"`

	FanTralbumData *struct {
		TralbumID int64 `json:"tralbum_id"`
	} `json:"fan_tralbum_data"`

	FanData struct {
		FanID int64 `json:"fan_id"`
	} `json:"fan_data"`

	CollectionData collectionBlob `json:"collection_data"`
	WishlistData   collectionBlob `json:"wishlist_data"`

	ItemCache struct {
		Collection map[string]collectionEntry `json:"collection"`
		Wishlist   map[string]collectionEntry `json:"wishlist"`
	} `json:"item_cache"`
}

// collectionBlob describes the first page of a fan's collection or
// wishlist plus the pagination token for the rest.
type collectionBlob struct {
	Sequence        []string `json:"sequence"`
	PendingSequence []string `json:"pending_sequence"`
	LastToken       string   `json:"last_token"`
	ItemCount       int      `json:"item_count"`
}

// collectionEntry is one item as it appears in the page item cache and in
// collection API responses.
type collectionEntry struct {
	TralbumID int64  `json:"tralbum_id"`
	ItemTitle string `json:"item_title"`
	BandName  string `json:"band_name"`
	ItemURL   string `json:"item_url"`
}

// collectionItemsRequest is the POST body for the fan collection API.
type collectionItemsRequest struct {
	FanID          int64  `json:"fan_id"`
	OlderThanToken string `json:"older_than_token"`
	Count          int    `json:"count"`
}

// collectionItemsResponse is the fan collection API response.
type collectionItemsResponse struct {
	Items []collectionEntry `json:"items"`
}
