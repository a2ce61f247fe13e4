package models

import (
	"net/url"
	"regexp"
	"time"

	"domus/geo"
)

// KV is one labelled cell of a listing page, kept in page order.
type KV struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// SearchMeta describes the crawl that produced a listing.
type SearchMeta struct {
	SearchURL  string     `json:"search_url" db:"search_url"`
	SearchArgs url.Values `json:"search_args" db:"search_args"`
	RankOrder  int        `json:"rank_order" db:"rank_order"`
	SearchTime time.Time  `json:"search_time" db:"search_time"`
	CreateTime time.Time  `json:"create_time" db:"create_time"`
}

// ListingSummary is one row of a search results page.
type ListingSummary struct {
	URL        string `json:"url" db:"url"`
	Title      string `json:"title" db:"title"`
	Properties []KV   `json:"properties" db:"properties"`
	RankOrder  int    `json:"rank_order" db:"rank_order"`
}

// ListingDetail is the parsed content of a listing's own page.
type ListingDetail struct {
	GPS            *geo.Point `json:"gps,omitempty"`
	ContentDetails []KV       `json:"content_details"`
	NearbyPlaces   []KV       `json:"nearby_places"`
}

// Get returns the content of the first attribute labelled exactly label.
func (d *ListingDetail) Get(label string) (string, bool) {
	for _, kv := range d.ContentDetails {
		if kv.Type == label {
			return kv.Content, true
		}
	}
	return "", false
}

// FirstMatch returns the content of the first attribute whose label matches re.
func (d *ListingDetail) FirstMatch(re *regexp.Regexp) (string, bool) {
	for _, kv := range d.ContentDetails {
		if re.MatchString(kv.Type) {
			return kv.Content, true
		}
	}
	return "", false
}

// DetailRecord is what detail mode persists: the parsed page plus the
// summary it was reached from and the crawl metadata.
type DetailRecord struct {
	ListingDetail
	Search ListingSummary `json:"search_details"`
	Meta   SearchMeta     `json:"meta"`
}

// ID is the listing id used as the feature table key.
func (r *DetailRecord) ID() string {
	return r.Search.URL
}

// ListingFilter selects stored detail records for the feature table.
type ListingFilter struct {
	SearchURL  string
	SearchTime *time.Time
	Since      *time.Time
	Limit      int
}
