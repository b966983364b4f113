// Package models defines data structures shared by the search, cache and rank stages.
package models

import "time"

// Listing represents one car-for-sale record from the listings site.
type Listing struct {
	ID            string    `csv:"id" json:"id"`
	Make          string    `csv:"make" json:"make"`
	Model         string    `csv:"model" json:"model"`
	Year          int       `csv:"year" json:"year"`
	MileageKM     int       `csv:"mileage_km" json:"mileage_km"`
	Price         float64   `csv:"price" json:"price"`
	URL           string    `csv:"url" json:"url"`
	Title         string    `csv:"title" json:"title,omitempty"`
	Description   string    `csv:"description" json:"description,omitempty"`
	Color         string    `csv:"color" json:"color,omitempty"`
	Configuration string    `csv:"configuration" json:"configuration,omitempty"`
	FetchedAt     time.Time `csv:"fetched_at" json:"fetched_at"`
}

// CacheEntry is one persisted result set for a normalized query key.
type CacheEntry struct {
	Key       string    `json:"key"`
	Listings  []Listing `json:"listings"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SubQueryFailure records a sub-query that contributed no listings.
type SubQueryFailure struct {
	Query SubQuery
	Err   error
}

// SearchResult holds the merged outcome of executing a set of sub-queries.
type SearchResult struct {
	Listings  []Listing
	Failures  []SubQueryFailure
	Queries   int
	CacheHits int
	Fetched   int
	StartTime time.Time
	EndTime   time.Time
}

// IndexListings maps listing IDs to their records.
func IndexListings(listings []Listing) map[string]Listing {
	index := make(map[string]Listing, len(listings))
	for _, l := range listings {
		if _, ok := index[l.ID]; !ok {
			index[l.ID] = l
		}
	}
	return index
}
