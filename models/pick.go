package models

// RankedPick is one AI-ranked reference to a listing in the merged set.
type RankedPick struct {
	ListingID string `json:"listing_id"`
	Rank      int    `json:"rank"`
	Reason    string `json:"reason"`
	Exact     bool   `json:"exact"`
}

// Shortlist is the reconciled output of one ranking call.
type Shortlist struct {
	Picks         []RankedPick
	Dropped       int
	Inexact       int
	Duplicates    int
	ParseFailures int
}

// Entry pairs a listing with its pick for presentation. Pick is nil for
// unranked output.
type Entry struct {
	Listing Listing
	Pick    *RankedPick
}

// Entries resolves the shortlist against the listings it was ranked from.
// Picks whose listing is missing from the set are skipped.
func (s *Shortlist) Entries(listings []Listing) []Entry {
	if s == nil {
		return nil
	}
	index := IndexListings(listings)
	out := make([]Entry, 0, len(s.Picks))
	for i := range s.Picks {
		l, ok := index[s.Picks[i].ListingID]
		if !ok {
			continue
		}
		out = append(out, Entry{Listing: l, Pick: &s.Picks[i]})
	}
	return out
}

// UnrankedEntries wraps listings as entries without picks.
func UnrankedEntries(listings []Listing) []Entry {
	out := make([]Entry, len(listings))
	for i, l := range listings {
		out[i] = Entry{Listing: l}
	}
	return out
}
