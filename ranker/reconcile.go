package ranker

import (
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/aluiziolira/go-scrape-cars/models"
)

// priceTolerance is the relative difference allowed when matching a pick to
// a listing by its fields.
const priceTolerance = 0.01

// Reconcile maps candidates onto listings. Picks that name an unknown
// listing are matched by make, model, year and price when exactly one
// listing fits; otherwise they are dropped. The result is ordered by the
// model's rank, renumbered from 1, and capped at topN when topN > 0.
func Reconcile(candidates []Candidate, listings []models.Listing, topN int) *models.Shortlist {
	sl := &models.Shortlist{}
	index := models.IndexListings(listings)
	folded := make(map[string]string, len(index))
	for id := range index {
		folded[strings.ToLower(id)] = id
	}

	var picks []models.RankedPick
	chosen := make(map[string]struct{})

	for _, c := range candidates {
		if c.Kind == ParseFailure {
			sl.ParseFailures++
			slog.Debug("unparseable pick", slog.String("raw", c.Raw))
			continue
		}

		id, exact := "", false
		if c.Kind == WellFormed {
			if _, ok := index[c.ID]; ok {
				id, exact = c.ID, true
			} else if canonical, ok := folded[strings.ToLower(c.ID)]; ok {
				id, exact = canonical, true
			}
		}
		if id == "" {
			id = matchByFields(c, listings)
		}
		if id == "" {
			sl.Dropped++
			slog.Debug("pick does not match any listing",
				slog.String("id", c.ID),
				slog.String("make", c.Make),
				slog.String("model", c.Model),
				slog.Int("year", c.Year),
			)
			continue
		}
		if _, dup := chosen[id]; dup {
			sl.Duplicates++
			continue
		}
		if !exact {
			slog.Info("pick matched by fields", slog.String("reference", c.ID), slog.String("listing_id", id))
		}
		chosen[id] = struct{}{}
		picks = append(picks, models.RankedPick{ListingID: id, Rank: c.Rank, Reason: c.Reason, Exact: exact})
	}

	sort.SliceStable(picks, func(i, j int) bool {
		ri, rj := picks[i].Rank, picks[j].Rank
		switch {
		case ri > 0 && rj > 0:
			return ri < rj
		case ri > 0:
			return true
		default:
			return false
		}
	})

	if topN > 0 && len(picks) > topN {
		picks = picks[:topN]
	}
	for i := range picks {
		picks[i].Rank = i + 1
		if !picks[i].Exact {
			sl.Inexact++
		}
	}
	sl.Picks = picks
	return sl
}

func matchByFields(c Candidate, listings []models.Listing) string {
	if c.Make == "" || c.Model == "" {
		return ""
	}
	match := ""
	for _, l := range listings {
		if !strings.EqualFold(l.Make, c.Make) || !strings.EqualFold(l.Model, c.Model) {
			continue
		}
		if c.Year > 0 && l.Year != c.Year {
			continue
		}
		if c.Price > 0 && !withinTolerance(l.Price, c.Price) {
			continue
		}
		if match != "" && match != l.ID {
			return ""
		}
		match = l.ID
	}
	return match
}

func withinTolerance(actual, claimed float64) bool {
	if actual == 0 {
		return false
	}
	return math.Abs(actual-claimed)/actual <= priceTolerance
}
