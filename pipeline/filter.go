package pipeline

import (
	"sort"

	"github.com/aluiziolira/go-scrape-cars/models"
)

// Filter drops listings outside the criteria bounds, orders the rest by
// price then mileage, and keeps at most limit of them. Zero mileage or price
// bounds mean unbounded; limit <= 0 keeps everything.
func Filter(listings []models.Listing, criteria models.SearchCriteria, limit int) []models.Listing {
	out := make([]models.Listing, 0, len(listings))
	for _, l := range listings {
		if criteria.YearMin > 0 && l.Year < criteria.YearMin {
			continue
		}
		if criteria.YearMax > 0 && l.Year > criteria.YearMax {
			continue
		}
		if criteria.MaxMileageKM > 0 && l.MileageKM > criteria.MaxMileageKM {
			continue
		}
		if criteria.MaxPrice > 0 && l.Price > float64(criteria.MaxPrice) {
			continue
		}
		out = append(out, l)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].MileageKM < out[j].MileageKM
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
