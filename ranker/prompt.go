package ranker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-cars/models"
)

type promptListing struct {
	ID            string  `json:"id"`
	Make          string  `json:"Mk"`
	Model         string  `json:"Md"`
	Year          int     `json:"Yr"`
	MileageKM     int     `json:"Mi"`
	Price         float64 `json:"Pr"`
	Configuration string  `json:"Cfg,omitempty"`
	Title         string  `json:"Ttl,omitempty"`
}

// BuildPrompt renders the ranking request for listings.
func BuildPrompt(listings []models.Listing, priorities string, topN int) (string, error) {
	rows := make([]promptListing, len(listings))
	for i, l := range listings {
		rows[i] = promptListing{
			ID:            l.ID,
			Make:          l.Make,
			Model:         l.Model,
			Year:          l.Year,
			MileageKM:     l.MileageKM,
			Price:         l.Price,
			Configuration: l.Configuration,
			Title:         l.Title,
		}
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encode listings: %w", err)
	}

	if strings.TrimSpace(priorities) == "" {
		priorities = models.DefaultPriorities
	}

	var b strings.Builder
	b.WriteString("Here are used cars for sale as a JSON array. Fields: id, Mk (make), Md (model), Yr (year), Mi (mileage in km), Pr (price in dollars), Cfg (configuration), Ttl (title).\n\n")
	b.Write(payload)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "The buyer's priorities: %s.\n", priorities)
	fmt.Fprintf(&b, "Pick the best %d cars for this buyer, best first. ", topN)
	b.WriteString("Reply with only a JSON array, no prose, where each element has the fields ")
	b.WriteString(`id (copied exactly from the input), Rk (rank, 1 is best), Rsn (one sentence reason), Mk, Md, Yr, Mi, Pr, Cfg.`)
	b.WriteString("\nExample: [{\"id\":\"abc\",\"Rk\":1,\"Rsn\":\"Lowest price for the mileage.\",\"Mk\":\"Mazda\",\"Md\":\"CX-5\",\"Yr\":2021,\"Mi\":40000,\"Pr\":21000,\"Cfg\":\"GS AWD\"}]")
	return b.String(), nil
}
