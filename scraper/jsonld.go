package scraper

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/go-scrape-cars/models"
	"github.com/aluiziolira/go-scrape-cars/parser"
)

// ldText decodes a JSON-LD value that may be a string, a number, or an
// object carrying "name" or "value".
type ldText string

func (t *ldText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = ldText(s)
	case '{':
		var obj struct {
			Name  *ldText `json:"name"`
			Value *ldText `json:"value"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		switch {
		case obj.Value != nil:
			*t = *obj.Value
		case obj.Name != nil:
			*t = *obj.Name
		}
	case '[':
		var items []ldText
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		if len(items) > 0 {
			*t = items[0]
		}
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*t = ldText(n.String())
	}
	return nil
}

func (t ldText) String() string {
	return strings.TrimSpace(string(t))
}

type ldCar struct {
	Type          ldText `json:"@type"`
	URL           ldText `json:"url"`
	Name          ldText `json:"name"`
	Description   ldText `json:"description"`
	Brand         ldText `json:"brand"`
	Model         ldText `json:"model"`
	Year          ldText `json:"vehicleModelDate"`
	Color         ldText `json:"color"`
	Mileage       ldText `json:"mileageFromOdometer"`
	Configuration ldText `json:"vehicleConfiguration"`
	Offers        struct {
		Price ldText `json:"price"`
	} `json:"offers"`
}

// extractCar finds the first "Car" node in a JSON-LD script body. The body
// may hold a single node, an array of nodes, or an @graph wrapper.
func extractCar(body string) (*ldCar, bool) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, false
	}

	var nodes []json.RawMessage
	switch body[0] {
	case '[':
		if err := json.Unmarshal([]byte(body), &nodes); err != nil {
			return nil, false
		}
	case '{':
		var graph struct {
			Graph []json.RawMessage `json:"@graph"`
		}
		if err := json.Unmarshal([]byte(body), &graph); err != nil {
			return nil, false
		}
		nodes = append(graph.Graph, json.RawMessage(body))
	default:
		return nil, false
	}

	for _, raw := range nodes {
		var car ldCar
		if err := json.Unmarshal(raw, &car); err != nil {
			continue
		}
		if strings.EqualFold(car.Type.String(), "Car") {
			return &car, true
		}
	}
	return nil, false
}

// toListing converts a JSON-LD car into a listing. pageURL is used when the
// node carries no url of its own.
func (c *ldCar) toListing(pageURL string, fetchedAt time.Time) models.Listing {
	listingURL := c.URL.String()
	if listingURL == "" {
		listingURL = pageURL
	}

	l := models.Listing{
		ID:            parser.ListingID(listingURL),
		Make:          parser.NormalizeText(c.Brand.String()),
		Model:         parser.NormalizeText(c.Model.String()),
		URL:           listingURL,
		Title:         parser.NormalizeText(c.Name.String()),
		Description:   parser.NormalizeText(c.Description.String()),
		Color:         parser.NormalizeText(c.Color.String()),
		Configuration: parser.NormalizeText(c.Configuration.String()),
		FetchedAt:     fetchedAt,
	}
	if year, err := strconv.Atoi(c.Year.String()); err == nil {
		l.Year = year
	} else if year, err := parser.NormalizeInt(c.Year.String()); err == nil {
		l.Year = year
	}
	if mileage, err := parser.NormalizeInt(c.Mileage.String()); err == nil {
		l.MileageKM = mileage
	}
	if price, err := parser.NormalizePrice(c.Offers.Price.String()); err == nil {
		l.Price = price
	}
	return l
}
