package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-cars/models"
)

var (
	numberRegexp = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	idRegexp     = regexp.MustCompile(`[^A-Za-z0-9_-]+`)
)

// ValidateListing ensures the scraper captured the fields ranking depends on.
func ValidateListing(l *models.Listing) error {
	if l == nil {
		return fmt.Errorf("listing is nil")
	}
	if strings.TrimSpace(l.ID) == "" {
		return fmt.Errorf("listing missing id")
	}
	if strings.TrimSpace(l.URL) == "" {
		return fmt.Errorf("listing missing url for %s", l.ID)
	}
	if strings.TrimSpace(l.Make) == "" {
		return fmt.Errorf("listing missing make for %s", l.ID)
	}
	if l.Year <= 0 {
		return fmt.Errorf("listing missing year for %s", l.ID)
	}
	return nil
}

// ListingID derives a stable identifier from a listing URL: the last
// non-empty path segment, or a short hash when the path carries none.
func ListingID(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if u, err := url.Parse(rawURL); err == nil {
		segments := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i := len(segments) - 1; i >= 0; i-- {
			seg := idRegexp.ReplaceAllString(segments[i], "")
			if seg != "" && seg != "index" {
				return seg
			}
		}
	}
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:6])
}

// NormalizePrice extracts the numeric amount from text such as "$25,999.00".
func NormalizePrice(text string) (float64, error) {
	match := numberRegexp.FindString(strings.TrimSpace(text))
	if match == "" {
		return 0, fmt.Errorf("no price in %q", text)
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", text, err)
	}
	return value, nil
}

// NormalizeInt extracts a whole number from text such as "45,120 km" or "2021".
func NormalizeInt(text string) (int, error) {
	value, err := NormalizePrice(text)
	if err != nil {
		return 0, err
	}
	return int(value), nil
}

// NormalizeText collapses runs of whitespace.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ParseYearRange accepts "2019-2024" or a single year.
func ParseYearRange(text string) (int, int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, 0, fmt.Errorf("year range is empty")
	}
	start, end, found := strings.Cut(text, "-")
	min, err := strconv.Atoi(strings.TrimSpace(start))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year range %q: use a form like 2019-2024", text)
	}
	if !found {
		return min, min, nil
	}
	max, err := strconv.Atoi(strings.TrimSpace(end))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year range %q: use a form like 2019-2024", text)
	}
	return min, max, nil
}

// ParseVehicles splits a comma separated list such as "Nissan Murano, Mazda CX-5".
// The first word of each term is the make and the remainder the model.
func ParseVehicles(text string) []models.MakeModel {
	var out []models.MakeModel
	for _, term := range strings.Split(text, ",") {
		fields := strings.Fields(term)
		if len(fields) == 0 {
			continue
		}
		mm := models.MakeModel{Make: fields[0]}
		if len(fields) > 1 {
			mm.Model = strings.Join(fields[1:], " ")
		}
		out = append(out, mm)
	}
	return out
}
