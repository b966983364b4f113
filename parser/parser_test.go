package parser

import (
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-cars/models"
)

func TestValidateListing(t *testing.T) {
	tests := []struct {
		name    string
		listing *models.Listing
		wantErr bool
	}{
		{
			name: "valid listing",
			listing: &models.Listing{
				ID:        "5_123",
				Make:      "Mazda",
				Model:     "CX-5",
				Year:      2021,
				URL:       "https://example.test/a/mazda/cx-5/5_123/",
				FetchedAt: time.Now(),
			},
		},
		{name: "nil", listing: nil, wantErr: true},
		{name: "missing id", listing: &models.Listing{Make: "Mazda", Year: 2021, URL: "u"}, wantErr: true},
		{name: "missing url", listing: &models.Listing{ID: "1", Make: "Mazda", Year: 2021}, wantErr: true},
		{name: "missing make", listing: &models.Listing{ID: "1", Year: 2021, URL: "u"}, wantErr: true},
		{name: "missing year", listing: &models.Listing{ID: "1", Make: "Mazda", URL: "u"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateListing(tt.listing)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateListing() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestListingID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "trailing slash", input: "https://www.autotrader.ca/a/nissan/murano/toronto/ontario/5_61234567_on20080101/", expected: "5_61234567_on20080101"},
		{name: "no trailing slash", input: "https://example.test/cars/abc-123", expected: "abc-123"},
		{name: "query ignored", input: "https://example.test/cars/abc-123?utm=x", expected: "abc-123"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ListingID(tt.input); got != tt.expected {
				t.Errorf("ListingID(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}

	hashed := ListingID("https://example.test/")
	if len(hashed) != 12 {
		t.Errorf("ListingID for bare host = %q, want 12 hex chars", hashed)
	}
	if ListingID("https://example.test/") != hashed {
		t.Errorf("hashed id must be stable")
	}
}

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
		wantErr  bool
	}{
		{name: "dollar with comma", input: "$25,999", expected: 25999},
		{name: "decimal", input: "18500.50", expected: 18500.5},
		{name: "surrounding text", input: " CAD 21,000.00 + tax", expected: 21000},
		{name: "empty", input: "", wantErr: true},
		{name: "no digits", input: "call for price", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePrice(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizePrice(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.expected {
				t.Errorf("NormalizePrice(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeInt(t *testing.T) {
	got, err := NormalizeInt("45,120 km")
	if err != nil {
		t.Fatalf("NormalizeInt: %v", err)
	}
	if got != 45120 {
		t.Errorf("NormalizeInt = %d, want 45120", got)
	}
}

func TestParseYearRange(t *testing.T) {
	tests := []struct {
		input    string
		min, max int
		wantErr  bool
	}{
		{input: "2019-2024", min: 2019, max: 2024},
		{input: " 2019 - 2024 ", min: 2019, max: 2024},
		{input: "2022", min: 2022, max: 2022},
		{input: "", wantErr: true},
		{input: "twenty-19", wantErr: true},
		{input: "2019-", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			min, max, err := ParseYearRange(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseYearRange(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && (min != tt.min || max != tt.max) {
				t.Errorf("ParseYearRange(%q) = %d-%d, want %d-%d", tt.input, min, max, tt.min, tt.max)
			}
		})
	}
}

func TestParseVehicles(t *testing.T) {
	got := ParseVehicles("Nissan Murano, Mazda CX-5,  Land Rover Discovery Sport ,Tesla, ")
	want := []models.MakeModel{
		{Make: "Nissan", Model: "Murano"},
		{Make: "Mazda", Model: "CX-5"},
		{Make: "Land", Model: "Rover Discovery Sport"},
		{Make: "Tesla"},
	}
	if len(got) != len(want) {
		t.Fatalf("ParseVehicles len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParseVehicles[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestNormalizeText(t *testing.T) {
	if got := NormalizeText("  2021  Mazda\n CX-5 GT "); got != "2021 Mazda CX-5 GT" {
		t.Errorf("NormalizeText = %q", got)
	}
}
