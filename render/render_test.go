package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-cars/models"
)

func testListings() []models.Listing {
	return []models.Listing{
		{ID: "A1", Make: "Mazda", Model: "CX-5", Year: 2021, MileageKM: 45200, Price: 23995, Configuration: "GS", URL: "http://example.test/A1"},
		{ID: "A2", Make: "Honda", Model: "CR-V", Year: 2020, MileageKM: 0, Price: 0, URL: "http://example.test/A2"},
	}
}

func TestShortlistTable(t *testing.T) {
	sl := &models.Shortlist{Picks: []models.RankedPick{
		{ListingID: "A2", Rank: 1, Reason: "Reliable and roomy", Exact: true},
		{ListingID: "A1", Rank: 2, Reason: "Good price", Exact: true},
	}}

	var buf bytes.Buffer
	if err := Shortlist(&buf, sl, testListings()); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"Why", "Reliable and roomy", "$23,995", "45,200 km", "n/a", "http://example.test/A1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Honda") > strings.Index(out, "Mazda") {
		t.Fatalf("rank order not preserved:\n%s", out)
	}
}

func TestUnrankedTableHasNoReasonColumn(t *testing.T) {
	var buf bytes.Buffer
	if err := Unranked(&buf, testListings()); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(buf.String(), "Why") {
		t.Fatalf("unranked output should not have a reason column:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "CX-5") {
		t.Fatalf("missing listing:\n%s", buf.String())
	}
}

func TestEntriesEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Entries(&buf, nil); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "No listings") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Price(1234567.4), "$1,234,567"},
		{Price(0), "n/a"},
		{Mileage(999), "999 km"},
		{Mileage(120000), "120,000 km"},
		{CacheAge(time.Time{}), "never"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Fatalf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestSummary(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	result := &models.SearchResult{
		Listings:  testListings(),
		Queries:   3,
		CacheHits: 1,
		Fetched:   1,
		Failures: []models.SubQueryFailure{{
			Query: models.SubQuery{Vehicle: models.MakeModel{Make: "Toyota", Model: "RAV4"}},
			Err:   errors.New("forbidden"),
		}},
		StartTime: start,
		EndTime:   start.Add(1500 * time.Millisecond),
	}

	var buf bytes.Buffer
	Summary(&buf, result, 2, &models.Shortlist{Dropped: 1})
	out := buf.String()
	for _, want := range []string{"3 (1 cached, 1 fetched, 1 failed)", "Toyota RAV4: forbidden", "1.5s", "1 dropped"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}
