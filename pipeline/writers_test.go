package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aluiziolira/go-scrape-cars/models"
)

func sampleEntries() []models.Entry {
	listing := models.Listing{
		ID:            "5_1234_xy",
		Make:          "Mazda",
		Model:         "CX-5",
		Year:          2021,
		MileageKM:     45200,
		Price:         23995,
		Color:         "Soul Red",
		Configuration: "GS AWD",
		URL:           "http://example.test/a/mazda/cx-5/toronto/5_1234_xy/",
		FetchedAt:     time.Date(2025, 11, 4, 13, 9, 13, 0, time.UTC),
	}
	return []models.Entry{
		{Listing: listing, Pick: &models.RankedPick{ListingID: listing.ID, Rank: 1, Reason: "low mileage", Exact: true}},
		{Listing: models.Listing{ID: "A2", Make: "Honda", Model: "CR-V", Year: 2020, URL: "http://example.test/a2/"}},
	}
}

func TestCSVWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "picks.csv")

	writer, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("create csv writer: %v", err)
	}

	if err := writer.Write(sampleEntries()); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate csv: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close csv: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records=%d, want 3", len(records))
	}
	if records[0][0] != "rank" || records[0][1] != "id" {
		t.Fatalf("unexpected header: %v", records[0])
	}
	if records[1][0] != "1" || records[1][6] != "23995.00" || records[1][10] != "low mileage" {
		t.Fatalf("unexpected ranked row: %v", records[1])
	}
	if records[2][0] != "" || records[2][10] != "" {
		t.Fatalf("unranked row should have no rank or reason: %v", records[2])
	}
}

func TestJSONWriterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "picks.jsonl")

	writer, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("create json writer: %v", err)
	}

	if err := writer.Write(sampleEntries()); err != nil {
		t.Fatalf("write json: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close json: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var rows []Row
	for scanner.Scan() {
		var decoded Row
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid json line: %v", err)
		}
		rows = append(rows, decoded)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan json: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("json lines=%d, want 2", len(rows))
	}
	if rows[0].Rank != 1 || rows[0].Reason != "low mileage" || !rows[0].Exact {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[0].FetchedAt != "2025-11-04T13:09:13Z" {
		t.Fatalf("fetched_at=%q", rows[0].FetchedAt)
	}
}

func TestNewWriterDual(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "picks.csv")
	jsonPath := filepath.Join(dir, "picks.jsonl")

	writer, err := NewWriter("dual", csvPath)
	if err != nil {
		t.Fatalf("create dual writer: %v", err)
	}

	if err := writer.Write(sampleEntries()); err != nil {
		t.Fatalf("write dual: %v", err)
	}
	if err := writer.Validate(); err != nil {
		t.Fatalf("validate dual: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close dual: %v", err)
	}

	if info, err := os.Stat(csvPath); err != nil || info.Size() == 0 {
		t.Fatalf("csv file missing or empty")
	}
	if info, err := os.Stat(jsonPath); err != nil || info.Size() == 0 {
		t.Fatalf("json file missing or empty")
	}
}

func TestNewWriterUnsupported(t *testing.T) {
	if _, err := NewWriter("xml", filepath.Join(t.TempDir(), "out.xml")); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}
