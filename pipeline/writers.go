package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-scrape-cars/models"
)

// OutputWriter exports ranked or unranked rows.
type OutputWriter interface {
	Write(entries []models.Entry) error
	Close() error
	Validate() error
}

// NewWriter returns the writer for format. Dual output writes filename as
// CSV and a sibling .jsonl file.
func NewWriter(format, filename string) (OutputWriter, error) {
	switch format {
	case "json":
		return NewJSONWriter(filename)
	case "csv":
		return NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, filepath.Ext(filename)) + ".jsonl"
		return NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

// Row is the flattened export form of an entry.
type Row struct {
	Rank          int     `json:"rank,omitempty"`
	ID            string  `json:"id"`
	Make          string  `json:"make"`
	Model         string  `json:"model"`
	Year          int     `json:"year"`
	MileageKM     int     `json:"mileage_km"`
	Price         float64 `json:"price"`
	Color         string  `json:"color,omitempty"`
	Configuration string  `json:"configuration,omitempty"`
	URL           string  `json:"url"`
	Reason        string  `json:"reason,omitempty"`
	Exact         bool    `json:"exact,omitempty"`
	FetchedAt     string  `json:"fetched_at"`
}

func newRow(e models.Entry) Row {
	row := Row{
		ID:            e.Listing.ID,
		Make:          e.Listing.Make,
		Model:         e.Listing.Model,
		Year:          e.Listing.Year,
		MileageKM:     e.Listing.MileageKM,
		Price:         e.Listing.Price,
		Color:         e.Listing.Color,
		Configuration: e.Listing.Configuration,
		URL:           e.Listing.URL,
		FetchedAt:     e.Listing.FetchedAt.UTC().Format(time.RFC3339),
	}
	if e.Pick != nil {
		row.Rank = e.Pick.Rank
		row.Reason = e.Pick.Reason
		row.Exact = e.Pick.Exact
	}
	return row
}

// CSVWriter writes records to CSV.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	header := []string{"rank", "id", "make", "model", "year", "mileage_km", "price", "color", "configuration", "url", "reason", "fetched_at"}
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends entries to the CSV output.
func (cw *CSVWriter) Write(entries []models.Entry) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, e := range entries {
		row := newRow(e)
		rank := ""
		if row.Rank > 0 {
			rank = strconv.Itoa(row.Rank)
		}
		record := []string{
			rank,
			row.ID,
			row.Make,
			row.Model,
			strconv.Itoa(row.Year),
			strconv.Itoa(row.MileageKM),
			strconv.FormatFloat(row.Price, 'f', 2, 64),
			row.Color,
			row.Configuration,
			row.URL,
			row.Reason,
			row.FetchedAt,
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter initialises the JSON writer.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONWriter{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends entries in JSONL format.
func (jw *JSONWriter) Write(entries []models.Entry) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, e := range entries {
		if err := jw.encoder.Encode(newRow(e)); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}

	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

// Validate ensures the JSON file has data.
func (jw *JSONWriter) Validate() error {
	info, err := jw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
