// Package render prints shortlists and search summaries for the terminal.
package render

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/aluiziolira/go-scrape-cars/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	reasonStyle = cellStyle.Width(50)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
)

// Entries prints entries as a table. The rank and reason columns are shown
// only when at least one entry carries a pick.
func Entries(w io.Writer, entries []models.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No listings to show.")
		return err
	}

	ranked := false
	for _, e := range entries {
		if e.Pick != nil {
			ranked = true
			break
		}
	}

	headers := []string{"Year", "Make", "Model", "Config", "Mileage", "Price", "Link"}
	if ranked {
		headers = append([]string{"#"}, append(headers, "Why")...)
	}
	reasonCol := len(headers) - 1

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		l := e.Listing
		row := []string{
			strconv.Itoa(l.Year),
			l.Make,
			l.Model,
			l.Configuration,
			Mileage(l.MileageKM),
			Price(l.Price),
			l.URL,
		}
		if ranked {
			rank, reason := "", ""
			if e.Pick != nil {
				rank = strconv.Itoa(e.Pick.Rank)
				reason = e.Pick.Reason
			}
			row = append([]string{rank}, append(row, reason)...)
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case ranked && col == reasonCol:
				return reasonStyle
			default:
				return cellStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// Shortlist prints the ranked picks resolved against listings.
func Shortlist(w io.Writer, sl *models.Shortlist, listings []models.Listing) error {
	return Entries(w, sl.Entries(listings))
}

// Unranked prints listings without picks, in the order given.
func Unranked(w io.Writer, listings []models.Listing) error {
	return Entries(w, models.UnrankedEntries(listings))
}

// Price formats a dollar amount, "n/a" when unknown.
func Price(p float64) string {
	if p <= 0 {
		return "n/a"
	}
	return "$" + humanize.Comma(int64(p+0.5))
}

// Mileage formats a kilometre reading.
func Mileage(km int) string {
	if km <= 0 {
		return "n/a"
	}
	return humanize.Comma(int64(km)) + " km"
}

// Summary prints the run totals after the table.
func Summary(w io.Writer, result *models.SearchResult, shown int, sl *models.Shortlist) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, separator)
	if result != nil {
		fmt.Fprintf(w, "Sub-queries:  %d (%d cached, %d fetched, %d failed)\n",
			result.Queries, result.CacheHits, result.Fetched, len(result.Failures))
		fmt.Fprintf(w, "Listings:     %s found, %d shown\n", humanize.Comma(int64(len(result.Listings))), shown)
		if !result.StartTime.IsZero() && !result.EndTime.IsZero() {
			fmt.Fprintf(w, "Search time:  %s\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
		}
		for _, f := range result.Failures {
			fmt.Fprintf(w, "  failed: %s: %v\n", f.Query, f.Err)
		}
	}
	if sl != nil {
		fmt.Fprintf(w, "Picks:        %d (%d dropped, %d matched by fields)\n", len(sl.Picks), sl.Dropped, sl.Inexact)
	}
	fmt.Fprintln(w, separator)
}

// CacheAge describes when an entry was fetched relative to now.
func CacheAge(fetched time.Time) string {
	if fetched.IsZero() {
		return "never"
	}
	return humanize.Time(fetched)
}
