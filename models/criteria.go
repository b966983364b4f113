package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultPriorities is used when the user states none.
const DefaultPriorities = "value for money"

// MakeModel is a single make/model pair. An empty Model means every model of the make.
type MakeModel struct {
	Make  string `yaml:"make" json:"make"`
	Model string `yaml:"model" json:"model"`
}

func (mm MakeModel) String() string {
	return strings.TrimSpace(mm.Make + " " + mm.Model)
}

// SearchCriteria is the user's search request for one run.
type SearchCriteria struct {
	PostalCode   string      `yaml:"postal_code"`
	RadiusKM     int         `yaml:"radius_km"`
	MaxMileageKM int         `yaml:"max_mileage_km"`
	YearMin      int         `yaml:"year_min"`
	YearMax      int         `yaml:"year_max"`
	MaxPrice     int         `yaml:"max_price"`
	Vehicles     []MakeModel `yaml:"vehicles"`
	Priorities   string      `yaml:"priorities"`
}

// Validate checks the criteria invariants and collapses duplicate vehicles.
func (c *SearchCriteria) Validate() error {
	if strings.TrimSpace(c.PostalCode) == "" {
		return errors.New("postal code cannot be empty")
	}
	if c.RadiusKM < 0 {
		return errors.New("radius cannot be negative")
	}
	if c.MaxMileageKM < 0 {
		return errors.New("max mileage cannot be negative")
	}
	if c.MaxPrice < 0 {
		return errors.New("max price cannot be negative")
	}
	if c.YearMin <= 0 || c.YearMax <= 0 {
		return errors.New("year range must be set")
	}
	if c.YearMin > c.YearMax {
		return fmt.Errorf("year min (%d) cannot exceed year max (%d)", c.YearMin, c.YearMax)
	}

	seen := make(map[string]struct{}, len(c.Vehicles))
	vehicles := make([]MakeModel, 0, len(c.Vehicles))
	for _, v := range c.Vehicles {
		v.Make = strings.TrimSpace(v.Make)
		v.Model = strings.TrimSpace(v.Model)
		if v.Make == "" {
			continue
		}
		key := strings.ToLower(v.Make + "\x00" + v.Model)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		vehicles = append(vehicles, v)
	}
	if len(vehicles) == 0 {
		return errors.New("at least one make/model is required")
	}
	c.Vehicles = vehicles

	if strings.TrimSpace(c.Priorities) == "" {
		c.Priorities = DefaultPriorities
	}
	return nil
}

// SubQuery is a single make/model query unit sent to a listing source.
type SubQuery struct {
	// Source identifies the listings site and page size the query runs against.
	Source       string
	Vehicle      MakeModel
	PostalCode   string
	RadiusKM     int
	MaxMileageKM int
	YearMin      int
	YearMax      int
	MaxPrice     int
}

// Key returns the normalized cache key for the sub-query. Fields are written in
// a fixed lexical order with case and whitespace folded, so equal criteria
// always produce equal keys.
func (q SubQuery) Key() string {
	fields := []struct {
		name  string
		value string
	}{
		{"make", foldText(q.Vehicle.Make)},
		{"max_mileage_km", strconv.Itoa(q.MaxMileageKM)},
		{"max_price", strconv.Itoa(q.MaxPrice)},
		{"model", foldText(q.Vehicle.Model)},
		{"postal_code", foldPostal(q.PostalCode)},
		{"radius_km", strconv.Itoa(q.RadiusKM)},
		{"source", strings.ToLower(strings.TrimSpace(q.Source))},
		{"year_max", strconv.Itoa(q.YearMax)},
		{"year_min", strconv.Itoa(q.YearMin)},
	}

	var b strings.Builder
	b.WriteString("v2")
	for _, f := range fields {
		b.WriteByte('|')
		b.WriteString(f.name)
		b.WriteByte('=')
		b.WriteString(f.value)
	}
	return b.String()
}

func (q SubQuery) String() string {
	return q.Vehicle.String()
}

func foldText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func foldPostal(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
