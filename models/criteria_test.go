package models

import (
	"strings"
	"testing"
)

func validCriteria() SearchCriteria {
	return SearchCriteria{
		PostalCode:   "M5G 1N8",
		RadiusKM:     50,
		MaxMileageKM: 50000,
		YearMin:      2019,
		YearMax:      2024,
		MaxPrice:     25000,
		Vehicles: []MakeModel{
			{Make: "Nissan", Model: "Murano"},
			{Make: "Mazda", Model: "CX-5"},
		},
	}
}

func TestSearchCriteriaValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SearchCriteria)
		wantErr string
	}{
		{name: "empty postal", mutate: func(c *SearchCriteria) { c.PostalCode = " " }, wantErr: "postal code"},
		{name: "negative radius", mutate: func(c *SearchCriteria) { c.RadiusKM = -1 }, wantErr: "radius"},
		{name: "negative mileage", mutate: func(c *SearchCriteria) { c.MaxMileageKM = -5 }, wantErr: "mileage"},
		{name: "negative price", mutate: func(c *SearchCriteria) { c.MaxPrice = -1 }, wantErr: "price"},
		{name: "inverted years", mutate: func(c *SearchCriteria) { c.YearMin, c.YearMax = 2024, 2019 }, wantErr: "year min"},
		{name: "no vehicles", mutate: func(c *SearchCriteria) { c.Vehicles = nil }, wantErr: "make/model"},
		{name: "blank make only", mutate: func(c *SearchCriteria) { c.Vehicles = []MakeModel{{Make: " "}} }, wantErr: "make/model"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCriteria()
			tt.mutate(&c)
			if err := c.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSearchCriteriaValidateCollapsesDuplicates(t *testing.T) {
	c := validCriteria()
	c.Vehicles = append(c.Vehicles, MakeModel{Make: "nissan", Model: " murano "})

	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(c.Vehicles) != 2 {
		t.Fatalf("vehicles = %d, want 2", len(c.Vehicles))
	}
	if c.Priorities != DefaultPriorities {
		t.Fatalf("priorities = %q, want default", c.Priorities)
	}
}

func TestSubQueryKeyIsNormalized(t *testing.T) {
	a := SubQuery{
		Vehicle:      MakeModel{Make: "Toyota", Model: "RAV4"},
		PostalCode:   "M5G 1N8",
		RadiusKM:     50,
		MaxMileageKM: 50000,
		YearMin:      2019,
		YearMax:      2024,
		MaxPrice:     25000,
	}
	b := SubQuery{
		MaxPrice:     25000,
		YearMax:      2024,
		YearMin:      2019,
		MaxMileageKM: 50000,
		RadiusKM:     50,
		PostalCode:   " m5g1n8",
		Vehicle:      MakeModel{Model: "rav4 ", Make: " TOYOTA"},
	}
	if a.Key() != b.Key() {
		t.Fatalf("keys differ:\n%s\n%s", a.Key(), b.Key())
	}

	c := a
	c.MaxPrice = 30000
	if a.Key() == c.Key() {
		t.Fatalf("keys should differ when price bound changes")
	}

	d := a
	d.Vehicle.Model = "Highlander"
	if a.Key() == d.Key() {
		t.Fatalf("keys should differ when model changes")
	}

	e := a
	e.Source = "www.example.test?rcp=100"
	if a.Key() == e.Key() {
		t.Fatalf("keys should differ when the source changes")
	}
	f := e
	f.Source = "WWW.Example.test?rcp=100"
	if e.Key() != f.Key() {
		t.Fatalf("source should be case-folded:\n%s\n%s", e.Key(), f.Key())
	}
}
