package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aluiziolira/go-scrape-cars/models"
	"github.com/aluiziolira/go-scrape-cars/parser"
)

// Criteria defaults used when neither a file nor flags provide a value.
const (
	DefaultPostalCode   = "M5G 1N8"
	DefaultRadiusKM     = 50
	DefaultMaxMileageKM = 50000
	DefaultYearRange    = "2019-2024"
	DefaultMaxPrice     = 25000
	DefaultVehicles     = "Nissan Murano, Mazda CX-5, Toyota RAV4, Honda CR-V"
)

// DefaultCriteria returns the stock search.
func DefaultCriteria() models.SearchCriteria {
	min, max, _ := parser.ParseYearRange(DefaultYearRange)
	return models.SearchCriteria{
		PostalCode:   DefaultPostalCode,
		RadiusKM:     DefaultRadiusKM,
		MaxMileageKM: DefaultMaxMileageKM,
		YearMin:      min,
		YearMax:      max,
		MaxPrice:     DefaultMaxPrice,
		Vehicles:     parser.ParseVehicles(DefaultVehicles),
		Priorities:   models.DefaultPriorities,
	}
}

// criteriaFile is the YAML shape. Vehicles may be given as structured pairs
// or as "Make Model" strings; years as a range string or explicit bounds.
type criteriaFile struct {
	PostalCode   *string            `yaml:"postal_code"`
	RadiusKM     *int               `yaml:"radius_km"`
	MaxMileageKM *int               `yaml:"max_mileage_km"`
	Years        string             `yaml:"years"`
	YearMin      *int               `yaml:"year_min"`
	YearMax      *int               `yaml:"year_max"`
	MaxPrice     *int               `yaml:"max_price"`
	Vehicles     []models.MakeModel `yaml:"vehicles"`
	Search       []string           `yaml:"search"`
	Priorities   string             `yaml:"priorities"`
}

// LoadCriteria reads a YAML criteria file on top of DefaultCriteria.
func LoadCriteria(path string) (models.SearchCriteria, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.SearchCriteria{}, fmt.Errorf("read criteria file: %w", err)
	}
	return ParseCriteria(data)
}

// ParseCriteria decodes YAML criteria on top of DefaultCriteria.
func ParseCriteria(data []byte) (models.SearchCriteria, error) {
	var f criteriaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return models.SearchCriteria{}, fmt.Errorf("decode criteria: %w", err)
	}

	c := DefaultCriteria()
	if f.PostalCode != nil {
		c.PostalCode = *f.PostalCode
	}
	if f.RadiusKM != nil {
		c.RadiusKM = *f.RadiusKM
	}
	if f.MaxMileageKM != nil {
		c.MaxMileageKM = *f.MaxMileageKM
	}
	if f.MaxPrice != nil {
		c.MaxPrice = *f.MaxPrice
	}
	if f.Years != "" {
		min, max, err := parser.ParseYearRange(f.Years)
		if err != nil {
			return models.SearchCriteria{}, err
		}
		c.YearMin, c.YearMax = min, max
	}
	if f.YearMin != nil {
		c.YearMin = *f.YearMin
	}
	if f.YearMax != nil {
		c.YearMax = *f.YearMax
	}
	if len(f.Vehicles) > 0 || len(f.Search) > 0 {
		vehicles := append([]models.MakeModel(nil), f.Vehicles...)
		for _, term := range f.Search {
			vehicles = append(vehicles, parser.ParseVehicles(term)...)
		}
		c.Vehicles = vehicles
	}
	if f.Priorities != "" {
		c.Priorities = f.Priorities
	}
	return c, nil
}
