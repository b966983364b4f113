package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "negative parallelism",
			mutate: func(cfg *Config) {
				cfg.Parallelism = -1
			},
			wantErr: "parallelism",
		},
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid url format",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "backoff above max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = 5 * time.Second
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "unknown provider",
			mutate: func(cfg *Config) {
				cfg.LLMProvider = "llama"
			},
			wantErr: "llm provider",
		},
		{
			name: "zero rank attempts",
			mutate: func(cfg *Config) {
				cfg.RankAttempts = 0
			},
			wantErr: "rank attempts",
		},
		{
			name: "negative cache ttl",
			mutate: func(cfg *Config) {
				cfg.CacheTTL = -time.Hour
			},
			wantErr: "cache ttl",
		},
		{
			name: "bad output format",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "xml"
				cfg.OutputFile = "out.xml"
			},
			wantErr: "output format",
		},
		{
			name: "format without file",
			mutate: func(cfg *Config) {
				cfg.OutputFormat = "csv"
			},
			wantErr: "output file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CARPICKS_PARALLEL", "8")
	t.Setenv("CARPICKS_CACHE_TTL", "24h")
	t.Setenv("CARPICKS_LLM_PROVIDER", "gemini")
	t.Setenv("CARPICKS_VERBOSE", "true")
	t.Setenv("CARPICKS_LLM_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "g-key")

	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	cfg.ResolveProvider()

	if cfg.Parallelism != 8 {
		t.Errorf("parallelism = %d, want 8", cfg.Parallelism)
	}
	if cfg.CacheTTL != 24*time.Hour {
		t.Errorf("cache ttl = %v, want 24h", cfg.CacheTTL)
	}
	if !cfg.Verbose {
		t.Errorf("verbose should be set")
	}
	if cfg.LLMAPIKey != "g-key" {
		t.Errorf("api key = %q, want fallback from GEMINI_API_KEY", cfg.LLMAPIKey)
	}
	if cfg.LLMModel != DefaultGeminiModel {
		t.Errorf("model = %q, want %q", cfg.LLMModel, DefaultGeminiModel)
	}
}

func TestApplyEnvInvalid(t *testing.T) {
	t.Setenv("CARPICKS_PARALLEL", "many")
	if err := DefaultConfig().ApplyEnv(); err == nil || !strings.Contains(err.Error(), "CARPICKS_PARALLEL") {
		t.Fatalf("expected parse error naming the variable, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CARPICKS_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("CARPICKS_TEST_DOTENV") })

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, _ := EnvString("CARPICKS_TEST_DOTENV"); got != "from-file" {
		t.Fatalf("CARPICKS_TEST_DOTENV = %q, want from-file", got)
	}
}

func TestParseCriteria(t *testing.T) {
	data := []byte(`
postal_code: "H2X 1Y4"
radius_km: 100
years: "2020-2023"
max_price: 30000
vehicles:
  - make: Toyota
    model: RAV4
search:
  - "Honda CR-V, Subaru Forester"
priorities: "low mileage"
`)
	c, err := ParseCriteria(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.PostalCode != "H2X 1Y4" || c.RadiusKM != 100 || c.MaxPrice != 30000 {
		t.Errorf("unexpected scalar fields: %+v", c)
	}
	if c.MaxMileageKM != DefaultMaxMileageKM {
		t.Errorf("max mileage = %d, want default %d", c.MaxMileageKM, DefaultMaxMileageKM)
	}
	if c.YearMin != 2020 || c.YearMax != 2023 {
		t.Errorf("years = %d-%d, want 2020-2023", c.YearMin, c.YearMax)
	}
	if len(c.Vehicles) != 3 || c.Vehicles[2].Make != "Subaru" || c.Vehicles[2].Model != "Forester" {
		t.Errorf("vehicles = %+v", c.Vehicles)
	}
	if c.Priorities != "low mileage" {
		t.Errorf("priorities = %q", c.Priorities)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("parsed criteria should validate: %v", err)
	}
}

func TestDefaultCriteriaValid(t *testing.T) {
	c := DefaultCriteria()
	if err := c.Validate(); err != nil {
		t.Fatalf("default criteria should validate: %v", err)
	}
	if len(c.Vehicles) != 4 {
		t.Fatalf("vehicles = %d, want 4", len(c.Vehicles))
	}
}
