package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Supported LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DefaultOpenAIModel = "gpt-4"
	DefaultGeminiModel = "gemini-2.5-flash"
)

// Config holds scraper, cache, ranking and run configuration.
type Config struct {
	BaseURL          string
	ResultsPerPage   int
	Parallelism      int
	Delay            time.Duration
	RandomDelay      time.Duration
	Timeout          time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	RetryBackoffMax  time.Duration
	UserAgent        string
	RespectRobotsTxt bool
	DetailCacheSize  int
	SearchDelay      time.Duration

	CacheFile string
	CacheTTL  time.Duration
	Refresh   bool

	LLMProvider           string
	LLMModel              string
	LLMAPIKey             string
	LLMBaseURL            string
	LLMMaxTokens          int
	LLMTemperature        float64
	LLMTimeout            time.Duration
	RankAttempts          int
	RankBackoff           time.Duration
	MaxListingsForRanking int
	TopPicks              int

	SearchTimeout time.Duration
	MetricsAddr   string
	OutputFile    string
	OutputFormat  string // "", csv, json, or dual
	Verbose       bool
}

// DefaultConfig returns conservative defaults for the listings site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://www.autotrader.ca",
		ResultsPerPage:   100,
		Parallelism:      4,
		Delay:            0,
		RandomDelay:      0,
		Timeout:          15 * time.Second,
		MaxRetries:       2,
		RetryBackoff:     200 * time.Millisecond,
		RetryBackoffMax:  2 * time.Second,
		UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/74.0.3729.169 Safari/537.36",
		RespectRobotsTxt: false,
		DetailCacheSize:  2048,
		SearchDelay:      2 * time.Second,

		CacheFile: "autotrader-cars/cache.db",
		CacheTTL:  7 * 24 * time.Hour,

		LLMProvider:           ProviderOpenAI,
		LLMModel:              DefaultOpenAIModel,
		LLMBaseURL:            "https://api.openai.com/v1",
		LLMMaxTokens:          1500,
		LLMTemperature:        0,
		LLMTimeout:            60 * time.Second,
		RankAttempts:          2,
		RankBackoff:           time.Second,
		MaxListingsForRanking: 50,
		TopPicks:              10,

		SearchTimeout: 5 * time.Minute,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.ResultsPerPage <= 0 {
		return fmt.Errorf("results per page must be positive")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.DetailCacheSize <= 0 {
		return fmt.Errorf("detail cache size must be positive")
	}
	if c.SearchDelay < 0 {
		return fmt.Errorf("search delay cannot be negative")
	}

	if c.CacheFile == "" {
		return fmt.Errorf("cache file cannot be empty")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative")
	}

	if c.LLMProvider != ProviderOpenAI && c.LLMProvider != ProviderGemini {
		return fmt.Errorf("llm provider must be %s or %s", ProviderOpenAI, ProviderGemini)
	}
	if c.LLMModel == "" {
		return fmt.Errorf("llm model cannot be empty")
	}
	if c.LLMMaxTokens <= 0 {
		return fmt.Errorf("llm max tokens must be positive")
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("llm temperature must be between 0 and 2")
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("llm timeout must be positive")
	}
	if c.RankAttempts <= 0 {
		return fmt.Errorf("rank attempts must be positive")
	}
	if c.RankBackoff < 0 {
		return fmt.Errorf("rank backoff cannot be negative")
	}
	if c.MaxListingsForRanking <= 0 {
		return fmt.Errorf("max listings for ranking must be positive")
	}
	if c.TopPicks <= 0 {
		return fmt.Errorf("top picks must be positive")
	}

	if c.SearchTimeout <= 0 {
		return fmt.Errorf("search timeout must be positive")
	}
	switch c.OutputFormat {
	case "", "csv", "json", "dual":
	default:
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.OutputFormat != "" && c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty when an output format is set")
	}

	return nil
}

// SourceID identifies the listings site and page size. Results fetched with
// a different SourceID are never served from the cache.
func (c *Config) SourceID() string {
	host, path := c.BaseURL, ""
	if u, err := url.Parse(c.BaseURL); err == nil && u.Host != "" {
		host, path = u.Host, strings.TrimSuffix(u.Path, "/")
	}
	return fmt.Sprintf("%s%s?rcp=%d", strings.ToLower(host), path, c.ResultsPerPage)
}

// ResolveProvider swaps the OpenAI default model for the Gemini one when the
// provider was switched without naming a model.
func (c *Config) ResolveProvider() {
	if c.LLMProvider == ProviderGemini && c.LLMModel == DefaultOpenAIModel {
		c.LLMModel = DefaultGeminiModel
	}
}
