package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv.
const EnvPrefix = "CARPICKS_"

// LoadDotEnv loads variables from the given .env files (".env" when none are
// given). Missing files are not an error; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// EnvString returns the trimmed value of key and whether it was set.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// EnvInt parses key as an integer.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// EnvDuration parses key as a time.Duration ("1500ms", "2s", "168h").
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	return d, true, nil
}

// EnvBool parses key as a boolean.
func EnvBool(key string) (bool, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return false, false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, false, fmt.Errorf("%s: %w", key, err)
	}
	return b, true, nil
}

// ApplyEnv overrides cfg fields from CARPICKS_* variables. The provider API
// key falls back to OPENAI_API_KEY or GEMINI_API_KEY.
func (c *Config) ApplyEnv() error {
	strs := map[string]*string{
		"BASE_URL":      &c.BaseURL,
		"USER_AGENT":    &c.UserAgent,
		"CACHE_FILE":    &c.CacheFile,
		"LLM_PROVIDER":  &c.LLMProvider,
		"LLM_MODEL":     &c.LLMModel,
		"LLM_API_KEY":   &c.LLMAPIKey,
		"LLM_BASE_URL":  &c.LLMBaseURL,
		"METRICS_ADDR":  &c.MetricsAddr,
		"OUTPUT":        &c.OutputFile,
		"OUTPUT_FORMAT": &c.OutputFormat,
	}
	for name, dst := range strs {
		if value, ok := EnvString(EnvPrefix + name); ok {
			*dst = value
		}
	}

	ints := map[string]*int{
		"RESULTS_PER_PAGE":  &c.ResultsPerPage,
		"PARALLEL":          &c.Parallelism,
		"MAX_RETRIES":       &c.MaxRetries,
		"DETAIL_CACHE_SIZE": &c.DetailCacheSize,
		"LLM_MAX_TOKENS":    &c.LLMMaxTokens,
		"RANK_ATTEMPTS":     &c.RankAttempts,
		"MAX_LISTINGS":      &c.MaxListingsForRanking,
		"TOP_PICKS":         &c.TopPicks,
	}
	for name, dst := range ints {
		value, ok, err := EnvInt(EnvPrefix + name)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	durations := map[string]*time.Duration{
		"TIMEOUT":        &c.Timeout,
		"SEARCH_DELAY":   &c.SearchDelay,
		"CACHE_TTL":      &c.CacheTTL,
		"LLM_TIMEOUT":    &c.LLMTimeout,
		"RANK_BACKOFF":   &c.RankBackoff,
		"SEARCH_TIMEOUT": &c.SearchTimeout,
	}
	for name, dst := range durations {
		value, ok, err := EnvDuration(EnvPrefix + name)
		if err != nil {
			return err
		}
		if ok {
			*dst = value
		}
	}

	if value, ok, err := EnvBool(EnvPrefix + "VERBOSE"); err != nil {
		return err
	} else if ok {
		c.Verbose = value
	}

	if c.LLMAPIKey == "" {
		fallback := "OPENAI_API_KEY"
		if c.LLMProvider == ProviderGemini {
			fallback = "GEMINI_API_KEY"
		}
		if value, ok := EnvString(fallback); ok {
			c.LLMAPIKey = value
		}
	}
	return nil
}
