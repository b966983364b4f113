package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-cars/cache"
	"github.com/aluiziolira/go-scrape-cars/config"
	"github.com/aluiziolira/go-scrape-cars/llm"
	"github.com/aluiziolira/go-scrape-cars/models"
	"github.com/aluiziolira/go-scrape-cars/ranker"
	"github.com/aluiziolira/go-scrape-cars/scraper"
)

func execute(t *testing.T, args ...string) (string, *app, error) {
	t.Helper()
	if _, ok := os.LookupEnv("CARPICKS_CACHE_FILE"); !ok {
		t.Setenv("CARPICKS_CACHE_FILE", filepath.Join(t.TempDir(), "cache.db"))
	}

	root, a := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), a, err
}

func TestPlanCommandListsSubQueries(t *testing.T) {
	out, _, err := execute(t, "plan", "--vehicles", "Mazda CX-5, Honda CR-V", "--postal", "K1A 0B1")
	require.NoError(t, err)

	assert.Contains(t, out, "Mazda CX-5")
	assert.Contains(t, out, "Honda CR-V")
	assert.Contains(t, out, "postal_code=K1A0B1")
	assert.Contains(t, out, "2 sub-queries")
	assert.Equal(t, 2, strings.Count(out, "fetch"))
}

func TestPlanCommandShowsCachedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	q := models.SubQuery{
		Source:       config.DefaultConfig().SourceID(),
		Vehicle:      models.MakeModel{Make: "Mazda", Model: "CX-5"},
		PostalCode:   "M5G 1N8",
		RadiusKM:     50,
		MaxMileageKM: 50000,
		YearMin:      2019,
		YearMax:      2024,
		MaxPrice:     25000,
	}

	ctx := context.Background()
	c, err := cache.Open(ctx, path, cache.Options{})
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, q.Key(), []models.Listing{{ID: "A1"}, {ID: "A2"}}))
	require.NoError(t, c.Close())

	out, _, err := execute(t, "plan", "--cache-file", path, "--vehicles", "Mazda CX-5")
	require.NoError(t, err)

	assert.Contains(t, out, "cached (2)")
	assert.Contains(t, out, "1 sub-query")

	out, _, err = execute(t, "plan", "--cache-file", path, "--vehicles", "Mazda CX-5", "--base-url", "https://mirror.example.test")
	require.NoError(t, err)
	assert.NotContains(t, out, "cached")
	assert.Contains(t, out, "source=mirror.example.test?rcp=100")
}

func TestCacheStatsAndPrune(t *testing.T) {
	out, _, err := execute(t, "cache", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Entries:  0 (0 stale)")
	assert.Contains(t, out, "Oldest:   never")

	out, _, err = execute(t, "cache", "prune")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 0 stale entries")
}

func TestInvalidCriteriaRejected(t *testing.T) {
	_, _, err := execute(t, "plan", "--years", "2024-2019")
	require.Error(t, err)
}

func TestInvalidConfigRejected(t *testing.T) {
	_, _, err := execute(t, "plan", "--parallel", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("CARPICKS_TOP_PICKS", "3")
	t.Setenv("CARPICKS_PARALLEL", "2")
	t.Setenv("CARPICKS_CACHE_FILE", filepath.Join(t.TempDir(), "cache.db"))

	_, a, err := execute(t, "plan", "--parallel", "6", "--refresh")
	require.NoError(t, err)
	require.NotNil(t, a.cfg)

	assert.Equal(t, 6, a.cfg.Parallelism)
	assert.Equal(t, 3, a.cfg.TopPicks)
	assert.True(t, a.cfg.Refresh)
	assert.NotEmpty(t, a.runID)
}

func TestGeminiProviderSwitchesDefaultModel(t *testing.T) {
	_, a, err := execute(t, "plan", "--provider", "gemini")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", a.cfg.LLMModel)
}

func TestCriteriaFileWithFlagOverride(t *testing.T) {
	file := filepath.Join(t.TempDir(), "criteria.yaml")
	require.NoError(t, os.WriteFile(file, []byte("postal_code: H2X 1Y4\nsearch:\n  - Toyota RAV4\n  - Subaru Forester\nmax_price: 30000\n"), 0o644))

	out, _, err := execute(t, "plan", "--criteria", file, "--max-price", "20000")
	require.NoError(t, err)

	assert.Contains(t, out, "Toyota RAV4")
	assert.Contains(t, out, "Subaru Forester")
	assert.Contains(t, out, "postal_code=H2X1Y4")
	assert.Contains(t, out, "max_price=20000")
	assert.NotContains(t, out, "Mazda")
}

func TestDiagnose(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "auth inside ranking unavailable",
			err:  &ranker.RankingUnavailable{Attempts: 1, Err: &llm.ServiceError{Provider: "openai", Kind: llm.KindAuth, StatusCode: 401, Err: errors.New("bad key")}},
			want: "CARPICKS_LLM_API_KEY",
		},
		{
			name: "ranking unavailable",
			err:  &ranker.RankingUnavailable{Attempts: 2, Err: errors.New("boom")},
			want: "after 2 attempt(s)",
		},
		{
			name: "blocked",
			err:  fmt.Errorf("sub-query: %w", &scraper.FetchError{Kind: scraper.KindForbidden, Err: errors.New("403")}),
			want: "blocked",
		},
		{
			name: "site changed",
			err:  &scraper.FetchError{Kind: scraper.KindSiteChanged, Err: scraper.ErrNoListingData},
			want: "layout changed",
		},
		{
			name: "corrupt cache",
			err:  &cache.CorruptError{Path: "c.db", Err: errors.New("bad header")},
			want: "c.db is unreadable",
		},
		{
			name: "deadline",
			err:  fmt.Errorf("search: %w", context.DeadlineExceeded),
			want: "timed out",
		},
		{
			name: "nothing found",
			err:  errNothingFound,
			want: "no listings matched",
		},
		{
			name: "other",
			err:  errors.New("something else"),
			want: "something else",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, diagnose(tt.err), tt.want)
		})
	}
	assert.Empty(t, diagnose(nil))
}
