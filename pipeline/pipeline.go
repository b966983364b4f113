// Package pipeline plans sub-queries from search criteria, executes them
// against the cache and the listings source, and merges the results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/aluiziolira/go-scrape-cars/config"
	"github.com/aluiziolira/go-scrape-cars/metrics"
	"github.com/aluiziolira/go-scrape-cars/models"
)

// ListingSource fetches the listings for one sub-query.
type ListingSource interface {
	Fetch(ctx context.Context, q models.SubQuery) ([]models.Listing, error)
}

// ResultCache is the subset of the cache the planner needs.
type ResultCache interface {
	Get(key string) ([]models.Listing, bool)
	Put(ctx context.Context, key string, listings []models.Listing) error
}

// Planner turns criteria into sub-queries and executes them.
type Planner struct {
	source      ListingSource
	cache       ResultCache
	limiter     *rate.Limiter
	parallelism int
	refresh     bool
	sourceID    string
	metrics     *metrics.Metrics
}

// NewPlanner wires a planner from cfg. cache and m may be nil.
func NewPlanner(cfg *config.Config, source ListingSource, cache ResultCache, m *metrics.Metrics) *Planner {
	limit := rate.Inf
	if cfg.SearchDelay > 0 {
		limit = rate.Every(cfg.SearchDelay)
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Planner{
		source:      source,
		cache:       cache,
		limiter:     rate.NewLimiter(limit, 1),
		parallelism: parallelism,
		refresh:     cfg.Refresh,
		sourceID:    cfg.SourceID(),
		metrics:     m,
	}
}

// Plan expands criteria into one sub-query per make/model pair, in order.
func Plan(criteria models.SearchCriteria) []models.SubQuery {
	out := make([]models.SubQuery, 0, len(criteria.Vehicles))
	for _, v := range criteria.Vehicles {
		out = append(out, models.SubQuery{
			Vehicle:      v,
			PostalCode:   criteria.PostalCode,
			RadiusKM:     criteria.RadiusKM,
			MaxMileageKM: criteria.MaxMileageKM,
			YearMin:      criteria.YearMin,
			YearMax:      criteria.YearMax,
			MaxPrice:     criteria.MaxPrice,
		})
	}
	return out
}

// Plan expands criteria like the package-level Plan and tags every
// sub-query with the planner's source, so cache keys never mix sites.
func (p *Planner) Plan(criteria models.SearchCriteria) []models.SubQuery {
	queries := Plan(criteria)
	for i := range queries {
		queries[i].Source = p.sourceID
	}
	return queries
}

type slot struct {
	listings []models.Listing
	err      error
	cached   bool
	fetched  bool
}

// Execute runs every sub-query and merges the results in sub-query order.
// Failed sub-queries are recorded in the result and do not stop the others.
// When ctx ends early the partial result is returned with ctx's error.
func (p *Planner) Execute(ctx context.Context, queries []models.SubQuery) (*models.SearchResult, error) {
	result := &models.SearchResult{
		Queries:   len(queries),
		StartTime: time.Now(),
	}

	slots := make([]slot, len(queries))
	var g errgroup.Group
	g.SetLimit(p.parallelism)
	for i := range queries {
		g.Go(func() error {
			slots[i] = p.run(ctx, queries[i])
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	duplicates := 0
	for i, s := range slots {
		if s.err != nil {
			result.Failures = append(result.Failures, models.SubQueryFailure{Query: queries[i], Err: s.err})
			continue
		}
		if s.cached {
			result.CacheHits++
		}
		if s.fetched {
			result.Fetched++
		}
		for _, l := range s.listings {
			if _, ok := seen[l.ID]; ok {
				duplicates++
				continue
			}
			seen[l.ID] = struct{}{}
			result.Listings = append(result.Listings, l)
		}
	}
	result.EndTime = time.Now()

	slog.Info("search complete",
		slog.Int("queries", result.Queries),
		slog.Int("cache_hits", result.CacheHits),
		slog.Int("fetched", result.Fetched),
		slog.Int("failures", len(result.Failures)),
		slog.Int("listings", len(result.Listings)),
		slog.Int("duplicates", duplicates),
		slog.Duration("duration", result.EndTime.Sub(result.StartTime)),
	)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (p *Planner) run(ctx context.Context, q models.SubQuery) slot {
	if err := ctx.Err(); err != nil {
		p.metrics.IncSubQuery("canceled")
		return slot{err: err}
	}

	key := q.Key()
	if p.cache != nil && !p.refresh {
		if listings, ok := p.cache.Get(key); ok {
			slog.Debug("cache hit", slog.String("query", q.String()), slog.Int("listings", len(listings)))
			p.metrics.IncSubQuery("cached")
			return slot{listings: listings, cached: true}
		}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		p.metrics.IncSubQuery("canceled")
		return slot{err: fmt.Errorf("wait for dispatch: %w", err)}
	}

	listings, err := p.source.Fetch(ctx, q)
	if err != nil {
		outcome := "failed"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome = "canceled"
		}
		p.metrics.IncSubQuery(outcome)
		slog.Warn("sub-query failed", slog.String("query", q.String()), slog.Any("error", err))
		return slot{err: err}
	}
	p.metrics.IncSubQuery("fetched")

	if p.cache != nil {
		if err := p.cache.Put(ctx, key, listings); err != nil {
			slog.Warn("cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return slot{listings: listings, fetched: true}
}
