package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-cars/cache"
	"github.com/aluiziolira/go-scrape-cars/config"
	"github.com/aluiziolira/go-scrape-cars/llm"
	"github.com/aluiziolira/go-scrape-cars/metrics"
	"github.com/aluiziolira/go-scrape-cars/models"
	"github.com/aluiziolira/go-scrape-cars/pipeline"
	"github.com/aluiziolira/go-scrape-cars/ranker"
	"github.com/aluiziolira/go-scrape-cars/render"
	"github.com/aluiziolira/go-scrape-cars/scraper"
)

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search",
		Short: "Search listings, rank them and print the shortlist",
		Long: `Search fans the criteria out into one sub-query per vehicle, serves
what it can from the result cache, fetches the rest from the listings site,
and asks the AI service to pick the best matches. When ranking is unavailable
the filtered listings are shown unranked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			criteria, err := a.buildCriteria(cmd)
			if err != nil {
				return err
			}
			return runSearch(cmd.Context(), a.cfg, criteria, cmd.OutOrStdout())
		},
	}
}

func runSearch(ctx context.Context, cfg *config.Config, criteria models.SearchCriteria, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.SearchTimeout)
	defer cancel()

	m := metrics.New()
	stopMetrics := startMetrics(cfg.MetricsAddr, m)
	defer stopMetrics()

	results := openCache(ctx, cfg, m)
	defer func() {
		if err := results.Close(); err != nil {
			slog.Warn("failed to close cache", slog.Any("error", err))
		}
	}()

	source, err := scraper.NewScraper(cfg, m)
	if err != nil {
		return fmt.Errorf("failed to create scraper: %w", err)
	}

	planner := pipeline.NewPlanner(cfg, source, results, m)
	queries := planner.Plan(criteria)
	slog.Info("starting search",
		slog.Int("sub_queries", len(queries)),
		slog.String("postal_code", criteria.PostalCode),
		slog.Int("radius_km", criteria.RadiusKM),
		slog.Bool("refresh", cfg.Refresh),
	)

	result, err := planner.Execute(ctx, queries)
	if err != nil {
		// Partial results are still worth ranking if anything came back.
		slog.Warn("search interrupted", slog.Any("error", err))
		if result == nil || len(result.Listings) == 0 {
			return err
		}
	}

	shortlisted := pipeline.Filter(result.Listings, criteria, cfg.MaxListingsForRanking)
	if len(shortlisted) == 0 {
		fmt.Fprintln(out, "No listings matched the criteria.")
		render.Summary(out, result, 0, nil)
		if len(result.Failures) > 0 && len(result.Failures) == result.Queries {
			return result.Failures[0].Err
		}
		return errNothingFound
	}

	entries, sl := rank(ctx, cfg, criteria, shortlisted, m, out)
	if err := render.Entries(out, entries); err != nil {
		return err
	}

	if cfg.OutputFormat != "" {
		if err := export(cfg, entries); err != nil {
			return err
		}
		fmt.Fprintf(out, "Exported %d rows to %s\n", len(entries), cfg.OutputFile)
	}

	render.Summary(out, result, len(entries), sl)
	return nil
}

// rank returns the entries to show. When ranking fails the listings are
// returned unranked and the reason is printed above the table.
func rank(ctx context.Context, cfg *config.Config, criteria models.SearchCriteria, listings []models.Listing, m *metrics.Metrics, out io.Writer) ([]models.Entry, *models.Shortlist) {
	client, err := llm.New(ctx, cfg)
	if err != nil {
		fmt.Fprintf(out, "Ranking unavailable: %s\nShowing listings unranked.\n", diagnose(err))
		return models.UnrankedEntries(listings), nil
	}
	slog.Debug("ranking listings", slog.String("client", client.Name()), slog.Int("listings", len(listings)))

	sl, err := ranker.NewFromConfig(cfg, client, m).Rank(ctx, listings, criteria)
	if err != nil {
		fmt.Fprintf(out, "Ranking unavailable: %s\nShowing listings unranked.\n", diagnose(err))
		return models.UnrankedEntries(listings), nil
	}
	if len(sl.Picks) == 0 {
		fmt.Fprintln(out, "The AI service returned no usable picks. Showing listings unranked.")
		return models.UnrankedEntries(listings), sl
	}
	return sl.Entries(listings), sl
}

func openCache(ctx context.Context, cfg *config.Config, m *metrics.Metrics) *cache.ResultCache {
	opts := cache.Options{TTL: cfg.CacheTTL, Metrics: m}
	results, err := cache.Open(ctx, cfg.CacheFile, opts)
	if err != nil {
		slog.Warn("cache unavailable, results will not be persisted",
			slog.String("path", cfg.CacheFile),
			slog.Any("error", err),
		)
		return cache.NewMemory(opts)
	}
	return results
}

func export(cfg *config.Config, entries []models.Entry) (err error) {
	writer, err := pipeline.NewWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to create writer: %w", err)
	}
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close writer: %w", cerr))
		}
	}()

	if err := writer.Write(entries); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}
	return nil
}
