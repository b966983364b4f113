// Package ranker asks the AI service to pick the best listings for the
// buyer and reconciles its reply against the listings it was shown.
package ranker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-cars/config"
	"github.com/aluiziolira/go-scrape-cars/llm"
	"github.com/aluiziolira/go-scrape-cars/metrics"
	"github.com/aluiziolira/go-scrape-cars/models"
)

// Completer is the AI service.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RankingUnavailable is returned when every attempt to reach the AI service
// failed. The caller still holds the listings and can show them unranked.
type RankingUnavailable struct {
	Attempts int
	Err      error
}

func (e *RankingUnavailable) Error() string {
	return fmt.Sprintf("ranking unavailable after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *RankingUnavailable) Unwrap() error {
	return e.Err
}

// Options configures a Ranker.
type Options struct {
	TopN     int
	Attempts int
	Backoff  time.Duration
	Metrics  *metrics.Metrics
}

// Ranker produces shortlists from merged listings.
type Ranker struct {
	client   Completer
	topN     int
	attempts int
	backoff  time.Duration
	metrics  *metrics.Metrics
}

// New creates a ranker. Zero options fall back to 10 picks and 2 attempts.
func New(client Completer, opts Options) *Ranker {
	if opts.TopN <= 0 {
		opts.TopN = 10
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 2
	}
	return &Ranker{
		client:   client,
		topN:     opts.TopN,
		attempts: opts.Attempts,
		backoff:  opts.Backoff,
		metrics:  opts.Metrics,
	}
}

// NewFromConfig creates a ranker using the ranking settings in cfg.
func NewFromConfig(cfg *config.Config, client Completer, m *metrics.Metrics) *Ranker {
	return New(client, Options{
		TopN:     cfg.TopPicks,
		Attempts: cfg.RankAttempts,
		Backoff:  cfg.RankBackoff,
		Metrics:  m,
	})
}

// Rank asks the AI service for the best listings given the buyer's
// priorities. An empty input yields an empty shortlist without a call.
func (r *Ranker) Rank(ctx context.Context, listings []models.Listing, criteria models.SearchCriteria) (*models.Shortlist, error) {
	if len(listings) == 0 {
		return &models.Shortlist{}, nil
	}

	prompt, err := BuildPrompt(listings, criteria.Priorities, r.topN)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { r.metrics.ObserveRank(time.Since(start)) }()

	var lastErr error
	attempt := 0
	for attempt < r.attempts {
		if attempt > 0 {
			if err := r.wait(ctx, attempt); err != nil {
				break
			}
		}
		attempt++

		candidates, err := r.attempt(ctx, prompt)
		if err == nil {
			r.metrics.IncRankAttempt("success")
			sl := Reconcile(candidates, listings, r.topN)
			r.recordReconciled(sl)
			slog.Info("ranking complete",
				slog.Int("attempt", attempt),
				slog.Int("picks", len(sl.Picks)),
				slog.Int("dropped", sl.Dropped),
				slog.Int("inexact", sl.Inexact),
				slog.Int("duplicates", sl.Duplicates),
				slog.Int("parse_failures", sl.ParseFailures),
			)
			return sl, nil
		}

		lastErr = err
		r.metrics.IncRankAttempt(attemptOutcome(err))
		slog.Warn("ranking attempt failed", slog.Int("attempt", attempt), slog.Any("error", err))
		if !retryable(ctx, err) {
			break
		}
	}

	return nil, &RankingUnavailable{Attempts: attempt, Err: lastErr}
}

func (r *Ranker) attempt(ctx context.Context, prompt string) ([]Candidate, error) {
	text, err := r.client.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	candidates, err := ParseResponse(text)
	if err != nil {
		return nil, &llm.ServiceError{Provider: "ranker", Kind: llm.KindMalformedResponse, Err: err}
	}
	return candidates, nil
}

func (r *Ranker) wait(ctx context.Context, retry int) error {
	if r.backoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(r.backoff * time.Duration(1<<(retry-1)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Ranker) recordReconciled(sl *models.Shortlist) {
	exact := 0
	for _, p := range sl.Picks {
		if p.Exact {
			exact++
		}
	}
	r.metrics.AddReconciled("exact", exact)
	r.metrics.AddReconciled("inexact", sl.Inexact)
	r.metrics.AddReconciled("dropped", sl.Dropped)
	r.metrics.AddReconciled("duplicate", sl.Duplicates)
	r.metrics.AddReconciled("parse_failure", sl.ParseFailures)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var svcErr *llm.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Retryable()
	}
	return !errors.Is(err, context.Canceled)
}

func attemptOutcome(err error) string {
	var svcErr *llm.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return "error"
}
