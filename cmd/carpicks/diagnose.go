package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aluiziolira/go-scrape-cars/cache"
	"github.com/aluiziolira/go-scrape-cars/config"
	"github.com/aluiziolira/go-scrape-cars/llm"
	"github.com/aluiziolira/go-scrape-cars/ranker"
	"github.com/aluiziolira/go-scrape-cars/scraper"
)

// diagnose turns an error into a short message a user can act on.
func diagnose(err error) string {
	if err == nil {
		return ""
	}

	var svcErr *llm.ServiceError
	if errors.As(err, &svcErr) {
		switch svcErr.Kind {
		case llm.KindAuth:
			return fmt.Sprintf("the AI service rejected the API key; set %sLLM_API_KEY (or OPENAI_API_KEY / GEMINI_API_KEY)", config.EnvPrefix)
		case llm.KindRateLimit:
			return "the AI service is rate limiting requests; try again shortly"
		case llm.KindTimeout:
			return "the AI service did not answer in time"
		case llm.KindInvalidRequest:
			return "the AI service rejected the request; check --model and --llm-base-url"
		case llm.KindMalformedResponse:
			return "the AI service reply could not be understood"
		default:
			return "the AI service is unavailable: " + svcErr.Error()
		}
	}

	var unavailable *ranker.RankingUnavailable
	if errors.As(err, &unavailable) {
		return unavailable.Error()
	}

	var fetchErr *scraper.FetchError
	if errors.As(err, &fetchErr) {
		switch fetchErr.Kind {
		case scraper.KindForbidden:
			return "the listings site refused the request (blocked); wait before retrying"
		case scraper.KindRateLimited:
			return "the listings site is rate limiting requests; raise --search-delay"
		case scraper.KindSiteChanged, scraper.KindParse:
			return "the listings site layout changed; listings could not be read"
		case scraper.KindTimeout, scraper.KindConnection:
			return "could not reach the listings site: " + fetchErr.Err.Error()
		}
		return fetchErr.Error()
	}

	var corrupt *cache.CorruptError
	if errors.As(err, &corrupt) {
		return fmt.Sprintf("result cache %s is unreadable; it will be rebuilt on the next search", corrupt.Path)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "the search timed out; raise --timeout or narrow the criteria"
	case errors.Is(err, context.Canceled):
		return "interrupted"
	case errors.Is(err, errNothingFound):
		return "no listings matched the criteria"
	}
	return err.Error()
}
