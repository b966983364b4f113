package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-scrape-cars/config"
	"github.com/aluiziolira/go-scrape-cars/metrics"
	"github.com/aluiziolira/go-scrape-cars/models"
	"github.com/aluiziolira/go-scrape-cars/parser"
)

const (
	linkSelector   = "a.detail-price-area, a.inner-link"
	jsonLDSelector = `script[type="application/ld+json"]`

	pageSearch = "search"
	pageDetail = "detail"
)

// Scraper fetches listings for one sub-query at a time from the listings
// site. Detail pages are memoised across sub-queries.
type Scraper struct {
	cfg       *config.Config
	base      *url.URL
	collector *colly.Collector
	details   *lru.Cache[string, models.Listing]
	Metrics   *metrics.Metrics
}

// NewScraper builds a scraper configured from cfg. m may be nil.
func NewScraper(cfg *config.Config, m *metrics.Metrics) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	details, err := lru.New[string, models.Listing](cfg.DetailCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create detail cache: %w", err)
	}

	return &Scraper{
		cfg:       cfg,
		base:      parsed,
		collector: collector,
		details:   details,
		Metrics:   m,
	}, nil
}

// SearchURL builds the search page URL for a sub-query.
func (s *Scraper) SearchURL(q models.SubQuery) string {
	params := url.Values{}
	params.Set("loc", q.PostalCode)
	params.Set("make", q.Vehicle.Make)
	if q.Vehicle.Model != "" {
		params.Set("mdl", q.Vehicle.Model)
	}
	params.Set("prx", strconv.Itoa(q.RadiusKM))
	params.Set("rcp", strconv.Itoa(s.cfg.ResultsPerPage))
	if q.YearMin > 0 || q.YearMax > 0 {
		params.Set("yRng", rangeParam(q.YearMin, q.YearMax))
	}
	if q.MaxMileageKM > 0 {
		params.Set("oRng", rangeParam(0, q.MaxMileageKM))
	}
	if q.MaxPrice > 0 {
		params.Set("pRng", rangeParam(0, q.MaxPrice))
	}

	u := *s.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/cars/"
	u.RawQuery = params.Encode()
	return u.String()
}

func rangeParam(min, max int) string {
	lo, hi := "", ""
	if min > 0 {
		lo = strconv.Itoa(min)
	}
	if max > 0 {
		hi = strconv.Itoa(max)
	}
	return lo + "," + hi
}

// fetchRun collects the state of one Fetch call.
type fetchRun struct {
	retry *retryManager

	mu          sync.Mutex
	searchErr   error
	links       []string
	seenLinks   map[string]struct{}
	listings    map[string]models.Listing
	detailFails int
	parseMisses int
}

func (r *fetchRun) addLink(link string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seenLinks[link]; ok {
		return false
	}
	r.seenLinks[link] = struct{}{}
	r.links = append(r.links, link)
	return true
}

func (r *fetchRun) setListing(link string, l models.Listing) {
	r.mu.Lock()
	r.listings[link] = l
	r.mu.Unlock()
}

// Fetch retrieves the listings matching q. Detail page failures are skipped;
// a failed search page, a non-HTML response, or detail pages without any
// listing data fail the whole sub-query with *FetchError.
func (s *Scraper) Fetch(ctx context.Context, q models.SubQuery) ([]models.Listing, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, newFetchError(q, err)
	}

	run := &fetchRun{
		retry:     newRetryManager(s.cfg, s.Metrics),
		seenLinks: make(map[string]struct{}),
		listings:  make(map[string]models.Listing),
	}
	c := s.collector.Clone()
	s.configureHandlers(ctx, c, run)

	searchURL := s.SearchURL(q)
	slog.Debug("fetching search page", slog.String("query", q.String()), slog.String("url", searchURL))
	if err := c.Request(http.MethodGet, searchURL, nil, pageContext(pageSearch), nil); err != nil {
		return nil, newFetchError(q, fmt.Errorf("visit search page: %w", err))
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return nil, newFetchError(q, err)
	}

	run.mu.Lock()
	defer run.mu.Unlock()

	if run.searchErr != nil {
		return nil, newFetchError(q, run.searchErr)
	}

	listings := make([]models.Listing, 0, len(run.links))
	for _, link := range run.links {
		if l, ok := run.listings[link]; ok {
			listings = append(listings, l)
		}
	}

	if len(run.links) > 0 && len(listings) == 0 && run.detailFails == 0 {
		return nil, newFetchError(q, ErrNoListingData)
	}

	slog.Debug("sub-query fetched",
		slog.String("query", q.String()),
		slog.Int("links", len(run.links)),
		slog.Int("listings", len(listings)),
		slog.Int("detail_failures", run.detailFails),
		slog.Int("parse_misses", run.parseMisses),
		slog.Int("retries", run.retry.TotalRetries()),
	)
	return listings, nil
}

func pageContext(page string) *colly.Context {
	ctx := colly.NewContext()
	ctx.Put("page", page)
	return ctx
}

func (s *Scraper) configureHandlers(ctx context.Context, c *colly.Collector, run *fetchRun) {
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		r.Ctx.Put("start", time.Now())
		s.Metrics.IncRequest(r.Ctx.Get("page"))
	})

	c.OnResponse(func(r *colly.Response) {
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			s.Metrics.ObserveDuration(time.Since(start))
		}
		if r.Request.Ctx.Get("page") == pageSearch {
			contentType := strings.ToLower(r.Headers.Get("Content-Type"))
			if contentType != "" && !strings.Contains(contentType, "html") {
				run.mu.Lock()
				run.searchErr = fmt.Errorf("%w: content type %q", ErrNotHTML, contentType)
				run.mu.Unlock()
			}
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
		}
		classified := classifyError(err, statusCode)
		category := errorTypeLabel(classified)
		s.Metrics.IncError(category)

		page, link := "", ""
		if r != nil && r.Request != nil {
			page = r.Request.Ctx.Get("page")
			if r.Request.URL != nil {
				link = r.Request.URL.String()
			}
		}
		slog.Warn("request error",
			slog.String("url", link),
			slog.String("page", page),
			slog.String("category", category),
			slog.Any("error", err),
		)

		if r != nil && r.Request != nil && retryable(classified) && run.retry.Schedule(ctx, link) {
			rerr := r.Request.Retry()
			if rerr == nil {
				return
			}
			slog.Debug("retry failed to start", slog.String("url", link), slog.Any("error", rerr))
		}

		run.mu.Lock()
		defer run.mu.Unlock()
		if page == pageSearch {
			run.searchErr = classified
			return
		}
		run.detailFails++
	})

	c.OnHTML(linkSelector, func(e *colly.HTMLElement) {
		if e.Request.Ctx.Get("page") != pageSearch || ctx.Err() != nil {
			return
		}
		href := strings.TrimSpace(e.Attr("href"))
		if href == "" {
			return
		}
		link := e.Request.AbsoluteURL(href)
		if link == "" || !run.addLink(link) {
			return
		}
		if l, ok := s.details.Get(link); ok {
			run.setListing(link, l)
			return
		}
		detailCtx := pageContext(pageDetail)
		detailCtx.Put("link", link)
		if err := c.Request(http.MethodGet, link, nil, detailCtx, nil); err != nil {
			slog.Debug("detail visit skipped", slog.String("url", link), slog.Any("error", err))
		}
	})

	c.OnHTML(jsonLDSelector, func(e *colly.HTMLElement) {
		if e.Request.Ctx.Get("page") != pageDetail {
			return
		}
		car, ok := extractCar(e.Text)
		if !ok {
			return
		}
		// The request URL is the final one after redirects; results are keyed
		// by the link found on the search page.
		finalURL := e.Request.URL.String()
		link := e.Request.Ctx.Get("link")
		if link == "" {
			link = finalURL
		}
		listing := car.toListing(finalURL, time.Now())
		if err := parser.ValidateListing(&listing); err != nil {
			slog.Debug("invalid listing", slog.String("url", finalURL), slog.Any("error", err))
			return
		}
		e.Request.Ctx.Put("extracted", "1")
		s.details.Add(link, listing)
		s.Metrics.IncListings()
		run.setListing(link, listing)
	})

	c.OnScraped(func(r *colly.Response) {
		if r.Request.Ctx.Get("page") != pageDetail || r.Request.Ctx.Get("extracted") != "" {
			return
		}
		run.mu.Lock()
		run.parseMisses++
		run.mu.Unlock()
		slog.Debug("detail page without car data", slog.String("url", r.Request.URL.String()))
	})
}

type retryManager struct {
	cfg     *config.Config
	metrics *metrics.Metrics

	mu           sync.Mutex
	attempts     map[string]int
	totalRetries int
}

func newRetryManager(cfg *config.Config, m *metrics.Metrics) *retryManager {
	return &retryManager{
		cfg:      cfg,
		metrics:  m,
		attempts: make(map[string]int),
	}
}

// Schedule reserves a retry for url and waits out its backoff. It returns
// false when retries are exhausted or ctx ends first.
func (rm *retryManager) Schedule(ctx context.Context, url string) bool {
	if rm.cfg.MaxRetries == 0 || url == "" || ctx.Err() != nil {
		return false
	}

	rm.mu.Lock()
	attempt := rm.attempts[url]
	if attempt >= rm.cfg.MaxRetries {
		rm.mu.Unlock()
		return false
	}
	attempt++
	rm.attempts[url] = attempt
	rm.totalRetries++
	rm.mu.Unlock()

	rm.metrics.IncRetries()

	timer := time.NewTimer(rm.backoff(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rm.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (rm *retryManager) TotalRetries() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.totalRetries
}
