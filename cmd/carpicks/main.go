package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-cars/config"
	"github.com/aluiziolira/go-scrape-cars/metrics"
	"github.com/aluiziolira/go-scrape-cars/models"
	"github.com/aluiziolira/go-scrape-cars/parser"
)

// errNothingFound makes the process exit non-zero when a search showed nothing.
var errNothingFound = errors.New("no listings found")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, _ := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "carpicks:", diagnose(err))
		stop()
		os.Exit(1)
	}
}

type criteriaFlags struct {
	file       string
	postal     string
	radius     int
	maxMileage int
	years      string
	maxPrice   int
	vehicles   string
	priorities string
}

// app carries what every subcommand needs after flags are parsed.
type app struct {
	flags    *config.Config
	criteria criteriaFlags

	cfg   *config.Config
	runID string
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{flags: config.DefaultConfig()}

	root := &cobra.Command{
		Use:           "carpicks",
		Short:         "Search used-car listings and shortlist the best matches with an AI ranker",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	fs := root.PersistentFlags()
	f := a.flags
	fs.StringVar(&f.BaseURL, "base-url", f.BaseURL, "Listings site base URL")
	fs.IntVar(&f.Parallelism, "parallel", f.Parallelism, "Concurrent sub-queries and page requests")
	fs.DurationVar(&f.Delay, "delay", f.Delay, "Delay between page requests")
	fs.DurationVar(&f.RandomDelay, "random-delay", f.RandomDelay, "Random jitter added to the delay")
	fs.DurationVar(&f.SearchDelay, "search-delay", f.SearchDelay, "Minimum spacing between sub-query dispatches")
	fs.IntVar(&f.MaxRetries, "max-retries", f.MaxRetries, "Maximum retry attempts per URL")
	fs.BoolVar(&f.RespectRobotsTxt, "respect-robots", f.RespectRobotsTxt, "Respect robots.txt directives")
	fs.StringVar(&f.CacheFile, "cache-file", f.CacheFile, "Persisted result cache")
	fs.DurationVar(&f.CacheTTL, "cache-ttl", f.CacheTTL, "How long cached results stay fresh")
	fs.BoolVar(&f.Refresh, "refresh", f.Refresh, "Ignore cached results and fetch again")
	fs.StringVar(&f.LLMProvider, "provider", f.LLMProvider, "AI provider: openai or gemini")
	fs.StringVar(&f.LLMModel, "model", f.LLMModel, "AI model name")
	fs.StringVar(&f.LLMBaseURL, "llm-base-url", f.LLMBaseURL, "OpenAI-compatible API base URL")
	fs.IntVar(&f.TopPicks, "top", f.TopPicks, "Number of picks to ask for")
	fs.IntVar(&f.MaxListingsForRanking, "max-listings", f.MaxListingsForRanking, "Listings sent to the ranker")
	fs.DurationVar(&f.SearchTimeout, "timeout", f.SearchTimeout, "Overall time limit for search and ranking")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", f.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	fs.StringVar(&f.OutputFile, "output", f.OutputFile, "Export file path")
	fs.StringVar(&f.OutputFormat, "format", f.OutputFormat, "Export format: csv, json, or dual")
	fs.BoolVarP(&f.Verbose, "verbose", "v", f.Verbose, "Enable verbose logging")

	c := &a.criteria
	fs.StringVar(&c.file, "criteria", "", "YAML criteria file")
	fs.StringVar(&c.postal, "postal", config.DefaultPostalCode, "Postal code to search around")
	fs.IntVar(&c.radius, "radius", config.DefaultRadiusKM, "Search radius in km")
	fs.IntVar(&c.maxMileage, "max-mileage", config.DefaultMaxMileageKM, "Maximum mileage in km (0 = any)")
	fs.StringVar(&c.years, "years", config.DefaultYearRange, "Model years, e.g. 2019-2024 or 2022")
	fs.IntVar(&c.maxPrice, "max-price", config.DefaultMaxPrice, "Maximum price (0 = any)")
	fs.StringVar(&c.vehicles, "vehicles", config.DefaultVehicles, `Comma separated "Make Model" list`)
	fs.StringVar(&c.priorities, "priorities", models.DefaultPriorities, "What matters most to the buyer")

	root.AddCommand(newSearchCmd(a), newPlanCmd(a), newCacheCmd(a))
	return root, a
}

// setup builds the run configuration: defaults, then .env, then the
// environment, then explicitly set flags.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	a.applyFlags(cmd, cfg)
	cfg.OutputFormat = strings.ToLower(cfg.OutputFormat)
	cfg.ResolveProvider()

	a.runID = uuid.NewString()
	logger, level := newLogger(cfg.Verbose)
	logger = logger.With(slog.String("run_id", a.runID))
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	return nil
}

func (a *app) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	f := a.flags
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("base-url", func() { cfg.BaseURL = f.BaseURL })
	set("parallel", func() { cfg.Parallelism = f.Parallelism })
	set("delay", func() { cfg.Delay = f.Delay })
	set("random-delay", func() { cfg.RandomDelay = f.RandomDelay })
	set("search-delay", func() { cfg.SearchDelay = f.SearchDelay })
	set("max-retries", func() { cfg.MaxRetries = f.MaxRetries })
	set("respect-robots", func() { cfg.RespectRobotsTxt = f.RespectRobotsTxt })
	set("cache-file", func() { cfg.CacheFile = f.CacheFile })
	set("cache-ttl", func() { cfg.CacheTTL = f.CacheTTL })
	set("refresh", func() { cfg.Refresh = f.Refresh })
	set("provider", func() { cfg.LLMProvider = f.LLMProvider })
	set("model", func() { cfg.LLMModel = f.LLMModel })
	set("llm-base-url", func() { cfg.LLMBaseURL = f.LLMBaseURL })
	set("top", func() { cfg.TopPicks = f.TopPicks })
	set("max-listings", func() { cfg.MaxListingsForRanking = f.MaxListingsForRanking })
	set("timeout", func() { cfg.SearchTimeout = f.SearchTimeout })
	set("metrics-addr", func() { cfg.MetricsAddr = f.MetricsAddr })
	set("output", func() { cfg.OutputFile = f.OutputFile })
	set("format", func() { cfg.OutputFormat = f.OutputFormat })
	set("verbose", func() { cfg.Verbose = f.Verbose })
}

// buildCriteria starts from the criteria file (or the stock search) and
// applies explicitly set flags on top.
func (a *app) buildCriteria(cmd *cobra.Command) (models.SearchCriteria, error) {
	c := a.criteria
	crit := config.DefaultCriteria()
	if c.file != "" {
		loaded, err := config.LoadCriteria(c.file)
		if err != nil {
			return models.SearchCriteria{}, err
		}
		crit = loaded
	}

	fs := cmd.Flags()
	if fs.Changed("postal") {
		crit.PostalCode = c.postal
	}
	if fs.Changed("radius") {
		crit.RadiusKM = c.radius
	}
	if fs.Changed("max-mileage") {
		crit.MaxMileageKM = c.maxMileage
	}
	if fs.Changed("max-price") {
		crit.MaxPrice = c.maxPrice
	}
	if fs.Changed("years") {
		min, max, err := parser.ParseYearRange(c.years)
		if err != nil {
			return models.SearchCriteria{}, err
		}
		crit.YearMin, crit.YearMax = min, max
	}
	if fs.Changed("vehicles") {
		crit.Vehicles = parser.ParseVehicles(c.vehicles)
	}
	if fs.Changed("priorities") {
		crit.Priorities = c.priorities
	}

	if err := crit.Validate(); err != nil {
		return models.SearchCriteria{}, fmt.Errorf("invalid criteria: %w", err)
	}
	return crit, nil
}

// startMetrics serves m on addr until the returned stop func is called.
func startMetrics(addr string, m *metrics.Metrics) func() {
	if addr == "" || m == nil {
		return func() {}
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
