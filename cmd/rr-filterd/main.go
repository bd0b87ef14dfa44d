package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goFlags "github.com/jessevdk/go-flags"

	"github.com/haukened/rr-filter/internal/filter/common/clock"
	"github.com/haukened/rr-filter/internal/filter/common/log"
	"github.com/haukened/rr-filter/internal/filter/config"
	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/gateways/fetch"
	"github.com/haukened/rr-filter/internal/filter/gateways/httpapi"
	"github.com/haukened/rr-filter/internal/filter/infra/metrics"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist/bloom"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist/bolt"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist/localfs"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist/lru"
	"github.com/haukened/rr-filter/internal/filter/services/admission"
	"github.com/haukened/rr-filter/internal/filter/services/updater"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "rr-filterd"

	defaultShutdownTimeout = 10 * time.Second
)

// Options -- console arguments
type Options struct {
	// Config - optional YAML config file, overridden by RRF_ environment variables
	Config string `short:"c" long:"config" description:"Path to a YAML config file (optional)."`

	// CheckURL - run one admission check against the local lists and exit
	CheckURL string `long:"check-url" description:"Check a single request URL against the local lists and exit."`

	// Page - page URL or host for --check-url
	Page string `long:"page" description:"Page URL or host the request is issued from."`

	// Type - resource type for --check-url
	Type string `long:"type" description:"Resource type: script, image, stylesheet, media, font, xhr or other." default:"other"`
}

// Application holds all the components of the filter daemon
type Application struct {
	config  *config.AppConfig
	engine  *admission.Engine
	updater *updater.Updater
	api     *httpapi.Server
	meta    filterlist.MetaStore
}

func main() {
	var options Options
	parser := goFlags.NewParser(&options, goFlags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*goFlags.Error); ok && flagsErr.Type == goFlags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	cfg, err := config.Load(options.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	if options.CheckURL != "" {
		app, err := buildCheckApplication(cfg)
		if err != nil {
			log.Fatal(map[string]any{"error": err}, "Failed to build application")
		}
		if _, err := app.Check(os.Stdout, options.CheckURL, options.Page, options.Type); err != nil {
			fmt.Fprintf(os.Stderr, "Check failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	log.Info(map[string]any{
		"version":     version,
		"env":         cfg.Env,
		"log_level":   cfg.Log.Level,
		"filters_dir": cfg.Filters.Directory,
		"general_url": cfg.Filters.GeneralURL,
		"privacy_url": cfg.Filters.PrivacyURL,
		"cache_size":  cfg.Cache.Size,
		"listen":      cfg.API.Listen,
	}, "Starting "+appName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "Shutdown signal received")
		cancel()
	}()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Server failed")
	}

	log.Info(nil, appName+" stopped gracefully")
}

// buildCheckApplication builds an Application for a one-shot check. The meta
// db is left closed so a check can run while the daemon holds its lock.
func buildCheckApplication(cfg *config.AppConfig) (*Application, error) {
	checkCfg := *cfg
	checkCfg.Filters.MetaDB = ""
	return buildApplication(&checkCfg)
}

// buildApplication constructs all components and wires them together
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := &clock.RealClock{}
	logger := log.GetLogger()

	recorder, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	var meta filterlist.MetaStore
	if cfg.Filters.MetaDB != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Filters.MetaDB), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create meta db directory: %w", err)
		}
		meta, err = bolt.New(cfg.Filters.MetaDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open meta db: %w", err)
		}
	}

	cache, err := lru.New(cfg.Cache.Size)
	if err != nil {
		closeMeta(meta)
		return nil, fmt.Errorf("failed to create decision cache: %w", err)
	}
	log.Info(map[string]any{
		"size":          cfg.Cache.Size,
		"purge_on_swap": cfg.Cache.PurgeOnSwap,
	}, "Decision cache configured")

	engine := admission.New(admission.Options{
		Cache:            cache,
		Logger:           logger,
		Recorder:         recorder,
		PurgeCacheOnSwap: cfg.Cache.PurgeOnSwap,
	})

	upd, err := updater.New(updater.Options{
		Sources: updater.DefaultSources(cfg.Filters.GeneralURL, cfg.Filters.PrivacyURL),
		Files:   localfs.New(cfg.Filters.Directory),
		Fetcher: fetch.New(fetch.Options{
			Timeout:  cfg.Filters.FetchTimeout,
			MaxBytes: int64(cfg.Filters.MaxSize.Bytes()),
			Logger:   logger,
		}),
		Compiler: filterlist.NewCompiler(filterlist.CompilerOptions{
			Bloom:  bloom.NewFactory(),
			Clock:  clk,
			Logger: logger,
		}),
		Publisher: engine,
		Meta:      meta,
		Recorder:  recorder,
		Clock:     clk,
		Logger:    logger,
	})
	if err != nil {
		closeMeta(meta)
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}

	api, err := httpapi.New(httpapi.Options{
		Addr:            cfg.API.Listen,
		Decider:         engine,
		Sources:         upd,
		Refresher:       upd,
		Custom:          upd,
		RefreshInterval: cfg.API.RefreshInterval,
		Metrics:         recorder.Handler(),
		Logger:          logger,
	})
	if err != nil {
		closeMeta(meta)
		return nil, fmt.Errorf("failed to create http api: %w", err)
	}

	return &Application{
		config:  cfg,
		engine:  engine,
		updater: upd,
		api:     api,
		meta:    meta,
	}, nil
}

// Run loads the local lists, starts the API and the refresh loop, and blocks
// until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	defer closeMeta(app.meta)

	stats := app.updater.Load()
	log.Info(map[string]any{
		"version":    stats.Version,
		"rules":      stats.Accepted(),
		"rejected":   stats.RejectedTotal(),
		"suffixes":   stats.IndexedKeys,
		"compile_ns": stats.DurationNano,
	}, "Initial filter set loaded")

	if err := app.api.Start(ctx); err != nil {
		return fmt.Errorf("failed to start http api: %w", err)
	}

	updaterDone := make(chan struct{})
	go func() {
		defer close(updaterDone)
		_ = app.updater.Run(ctx)
	}()

	<-ctx.Done()
	log.Info(nil, "Shutdown initiated")

	if err := app.api.Stop(); err != nil {
		log.Warn(map[string]any{"error": err}, "Error during http api shutdown")
	}

	select {
	case <-updaterDone:
		log.Info(nil, "Graceful shutdown completed")
		return nil
	case <-time.After(defaultShutdownTimeout):
		log.Warn(map[string]any{"timeout": defaultShutdownTimeout}, "Shutdown timeout exceeded")
		return fmt.Errorf("shutdown timeout")
	}
}

// checkResult is the output of a one-shot check.
type checkResult struct {
	URL   string `json:"url"`
	Page  string `json:"page,omitempty"`
	Type  string `json:"type"`
	Block bool   `json:"block"`
	Stage string `json:"stage"`
	Rule  string `json:"rule,omitempty"`
}

// Check loads the local lists without fetching, decides one request and
// writes the decision as JSON to w.
func (app *Application) Check(w io.Writer, rawURL, page, rtype string) (bool, error) {
	defer closeMeta(app.meta)

	app.updater.Load()
	rt := domain.ParseResourceType(rtype)
	req, err := domain.NewRequestContext(rawURL, page, rt)
	if err != nil {
		return false, err
	}
	d := app.engine.Decide(req)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(checkResult{
		URL:   req.URL,
		Page:  page,
		Type:  rt.String(),
		Block: d.Blocked,
		Stage: d.Stage.String(),
		Rule:  d.Rule,
	}); err != nil {
		return d.Blocked, err
	}
	return d.Blocked, nil
}

func closeMeta(meta filterlist.MetaStore) {
	if meta == nil {
		return
	}
	if err := meta.Close(); err != nil {
		log.Warn(map[string]any{"error": err}, "Error closing meta db")
	}
}
