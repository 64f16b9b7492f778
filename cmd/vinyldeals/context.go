package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/guarzo/vinyldeals/internal/analysis"
	"github.com/guarzo/vinyldeals/internal/catalog"
	"github.com/guarzo/vinyldeals/internal/config"
	"github.com/guarzo/vinyldeals/internal/logging"
	"github.com/guarzo/vinyldeals/internal/metrics"
	"github.com/guarzo/vinyldeals/internal/recommend"
	"github.com/guarzo/vinyldeals/internal/searchctx"
	"github.com/guarzo/vinyldeals/internal/seller"
	"github.com/guarzo/vinyldeals/internal/store"
	"github.com/guarzo/vinyldeals/internal/worker"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	opts := logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
	if cfg.Logging.File != "" {
		opts.OutputPaths = []string{"stderr", cfg.Logging.File}
	}
	logger, err := logging.New(opts)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// app is the set of opened components one command works with.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	catalog *catalog.Catalog
	metrics *metrics.Registry
	service *analysis.Service
}

// openStore opens only the logger and snapshot store.
func (c *commandContext) openStore(ctx context.Context) (*app, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.newLogger()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, store: st}
	if cfg.Catalog.Enabled {
		cat, err := catalog.Open(cfg.Catalog.Dir)
		if err != nil {
			st.Close()
			return nil, err
		}
		a.catalog = cat
	}
	return a, nil
}

// openApp opens everything an analysis run needs.
func (c *commandContext) openApp(ctx context.Context) (*app, error) {
	a, err := c.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.buildService(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) buildService() error {
	cfg := a.cfg

	var provider searchctx.Provider
	switch cfg.Search.Source {
	case "sql":
		provider = searchctx.NewSQLProvider(a.store)
	default:
		provider = searchctx.NewFileProvider(cfg.Search.Dir)
	}

	analyzer, err := seller.NewAnalyzer(cfg.Seller)
	if err != nil {
		return fmt.Errorf("seller analyzer: %w", err)
	}
	engine, err := recommend.NewEngine(cfg.Recommend, analyzer.Shipping(), a.logger)
	if err != nil {
		return fmt.Errorf("recommendation engine: %w", err)
	}

	a.metrics = metrics.NewRegistry()
	opts := analysis.Options{
		Matcher:     cfg.Matcher,
		Sanitize:    cfg.Sanitize,
		Concurrency: cfg.Analysis.Concurrency,
		Logger:      a.logger,
		Metrics:     a.metrics,
	}
	if a.catalog != nil {
		opts.IDs = a.catalog
	}
	if len(cfg.Seller.Aliases) > 0 {
		ids, err := seller.NewIdentities(cfg.Seller.Aliases)
		if err != nil {
			return fmt.Errorf("seller aliases: %w", err)
		}
		opts.Identities = ids
		a.logger.Debug("seller aliases loaded", slog.Int("aliases", ids.Len()))
	}

	a.service, err = analysis.NewService(analysis.Deps{
		Context:   provider,
		Snapshots: a.store,
		Sellers:   analyzer,
		Engine:    engine,
	}, opts)
	return err
}

func (a *app) newPool() *worker.Pool {
	w := a.cfg.Worker
	pool := worker.NewPool(a.service, worker.Config{
		Workers:   w.Workers,
		RateLimit: rate.Limit(w.RunsPerSecond),
		Timeout:   time.Duration(w.RunTimeoutSeconds) * time.Second,
	}, a.logger)
	if a.metrics != nil {
		pool.SetInFlightGauge(a.metrics.JobsInFlight)
	}
	return pool
}

func (a *app) Close() error {
	var errs []error
	if a.catalog != nil {
		errs = append(errs, a.catalog.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
