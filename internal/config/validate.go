package config

import (
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMatcher(); err != nil {
		return err
	}
	if err := c.Seller.Validate(); err != nil {
		return fmt.Errorf("seller: %w", err)
	}
	if err := c.Recommend.Validate(); err != nil {
		return fmt.Errorf("recommend: %w", err)
	}
	if err := c.validateSanitize(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if c.Seller.Shipping.Currency != "" && c.Seller.Shipping.Currency != c.Recommend.BaseCurrency {
		if _, ok := c.Recommend.Rates[c.Seller.Shipping.Currency]; !ok {
			return fmt.Errorf("seller.shipping.currency %q has no rate in recommend.rates", c.Seller.Shipping.Currency)
		}
	}
	return nil
}

func (c *Config) validateMatcher() error {
	if c.Matcher.Threshold <= 0 || c.Matcher.Threshold > 1 {
		return errors.New("matcher.threshold must be in (0, 1]")
	}
	w := c.Matcher.Weights
	if w.Title < 0 || w.Artist < 0 || w.Year < 0 || w.YearMismatchPenalty < 0 {
		return errors.New("matcher.weights must not be negative")
	}
	if w.Title+w.Artist+w.Year <= 0 {
		return errors.New("matcher.weights must not all be zero")
	}
	if w.ReissueCredit < 0 || w.ReissueCredit > 1 {
		return errors.New("matcher.weights.reissue_credit must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateSanitize() error {
	if c.Sanitize.MinPrice < 0 {
		return errors.New("sanitize.min_price must not be negative")
	}
	if c.Sanitize.MaxPrice != 0 && c.Sanitize.MaxPrice <= c.Sanitize.MinPrice {
		return errors.New("sanitize.max_price must exceed min_price")
	}
	return nil
}

func (c *Config) validateSearch() error {
	switch c.Search.Source {
	case "file":
		if c.Search.Dir == "" {
			return errors.New("search.dir must be set when search.source is file")
		}
	case "sql":
	default:
		return fmt.Errorf("search.source: unsupported value %q", c.Search.Source)
	}
	if c.Catalog.Enabled && c.Catalog.Dir == "" {
		return errors.New("catalog.dir must be set when catalog.enabled is true")
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Analysis.Concurrency < 0 {
		return errors.New("analysis.concurrency must not be negative")
	}
	if c.Worker.Workers <= 0 {
		return errors.New("worker.workers must be positive")
	}
	if c.Worker.RunsPerSecond <= 0 {
		return errors.New("worker.runs_per_second must be positive")
	}
	if c.Worker.RunTimeoutSeconds <= 0 {
		return errors.New("worker.run_timeout_seconds must be positive")
	}
	if c.Worker.RetentionDays < 0 {
		return errors.New("worker.retention_days must not be negative")
	}
	if c.Worker.PruneSchedule != "" {
		if _, err := cron.ParseStandard(c.Worker.PruneSchedule); err != nil {
			return fmt.Errorf("worker.prune_schedule: %w", err)
		}
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("kafka.topic must be set when kafka.brokers is configured")
	}
	return nil
}
