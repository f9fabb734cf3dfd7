// Package commands implements the CLI subcommands for the watchtower binary.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dwsmith1983/watchtower/internal/config"
	"github.com/dwsmith1983/watchtower/internal/detector"
	ddbstore "github.com/dwsmith1983/watchtower/internal/store/dynamodb"
	redisstore "github.com/dwsmith1983/watchtower/internal/store/redis"
	"github.com/dwsmith1983/watchtower/internal/watchdog"
	"github.com/dwsmith1983/watchtower/pkg/types"
)

// newStores creates and starts the value store and row store from config.
func newStores(ctx context.Context, cfg *config.Config) (*redisstore.ValueStore, *ddbstore.RowStore, error) {
	values := redisstore.New(cfg.Redis)
	if err := values.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	rows, err := ddbstore.New(cfg.DynamoDB)
	if err != nil {
		_ = values.Stop(ctx)
		return nil, nil, fmt.Errorf("creating DynamoDB store: %w", err)
	}
	if err := rows.Start(ctx); err != nil {
		_ = values.Stop(ctx)
		return nil, nil, fmt.Errorf("connecting to DynamoDB: %w", err)
	}

	return values, rows, nil
}

// newRegistry builds the detector registry with the built-in handlers.
// Both detector types map to the metric issue group type; they differ only
// in how upstream sources label their rules.
func newRegistry() *detector.Registry {
	registry := detector.NewRegistry()
	registry.RegisterGroupType("metric_alert", types.GroupTypeMetricIssue)
	registry.RegisterGroupType("stateful", types.GroupTypeMetricIssue)
	registry.RegisterHandler(types.GroupTypeMetricIssue, detector.NewStatefulHandler)
	return registry
}

// newWatchdog builds the silent-source watchdog over every configured source.
func newWatchdog(cfg *config.Config, tracker *watchdog.SourceTracker, logger *slog.Logger) *watchdog.Watchdog {
	var threshold, interval time.Duration
	if cfg.Watchdog.StaleAfter != "" {
		if d, err := time.ParseDuration(cfg.Watchdog.StaleAfter); err == nil {
			threshold = d
		}
	}
	if cfg.Watchdog.Interval != "" {
		if d, err := time.ParseDuration(cfg.Watchdog.Interval); err == nil {
			interval = d
		}
	}

	sources := make([]string, 0, len(cfg.Detectors))
	seen := make(map[string]bool)
	for _, det := range cfg.Detectors {
		if seen[det.SourceID] {
			continue
		}
		seen[det.SourceID] = true
		sources = append(sources, det.SourceID)
	}

	return watchdog.New(tracker, sources, threshold, interval, logger)
}

// newLogger returns the process-wide structured logger.
func newLogger() *slog.Logger {
	return slog.Default()
}
