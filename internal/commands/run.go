package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dwsmith1983/watchtower/internal/config"
	"github.com/dwsmith1983/watchtower/internal/detector"
	"github.com/dwsmith1983/watchtower/internal/publish"
	"github.com/dwsmith1983/watchtower/internal/server"
	"github.com/dwsmith1983/watchtower/internal/watchdog"
	"github.com/dwsmith1983/watchtower/internal/worker"
	"github.com/dwsmith1983/watchtower/internal/workflow"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the detector evaluation worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker()
		},
	}
}

func runWorker() error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	values, rows, err := newStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = values.Stop(context.Background()) }()

	publisher, err := publish.NewNATSPublisher(publish.Config{
		URL:                 cfg.NATS.URL,
		OccurrenceSubject:   cfg.NATS.OccurrenceSubject,
		StatusChangeSubject: cfg.NATS.StatusChangeSubject,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating result publisher: %w", err)
	}
	defer publisher.Close()

	processor := detector.NewProcessor(newRegistry(), detector.HandlerDeps{
		Values: values,
		Rows:   rows,
		Logger: logger,
	}, publisher, logger)

	filter := workflow.NewActionFilter(rows, cfg.Workflows, logger)

	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("watchtower-worker"))
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer nc.Close()

	tracker := watchdog.NewSourceTracker()
	wrk := worker.New(nc, cfg.NATS, processor, filter, cfg.DetectorsBySource(), cfg.Workflows, tracker, logger)
	if err := wrk.Start(ctx); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}

	wd := newWatchdog(cfg, tracker, logger)
	wd.Start(ctx)

	srv := server.New(cfg.Server.Addr, map[string]server.Pinger{
		"redis":    values,
		"dynamodb": rows,
	}, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		wd.Stop()
		if err := wrk.Stop(); err != nil {
			logger.Warn("draining worker subscription failed", "error", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	return g.Wait()
}
