// Package worker implements the NATS-driven evaluation loop: it consumes
// data packets, runs the configured detectors against them, and throttles
// the actions of workflows reacting to triggered detectors.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/dwsmith1983/watchtower/internal/config"
	"github.com/dwsmith1983/watchtower/internal/detector"
	"github.com/dwsmith1983/watchtower/internal/metrics"
	"github.com/dwsmith1983/watchtower/internal/watchdog"
	"github.com/dwsmith1983/watchtower/internal/workflow"
	"github.com/dwsmith1983/watchtower/pkg/types"
)

const (
	defaultPacketSubject = "watchtower.packets"
	defaultQueueGroup    = "watchtower-workers"
	defaultConsumerName  = "watchtower"

	ackWait    = 30 * time.Second
	nakDelay   = 5 * time.Second
	maxDeliver = 5
)

// Worker consumes data packets from a JetStream queue consumer and drives
// the detector processor. Storage failures nak the message so JetStream
// redelivers it; config failures and malformed packets are acked and
// counted, never retried.
type Worker struct {
	nc        *nats.Conn
	sub       *nats.Subscription
	cfg       config.NATSConfig
	processor *detector.Processor
	filter    *workflow.ActionFilter
	detectors map[string][]types.Detector
	workflows []types.Workflow
	tracker   *watchdog.SourceTracker
	logger    *slog.Logger
}

// New creates a Worker over an existing NATS connection.
func New(nc *nats.Conn, cfg config.NATSConfig, processor *detector.Processor, filter *workflow.ActionFilter, detectors map[string][]types.Detector, workflows []types.Workflow, tracker *watchdog.SourceTracker, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PacketSubject == "" {
		cfg.PacketSubject = defaultPacketSubject
	}
	if cfg.QueueGroup == "" {
		cfg.QueueGroup = defaultQueueGroup
	}
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = defaultConsumerName
	}
	return &Worker{
		nc:        nc,
		cfg:       cfg,
		processor: processor,
		filter:    filter,
		detectors: detectors,
		workflows: workflows,
		tracker:   tracker,
		logger:    logger,
	}
}

// Start subscribes the worker to the packet subject. Processing happens on
// the subscription's delivery goroutine.
func (w *Worker) Start(ctx context.Context) error {
	js, err := w.nc.JetStream()
	if err != nil {
		return fmt.Errorf("jetstream init: %w", err)
	}

	subOpts := []nats.SubOpt{
		nats.Durable(w.cfg.ConsumerName),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.AckWait(ackWait),
		nats.MaxDeliver(maxDeliver),
		nats.DeliverAll(),
	}
	if w.cfg.Stream != "" {
		subOpts = append(subOpts, nats.BindStream(w.cfg.Stream))
	}

	sub, err := js.QueueSubscribe(w.cfg.PacketSubject, w.cfg.QueueGroup, func(msg *nats.Msg) {
		w.handle(ctx, msg)
	}, subOpts...)
	if err != nil {
		return fmt.Errorf("queue subscribe %q/%q: %w", w.cfg.PacketSubject, w.cfg.QueueGroup, err)
	}
	w.sub = sub
	w.logger.Info("worker consuming packets",
		"subject", w.cfg.PacketSubject, "queueGroup", w.cfg.QueueGroup)
	return nil
}

// Stop drains the subscription so in-flight packets finish before shutdown.
func (w *Worker) Stop() error {
	if w.sub != nil {
		if err := w.sub.Drain(); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) handle(ctx context.Context, msg *nats.Msg) {
	metrics.PacketsConsumed.Add(1)

	var packet types.DataPacket
	if err := json.Unmarshal(msg.Data, &packet); err != nil {
		metrics.PacketsMalformed.Add(1)
		w.logger.Warn("dropping malformed packet", "subject", msg.Subject, "error", err)
		w.ack(msg)
		return
	}

	if w.tracker != nil {
		w.tracker.Touch(packet.SourceID, time.Now())
	}

	detectors := w.detectors[packet.SourceID]
	if len(detectors) == 0 {
		w.logger.Debug("no detectors for source", "sourceId", packet.SourceID)
		w.ack(msg)
		return
	}

	results, err := w.processor.ProcessDetectors(ctx, packet, detectors)
	if err != nil {
		w.logger.Error("processing packet failed, requesting redelivery",
			"sourceId", packet.SourceID, "error", err)
		w.nak(msg)
		return
	}

	w.runWorkflows(ctx, results)
	w.ack(msg)
}

// runWorkflows feeds each triggering occurrence through the action filter.
// Action dispatch itself happens downstream; eligible actions are logged.
func (w *Worker) runWorkflows(ctx context.Context, results []detector.DetectorResult) {
	if w.filter == nil || len(w.workflows) == 0 {
		return
	}

	groups := make([]types.DataConditionGroup, 0)
	for _, wf := range w.workflows {
		groups = append(groups, wf.ConditionGroups...)
	}

	for _, dr := range results {
		for _, result := range dr.Results {
			if result.Occurrence == nil {
				continue
			}
			eventData := types.EventData{
				GroupID: strings.Join(result.Occurrence.Fingerprint, ":"),
				EventID: result.Occurrence.ID,
			}
			actions, err := w.filter.FilterRecentlyFiredActions(ctx, groups, eventData)
			if err != nil {
				w.logger.Error("action filtering failed",
					"detector", dr.Detector.ID, "groupKey", result.GroupKey, "error", err)
				continue
			}
			if len(actions) == 0 {
				continue
			}
			ids := make([]string, 0, len(actions))
			for _, a := range actions {
				ids = append(ids, a.ID)
			}
			w.logger.Info("actions eligible to fire",
				"detector", dr.Detector.ID, "groupKey", result.GroupKey,
				"eventId", eventData.EventID, "actions", ids)
		}
	}
}

func (w *Worker) ack(msg *nats.Msg) {
	if err := msg.Ack(); err != nil {
		w.logger.Warn("ack failed", "subject", msg.Subject, "error", err)
	}
}

func (w *Worker) nak(msg *nats.Msg) {
	if err := msg.NakWithDelay(nakDelay); err != nil {
		w.logger.Warn("nak failed", "subject", msg.Subject, "error", err)
	}
}
