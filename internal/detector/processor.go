package detector

import (
	"context"
	"log/slog"

	"github.com/dwsmith1983/watchtower/internal/metrics"
	"github.com/dwsmith1983/watchtower/internal/publish"
	"github.com/dwsmith1983/watchtower/pkg/types"
)

// DetectorResult pairs a detector with its evaluation results for one packet.
type DetectorResult struct {
	Detector types.Detector
	Results  map[string]types.DetectorEvaluationResult
}

// Processor orchestrates evaluation of multiple detectors against one data
// packet and publishes their results to the event pipeline.
type Processor struct {
	registry  *Registry
	deps      HandlerDeps
	publisher publish.Publisher
	logger    *slog.Logger
}

// NewProcessor creates a Processor. The registry is constructed at startup
// and passed by reference; the processor never mutates it.
func NewProcessor(registry *Registry, deps HandlerDeps, publisher publish.Publisher, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &Processor{
		registry:  registry,
		deps:      deps,
		publisher: publisher,
		logger:    logger,
	}
}

// ProcessDetectors evaluates every detector against the packet, in input
// order. Configuration failures (missing group type or handler) skip the
// detector and never fail the batch; storage failures abort the pass and
// propagate to the task runner for retry. Every published result counts
// toward the detector's "triggered" metric.
func (p *Processor) ProcessDetectors(ctx context.Context, packet types.DataPacket, detectors []types.Detector) ([]DetectorResult, error) {
	results := make([]DetectorResult, 0, len(detectors))

	for _, det := range detectors {
		metrics.DetectorEvaluations.Add(det.Type, 1)

		groupType, ok := p.registry.GroupType(det.Type)
		if !ok {
			metrics.DetectorsMissingGroupType.Add(1)
			p.logger.Error("No registered grouptype for detector",
				"detector", det.ID, "type", det.Type)
			continue
		}

		factory, ok := p.registry.Handler(groupType)
		if !ok {
			metrics.DetectorsMissingHandler.Add(1)
			p.logger.Error("Registered grouptype for detector has no detector_handler",
				"detector", det.ID, "type", det.Type, "groupType", groupType)
			continue
		}

		handler := factory(det, p.deps)
		detResults, err := handler.Evaluate(ctx, packet)
		if err != nil {
			return nil, err
		}

		for gk, result := range detResults {
			p.publishResult(ctx, det, gk, result)
			metrics.DetectorTriggered.Add(det.Type, 1)
		}

		results = append(results, DetectorResult{Detector: det, Results: detResults})
	}

	return results, nil
}

// publishResult ships one result to the event pipeline. Publish failures
// are logged, not propagated: the pipeline is fire-and-forget here.
func (p *Processor) publishResult(ctx context.Context, det types.Detector, groupKey string, result types.DetectorEvaluationResult) {
	msg := publish.Message{EventData: result.EventData}
	switch {
	case result.Occurrence != nil:
		msg.PayloadType = types.PayloadTypeOccurrence
		msg.Occurrence = result.Occurrence
	case result.StatusChange != nil:
		msg.PayloadType = types.PayloadTypeStatusChange
		msg.StatusChange = result.StatusChange
	default:
		return
	}

	if err := p.publisher.Publish(ctx, msg); err != nil {
		metrics.PublishFailures.Add(1)
		p.logger.Error("failed to publish detector result",
			"detector", det.ID, "groupKey", groupKey, "payloadType", msg.PayloadType, "error", err)
		return
	}
	metrics.ResultsPublished.Add(1)
}
