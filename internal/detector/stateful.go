package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/dwsmith1983/watchtower/internal/metrics"
	"github.com/dwsmith1983/watchtower/internal/state"
	"github.com/dwsmith1983/watchtower/pkg/types"
)

// Compile-time interface satisfaction check.
var _ Handler = (*StatefulHandler)(nil)

// StatefulHandler evaluates threshold detectors against durable per-group
// state: it deduplicates packets by token, evaluates the detector's
// condition group, and emits an occurrence or status change only when the
// trigger state actually changes.
type StatefulHandler struct {
	detector     types.Detector
	counterNames []string
	manager      *state.Manager
	logger       *slog.Logger
}

// NewStatefulHandler builds a StatefulHandler bound to one detector.
// Usable directly as a Factory.
func NewStatefulHandler(det types.Detector, deps HandlerDeps) Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &StatefulHandler{
		detector: det,
		logger:   logger,
	}
	h.manager = state.NewManager(det, h.counterNames, deps.Values, deps.Rows, logger)
	return h
}

// BuildFingerprint returns the stable issue fingerprint for one group:
// the detector's fingerprint component plus the group key (empty string
// for the ungrouped entity).
func (h *StatefulHandler) BuildFingerprint(groupKey string) []string {
	return []string{h.detector.FingerprintComponent(), groupKey}
}

// StateManager exposes the handler's state manager (for key derivation in
// tooling and tests).
func (h *StatefulHandler) StateManager() *state.Manager {
	return h.manager
}

// Evaluate processes one data packet. There is one result per group key in
// the packet unless evaluation of that key is skipped (stale token, invalid
// condition group, or unchanged state). All buffered state mutations are
// committed in a single call after every key has been decided.
func (h *StatefulHandler) Evaluate(ctx context.Context, packet types.DataPacket) (map[string]types.DetectorEvaluationResult, error) {
	dedupeValue, groupValues, err := extractGroupValues(packet)
	if err != nil {
		return nil, fmt.Errorf("decoding packet for detector %d: %w", h.detector.ID, err)
	}

	groupKeys := make([]string, 0, len(groupValues))
	for gk := range groupValues {
		groupKeys = append(groupKeys, gk)
	}

	stateData, err := h.manager.GetStateData(ctx, groupKeys)
	if err != nil {
		return nil, err
	}

	results := make(map[string]types.DetectorEvaluationResult)
	for gk, value := range groupValues {
		if result := h.evaluateGroupKeyValue(gk, value, stateData[gk], dedupeValue); result != nil {
			results[gk] = *result
		}
	}

	if err := h.manager.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

// evaluateGroupKeyValue decides the outcome for one group key. A nil
// return means no new result this pass.
func (h *StatefulHandler) evaluateGroupKeyValue(groupKey string, value float64, stateData types.DetectorStateData, dedupeValue int64) *types.DetectorEvaluationResult {
	if dedupeValue <= stateData.DedupeValue {
		metrics.SkippedAlreadyProcessed.Add(1)
		h.logger.Debug("skipping already processed update",
			"detector", h.detector.ID, "groupKey", groupKey, "dedupe", dedupeValue)
		return nil
	}

	h.manager.EnqueueDedupeUpdate(groupKey, dedupeValue)

	if h.detector.ConditionGroup == nil || len(h.detector.ConditionGroup.Conditions) == 0 {
		metrics.SkippedInvalidConditionGroup.Add(1)
		h.logger.Warn("skipping invalid condition group",
			"detector", h.detector.ID, "groupKey", groupKey)
		return nil
	}

	newStatus := types.PriorityOK
	if matched, priorities := EvaluateConditionGroup(h.detector.ConditionGroup, value); matched {
		for _, p := range priorities {
			if p > newStatus {
				newStatus = p
			}
		}
	}

	h.manager.EnqueueCounterUpdate(groupKey, map[string]*int64{})

	if stateData.Status == newStatus {
		return nil
	}

	isTriggered := newStatus != types.PriorityOK
	h.manager.EnqueueStateUpdate(groupKey, isTriggered, newStatus)

	if !isTriggered {
		return &types.DetectorEvaluationResult{
			GroupKey:    groupKey,
			IsTriggered: false,
			Priority:    types.PriorityOK,
			StatusChange: &types.StatusChangeMessage{
				Fingerprint: h.BuildFingerprint(groupKey),
				DetectorID:  h.detector.ID,
				NewStatus:   types.GroupStatusResolved,
			},
		}
	}

	now := time.Now().UTC()
	occurrence := &types.IssueOccurrence{
		ID:            ulid.Make().String(),
		Fingerprint:   h.BuildFingerprint(groupKey),
		DetectorID:    h.detector.ID,
		Priority:      newStatus,
		DetectionTime: now,
		EvidenceData: map[string]any{
			"detector_id": h.detector.ID,
			"value":       value,
		},
	}

	return &types.DetectorEvaluationResult{
		GroupKey:    groupKey,
		IsTriggered: true,
		Priority:    newStatus,
		Occurrence:  occurrence,
		EventData: map[string]any{
			"event_id":  occurrence.ID,
			"timestamp": now,
			"value":     value,
		},
	}
}

// extractGroupValues decodes the conventional stateful payload: a dedupe
// token plus either per-group values or a single ungrouped value (which
// maps to the "" group key).
func extractGroupValues(packet types.DataPacket) (int64, map[string]float64, error) {
	var payload types.StatefulPayload
	if err := json.Unmarshal(packet.Payload, &payload); err != nil {
		return 0, nil, fmt.Errorf("unmarshaling stateful payload: %w", err)
	}

	if len(payload.GroupVals) > 0 {
		return payload.Dedupe, payload.GroupVals, nil
	}
	if payload.Value != nil {
		return payload.Dedupe, map[string]float64{"": *payload.Value}, nil
	}
	return 0, nil, fmt.Errorf("payload carries no group values")
}
