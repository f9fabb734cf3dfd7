// Package state implements the buffered enqueue/commit protocol for
// per-(detector, group key) evaluation state.
package state

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dwsmith1983/watchtower/internal/store"
	"github.com/dwsmith1983/watchtower/pkg/types"
)

// dedupePostfix names the dedupe token slot within a group's key namespace.
const dedupePostfix = "dedupe_value"

// Manager buffers state mutations for one detector across one evaluation
// pass and commits them in a single call. It is not safe for concurrent
// use; the caller serializes evaluation per (detector, group key).
type Manager struct {
	detector     types.Detector
	counterNames []string
	values       store.ValueStore
	rows         store.StateRowStore
	logger       *slog.Logger

	dedupeUpdates  map[string]int64
	counterUpdates map[string]map[string]*int64
	stateUpdates   map[string]store.DetectorStateUpdate
}

// NewManager creates a Manager scoped to one detector. counterNames lists
// the named counters the detector's handler tracks.
func NewManager(detector types.Detector, counterNames []string, values store.ValueStore, rows store.StateRowStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		detector:       detector,
		counterNames:   counterNames,
		values:         values,
		rows:           rows,
		logger:         logger,
		dedupeUpdates:  make(map[string]int64),
		counterUpdates: make(map[string]map[string]*int64),
		stateUpdates:   make(map[string]store.DetectorStateUpdate),
	}
}

// BuildKeyForGroup derives the value-store key for one slot of one group's
// state. Keys embed the detector id so two detectors never collide, and the
// derivation is deterministic so identical inputs give identical keys.
func (m *Manager) BuildKeyForGroup(groupKey, postfix string) string {
	id := strconv.FormatInt(m.detector.ID, 10)
	if groupKey == "" {
		return id + ":" + postfix
	}
	return id + ":" + groupKey + ":" + postfix
}

// EnqueueDedupeUpdate buffers a dedupe token write for the group.
func (m *Manager) EnqueueDedupeUpdate(groupKey string, dedupeValue int64) {
	m.dedupeUpdates[groupKey] = dedupeValue
}

// EnqueueCounterUpdate buffers counter writes for the group.
// A nil value unsets the counter.
func (m *Manager) EnqueueCounterUpdate(groupKey string, updates map[string]*int64) {
	m.counterUpdates[groupKey] = updates
}

// EnqueueStateUpdate buffers a trigger/status row write for the group.
func (m *Manager) EnqueueStateUpdate(groupKey string, isTriggered bool, status types.PriorityLevel) {
	m.stateUpdates[groupKey] = store.DetectorStateUpdate{
		GroupKey:    groupKey,
		IsTriggered: isTriggered,
		Status:      status,
	}
}

// GetStateData fetches state for all given group keys in one batched read
// per store. Keys with no stored state get defaults: not triggered, OK,
// dedupe 0, every named counter unset.
func (m *Manager) GetStateData(ctx context.Context, groupKeys []string) (map[string]types.DetectorStateData, error) {
	rowLookup, err := m.rows.GetDetectorStates(ctx, m.detector.ID, groupKeys)
	if err != nil {
		return nil, fmt.Errorf("fetching detector state rows: %w", err)
	}

	dedupeKeys := make([]string, len(groupKeys))
	for i, gk := range groupKeys {
		dedupeKeys[i] = m.BuildKeyForGroup(gk, dedupePostfix)
	}
	dedupeValues, err := m.values.GetInts(ctx, dedupeKeys)
	if err != nil {
		return nil, fmt.Errorf("fetching dedupe values: %w", err)
	}

	counters := make(map[string]map[string]*int64, len(groupKeys))
	if len(m.counterNames) > 0 {
		counterKeys := make([]string, 0, len(groupKeys)*len(m.counterNames))
		for _, gk := range groupKeys {
			for _, name := range m.counterNames {
				counterKeys = append(counterKeys, m.BuildKeyForGroup(gk, name))
			}
		}
		counterValues, err := m.values.GetInts(ctx, counterKeys)
		if err != nil {
			return nil, fmt.Errorf("fetching counter values: %w", err)
		}
		for i, gk := range groupKeys {
			groupCounters := make(map[string]*int64, len(m.counterNames))
			for j, name := range m.counterNames {
				groupCounters[name] = counterValues[i*len(m.counterNames)+j]
			}
			counters[gk] = groupCounters
		}
	}

	results := make(map[string]types.DetectorStateData, len(groupKeys))
	for i, gk := range groupKeys {
		data := types.DetectorStateData{
			GroupKey:       gk,
			IsTriggered:    false,
			Status:         types.PriorityOK,
			CounterUpdates: counters[gk],
		}
		if row, ok := rowLookup[gk]; ok {
			data.IsTriggered = row.IsTriggered
			data.Status = row.Status
		}
		if dv := dedupeValues[i]; dv != nil {
			data.DedupeValue = *dv
		}
		results[gk] = data
	}
	return results, nil
}

// Commit persists every buffered update and clears the buffers.
//
// Trigger/status rows are written first, dedupe and counter values last in
// one batched round trip. A crash between the two leaves a new status with
// a stale dedupe token; redelivery then re-evaluates, sees an unchanged
// status, emits nothing, and repairs the token. The reverse order would let
// the next packet compare against a stale status and emit a spurious
// transition.
func (m *Manager) Commit(ctx context.Context) error {
	if len(m.stateUpdates) > 0 {
		updates := make([]store.DetectorStateUpdate, 0, len(m.stateUpdates))
		for _, u := range m.stateUpdates {
			updates = append(updates, u)
		}
		if err := m.rows.UpsertDetectorStates(ctx, m.detector.ID, updates); err != nil {
			return fmt.Errorf("committing detector state rows: %w", err)
		}
	}

	writes := make([]store.ValueWrite, 0, len(m.dedupeUpdates)+len(m.counterUpdates))
	for gk, dedupe := range m.dedupeUpdates {
		value := dedupe
		writes = append(writes, store.ValueWrite{
			Key:   m.BuildKeyForGroup(gk, dedupePostfix),
			Value: &value,
		})
	}
	for gk, updates := range m.counterUpdates {
		for name, value := range updates {
			writes = append(writes, store.ValueWrite{
				Key:   m.BuildKeyForGroup(gk, name),
				Value: value,
			})
		}
	}
	if len(writes) > 0 {
		if err := m.values.WriteInts(ctx, writes); err != nil {
			return fmt.Errorf("committing state values: %w", err)
		}
	}

	clear(m.dedupeUpdates)
	clear(m.counterUpdates)
	clear(m.stateUpdates)
	return nil
}
