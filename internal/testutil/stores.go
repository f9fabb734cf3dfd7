// Package testutil provides shared in-memory test doubles for Watchtower.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/dwsmith1983/watchtower/internal/store"
	"github.com/dwsmith1983/watchtower/pkg/types"
)

// Compile-time interface satisfaction checks.
var (
	_ store.ValueStore    = (*MemoryValueStore)(nil)
	_ store.StateRowStore = (*MemoryRowStore)(nil)
	_ store.ThrottleStore = (*MemoryRowStore)(nil)
)

// MemoryValueStore is an in-memory ValueStore implementation for testing.
type MemoryValueStore struct {
	mu     sync.Mutex
	values map[string]int64

	// Fail, when set, makes every call return it (simulates store outage).
	Fail error
}

// NewMemoryValueStore creates an empty in-memory value store.
func NewMemoryValueStore() *MemoryValueStore {
	return &MemoryValueStore{values: make(map[string]int64)}
}

func (m *MemoryValueStore) GetInts(_ context.Context, keys []string) ([]*int64, error) {
	if m.Fail != nil {
		return nil, m.Fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	results := make([]*int64, len(keys))
	for i, key := range keys {
		if v, ok := m.values[key]; ok {
			value := v
			results[i] = &value
		}
	}
	return results, nil
}

func (m *MemoryValueStore) WriteInts(_ context.Context, writes []store.ValueWrite) error {
	if m.Fail != nil {
		return m.Fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range writes {
		if w.Value == nil {
			delete(m.values, w.Key)
			continue
		}
		m.values[w.Key] = *w.Value
	}
	return nil
}

// Get returns the stored value for key and whether it exists.
func (m *MemoryValueStore) Get(key string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

// Len returns the number of stored values.
func (m *MemoryValueStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}

// MemoryRowStore is an in-memory StateRowStore + ThrottleStore for testing.
type MemoryRowStore struct {
	mu       sync.Mutex
	states   map[int64]map[string]store.DetectorStateRow // detector id -> group key -> row
	statuses map[string]types.ActionGroupStatus          // "groupID/actionID"
	history  map[string]types.WorkflowFireHistory        // "groupID/workflowID/eventID"

	// Fail, when set, makes every call return it (simulates store outage).
	Fail error
}

// NewMemoryRowStore creates an empty in-memory row store.
func NewMemoryRowStore() *MemoryRowStore {
	return &MemoryRowStore{
		states:   make(map[int64]map[string]store.DetectorStateRow),
		statuses: make(map[string]types.ActionGroupStatus),
		history:  make(map[string]types.WorkflowFireHistory),
	}
}

func (m *MemoryRowStore) GetDetectorStates(_ context.Context, detectorID int64, groupKeys []string) (map[string]store.DetectorStateRow, error) {
	if m.Fail != nil {
		return nil, m.Fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	results := make(map[string]store.DetectorStateRow)
	for _, gk := range groupKeys {
		if row, ok := m.states[detectorID][gk]; ok {
			results[gk] = row
		}
	}
	return results, nil
}

func (m *MemoryRowStore) UpsertDetectorStates(_ context.Context, detectorID int64, updates []store.DetectorStateUpdate) error {
	if m.Fail != nil {
		return m.Fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states[detectorID] == nil {
		m.states[detectorID] = make(map[string]store.DetectorStateRow)
	}
	for _, u := range updates {
		m.states[detectorID][u.GroupKey] = store.DetectorStateRow{
			GroupKey:    u.GroupKey,
			IsTriggered: u.IsTriggered,
			Status:      u.Status,
			UpdatedAt:   time.Now(),
		}
	}
	return nil
}

// StateRow returns the stored row for (detector, group key) and whether it exists.
func (m *MemoryRowStore) StateRow(detectorID int64, groupKey string) (store.DetectorStateRow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.states[detectorID][groupKey]
	return row, ok
}

func statusKey(groupID, actionID string) string { return groupID + "/" + actionID }

func historyKey(h types.WorkflowFireHistory) string {
	return h.GroupID + "/" + h.WorkflowID + "/" + h.EventID
}

func (m *MemoryRowStore) GetActionStatuses(_ context.Context, groupID string, actionIDs []string) (map[string]types.ActionGroupStatus, error) {
	if m.Fail != nil {
		return nil, m.Fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	results := make(map[string]types.ActionGroupStatus)
	for _, id := range actionIDs {
		if status, ok := m.statuses[statusKey(groupID, id)]; ok {
			results[id] = status
		}
	}
	return results, nil
}

func (m *MemoryRowStore) CreateActionStatuses(_ context.Context, statuses []types.ActionGroupStatus) error {
	if m.Fail != nil {
		return m.Fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, status := range statuses {
		key := statusKey(status.GroupID, status.ActionID)
		if _, exists := m.statuses[key]; exists {
			continue // conflict-tolerant, like the DynamoDB conditional put
		}
		m.statuses[key] = status
	}
	return nil
}

func (m *MemoryRowStore) TouchActionStatuses(_ context.Context, groupID string, actionIDs []string, now time.Time) error {
	if m.Fail != nil {
		return m.Fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range actionIDs {
		key := statusKey(groupID, id)
		status := m.statuses[key]
		status.ActionID = id
		status.GroupID = groupID
		status.DateUpdated = now
		m.statuses[key] = status
	}
	return nil
}

func (m *MemoryRowStore) MarkFireHistories(_ context.Context, histories []types.WorkflowFireHistory) error {
	if m.Fail != nil {
		return m.Fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range histories {
		m.history[historyKey(h)] = h
	}
	return nil
}

// SeedActionStatus inserts a status row directly (test setup).
func (m *MemoryRowStore) SeedActionStatus(status types.ActionGroupStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[statusKey(status.GroupID, status.ActionID)] = status
}

// ActionStatus returns the stored status for (group, action) and whether it exists.
func (m *MemoryRowStore) ActionStatus(groupID, actionID string) (types.ActionGroupStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.statuses[statusKey(groupID, actionID)]
	return status, ok
}

// FireHistory returns the stored audit row and whether it exists.
func (m *MemoryRowStore) FireHistory(groupID, workflowID, eventID string) (types.WorkflowFireHistory, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.history[groupID+"/"+workflowID+"/"+eventID]
	return h, ok
}
