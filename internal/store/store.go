// Package store defines the storage backend interfaces for Watchtower.
package store

import (
	"context"
	"time"

	"github.com/dwsmith1983/watchtower/pkg/types"
)

// ValueTTL is how long dedupe tokens and counters live in the value store.
// State older than this has no packets left to dedupe against.
const ValueTTL = 7 * 24 * time.Hour

// ValueWrite is one buffered write to the integer value store.
// A nil Value deletes the key (encodes "unset").
type ValueWrite struct {
	Key   string
	Value *int64
}

// ValueStore holds small named integers: dedupe tokens and detector
// counters, keyed by namespaced state keys. Values are encoded as
// decimal strings on the wire.
type ValueStore interface {
	// GetInts returns one entry per requested key, in order.
	// A nil entry means the key is absent (never an error).
	GetInts(ctx context.Context, keys []string) ([]*int64, error)

	// WriteInts applies all writes in a single batched round trip.
	WriteInts(ctx context.Context, writes []ValueWrite) error
}

// DetectorStateRow is the durable trigger/status record for one
// (detector, group key) pair.
type DetectorStateRow struct {
	GroupKey    string
	IsTriggered bool
	Status      types.PriorityLevel
	UpdatedAt   time.Time
}

// DetectorStateUpdate is one buffered trigger/status mutation.
type DetectorStateUpdate struct {
	GroupKey    string
	IsTriggered bool
	Status      types.PriorityLevel
}

// StateRowStore persists durable detector state rows, queryable by
// (detector, group key).
type StateRowStore interface {
	// GetDetectorStates bulk-fetches rows for the given group keys.
	// Keys with no stored row are omitted from the returned map.
	GetDetectorStates(ctx context.Context, detectorID int64, groupKeys []string) (map[string]DetectorStateRow, error)

	// UpsertDetectorStates writes all updates for one detector.
	UpsertDetectorStates(ctx context.Context, detectorID int64, updates []DetectorStateUpdate) error
}

// ThrottleStore persists action fire timestamps and workflow fire history.
type ThrottleStore interface {
	// GetActionStatuses returns the last-fired statuses for the given
	// actions against one group, keyed by action id. Actions with no
	// prior status are omitted.
	GetActionStatuses(ctx context.Context, groupID string, actionIDs []string) (map[string]types.ActionGroupStatus, error)

	// CreateActionStatuses inserts missing status rows. Rows that
	// already exist (concurrent creation) are silently skipped.
	CreateActionStatuses(ctx context.Context, statuses []types.ActionGroupStatus) error

	// TouchActionStatuses bumps DateUpdated to now for the given
	// actions against one group.
	TouchActionStatuses(ctx context.Context, groupID string, actionIDs []string, now time.Time) error

	// MarkFireHistories upserts audit rows with the given flag values.
	MarkFireHistories(ctx context.Context, histories []types.WorkflowFireHistory) error
}
