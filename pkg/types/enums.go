// Package types defines the public domain types for the Watchtower detection engine.
package types

// PriorityLevel is the ordered severity of a detector's trigger state.
// Values are spaced so new levels can be inserted without renumbering.
type PriorityLevel int

// PriorityLevel values, ordered OK < LOW < MEDIUM < HIGH.
const (
	PriorityOK     PriorityLevel = 0
	PriorityLow    PriorityLevel = 25
	PriorityMedium PriorityLevel = 50
	PriorityHigh   PriorityLevel = 75
)

// String returns the human-readable name of the priority level.
func (p PriorityLevel) String() string {
	switch p {
	case PriorityOK:
		return "OK"
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	}
	return "UNKNOWN"
}

// GroupStatus is the lifecycle status carried by a status-change message.
type GroupStatus string

const (
	GroupStatusResolved   GroupStatus = "resolved"
	GroupStatusUnresolved GroupStatus = "unresolved"
)

// PayloadType classifies what a published detector result carries.
type PayloadType string

const (
	PayloadTypeOccurrence   PayloadType = "occurrence"
	PayloadTypeStatusChange PayloadType = "status_change"
)

// GroupType identifies the issue grouping a detector type produces.
// Each registered group type maps to exactly one evaluation handler.
type GroupType string

// GroupTypeMetricIssue is the built-in group type for threshold detectors
// over numeric telemetry.
const GroupTypeMetricIssue GroupType = "metric_issue"

// ConditionType is the comparison operator of a data condition.
type ConditionType string

// ConditionType values enumerate the supported comparison operators.
const (
	ConditionGT  ConditionType = "gt"
	ConditionGTE ConditionType = "gte"
	ConditionLT  ConditionType = "lt"
	ConditionLTE ConditionType = "lte"
	ConditionEQ  ConditionType = "eq"
)

// ConditionLogic defines how a condition group combines its conditions.
type ConditionLogic string

const (
	LogicAny ConditionLogic = "any"
	LogicAll ConditionLogic = "all"
)
