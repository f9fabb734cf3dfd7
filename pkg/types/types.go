package types

import (
	"encoding/json"
	"strconv"
	"time"
)

// DefaultFrequencyMinutes is the action re-fire frequency applied when a
// workflow config doesn't set one.
const DefaultFrequencyMinutes = 30

// DataPacket is one unit of telemetry delivered by an upstream source.
// The payload shape is detector-type-specific; handlers decode it themselves.
type DataPacket struct {
	SourceID string          `json:"sourceId"`
	Payload  json.RawMessage `json:"payload"`
}

// StatefulPayload is the conventional payload shape consumed by stateful
// detectors: a monotonic dedupe token plus per-group numeric values.
// When GroupVals is empty the packet carries a single ungrouped Value.
type StatefulPayload struct {
	Dedupe    int64              `json:"dedupe"`
	GroupVals map[string]float64 `json:"group_vals,omitempty"`
	Value     *float64           `json:"value,omitempty"`
}

// DataCondition is a single comparison predicate. When the comparison
// matches, the condition contributes Result as a candidate priority.
type DataCondition struct {
	Type       ConditionType `yaml:"type" json:"type"`
	Comparison float64       `yaml:"comparison" json:"comparison"`
	Result     PriorityLevel `yaml:"result" json:"result"`
}

// DataConditionGroup is a set of conditions combined with Logic.
// Detectors own one group as their trigger predicate; workflows own
// groups that gate which actions fire.
type DataConditionGroup struct {
	ID         string          `yaml:"id" json:"id"`
	Logic      ConditionLogic  `yaml:"logic,omitempty" json:"logic,omitempty"`
	Conditions []DataCondition `yaml:"conditions" json:"conditions"`
	Actions    []Action        `yaml:"actions,omitempty" json:"actions,omitempty"`
}

// Detector is a configured detection rule. ID namespaces all durable state
// keys and issue fingerprints, so it must be stable across restarts.
type Detector struct {
	ID             int64               `yaml:"id" json:"id"`
	Name           string              `yaml:"name" json:"name"`
	Type           string              `yaml:"type" json:"type"`
	SourceID       string              `yaml:"sourceId" json:"sourceId"`
	ConditionGroup *DataConditionGroup `yaml:"conditionGroup,omitempty" json:"conditionGroup,omitempty"`
}

// FingerprintComponent returns the stable fingerprint component derived from
// the detector id. Issue fingerprints are [component, group_key-or-empty].
func (d Detector) FingerprintComponent() string {
	return "detector:" + strconv.FormatInt(d.ID, 10)
}

// DetectorStateData is the per-(detector, group key) evaluation state
// snapshot. A group key of "" denotes the single ungrouped entity.
type DetectorStateData struct {
	GroupKey    string
	IsTriggered bool
	Status      PriorityLevel
	DedupeValue int64
	// CounterUpdates maps counter name to value; nil means "no prior
	// observation", which is distinct from an observed zero.
	CounterUpdates map[string]*int64
}

// DetectorEvaluationResult is the outcome for one group key in one
// evaluation pass. Exactly one of Occurrence or StatusChange is set.
type DetectorEvaluationResult struct {
	GroupKey     string
	IsTriggered  bool
	Priority     PriorityLevel
	Occurrence   *IssueOccurrence
	StatusChange *StatusChangeMessage
	EventData    map[string]any
}

// IssueOccurrence is a newly detected issue instance emitted when a
// detector transitions into a triggered state.
type IssueOccurrence struct {
	ID            string         `json:"id"`
	Fingerprint   []string       `json:"fingerprint"`
	DetectorID    int64          `json:"detectorId"`
	Priority      PriorityLevel  `json:"priority"`
	DetectionTime time.Time      `json:"detectionTime"`
	EvidenceData  map[string]any `json:"evidenceData,omitempty"`
}

// StatusChangeMessage is emitted when a previously triggered entity
// resolves (or un-resolves).
type StatusChangeMessage struct {
	Fingerprint []string    `json:"fingerprint"`
	DetectorID  int64       `json:"detectorId"`
	NewStatus   GroupStatus `json:"newStatus"`
}

// Action is a notification/action integration attached to a workflow's
// condition groups. Dispatch internals live outside this engine.
type Action struct {
	ID     string `yaml:"id" json:"id"`
	Type   string `yaml:"type" json:"type"`
	Target string `yaml:"target,omitempty" json:"target,omitempty"`
}

// WorkflowConfig holds per-workflow tuning.
type WorkflowConfig struct {
	// Frequency is the minimum number of minutes between fires of the
	// same action for the same group. Zero means DefaultFrequencyMinutes.
	Frequency int `yaml:"frequency,omitempty" json:"frequency,omitempty"`
}

// Workflow owns condition groups whose actions fire when a detector
// triggers, subject to frequency throttling.
type Workflow struct {
	ID              string               `yaml:"id" json:"id"`
	Config          WorkflowConfig       `yaml:"config,omitempty" json:"config,omitempty"`
	ConditionGroups []DataConditionGroup `yaml:"conditionGroups" json:"conditionGroups"`
}

// FrequencyMinutes returns the effective throttle window for the workflow.
func (w Workflow) FrequencyMinutes() time.Duration {
	freq := w.Config.Frequency
	if freq <= 0 {
		freq = DefaultFrequencyMinutes
	}
	return time.Duration(freq) * time.Minute
}

// ActionGroupStatus records the last time an action fired for a group.
// Keyed uniquely by (action, group); used only for frequency throttling.
type ActionGroupStatus struct {
	ActionID    string    `json:"actionId"`
	GroupID     string    `json:"groupId"`
	DateUpdated time.Time `json:"dateUpdated"`
}

// WorkflowFireHistory is the audit record for one (workflow, group, event)
// evaluation: whether the workflow's actions passed filtering and whether
// they were actually dispatched.
type WorkflowFireHistory struct {
	WorkflowID       string `json:"workflowId"`
	GroupID          string `json:"groupId"`
	EventID          string `json:"eventId"`
	HasPassedFilters bool   `json:"hasPassedFilters"`
	HasFiredActions  bool   `json:"hasFiredActions"`
}

// EventData is the workflow-side context for one triggering event.
type EventData struct {
	GroupID string
	EventID string
}
