// Package publish ships detector results to the external event pipeline.
package publish

import (
	"context"

	"github.com/dwsmith1983/watchtower/pkg/types"
)

// Message is one published detector result. Exactly one of Occurrence or
// StatusChange is set, matching PayloadType.
type Message struct {
	PayloadType  types.PayloadType          `json:"payloadType"`
	Occurrence   *types.IssueOccurrence     `json:"occurrence,omitempty"`
	StatusChange *types.StatusChangeMessage `json:"statusChange,omitempty"`
	EventData    map[string]any             `json:"eventData,omitempty"`
}

// Publisher ships messages to the occurrence/status-change pipeline.
// Publishing is fire-and-forget from the processor's perspective; the
// engine gives no idempotency guarantee for published side effects
// (redelivery after a publish-then-crash can double-publish).
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}
