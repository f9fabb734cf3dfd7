// Package detector implements detector evaluation: polymorphic handlers,
// condition evaluation, and the per-packet processor.
package detector

import (
	"context"
	"log/slog"

	"github.com/dwsmith1983/watchtower/internal/store"
	"github.com/dwsmith1983/watchtower/pkg/types"
)

// Handler evaluates a data packet for one detector and returns results
// keyed by group key. An absent key means "nothing to emit this pass" for
// that group; an empty map means the whole packet produced nothing.
type Handler interface {
	Evaluate(ctx context.Context, packet types.DataPacket) (map[string]types.DetectorEvaluationResult, error)
}

// HandlerDeps carries the storage backends a handler needs.
type HandlerDeps struct {
	Values store.ValueStore
	Rows   store.StateRowStore
	Logger *slog.Logger
}

// Factory builds a handler bound to one detector.
type Factory func(det types.Detector, deps HandlerDeps) Handler

// Registry maps detector types to group types, and group types to handler
// factories. It is populated once at startup and injected into the
// processor; it is not safe for concurrent registration after that.
type Registry struct {
	groupTypes map[string]types.GroupType
	factories  map[types.GroupType]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		groupTypes: make(map[string]types.GroupType),
		factories:  make(map[types.GroupType]Factory),
	}
}

// RegisterGroupType maps a detector type to its issue group type.
func (r *Registry) RegisterGroupType(detectorType string, groupType types.GroupType) {
	r.groupTypes[detectorType] = groupType
}

// RegisterHandler maps a group type to its handler factory.
func (r *Registry) RegisterHandler(groupType types.GroupType, factory Factory) {
	r.factories[groupType] = factory
}

// GroupType resolves the group type registered for a detector type.
func (r *Registry) GroupType(detectorType string) (types.GroupType, bool) {
	gt, ok := r.groupTypes[detectorType]
	return gt, ok
}

// Handler resolves the handler factory registered for a group type.
func (r *Registry) Handler(groupType types.GroupType) (Factory, bool) {
	f, ok := r.factories[groupType]
	return f, ok
}
