package worker

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/watchtower/internal/config"
	"github.com/dwsmith1983/watchtower/internal/detector"
	"github.com/dwsmith1983/watchtower/internal/testutil"
	"github.com/dwsmith1983/watchtower/internal/watchdog"
	"github.com/dwsmith1983/watchtower/internal/workflow"
	"github.com/dwsmith1983/watchtower/pkg/types"
)

func TestNew_AppliesDefaults(t *testing.T) {
	w := New(nil, config.NATSConfig{}, nil, nil, nil, nil, nil, nil)

	assert.Equal(t, defaultPacketSubject, w.cfg.PacketSubject)
	assert.Equal(t, defaultQueueGroup, w.cfg.QueueGroup)
	assert.Equal(t, defaultConsumerName, w.cfg.ConsumerName)

	w = New(nil, config.NATSConfig{PacketSubject: "custom.packets", QueueGroup: "g1"}, nil, nil, nil, nil, nil, nil)
	assert.Equal(t, "custom.packets", w.cfg.PacketSubject)
	assert.Equal(t, "g1", w.cfg.QueueGroup)
}

func TestRunWorkflows_FiltersActionsPerOccurrence(t *testing.T) {
	rows := testutil.NewMemoryRowStore()
	wf := types.Workflow{
		ID: "wf-1",
		ConditionGroups: []types.DataConditionGroup{
			{ID: "cg-1", Actions: []types.Action{{ID: "act-1", Type: "slack"}}},
		},
	}
	filter := workflow.NewActionFilter(rows, []types.Workflow{wf}, nil)

	w := New(nil, config.NATSConfig{}, nil, filter, nil, []types.Workflow{wf}, nil, nil)

	occ := &types.IssueOccurrence{
		ID:          "evt-1",
		Fingerprint: []string{"detector:1", "grp-1"},
		DetectorID:  1,
	}
	results := []detector.DetectorResult{
		{
			Detector: types.Detector{ID: 1},
			Results: map[string]types.DetectorEvaluationResult{
				"grp-1": {GroupKey: "grp-1", IsTriggered: true, Occurrence: occ},
			},
		},
	}

	w.runWorkflows(context.Background(), results)

	// The action's throttle row was stamped under the fingerprint-derived group.
	status, ok := rows.ActionStatus("detector:1:grp-1", "act-1")
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), status.DateUpdated, 5*time.Second)

	h, ok := rows.FireHistory("detector:1:grp-1", "wf-1", "evt-1")
	require.True(t, ok)
	assert.True(t, h.HasFiredActions)
}

func TestRunWorkflows_SkipsStatusChanges(t *testing.T) {
	rows := testutil.NewMemoryRowStore()
	wf := types.Workflow{
		ID: "wf-1",
		ConditionGroups: []types.DataConditionGroup{
			{ID: "cg-1", Actions: []types.Action{{ID: "act-1", Type: "slack"}}},
		},
	}
	filter := workflow.NewActionFilter(rows, []types.Workflow{wf}, nil)
	w := New(nil, config.NATSConfig{}, nil, filter, nil, []types.Workflow{wf}, nil, nil)

	results := []detector.DetectorResult{
		{
			Detector: types.Detector{ID: 1},
			Results: map[string]types.DetectorEvaluationResult{
				"grp-1": {
					GroupKey: "grp-1",
					StatusChange: &types.StatusChangeMessage{
						Fingerprint: []string{"detector:1", "grp-1"},
						NewStatus:   types.GroupStatusResolved,
					},
				},
			},
		},
	}

	w.runWorkflows(context.Background(), results)

	// Resolutions don't fire workflow actions.
	_, ok := rows.ActionStatus("detector:1:grp-1", "act-1")
	assert.False(t, ok)
}

func TestHandle_EvaluatesAndTracksSource(t *testing.T) {
	values := testutil.NewMemoryValueStore()
	rows := testutil.NewMemoryRowStore()
	publisher := testutil.NewMemoryPublisher()

	registry := detector.NewRegistry()
	registry.RegisterGroupType("metric_alert", types.GroupTypeMetricIssue)
	registry.RegisterHandler(types.GroupTypeMetricIssue, detector.NewStatefulHandler)
	processor := detector.NewProcessor(registry, detector.HandlerDeps{Values: values, Rows: rows}, publisher, nil)

	det := types.Detector{
		ID: 1, Name: "error-rate", Type: "metric_alert", SourceID: "src-1",
		ConditionGroup: &types.DataConditionGroup{
			ID: "cg-1",
			Conditions: []types.DataCondition{
				{Type: types.ConditionGT, Comparison: 5, Result: types.PriorityHigh},
			},
		},
	}
	tracker := watchdog.NewSourceTracker()
	w := New(nil, config.NATSConfig{}, processor, nil, map[string][]types.Detector{"src-1": {det}}, nil, tracker, nil)

	msg := &nats.Msg{
		Subject: defaultPacketSubject,
		Data:    []byte(`{"sourceId":"src-1","payload":{"dedupe":1,"group_vals":{"grp-1":6}}}`),
	}
	w.handle(context.Background(), msg)

	_, ok := tracker.LastSeen("src-1")
	assert.True(t, ok)

	row, ok := rows.StateRow(1, "grp-1")
	require.True(t, ok)
	assert.True(t, row.IsTriggered)
	require.Len(t, publisher.Messages(), 1)
}

func TestHandle_IgnoresUnknownSource(t *testing.T) {
	tracker := watchdog.NewSourceTracker()
	w := New(nil, config.NATSConfig{}, nil, nil, map[string][]types.Detector{}, nil, tracker, nil)

	msg := &nats.Msg{
		Subject: defaultPacketSubject,
		Data:    []byte(`{"sourceId":"src-unknown","payload":{"dedupe":1}}`),
	}
	w.handle(context.Background(), msg)

	// The packet still counts as a sign of life from its source.
	_, ok := tracker.LastSeen("src-unknown")
	assert.True(t, ok)
}
