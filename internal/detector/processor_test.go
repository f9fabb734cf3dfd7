package detector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/watchtower/internal/testutil"
	"github.com/dwsmith1983/watchtower/pkg/types"
)

func processorFixture(t *testing.T) (*Processor, *testutil.MemoryPublisher, *testutil.MemoryValueStore) {
	t.Helper()
	values := testutil.NewMemoryValueStore()
	rows := testutil.NewMemoryRowStore()
	publisher := testutil.NewMemoryPublisher()

	registry := NewRegistry()
	registry.RegisterGroupType("metric_alert", types.GroupTypeMetricIssue)
	registry.RegisterHandler(types.GroupTypeMetricIssue, NewStatefulHandler)

	deps := HandlerDeps{Values: values, Rows: rows}
	return NewProcessor(registry, deps, publisher, nil), publisher, values
}

func TestProcessDetectors_PublishesOccurrences(t *testing.T) {
	p, publisher, _ := processorFixture(t)

	det := thresholdDetector(1)
	results, err := p.ProcessDetectors(context.Background(), packetFor(t, 1, map[string]float64{"grp-1": 6}), []types.Detector{det})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, det.ID, results[0].Detector.ID)
	require.Contains(t, results[0].Results, "grp-1")

	msgs := publisher.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, types.PayloadTypeOccurrence, msgs[0].PayloadType)
	require.NotNil(t, msgs[0].Occurrence)
	assert.Equal(t, []string{"detector:1", "grp-1"}, msgs[0].Occurrence.Fingerprint)
}

func TestProcessDetectors_PublishesStatusChanges(t *testing.T) {
	p, publisher, _ := processorFixture(t)
	ctx := context.Background()
	det := thresholdDetector(1)

	_, err := p.ProcessDetectors(ctx, packetFor(t, 1, map[string]float64{"grp-1": 6}), []types.Detector{det})
	require.NoError(t, err)
	_, err = p.ProcessDetectors(ctx, packetFor(t, 2, map[string]float64{"grp-1": 3}), []types.Detector{det})
	require.NoError(t, err)

	msgs := publisher.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, types.PayloadTypeOccurrence, msgs[0].PayloadType)
	assert.Equal(t, types.PayloadTypeStatusChange, msgs[1].PayloadType)
	require.NotNil(t, msgs[1].StatusChange)
	assert.Equal(t, types.GroupStatusResolved, msgs[1].StatusChange.NewStatus)
}

func TestProcessDetectors_SkipsUnknownDetectorType(t *testing.T) {
	p, publisher, _ := processorFixture(t)

	unknown := thresholdDetector(2)
	unknown.Type = "uptime_check"
	known := thresholdDetector(1)

	results, err := p.ProcessDetectors(context.Background(), packetFor(t, 1, map[string]float64{"grp-1": 6}), []types.Detector{unknown, known})
	require.NoError(t, err)

	// The misconfigured detector is dropped; the healthy one still runs.
	require.Len(t, results, 1)
	assert.Equal(t, known.ID, results[0].Detector.ID)
	assert.Len(t, publisher.Messages(), 1)
}

func TestProcessDetectors_SkipsGroupTypeWithoutHandler(t *testing.T) {
	values := testutil.NewMemoryValueStore()
	rows := testutil.NewMemoryRowStore()
	publisher := testutil.NewMemoryPublisher()

	registry := NewRegistry()
	registry.RegisterGroupType("metric_alert", types.GroupTypeMetricIssue)
	// No handler registered for the group type.

	p := NewProcessor(registry, HandlerDeps{Values: values, Rows: rows}, publisher, nil)
	results, err := p.ProcessDetectors(context.Background(), packetFor(t, 1, map[string]float64{"grp-1": 6}), []types.Detector{thresholdDetector(1)})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, publisher.Messages())
}

func TestProcessDetectors_EvaluatedDetectorsAlwaysAppear(t *testing.T) {
	p, _, _ := processorFixture(t)

	// Below threshold: the detector evaluated fine, just produced nothing.
	results, err := p.ProcessDetectors(context.Background(), packetFor(t, 1, map[string]float64{"grp-1": 1}), []types.Detector{thresholdDetector(1)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Results)
}

func TestProcessDetectors_PreservesInputOrder(t *testing.T) {
	p, _, _ := processorFixture(t)

	detectors := []types.Detector{thresholdDetector(3), thresholdDetector(1), thresholdDetector(2)}
	results, err := p.ProcessDetectors(context.Background(), packetFor(t, 1, map[string]float64{"grp-1": 6}), detectors)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, int64(3), results[0].Detector.ID)
	assert.Equal(t, int64(1), results[1].Detector.ID)
	assert.Equal(t, int64(2), results[2].Detector.ID)
}

func TestProcessDetectors_StorageErrorAbortsBatch(t *testing.T) {
	p, _, values := processorFixture(t)
	values.Fail = assert.AnError

	_, err := p.ProcessDetectors(context.Background(), packetFor(t, 1, map[string]float64{"grp-1": 6}), []types.Detector{thresholdDetector(1)})
	require.Error(t, err)
}

func TestProcessDetectors_PublishFailureDoesNotAbort(t *testing.T) {
	p, publisher, _ := processorFixture(t)
	publisher.Fail = assert.AnError

	results, err := p.ProcessDetectors(context.Background(), packetFor(t, 1, map[string]float64{"grp-1": 6}), []types.Detector{thresholdDetector(1)})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Contains(t, results[0].Results, "grp-1")
}
