package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan_FlagsSilentSources(t *testing.T) {
	tracker := NewSourceTracker()
	w := New(tracker, []string{"src-1", "src-2"}, 10*time.Minute, time.Minute, nil)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.started = now.Add(-1 * time.Hour)

	tracker.Touch("src-1", now.Add(-5*time.Minute))
	tracker.Touch("src-2", now.Add(-30*time.Minute))

	stale := w.Scan(now)
	require.Len(t, stale, 1)
	assert.Equal(t, "src-2", stale[0].SourceID)
	assert.Equal(t, 30*time.Minute, stale[0].Silence)
}

func TestScan_NeverSeenMeasuredFromStart(t *testing.T) {
	tracker := NewSourceTracker()
	w := New(tracker, []string{"src-1"}, 10*time.Minute, time.Minute, nil)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Started recently: the silent source is not yet overdue.
	w.started = now.Add(-5 * time.Minute)
	assert.Empty(t, w.Scan(now))

	// Started long ago with still no packet: flagged.
	w.started = now.Add(-1 * time.Hour)
	stale := w.Scan(now)
	require.Len(t, stale, 1)
	assert.Equal(t, "src-1", stale[0].SourceID)
}

func TestScan_ExactThresholdNotStale(t *testing.T) {
	tracker := NewSourceTracker()
	w := New(tracker, []string{"src-1"}, 10*time.Minute, time.Minute, nil)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker.Touch("src-1", now.Add(-10*time.Minute))

	assert.Empty(t, w.Scan(now))
}
