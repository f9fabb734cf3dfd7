// Package watchdog detects silent data sources. A detector can only fire on
// packets it receives; when upstream ingestion fails, no packet arrives, no
// evaluation runs, and no occurrence is ever emitted. The watchdog
// independently monitors how long each configured source has gone without
// delivering a packet.
package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dwsmith1983/watchtower/internal/metrics"
)

const (
	defaultInterval  = 1 * time.Minute
	defaultThreshold = 15 * time.Minute
)

// SourceTracker records the last packet arrival time per source id.
// Safe for concurrent use; the worker touches it on every packet.
type SourceTracker struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewSourceTracker creates an empty tracker.
func NewSourceTracker() *SourceTracker {
	return &SourceTracker{seen: make(map[string]time.Time)}
}

// Touch records a packet arrival for the source.
func (t *SourceTracker) Touch(sourceID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[sourceID] = now
}

// LastSeen returns the last arrival time for the source and whether any
// packet has arrived since startup.
func (t *SourceTracker) LastSeen(sourceID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.seen[sourceID]
	return ts, ok
}

// StaleSource records one silent-source detection.
type StaleSource struct {
	SourceID string
	Silence  time.Duration
}

// Watchdog periodically scans the tracked sources for silence.
type Watchdog struct {
	tracker   *SourceTracker
	sources   []string
	threshold time.Duration
	interval  time.Duration
	logger    *slog.Logger
	started   time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a Watchdog over the given source ids. Zero threshold and
// interval fall back to the defaults.
func New(tracker *SourceTracker, sources []string, threshold, interval time.Duration, logger *slog.Logger) *Watchdog {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watchdog{
		tracker:   tracker,
		sources:   sources,
		threshold: threshold,
		interval:  interval,
		logger:    logger,
	}
}

// Scan returns every source silent for longer than the threshold. Sources
// that have never delivered a packet are measured from the watchdog start,
// so a source that is dead on arrival still gets flagged.
func (w *Watchdog) Scan(now time.Time) []StaleSource {
	var stale []StaleSource
	for _, src := range w.sources {
		last, ok := w.tracker.LastSeen(src)
		if !ok {
			last = w.started
		}
		silence := now.Sub(last)
		if silence <= w.threshold {
			continue
		}

		metrics.SourcesStale.Add(1)
		w.logger.Warn("source has gone silent",
			"sourceId", src, "silence", silence.Truncate(time.Second))
		stale = append(stale, StaleSource{SourceID: src, Silence: silence})
	}
	return stale
}

// Start begins the polling loop.
func (w *Watchdog) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.started = time.Now()
	w.wg.Add(1)
	go w.loop(ctx)
	w.logger.Info("watchdog started", "interval", w.interval, "threshold", w.threshold)
}

// Stop signals the watchdog to stop and waits for it to finish.
func (w *Watchdog) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.logger.Info("watchdog stopped")
}

func (w *Watchdog) loop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Scan(time.Now())
		}
	}
}
