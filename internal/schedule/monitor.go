package schedule

import (
	"context"
	"sync"
	"time"
)

// DefaultSampleInterval is how often a live view samples its phase clock.
const DefaultSampleInterval = time.Second

// Sample is one observation of the tracked occurrence. SessionOver is set at
// most once per Monitor: when the tracked occurrence's identity changes
// between samples, or when no occurrence remains.
type Sample struct {
	Occurrence  Occurrence
	Info        PhaseInfo
	SessionOver bool
}

// Monitor tracks a single occurrence of an event across repeated samples.
// A consumer polls Observe on a fixed interval (or lets Run do it) and must
// leave the live view when SessionOver fires, rather than silently jumping
// into the middle of a new occurrence.
type Monitor struct {
	def      Definition
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	tracked time.Time
	over    bool
}

// NewMonitor creates a monitor for def sampling at DefaultSampleInterval.
func NewMonitor(def Definition) *Monitor {
	return &Monitor{def: def, interval: DefaultSampleInterval, now: time.Now}
}

// WithInterval overrides the sampling interval.
func (m *Monitor) WithInterval(interval time.Duration) *Monitor {
	if interval > 0 {
		m.interval = interval
	}
	return m
}

// WithNow overrides the clock source, for tests.
func (m *Monitor) WithNow(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// Observe samples the monitor at asOf. After SessionOver has been reported
// the monitor stays terminal; further observations repeat the terminal
// sample without re-firing side effects in Run.
func (m *Monitor) Observe(asOf time.Time) Sample {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.over {
		return Sample{SessionOver: true}
	}

	occ, ok := NextOccurrence(m.def, asOf)
	if !ok {
		m.over = true
		return Sample{SessionOver: true}
	}
	if m.tracked.IsZero() {
		m.tracked = occ.Start
	}
	if !occ.Start.Equal(m.tracked) {
		// The tracked occurrence fully elapsed and a new one took its place.
		m.over = true
		return Sample{SessionOver: true}
	}
	return Sample{
		Occurrence: occ,
		Info:       PhaseAt(m.def, occ.Start, asOf),
	}
}

// Run polls the monitor until the session is over or ctx is cancelled,
// invoking fn with every sample. The session-over sample is delivered exactly
// once and the ticker is always released.
func (m *Monitor) Run(ctx context.Context, fn func(Sample)) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		sample := m.Observe(m.now())
		fn(sample)
		if sample.SessionOver {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
