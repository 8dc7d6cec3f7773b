// Package budget implements the per-device daily usage countdown: wall-clock
// ticks with pause-on-inactivity, a fixed local-time daily reset, and
// reconciliation against a shared persisted counter so several tabs on one
// device stay in agreement.
package budget

import (
	"sync"
	"time"
)

// Clock counts down one device's daily browsing budget. It holds no timers of
// its own; the owning view drives it with Tick on a periodic schedule and
// SetPaused on visibility changes. All methods take the current instant so
// behaviour is deterministic under test.
type Clock struct {
	cfg Config
	kv  KV

	mu        sync.Mutex
	key       string
	remaining time.Duration
	paused    bool
	exempt    bool
	exhausted bool
	lastTick  time.Time
	dirty     bool

	onExhausted func()
	unwatch     func()
}

// NewClock builds a clock for the session day containing now, adopting the
// persisted value for that day key when one exists and starting a fresh full
// budget otherwise. If the KV supports change notification the clock watches
// it so writes from sibling tabs are picked up without waiting for a resume.
func NewClock(cfg Config, kv KV, now time.Time) (*Clock, error) {
	c := &Clock{
		cfg:       cfg,
		kv:        kv,
		key:       DayKey(cfg, now),
		remaining: cfg.DailyLimit,
		lastTick:  now,
	}

	seconds, ok, err := kv.Load(c.key)
	if err != nil {
		return nil, err
	}
	if ok {
		c.remaining = Consume(time.Duration(seconds)*time.Second, 0, cfg.DailyLimit)
	} else if err := kv.Store(c.key, int(c.remaining/time.Second)); err != nil {
		return nil, err
	}
	// A budget already at zero is an old transition; don't re-signal it.
	c.exhausted = c.remaining == 0

	if n, ok := kv.(Notifier); ok {
		c.unwatch = n.Watch(c.observe)
	}
	return c, nil
}

// OnExhausted registers the redirect signal. It fires at most once per
// transition to zero; Reset and the daily rollover re-arm it.
func (c *Clock) OnExhausted(fn func()) {
	c.mu.Lock()
	c.onExhausted = fn
	c.mu.Unlock()
}

// Close releases the KV watch, if any.
func (c *Clock) Close() {
	if c.unwatch != nil {
		c.unwatch()
	}
}

// Tick advances the countdown by the real wall-clock delta since the last
// tick. Paused clocks, exempt contexts and an already-empty budget consume
// nothing. The result is always within [0, DailyLimit].
func (c *Clock) Tick(now time.Time) (time.Duration, error) {
	c.mu.Lock()
	c.rolloverLocked(now)
	delta := now.Sub(c.lastTick)
	c.lastTick = now

	var fire func()
	if !c.paused && !c.exempt && c.remaining > 0 {
		c.remaining = Consume(c.remaining, delta, c.cfg.DailyLimit)
		c.dirty = true
		if c.remaining == 0 && !c.exhausted {
			c.exhausted = true
			fire = c.onExhausted
		}
	}
	remaining := c.remaining
	flush := c.takeFlushLocked()
	c.mu.Unlock()

	err := flush()
	if fire != nil {
		fire()
	}
	return remaining, err
}

// SetPaused reflects page visibility. Resuming first re-reads the persisted
// value for the current day key and adopts it: this clock flushed its own
// value when it paused, so any difference now is another tab's write — a
// further tick-down or a reset — and the shared counter is authoritative.
func (c *Clock) SetPaused(paused bool, now time.Time) error {
	c.mu.Lock()
	if c.paused == paused {
		c.mu.Unlock()
		return nil
	}

	if paused {
		c.paused = true
		c.lastTick = now
		flush := c.takeFlushLocked()
		c.mu.Unlock()
		return flush()
	}

	c.rolloverLocked(now)
	seconds, ok, err := c.kv.Load(c.key)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	var fire func()
	if ok {
		persisted := Consume(time.Duration(seconds)*time.Second, 0, c.cfg.DailyLimit)
		if persisted != c.remaining {
			c.remaining = persisted
			if c.remaining == 0 && !c.exhausted && !c.exempt {
				c.exhausted = true
				fire = c.onExhausted
			} else if c.remaining > 0 {
				// Another tab reset the budget; re-arm the exhausted signal.
				c.exhausted = false
			}
		}
	}
	c.paused = false
	c.lastTick = now
	flush := c.takeFlushLocked()
	c.mu.Unlock()

	err = flush()
	if fire != nil {
		fire()
	}
	return err
}

// SetExempt marks the owning view as an exempt context (a live or upcoming
// event page, or the exhausted page itself). Exempt contexts never tick down
// and never trigger the exhausted signal, even at zero remaining.
func (c *Clock) SetExempt(exempt bool) {
	c.mu.Lock()
	c.exempt = exempt
	c.mu.Unlock()
}

// Reset restores the full daily limit for the current session-day key and
// persists it so other tabs observe the reset.
func (c *Clock) Reset(now time.Time) error {
	c.mu.Lock()
	c.rolloverLocked(now)
	c.remaining = c.cfg.DailyLimit
	c.exhausted = false
	c.lastTick = now
	c.dirty = true
	flush := c.takeFlushLocked()
	c.mu.Unlock()
	return flush()
}

// Remaining returns the current countdown value.
func (c *Clock) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Key returns the session-day key the clock is currently accounting against.
func (c *Clock) Key() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

// Exhausted reports whether the budget for the current day key is used up.
func (c *Clock) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining == 0
}

// rolloverLocked switches to a new session-day key once now crosses the reset
// time-of-day, restoring the full limit. The previous key's value is garbage
// from here on; a background job purges it.
func (c *Clock) rolloverLocked(now time.Time) {
	key := DayKey(c.cfg, now)
	if key == c.key {
		return
	}
	c.key = key
	c.remaining = c.cfg.DailyLimit
	c.exhausted = false
	c.dirty = true
	// Time spent before the boundary belongs to the old day; only elapsed
	// time past the reset counts against the fresh budget.
	c.lastTick = ResetBoundary(c.cfg, now)
}

// takeFlushLocked snapshots any pending persist. The returned func must run
// after c.mu is released: a notifying KV delivers the write back to observe
// synchronously, which would deadlock against a held mutex.
func (c *Clock) takeFlushLocked() func() error {
	if !c.dirty {
		return func() error { return nil }
	}
	c.dirty = false
	key, seconds := c.key, int(c.remaining/time.Second)
	return func() error { return c.kv.Store(key, seconds) }
}

// observe handles an external write to the shared counter. Only a value for
// the current key can matter; it is adopted when this clock is paused or when
// the other writer is further along (smaller remainder). Self-notifications
// carry the value just written and fall through harmlessly.
func (c *Clock) observe(key string, seconds int) {
	c.mu.Lock()
	if key != c.key {
		c.mu.Unlock()
		return
	}
	external := Consume(time.Duration(seconds)*time.Second, 0, c.cfg.DailyLimit)

	var fire func()
	if (c.paused && external != c.remaining) || external < c.remaining {
		c.remaining = external
		if c.remaining == 0 && !c.exhausted && !c.exempt {
			c.exhausted = true
			fire = c.onExhausted
		} else if c.remaining > 0 {
			// Another tab reset the budget; re-arm the exhausted signal.
			c.exhausted = false
		}
	}
	c.mu.Unlock()

	if fire != nil {
		fire()
	}
}
