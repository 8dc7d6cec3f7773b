package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"habit-session-backend/internal/budget"
	"habit-session-backend/internal/store"
)

// Rollover lazily cleans up the previous day's budget counters: once the
// reset time-of-day passes, entries under older session-day keys are garbage.
type Rollover struct {
	cron  *cron.Cron
	store store.Store
	cfg   budget.Config
}

// NewRollover builds the daily purge job in the budget's timezone.
func NewRollover(s store.Store, cfg budget.Config) *Rollover {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Rollover{
		cron:  cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		store: s,
		cfg:   cfg,
	}
}

// Start schedules the purge shortly after each daily reset.
func (r *Rollover) Start() error {
	if _, err := r.cron.AddFunc(purgeSpec(r.cfg), r.purge); err != nil {
		return fmt.Errorf("failed to schedule budget rollover: %w", err)
	}
	r.cron.Start()
	return nil
}

// purgeSpec fires one minute past the daily reset, so every client has rolled
// onto the new key. The carry into the hour matters when the reset sits at
// minute 59.
func purgeSpec(cfg budget.Config) string {
	minute := cfg.ResetMinute + 1
	hour := cfg.ResetHour
	if minute == 60 {
		minute = 0
		hour = (hour + 1) % 24
	}
	// second minute hour dom month dow
	return fmt.Sprintf("0 %d %d * * *", minute, hour)
}

// Stop halts the scheduler and waits for a running purge to finish.
func (r *Rollover) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// Purge deletes budget entries older than the current session-day key.
// Exported for the test and for a manual maintenance trigger.
func (r *Rollover) Purge(ctx context.Context) (int64, error) {
	key := budget.DayKey(r.cfg, time.Now())
	return r.store.PurgeBudgetsBefore(ctx, key)
}

func (r *Rollover) purge() {
	n, err := r.Purge(context.Background())
	if err != nil {
		log.Printf("Budget rollover purge failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Budget rollover purged %d stale entries", n)
	}
}
