package jobs

import (
	"context"
	"log"

	"habit-session-backend/internal/batch"
	"habit-session-backend/internal/store"
)

// ReassignPool runs the asynchronous counterpart of the join-time batch
// decision: after every membership change it re-evaluates whether joins
// should overflow into the trailing batch and writes that flag back onto the
// event for clients to consult. The predicate is batch.OverflowActive, the
// same one the assigner uses, so the flag and the decision always agree.
type ReassignPool struct {
	size      int
	jobs      chan int64
	store     store.Store
	threshold int
}

// NewReassignPool creates a new worker pool.
func NewReassignPool(size int, s store.Store, overflowThreshold int) *ReassignPool {
	return &ReassignPool{
		size:      size,
		jobs:      make(chan int64, size),
		store:     s,
		threshold: overflowThreshold,
	}
}

// Start launches the worker goroutines.
func (p *ReassignPool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		go p.worker(ctx, i)
	}
}

func (p *ReassignPool) worker(ctx context.Context, id int) {
	log.Printf("Reassign worker %d started", id)
	for {
		select {
		case eventID := <-p.jobs:
			p.reassign(ctx, eventID)
		case <-ctx.Done():
			log.Printf("Reassign worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an event for re-evaluation.
func (p *ReassignPool) Dispatch(eventID int64) {
	p.jobs <- eventID
}

// Jobs returns the jobs channel for testing.
func (p *ReassignPool) Jobs() chan int64 {
	return p.jobs
}

func (p *ReassignPool) reassign(ctx context.Context, eventID int64) {
	ev, err := p.store.GetEvent(ctx, eventID)
	if err != nil {
		// The event may have been deleted between dispatch and pickup.
		log.Printf("Reassign: event %d unavailable: %v", eventID, err)
		return
	}

	snaps, err := p.store.BatchSnapshots(ctx, eventID)
	if err != nil {
		log.Printf("Reassign: failed to read batches of event %d: %v", eventID, err)
		return
	}

	active := batch.OverflowActive(snaps, batch.Policy{
		Capacity:          ev.CapacityPerBatch,
		OverflowThreshold: p.threshold,
	})
	if active == ev.OverflowActive {
		return
	}
	if err := p.store.SetOverflowActive(ctx, eventID, active); err != nil {
		log.Printf("Reassign: failed to flag event %d: %v", eventID, err)
		return
	}
	log.Printf("Reassign: event %d overflow_active -> %t", eventID, active)
}
