// Package batch decides which capacity-bounded batch a joining participant
// lands in. It only decides; persisting the membership mutation is the
// caller's responsibility.
package batch

import "sort"

// Policy holds the constants for one assignment decision. Capacity comes from
// the event; OverflowThreshold is a deployment-wide constant.
type Policy struct {
	Capacity          int
	OverflowThreshold int
}

// Snapshot is one batch's membership as read from storage.
type Snapshot struct {
	Number  int
	Members []string
}

// Decision is the outcome of a join evaluation.
type Decision struct {
	BatchNumber   int
	CreateNew     bool
	Overflow      bool
	AlreadyMember bool
}

// ChooseBatchForJoin picks the batch for a joining participant:
//
//  1. The lowest-numbered batch with free capacity.
//  2. When every batch is full, the highest-numbered batch, as long as its
//     size stays below capacity+overflowThreshold. Opening a new batch here
//     would strand a tiny trailing group alone.
//  3. Otherwise a new batch numbered max+1 (or 1 on the very first join).
//
// A participant already present in some batch gets their existing batch back;
// re-join is a no-op.
func ChooseBatchForJoin(batches []Snapshot, userID string, p Policy) Decision {
	ordered := make([]Snapshot, len(batches))
	copy(ordered, batches)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })

	for _, b := range ordered {
		for _, member := range b.Members {
			if member == userID {
				return Decision{BatchNumber: b.Number, AlreadyMember: true}
			}
		}
	}

	for _, b := range ordered {
		if len(b.Members) < p.Capacity {
			return Decision{BatchNumber: b.Number}
		}
	}

	// Every existing batch is at or above capacity.
	if len(ordered) > 0 {
		last := ordered[len(ordered)-1]
		if len(last.Members) < p.Capacity+p.OverflowThreshold {
			return Decision{BatchNumber: last.Number, Overflow: true}
		}
		return Decision{BatchNumber: last.Number + 1, CreateNew: true}
	}
	return Decision{BatchNumber: 1, CreateNew: true}
}

// OverflowActive reports whether joins currently overflow into the trailing
// batch instead of opening a new one. The background reassignment job writes
// this flag onto the event; it uses the same predicate as ChooseBatchForJoin
// so the asynchronous flag and the synchronous decision always agree.
func OverflowActive(batches []Snapshot, p Policy) bool {
	if len(batches) == 0 {
		return false
	}
	highest := batches[0]
	for _, b := range batches {
		if len(b.Members) < p.Capacity {
			return false
		}
		if b.Number > highest.Number {
			highest = b
		}
	}
	return len(highest.Members) < p.Capacity+p.OverflowThreshold
}
