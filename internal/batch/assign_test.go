package batch

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func filled(number, size int) Snapshot {
	members := make([]string, size)
	for i := range members {
		members[i] = fmt.Sprintf("b%d-user-%d", number, i)
	}
	return Snapshot{Number: number, Members: members}
}

func TestChooseBatchForJoin(t *testing.T) {
	policy := Policy{Capacity: 21, OverflowThreshold: 6}

	testCases := []struct {
		name    string
		batches []Snapshot
		userID  string
		want    Decision
	}{
		{
			name:    "first joiner opens batch 1",
			batches: nil,
			userID:  "alice",
			want:    Decision{BatchNumber: 1, CreateNew: true},
		},
		{
			name:    "lowest batch with space wins",
			batches: []Snapshot{filled(1, 21), filled(2, 5), filled(3, 21)},
			userID:  "alice",
			want:    Decision{BatchNumber: 2},
		},
		{
			name:    "all full routes into the trailing batch",
			batches: []Snapshot{filled(1, 21), filled(2, 21), filled(3, 21)},
			userID:  "alice",
			want:    Decision{BatchNumber: 3, Overflow: true},
		},
		{
			name:    "trailing batch saturated with overflow opens a new one",
			batches: []Snapshot{filled(1, 21), filled(2, 21), filled(3, 27)},
			userID:  "alice",
			want:    Decision{BatchNumber: 4, CreateNew: true},
		},
		{
			name:    "overflow keeps filling until the threshold",
			batches: []Snapshot{filled(1, 21), filled(2, 26)},
			userID:  "alice",
			want:    Decision{BatchNumber: 2, Overflow: true},
		},
		{
			name:    "rejoin is idempotent",
			batches: []Snapshot{filled(1, 21), {Number: 2, Members: []string{"alice", "bob"}}},
			userID:  "alice",
			want:    Decision{BatchNumber: 2, AlreadyMember: true},
		},
		{
			name:    "unordered snapshot still scans ascending",
			batches: []Snapshot{filled(3, 21), filled(1, 20), filled(2, 21)},
			userID:  "alice",
			want:    Decision{BatchNumber: 1},
		},
		{
			name:    "empty batch still counts and accepts",
			batches: []Snapshot{filled(1, 21), {Number: 2}},
			userID:  "alice",
			want:    Decision{BatchNumber: 2},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ChooseBatchForJoin(tc.batches, tc.userID, policy)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestOverflowActive(t *testing.T) {
	policy := Policy{Capacity: 21, OverflowThreshold: 6}

	testCases := []struct {
		name    string
		batches []Snapshot
		want    bool
	}{
		{"no batches", nil, false},
		{"space left somewhere", []Snapshot{filled(1, 21), filled(2, 10)}, false},
		{"all full", []Snapshot{filled(1, 21), filled(2, 21)}, true},
		{"trailing overflow below threshold", []Snapshot{filled(1, 21), filled(2, 24)}, true},
		{"trailing overflow at threshold", []Snapshot{filled(1, 21), filled(2, 27)}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, OverflowActive(tc.batches, policy))
		})
	}
}

// The asynchronous flag must agree with the synchronous decision: whenever
// OverflowActive is true, the assigner routes into an existing batch, and
// whenever it is false the assigner never overflows.
func TestOverflowFlagAgreesWithAssigner(t *testing.T) {
	policy := Policy{Capacity: 3, OverflowThreshold: 2}

	for total := 0; total < 20; total++ {
		var batches []Snapshot
		remaining := total
		number := 1
		for remaining > 0 {
			size := remaining
			if size > policy.Capacity {
				size = policy.Capacity
			}
			batches = append(batches, filled(number, size))
			remaining -= size
			number++
		}

		decision := ChooseBatchForJoin(batches, "newcomer", policy)
		assert.Equal(t, OverflowActive(batches, policy), decision.Overflow,
			"disagreement at %d participants", total)
	}
}
