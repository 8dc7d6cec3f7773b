package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPhaseAt_Boundaries(t *testing.T) {
	def := Definition{
		Arrival:  300 * time.Second,
		Practice: 1200 * time.Second,
		Close:    300 * time.Second,
	}
	start := time.Date(2025, time.May, 1, 20, 0, 0, 0, time.UTC)

	testCases := []struct {
		elapsedSec int
		want       Phase
	}{
		{-60, PhaseArrival},
		{0, PhaseArrival},
		{299, PhaseArrival},
		{300, PhasePractice},
		{1499, PhasePractice},
		{1500, PhaseClose},
		{1799, PhaseClose},
		{1800, PhaseEnded},
		{7200, PhaseEnded},
	}

	for _, tc := range testCases {
		asOf := start.Add(time.Duration(tc.elapsedSec) * time.Second)
		info := PhaseAt(def, start, asOf)
		assert.Equal(t, tc.want, info.Phase, "elapsed=%ds", tc.elapsedSec)
		assert.Equal(t, time.Duration(tc.elapsedSec)*time.Second, info.Elapsed)
	}
}

func TestPhaseAt_NegativeElapsedIsCountdown(t *testing.T) {
	def := Definition{Arrival: 300 * time.Second, Practice: 1200 * time.Second}
	start := time.Date(2025, time.May, 1, 20, 0, 0, 0, time.UTC)

	info := PhaseAt(def, start, start.Add(-90*time.Second))
	assert.Equal(t, PhaseArrival, info.Phase)
	assert.Equal(t, -90*time.Second, info.Elapsed)
}

func TestPhaseAt_ZeroDurationPhaseIsSkipped(t *testing.T) {
	def := Definition{Arrival: 0, Practice: 1200 * time.Second, Close: 0}
	start := time.Date(2025, time.May, 1, 20, 0, 0, 0, time.UTC)

	// With no arrival window the occurrence opens straight into practice,
	// and with no close window practice rolls straight into ended.
	assert.Equal(t, PhasePractice, PhaseAt(def, start, start).Phase)
	assert.Equal(t, PhaseEnded, PhaseAt(def, start, start.Add(1200*time.Second)).Phase)
}

func TestChatEnabled(t *testing.T) {
	assert.True(t, ChatEnabled(PhaseArrival))
	assert.False(t, ChatEnabled(PhasePractice))
	assert.True(t, ChatEnabled(PhaseClose))
	assert.False(t, ChatEnabled(PhaseEnded))
}
