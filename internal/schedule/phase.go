package schedule

import "time"

// Phase is one of the three sequential activity windows within an occurrence,
// plus the terminal ended state.
type Phase string

const (
	PhaseArrival  Phase = "arrival"
	PhasePractice Phase = "practice"
	PhaseClose    Phase = "close"
	PhaseEnded    Phase = "ended"
)

// PhaseInfo is the sampled position within one occurrence. Elapsed is
// negative while the occurrence has not started yet; its magnitude is the
// countdown until the arrival phase opens.
type PhaseInfo struct {
	Phase   Phase
	Elapsed time.Duration
}

// PhaseAt classifies asOf against the phase boundaries of the occurrence
// starting at occurrenceStart. A zero-length phase is skipped instantly.
func PhaseAt(d Definition, occurrenceStart, asOf time.Time) PhaseInfo {
	elapsed := asOf.Sub(occurrenceStart)
	switch {
	case elapsed < 0:
		return PhaseInfo{Phase: PhaseArrival, Elapsed: elapsed}
	case elapsed < d.Arrival:
		return PhaseInfo{Phase: PhaseArrival, Elapsed: elapsed}
	case elapsed < d.Arrival+d.Practice:
		return PhaseInfo{Phase: PhasePractice, Elapsed: elapsed}
	case elapsed < d.Total():
		return PhaseInfo{Phase: PhaseClose, Elapsed: elapsed}
	default:
		return PhaseInfo{Phase: PhaseEnded, Elapsed: elapsed}
	}
}

// ChatEnabled reports whether group chat is open in the given phase. Chat is
// open while participants gather and wind down, closed during practice and
// after the occurrence ends.
func ChatEnabled(p Phase) bool {
	return p == PhaseArrival || p == PhaseClose
}
