package workflow

// LoopInterventionObservation replaces the observation of an action the
// guard refused to execute.
const LoopInterventionObservation = "SYSTEM: You repeated the exact same action as the previous step, " +
	"so it was NOT executed again. Change your strategy: use a different search query, " +
	"inspect another article or section, save what you know with add_to_memory, or answer."

// loopGuard detects back-to-back identical actions. repeats counts how
// many consecutive steps matched the one before them.
type loopGuard struct {
	threshold int
	last      string
	repeats   int
}

func newLoopGuard(threshold int) *loopGuard {
	if threshold < 1 {
		threshold = 1
	}
	return &loopGuard{threshold: threshold}
}

// Observe records the signature of the current step and reports whether
// it must be intercepted instead of executed.
func (g *loopGuard) Observe(signature string) bool {
	if signature != "" && signature == g.last {
		g.repeats++
	} else {
		g.repeats = 0
	}
	g.last = signature
	return g.repeats >= g.threshold
}
