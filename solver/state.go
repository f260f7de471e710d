package solver

import "fmt"

// State is the integrator lifecycle: Idle → Stepping → {Stable, Diverged}.
type State int

const (
	Idle State = iota
	Stepping
	Stable
	Diverged
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Stepping:
		return "STEPPING"
	case Stable:
		return "STABLE"
	case Diverged:
		return "DIVERGED"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// IsTerminal reports whether the state is final.
func IsTerminal(s State) bool {
	return s == Stable || s == Diverged
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case Idle:
		return to == Stepping
	case Stepping:
		return to == Stable || to == Diverged
	default:
		return false
	}
}

// transition performs a validated state change.
func (r *Run) transition(to State) error {
	if !isAllowedTransition(r.state, to) {
		return fmt.Errorf("disallowed transition: %s -> %s", r.state, to)
	}
	r.state = to
	return nil
}
