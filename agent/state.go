package agent

import "fmt"

// State is an agent's lifecycle state.
type State string

const (
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
)

// allowedTransitions is the lifecycle state machine. Starting may collapse
// straight to Stopped when variant initialization fails; Running may collapse
// straight to Stopped when a removal forcibly cancels a graceful drain.
var allowedTransitions = map[State]map[State]struct{}{
	StateStarting: {StateRunning: {}, StateStopped: {}},
	StateRunning:  {StateStopping: {}, StateStopped: {}},
	StateStopping: {StateStopped: {}},
	StateStopped:  {},
}

// ValidTransition reports whether moving from one state to another is
// permitted by the lifecycle state machine.
func ValidTransition(from, to State) bool {
	_, ok := allowedTransitions[from][to]
	return ok
}

// CheckTransition returns a descriptive error for an illegal transition.
func CheckTransition(from, to State) error {
	if !ValidTransition(from, to) {
		return fmt.Errorf("invalid state transition %s -> %s", from, to)
	}
	return nil
}
