package sched

import "fmt"

// State is a task instance's lifecycle position.
type State string

const (
	StatePending   State = "PENDING"
	StateReady     State = "READY"
	StateClaimed   State = "CLAIMED"
	StateExecuting State = "EXECUTING"
	StateCompleted State = "COMPLETED"
)

// allowedTransition is the full transition table. Forward path:
// Pending -> Ready -> Claimed -> Executing -> Completed. Backward edges
// exist only for interruption and resource revocation, which release
// every reservation before re-entering the pool.
func allowedTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateReady
	case StateReady:
		return to == StateClaimed || to == StatePending
	case StateClaimed:
		return to == StateExecuting || to == StatePending
	case StateExecuting:
		return to == StateCompleted || to == StatePending
	default:
		return false
	}
}

// transition applies a validated state change. An out-of-table transition
// is a programming defect; in strict mode the scheduler panics on it,
// otherwise it is a no-op surfaced as an error.
func (s *Scheduler) transition(in *Instance, to State) error {
	if !allowedTransition(in.State, to) {
		err := fmt.Errorf("%w: task %s transition %s -> %s", ErrInvariant, in.ID, in.State, to)
		if s.strict {
			panic(err)
		}
		return err
	}
	in.State = to
	return nil
}
