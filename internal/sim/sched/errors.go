package sched

import "errors"

// ErrInvariant marks programming defects: a reservation counter that would
// go negative, a transition outside the allowed table, a task routed
// through the wrong binding path. Contention is never an ErrInvariant;
// contention is reported by returning false from the Try* operations.
var ErrInvariant = errors.New("scheduler invariant violation")
