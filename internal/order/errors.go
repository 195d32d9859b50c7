package order

import "errors"

var (
	// ErrInvalidSlotValue marks a slot answer that failed validation; the
	// caller re-asks the same slot with a corrective message.
	ErrInvalidSlotValue = errors.New("invalid slot value")

	// ErrInconsistentState marks a reference to task state that no longer
	// exists (e.g. an item index after a cancellation). Recovery is to
	// re-derive the next action from the current tree.
	ErrInconsistentState = errors.New("inconsistent task state")
)
