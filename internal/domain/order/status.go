package order

// Status is the kitchen-facing lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusCompleted,
	StatusCancelled,
}

var nextStatus = map[Status]Status{
	StatusPending:   StatusConfirmed,
	StatusConfirmed: StatusPreparing,
	StatusPreparing: StatusReady,
	StatusReady:     StatusCompleted,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// NextStatus returns the canonical successor of s. The second result is false
// for terminal or unknown statuses.
func NextStatus(s Status) (Status, bool) {
	next, ok := nextStatus[s]
	return next, ok
}

// CanTransition reports whether staff may move an order from one status to
// another: only one step forward, or to cancelled from any non-terminal state.
func CanTransition(from, to Status) bool {
	if !from.Valid() || from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	next, ok := NextStatus(from)
	return ok && next == to
}

// AvailableTransitions returns the targets offered to staff for status s.
func AvailableTransitions(s Status) []Status {
	if !s.Valid() || s.Terminal() {
		return nil
	}
	out := make([]Status, 0, 2)
	if next, ok := NextStatus(s); ok {
		out = append(out, next)
	}
	return append(out, StatusCancelled)
}
