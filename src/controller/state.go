package controller

// State is the controller lifecycle state.
type State int

const (
	StateIdle State = iota
	StateActive
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateDisposed:
		return "disposed"
	}
	return "unknown"
}
