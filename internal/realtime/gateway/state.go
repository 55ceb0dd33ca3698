package gateway

import "fmt"

// State is the phase of a client connection
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// canTransition reports whether a connection may move from s to next.
// Every phase before Closed may short-circuit to Closing.
func (s State) canTransition(next State) bool {
	switch next {
	case StateAuthenticating:
		return s == StateConnecting
	case StateActive:
		return s == StateAuthenticating
	case StateClosing:
		return s < StateClosing
	case StateClosed:
		return s == StateClosing
	default:
		return false
	}
}
