package analysis

// State is a step of the extraction state machine
type State int

// Idle → Invoking → Validating → Success | RetryWait | Failed.
// RetryWait returns to Invoking; Success and Failed are terminal.
const (
	StateIdle State = iota
	StateInvoking
	StateValidating
	StateRetryWait
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInvoking:
		return "invoking"
	case StateValidating:
		return "validating"
	case StateRetryWait:
		return "retry_wait"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}
