package stream

import "time"

// State is the connection state reported by the client.
type State int

const (
	Connecting State = iota
	Connected
	Disconnected
	Error
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	DefaultBaseDelay = 1000 * time.Millisecond
	DefaultMaxDelay  = 30000 * time.Millisecond
)

// ConnState is the client's connection state together with its retry
// counter. It only changes through the transition methods below.
type ConnState struct {
	State   State         `json:"state"`
	Attempt int           `json:"attempt"`
	Delay   time.Duration `json:"delay"`
}

// Connecting marks a dial in progress. The retry counter is kept.
func (s ConnState) Connecting() ConnState {
	return ConnState{State: Connecting, Attempt: s.Attempt}
}

// Connected resets the retry counter.
func (s ConnState) Connected() ConnState {
	return ConnState{State: Connected}
}

// Closed records a lost or failed connection and returns the delay before the
// next attempt, computed from the current counter, which is then incremented.
// A nil cause is a clean close.
func (s ConnState) Closed(cause error, base, ceiling time.Duration) (ConnState, time.Duration) {
	delay := Backoff(s.Attempt, base, ceiling)

	next := ConnState{State: Disconnected, Attempt: s.Attempt + 1, Delay: delay}
	if cause != nil {
		next.State = Error
	}
	return next, delay
}

// Backoff returns min(base * 2^attempt, ceiling).
func Backoff(attempt int, base, ceiling time.Duration) time.Duration {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if ceiling < base {
		ceiling = base
	}

	delay := base
	for i := 0; i < attempt && delay < ceiling; i++ {
		delay *= 2
	}
	return min(delay, ceiling)
}
