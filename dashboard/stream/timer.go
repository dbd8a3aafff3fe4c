package stream

import "time"

// Handle is a scheduled reconnect. C is closed when the delay elapses;
// Cancel stops it from firing and is safe to call repeatedly.
type Handle interface {
	C() <-chan struct{}
	Cancel()
}

// Scheduler creates a Handle that fires after d.
type Scheduler func(d time.Duration) Handle

type timerHandle struct {
	timer *time.Timer
	fired chan struct{}
}

// AfterDelay is the default Scheduler, backed by time.AfterFunc.
func AfterDelay(d time.Duration) Handle {
	h := &timerHandle{fired: make(chan struct{})}
	h.timer = time.AfterFunc(d, func() { close(h.fired) })
	return h
}

func (h *timerHandle) C() <-chan struct{} { return h.fired }

func (h *timerHandle) Cancel() { h.timer.Stop() }
