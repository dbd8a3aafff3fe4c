package metrics

import (
	"sync"
	"time"
)

// AttackStatus is the latest attack-detection verdict.
type AttackStatus struct {
	Detected  bool      `json:"attack_detected"`
	Details   string    `json:"details,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AttackFlag holds the latest verdict; every Set overwrites the previous one.
type AttackFlag struct {
	mu     sync.RWMutex
	status AttackStatus
	now    func() time.Time

	subs Observers[AttackStatus]
}

func NewAttackFlag() *AttackFlag {
	return &AttackFlag{now: time.Now}
}

// Set records a verdict and notifies subscribers.
func (f *AttackFlag) Set(detected bool, details string) {
	f.mu.Lock()
	f.status = AttackStatus{
		Detected:  detected,
		Details:   details,
		UpdatedAt: f.now(),
	}
	status := f.status
	f.mu.Unlock()

	f.subs.Notify(status)
}

func (f *AttackFlag) Snapshot() AttackStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.status
}

// Subscribe registers fn to be called after each Set.
func (f *AttackFlag) Subscribe(fn func(AttackStatus)) (unsubscribe func()) {
	return f.subs.Add(fn)
}
