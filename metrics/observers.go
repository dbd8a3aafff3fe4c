package metrics

import (
	"slices"
	"sync"
)

// Observers is a listener registry; the zero value is ready to use.
type Observers[T any] struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(T)
}

// Add registers fn and returns a func that unregisters it.
func (o *Observers[T]) Add(fn func(T)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.listeners == nil {
		o.listeners = make(map[int]func(T))
	}
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.listeners, id)
			o.mu.Unlock()
		})
	}
}

// Notify calls every listener in registration order. Callers must not hold
// the lock guarding the data the listeners read.
func (o *Observers[T]) Notify(v T) {
	o.mu.Lock()
	ids := make([]int, 0, len(o.listeners))
	for id := range o.listeners {
		ids = append(ids, id)
	}
	fns := make([]func(T), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, o.listeners[id])
	}
	o.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
