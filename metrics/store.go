package metrics

import (
	"slices"
	"sync"
)

// Update is delivered to store subscribers after every append
type Update struct {
	Name  string
	Point Point
}

// Store holds one bounded, time-ordered series per metric name.
// It is safe for one writer and any number of readers.
type Store struct {
	mu       sync.RWMutex
	capacity int
	series   map[string][]Point

	subs Observers[Update]
}

// NewStore creates a Store keeping at most capacity points per metric.
// A non-positive capacity falls back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		series:   make(map[string][]Point),
	}
}

// Capacity returns the per-metric window length
func (s *Store) Capacity() int {
	return s.capacity
}

// Append adds p to the named series, creating it on first use, and evicts the
// oldest points once the series exceeds capacity. Points are kept in arrival
// order and never re-sorted.
func (s *Store) Append(name string, p Point) {
	s.mu.Lock()
	points := append(s.series[name], p)
	if over := len(points) - s.capacity; over > 0 {
		copy(points, points[over:])
		points = points[:s.capacity]
	}
	s.series[name] = points
	s.mu.Unlock()

	s.subs.Notify(Update{Name: name, Point: p})
}

// Read returns a copy of the named series, oldest first. Unknown names yield
// an empty slice.
func (s *Store) Read(name string) []Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.series[name]
	out := make([]Point, len(points))
	copy(out, points)
	return out
}

// Latest returns the most recent point of the named series
func (s *Store) Latest(name string) (Point, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.series[name]
	if len(points) == 0 {
		return Point{}, false
	}
	return points[len(points)-1], true
}

// Len returns the number of points currently held for name
func (s *Store) Len(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[name])
}

// Names returns the names of all series created so far, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.series))
	for name := range s.series {
		names = append(names, name)
	}
	s.mu.RUnlock()

	slices.Sort(names)
	return names
}

// Snapshot copies every series.
func (s *Store) Snapshot() map[string][]Point {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string][]Point, len(s.series))
	for name, points := range s.series {
		snap[name] = slices.Clone(points)
	}
	return snap
}

// Subscribe registers fn to be called on the writer goroutine after each
// append. The returned func unregisters it and may be called more than once.
func (s *Store) Subscribe(fn func(Update)) (unsubscribe func()) {
	return s.subs.Add(fn)
}
