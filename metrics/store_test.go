package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func pointAt(i int) Point {
	return Point{Timestamp: t0.Add(time.Duration(i) * time.Second), Value: float64(i)}
}

// tests that the window keeps exactly the last capacity points in arrival order
func TestStore_SlidingWindowKeepsLastHundred(t *testing.T) {
	s := NewStore(DefaultCapacity)

	const total = 250
	for i := 0; i < total; i++ {
		s.Append("bytes_sent", pointAt(i))
	}

	got := s.Read("bytes_sent")
	require.Len(t, got, DefaultCapacity)
	for i, p := range got {
		assert.Equal(t, pointAt(total-DefaultCapacity+i), p, "index %d", i)
	}
}

func TestStore_BelowCapacityKeepsEverything(t *testing.T) {
	s := NewStore(0)
	assert.Equal(t, DefaultCapacity, s.Capacity())

	for i := 0; i < 3; i++ {
		s.Append("local_latency", pointAt(i))
	}
	assert.Equal(t, []Point{pointAt(0), pointAt(1), pointAt(2)}, s.Read("local_latency"))
	assert.Equal(t, 3, s.Len("local_latency"))
}

func TestStore_ReadUnknownIsEmpty(t *testing.T) {
	s := NewStore(10)

	got := s.Read("nope")
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, ok := s.Latest("nope")
	assert.False(t, ok)
}

func TestStore_ReadReturnsCopy(t *testing.T) {
	s := NewStore(10)
	s.Append("m", pointAt(1))

	got := s.Read("m")
	got[0].Value = 999

	assert.Equal(t, 1.0, s.Read("m")[0].Value)

	snap := s.Snapshot()
	snap["m"][0].Value = 999
	assert.Equal(t, 1.0, s.Read("m")[0].Value)
}

func TestStore_NoResortOnOutOfOrderInput(t *testing.T) {
	s := NewStore(10)
	s.Append("m", pointAt(5))
	s.Append("m", pointAt(2))

	got := s.Read("m")
	assert.Equal(t, []Point{pointAt(5), pointAt(2)}, got)

	latest, ok := s.Latest("m")
	require.True(t, ok)
	assert.Equal(t, pointAt(2), latest)
}

func TestStore_NamesAreSorted(t *testing.T) {
	s := NewStore(10)
	s.Append("throughput_sent", pointAt(0))
	s.Append("bytes_recv", pointAt(0))

	assert.Equal(t, []string{"bytes_recv", "throughput_sent"}, s.Names())
}

func TestStore_SubscribeAndUnsubscribe(t *testing.T) {
	s := NewStore(10)

	var got []Update
	unsubscribe := s.Subscribe(func(u Update) {
		// listener must be able to read the store without deadlocking
		assert.Equal(t, len(got)+1, s.Len(u.Name))
		got = append(got, u)
	})

	s.Append("m", pointAt(1))
	s.Append("m", pointAt(2))
	unsubscribe()
	unsubscribe()
	s.Append("m", pointAt(3))

	require.Len(t, got, 2)
	assert.Equal(t, Update{Name: "m", Point: pointAt(2)}, got[1])
}

func TestStore_ConcurrentReadersWithSingleWriter(t *testing.T) {
	s := NewStore(DefaultCapacity)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.Append("m", pointAt(i))
		}
	}()

	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				points := s.Read("m")
				assert.LessOrEqual(t, len(points), DefaultCapacity)
				for j := 1; j < len(points); j++ {
					assert.True(t, points[j].Timestamp.After(points[j-1].Timestamp))
				}
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, DefaultCapacity, s.Len("m"))
}

func TestAttackFlag_LatestWins(t *testing.T) {
	f := NewAttackFlag()
	f.now = func() time.Time { return t0 }

	var seen []AttackStatus
	unsubscribe := f.Subscribe(func(st AttackStatus) { seen = append(seen, st) })
	defer unsubscribe()

	assert.False(t, f.Snapshot().Detected)

	f.Set(true, "DDoS")
	f.Set(false, "")

	assert.Equal(t, AttackStatus{Detected: false, UpdatedAt: t0}, f.Snapshot())
	require.Len(t, seen, 2)
	assert.Equal(t, "DDoS", seen[0].Details)
}
