package refresher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaron8/netmon/analytics"
	"github.com/yaron8/netmon/metrics"
	"github.com/yaron8/netmon/telemetrics"
)

type fakePublisher struct {
	mu      sync.Mutex
	views   [][]analytics.View
	attacks []metrics.AttackStatus
	err     error
}

func (p *fakePublisher) StoreViews(_ context.Context, views []analytics.View) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.views = append(p.views, views)
	return nil
}

func (p *fakePublisher) StoreAttack(_ context.Context, status metrics.AttackStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attacks = append(p.attacks, status)
	return nil
}

func (p *fakePublisher) publishCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.views)
}

type fakeGauges struct {
	exceeded map[string]bool
	lengths  map[string]int
	attack   bool
}

func newFakeGauges() *fakeGauges {
	return &fakeGauges{exceeded: map[string]bool{}, lengths: map[string]int{}}
}

func (g *fakeGauges) SetThresholdExceeded(metric string, exceeded bool) { g.exceeded[metric] = exceeded }
func (g *fakeGauges) SetAttackDetected(detected bool)                    { g.attack = detected }
func (g *fakeGauges) SetBufferLength(metric string, n int)               { g.lengths[metric] = n }

var base = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestRefresher(opts ...Option) (*Refresher, *metrics.Store, *metrics.AttackFlag) {
	store := metrics.NewStore(metrics.DefaultCapacity)
	flag := metrics.NewAttackFlag()
	deriver := analytics.NewDeriver(analytics.DefaultInterval, nil, nil)
	return New(store, flag, deriver, 50*time.Millisecond, opts...), store, flag
}

// tests that every wire metric gets a view, even without samples
func TestRefresh_AllMetrics(t *testing.T) {
	r, store, _ := newTestRefresher()
	store.Append(telemetrics.ExternalLatency, metrics.Point{Timestamp: base, Value: 30})

	views := r.Refresh(context.Background())

	require.Len(t, views, len(telemetrics.GetMetricNames()))
	for i, name := range telemetrics.GetMetricNames() {
		assert.Equal(t, name, views[i].Metric)
	}

	latency, ok := r.View(telemetrics.ExternalLatency)
	require.True(t, ok)
	assert.Equal(t, 1, latency.Samples)
	assert.False(t, latency.Exceeded)

	sent, ok := r.View(telemetrics.BytesSent)
	require.True(t, ok)
	assert.Nil(t, sent.Latest)
	assert.Empty(t, sent.Buckets)

	all, at := r.Views()
	assert.Len(t, all, len(telemetrics.GetMetricNames()))
	assert.False(t, at.IsZero())
}

func TestRefresh_ExtraSeries(t *testing.T) {
	r, store, _ := newTestRefresher()
	store.Append("jitter", metrics.Point{Timestamp: base, Value: 3})

	views := r.Refresh(context.Background())

	assert.Equal(t, "jitter", views[len(views)-1].Metric)
	_, ok := r.View("jitter")
	assert.True(t, ok)
}

func TestRefresh_GaugesAndPublish(t *testing.T) {
	gauges := newFakeGauges()
	pub := &fakePublisher{}
	r, store, flag := newTestRefresher(WithGauges(gauges), WithPublisher(pub))

	store.Append(telemetrics.ExternalLatency, metrics.Point{Timestamp: base, Value: 150})
	store.Append(telemetrics.ExternalPacketLoss, metrics.Point{Timestamp: base, Value: 0.01})
	flag.Set(true, "SYN flood")

	r.Refresh(context.Background())

	assert.True(t, gauges.exceeded[telemetrics.ExternalLatency])
	assert.False(t, gauges.exceeded[telemetrics.ExternalPacketLoss])
	assert.Equal(t, 1, gauges.lengths[telemetrics.ExternalLatency])
	assert.Equal(t, 0, gauges.lengths[telemetrics.BytesSent])
	assert.True(t, gauges.attack)

	require.Equal(t, 1, pub.publishCount())
	assert.Len(t, pub.views[0], len(telemetrics.GetMetricNames()))
	require.Len(t, pub.attacks, 1)
	assert.Equal(t, "SYN flood", pub.attacks[0].Details)
}

// tests that a failing publisher does not stop the refresh
func TestRefresh_PublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("redis down")}
	r, store, _ := newTestRefresher(WithPublisher(pub))
	store.Append(telemetrics.LocalLatency, metrics.Point{Timestamp: base, Value: 2})

	views := r.Refresh(context.Background())

	assert.NotEmpty(t, views)
	_, ok := r.View(telemetrics.LocalLatency)
	assert.True(t, ok)
	assert.Empty(t, pub.attacks)
}

// tests that refresh never mutates the store
func TestRefresh_ReadOnly(t *testing.T) {
	r, store, _ := newTestRefresher()
	for i := 0; i < 5; i++ {
		store.Append(telemetrics.BytesRecv, metrics.Point{Timestamp: base.Add(time.Duration(5-i) * time.Second), Value: float64(i)})
	}
	before := store.Read(telemetrics.BytesRecv)

	r.Refresh(context.Background())
	r.Refresh(context.Background())

	assert.Equal(t, before, store.Read(telemetrics.BytesRecv))
}

func TestRun_RefreshesUntilCancelled(t *testing.T) {
	pub := &fakePublisher{}
	r, _, _ := newTestRefresher(WithPublisher(pub))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return pub.publishCount() >= 2 }, 3*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
