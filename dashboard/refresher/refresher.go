package refresher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/yaron8/netmon/analytics"
	"github.com/yaron8/netmon/logi"
	"github.com/yaron8/netmon/metrics"
	"github.com/yaron8/netmon/telemetrics"
)

// Publisher receives the views of every refresh. The Redis DAO implements it.
type Publisher interface {
	StoreViews(ctx context.Context, views []analytics.View) error
	StoreAttack(ctx context.Context, status metrics.AttackStatus) error
}

// Gauges receives per-refresh figures. The Prometheus collector implements it.
type Gauges interface {
	SetThresholdExceeded(metric string, exceeded bool)
	SetAttackDetected(detected bool)
	SetBufferLength(metric string, n int)
}

type Option func(*Refresher)

func WithPublisher(p Publisher) Option { return func(r *Refresher) { r.publisher = p } }

func WithGauges(g Gauges) Option { return func(r *Refresher) { r.gauges = g } }

// Refresher periodically runs the store through the analytics layer and keeps
// the latest views for readers.
type Refresher struct {
	store     *metrics.Store
	attack    *metrics.AttackFlag
	deriver   *analytics.Deriver
	interval  time.Duration
	publisher Publisher
	gauges    Gauges
	logger    *slog.Logger

	mu          sync.RWMutex
	views       map[string]analytics.View
	refreshedAt time.Time
	exceeded    map[string]bool
}

func New(store *metrics.Store, attack *metrics.AttackFlag, deriver *analytics.Deriver, interval time.Duration, opts ...Option) *Refresher {
	r := &Refresher{
		store:    store,
		attack:   attack,
		deriver:  deriver,
		interval: interval,
		logger:   logi.GetLogger(),
		views:    map[string]analytics.View{},
		exceeded: map[string]bool{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh derives a view for every known metric, plus any other series the
// store holds, and publishes them.
func (r *Refresher) Refresh(ctx context.Context) []analytics.View {
	names := metricNames(r.store.Names())

	views := make([]analytics.View, 0, len(names))
	for _, name := range names {
		views = append(views, r.deriver.Derive(name, r.store.Read(name)))
	}
	status := r.attack.Snapshot()

	r.mu.Lock()
	transitions := map[string]bool{}
	for _, view := range views {
		r.views[view.Metric] = view
		if prev := r.exceeded[view.Metric]; prev != view.Exceeded {
			transitions[view.Metric] = view.Exceeded
		}
		r.exceeded[view.Metric] = view.Exceeded
	}
	r.refreshedAt = time.Now()
	r.mu.Unlock()

	for metric, exceeded := range transitions {
		if exceeded {
			r.logger.Warn("Threshold exceeded", "metric", metric)
		} else {
			r.logger.Info("Threshold cleared", "metric", metric)
		}
	}

	if r.gauges != nil {
		for _, view := range views {
			r.gauges.SetThresholdExceeded(view.Metric, view.Exceeded)
			r.gauges.SetBufferLength(view.Metric, view.Samples)
		}
		r.gauges.SetAttackDetected(status.Detected)
	}

	if r.publisher != nil {
		if err := r.publish(ctx, views, status); err != nil {
			r.logger.Error("Error publishing views", "error", err)
		}
	}

	return views
}

func (r *Refresher) publish(ctx context.Context, views []analytics.View, status metrics.AttackStatus) error {
	ctx, cancel := context.WithTimeout(ctx, max(r.interval, time.Second))
	defer cancel()

	if err := r.publisher.StoreViews(ctx, views); err != nil {
		return err
	}
	if err := r.publisher.StoreAttack(ctx, status); err != nil {
		return fmt.Errorf("failed to store attack status: %w", err)
	}
	return nil
}

// View returns the view of metric from the last refresh.
func (r *Refresher) View(metric string) (analytics.View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	view, ok := r.views[metric]
	return view, ok
}

// Views returns every view from the last refresh and when it ran.
func (r *Refresher) Views() (map[string]analytics.View, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]analytics.View, len(r.views))
	for name, view := range r.views {
		out[name] = view
	}
	return out, r.refreshedAt
}

// Run refreshes every interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(func() { r.Refresh(ctx) }),
		gocron.WithName("refresh-views"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	r.logger.Info("Refresher starting", "interval", r.interval)
	scheduler.Start()

	<-ctx.Done()

	if err := scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	r.logger.Info("Refresher stopped")
	return nil
}

// metricNames is the wire metric set followed by any extra series in the
// store, so every chart has a view even before its first sample.
func metricNames(stored []string) []string {
	names := telemetrics.GetMetricNames()
	for _, name := range stored {
		if !telemetrics.IsKnownMetric(name) {
			names = append(names, name)
		}
	}
	return names
}
