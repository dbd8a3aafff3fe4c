package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/yaron8/netmon/analytics"
	"github.com/yaron8/netmon/dashboard/config"
	"github.com/yaron8/netmon/dashboard/dao"
	"github.com/yaron8/netmon/dashboard/instrument"
	"github.com/yaron8/netmon/dashboard/refresher"
	"github.com/yaron8/netmon/dashboard/service"
	"github.com/yaron8/netmon/dashboard/stream"
	"github.com/yaron8/netmon/logi"
	"github.com/yaron8/netmon/metrics"
)

const shutdownTimeout = 10 * time.Second

type Bootstrap struct {
	config    *config.Config
	store     *metrics.Store
	attack    *metrics.AttackFlag
	collector *instrument.Collector
	client    *stream.Client
	refresher *refresher.Refresher
	apiServer *service.APIServer
	views     *dao.DAOViews
	logger    *slog.Logger
}

// Option overrides a component, mainly for tests.
type Option func(*options)

type options struct {
	streamOpts []stream.Option
}

// WithStreamOptions passes options through to the stream client.
func WithStreamOptions(opts ...stream.Option) Option {
	return func(o *options) { o.streamOpts = append(o.streamOpts, opts...) }
}

func NewBootstrap(cfg *config.Config, opts ...Option) (*Bootstrap, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	thresholds, err := cfg.LoadThresholds()
	if err != nil {
		return nil, err
	}

	store := metrics.NewStore(cfg.Buffer.Capacity)
	attack := metrics.NewAttackFlag()
	collector := instrument.NewCollector()
	deriver := analytics.NewDeriver(cfg.Aggregate.Interval, analytics.NewClassifier(nil), analytics.NewMonitor(thresholds))

	client := stream.New(
		stream.Config{
			URL:       cfg.Feed.URL,
			BaseDelay: cfg.Backoff.Base,
			MaxDelay:  cfg.Backoff.Cap,
			ReadLimit: cfg.Feed.ReadLimit,
		},
		store,
		attack,
		append([]stream.Option{stream.WithRecorder(collector)}, o.streamOpts...)...,
	)

	refresherOpts := []refresher.Option{refresher.WithGauges(collector)}

	var views *dao.DAOViews
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: "", // no password set
			DB:       0,  // use default DB
			Protocol: 2,
		})
		views = dao.NewDAOViews(redisClient, cfg.Redis.TTL)
		refresherOpts = append(refresherOpts, refresher.WithPublisher(views))
	}

	ref := refresher.New(store, attack, deriver, cfg.Refresh.Interval, refresherOpts...)

	apiServer := service.NewAPIServer(cfg, service.Sources{
		Store:      store,
		Attack:     attack,
		Deriver:    deriver,
		Connection: client,
		Views:      ref,
		Collector:  collector,
	})

	return &Bootstrap{
		config:    cfg,
		store:     store,
		attack:    attack,
		collector: collector,
		client:    client,
		refresher: ref,
		apiServer: apiServer,
		views:     views,
		logger:    logi.GetLogger(),
	}, nil
}

// Start runs the stream client, the refresher and the API server until ctx
// is done or one of them fails.
func (b *Bootstrap) Start(ctx context.Context) error {
	if b.views != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := b.views.Ping(pingCtx); err != nil {
			b.logger.Warn("Redis unreachable, views will not be mirrored until it is", "error", err)
		}
		cancel()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// shutdown may tear the client down before Run starts
		if err := b.client.Run(gctx); !errors.Is(err, stream.ErrTornDown) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return b.refresher.Run(gctx)
	})
	g.Go(func() error {
		return b.apiServer.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		return b.shutdown()
	})

	err := g.Wait()
	b.logger.Info("Dashboard stopped", "error", err)
	return err
}

func (b *Bootstrap) shutdown() error {
	b.logger.Info("Dashboard shutting down")
	b.client.Teardown()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := b.apiServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down api server: %w", err)
	}
	if b.views != nil {
		if err := b.views.Close(); err != nil {
			b.logger.Error("Error closing redis client", "error", err)
		}
	}
	return nil
}

func (b *Bootstrap) Store() *metrics.Store { return b.store }

func (b *Bootstrap) Attack() *metrics.AttackFlag { return b.attack }

func (b *Bootstrap) Client() *stream.Client { return b.client }
