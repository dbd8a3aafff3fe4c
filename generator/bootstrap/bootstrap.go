package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yaron8/netmon/generator/config"
	"github.com/yaron8/netmon/generator/metrics"
	"github.com/yaron8/netmon/generator/service"
	"github.com/yaron8/netmon/logi"
)

const shutdownTimeout = 5 * time.Second

type Bootstrap struct {
	config    *config.Config
	apiServer *service.APIServer
	logger    *slog.Logger
}

func NewBootstrap(cfg *config.Config) *Bootstrap {
	generator := metrics.NewSampleGenerator(cfg.Sim.Delay, cfg.Sim.Loss, cfg.TimestampLayout(), time.Now().UnixNano())

	return &Bootstrap{
		config:    cfg,
		apiServer: service.NewAPIServer(cfg, generator),
		logger:    logi.GetLogger(),
	}
}

// StartServer serves the feed until ctx is done
func (b *Bootstrap) StartServer(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(b.apiServer.Start)
	g.Go(func() error {
		<-gctx.Done()
		b.logger.Info("Generator shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := b.apiServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down generator: %w", err)
		}
		return nil
	})

	return g.Wait()
}
