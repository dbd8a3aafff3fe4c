package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/yaron8/netmon/generator/bootstrap"
	"github.com/yaron8/netmon/generator/config"
	"github.com/yaron8/netmon/logi"
)

func main() {
	v := config.NewViper()

	root := &cobra.Command{
		Use:           "generator",
		Short:         "Serve a simulated telemetry feed over websocket",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			logger, err := logi.NewLog(cfg.LoggerConfig())
			if err != nil {
				return fmt.Errorf("failed to init logger: %w", err)
			}
			gin.SetMode(gin.ReleaseMode)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("Generator starting", "port", cfg.Port, "feed_interval", cfg.FeedInterval,
				"sim_delay", cfg.Sim.Delay, "sim_loss", cfg.Sim.Loss)
			return bootstrap.NewBootstrap(cfg).StartServer(ctx)
		},
	}

	root.Flags().Int("port", 0, "feed port (env PORT)")
	root.Flags().Duration("sim-delay", 0, "simulated external latency (env SIM_DELAY)")
	root.Flags().Float64("sim-loss", 0, "simulated packet loss rate, 0..1 (env SIM_LOSS)")
	for key, name := range map[string]string{"port": "port", "sim.delay": "sim-delay", "sim.loss": "sim-loss"} {
		if err := v.BindPFlag(key, root.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("Failed to bind flag %s: %v", name, err))
		}
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "generator: %v\n", err)
		os.Exit(1)
	}
}
