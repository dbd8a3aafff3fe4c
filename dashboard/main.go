package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/yaron8/netmon/dashboard/bootstrap"
	"github.com/yaron8/netmon/dashboard/config"
	"github.com/yaron8/netmon/logi"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dashboard: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var configFile string

	root := &cobra.Command{
		Use:           "dashboard",
		Short:         "Consume the telemetry feed and serve derived network views",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "path to a YAML config file")
	flags.String("feed-url", "", "websocket feed URL (env FEED_URL)")
	flags.Int("port", 0, "API port (env PORT)")
	flags.String("log-level", "", "log level: debug, info, warn, error (env LOG_LEVEL)")
	flags.String("log-output", "", "log output: file or stdout (env LOG_OUTPUT)")

	bindFlag(v, "feed.url", root, "feed-url")
	bindFlag(v, "port", root, "port")
	bindFlag(v, "log.level", root, "log-level")
	bindFlag(v, "log.output", root, "log-output")

	root.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(cfg)
		},
	})

	return root
}

// bindFlag lets a flag override viper only when it was set on the command line.
func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, name string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(name)); err != nil {
		panic(fmt.Sprintf("Failed to bind flag %s: %v", name, err))
	}
}

func run(parent context.Context, cfg *config.Config) error {
	logCfg := cfg.LoggerConfig()
	logger, err := logi.NewLog(logCfg)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	if logCfg.Level > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := bootstrap.NewBootstrap(cfg)
	if err != nil {
		return fmt.Errorf("failed to create dashboard bootstrap: %w", err)
	}

	logger.Info("Dashboard starting", "feed_url", cfg.Feed.URL, "port", cfg.Port)
	return b.Start(ctx)
}
