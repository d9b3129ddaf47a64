package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/metering/pkg/cli"
	"mercator-hq/metering/pkg/config"
	"mercator-hq/metering/pkg/metering"
	"mercator-hq/metering/pkg/telemetry/health"
	"mercator-hq/metering/pkg/telemetry/logging"
	"mercator-hq/metering/pkg/telemetry/tracing"
)

const shutdownTimeout = 10 * time.Second

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the metering engine",
	Long: `Run the metering engine as a long-lived process.

The process serves Prometheus metrics and health checks, refreshes cached
dynamic prices on the configured schedule and reloads pricing when the
configuration file changes.

Examples:
  # Start with default config
  metering run

  # Start with custom config
  metering run --config /etc/metering/config.yaml

  # Override the metrics listen address
  metering run --listen 0.0.0.0:9090

  # Validate config without starting
  metering run --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override metrics listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	applyRunOverrides(cfg)

	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	tracer, err := tracing.New(cfg.Telemetry.Tracing)
	if err != nil {
		return cli.NewConfigError("telemetry.tracing", err.Error())
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	eng, err := metering.New(ctx, metering.Options{
		Config:     cfg,
		Logger:     logger,
		Registerer: reg,
		Tracer:     tracer,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer eng.Close()

	if err := eng.Start(ctx); err != nil {
		return cli.NewConfigError("metering.price_refresh_schedule", err.Error())
	}

	fmt.Fprintf(out, "Metering v%s\n", Version)
	fmt.Fprintf(out, "✓ Engine ready (backend %s, %d usage types, %d policies)\n",
		cfg.Storage.Backend, len(eng.UsageTypes()), len(eng.Policies()))

	g, gctx := errgroup.WithContext(ctx)

	if cfgFile != "" {
		watcher, err := config.NewWatcher(cfgFile, 0, logger.With("component", "config.watcher"))
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		g.Go(func() error {
			return watcher.Watch(gctx, func(next *config.Config) {
				applyRunOverrides(next)
				eng.ReloadPricing(next.Pricing)
				if sections := config.RestartRequired(config.Swap(next), next); len(sections) > 0 {
					logger.Warn("configuration changes require a restart", "sections", sections)
				}
			})
		})
		fmt.Fprintf(out, "✓ Watching %s for pricing changes\n", cfgFile)
	}

	if cfg.Telemetry.Metrics.Enabled || cfg.Telemetry.Health.Enabled {
		srv := &http.Server{
			Addr:              cfg.Telemetry.Metrics.ListenAddress,
			Handler:           newServeMux(cfg, reg, eng.Ping),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			slog.Info("starting HTTP server", "address", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		if cfg.Telemetry.Metrics.Enabled {
			fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", srv.Addr, cfg.Telemetry.Metrics.Path)
		}
		if cfg.Telemetry.Health.Enabled {
			fmt.Fprintf(out, "✓ Health endpoint: http://%s%s\n", srv.Addr, health.ReadyPath)
		}
	}

	fmt.Fprintln(out, "\nPress Ctrl+C to stop")
	<-gctx.Done()

	if err := g.Wait(); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(out, "✓ Stopped")
	return nil
}

// applyRunOverrides applies the run command's flags on top of cfg.
func applyRunOverrides(cfg *config.Config) {
	if runFlags.listenAddress != "" {
		cfg.Telemetry.Metrics.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
}

// newServeMux mounts the metrics and health endpoints enabled in cfg.
func newServeMux(cfg *config.Config, gatherer prometheus.Gatherer, storeCheck health.CheckFunc) *http.ServeMux {
	mux := http.NewServeMux()
	if cfg.Telemetry.Metrics.Enabled {
		mux.Handle(cfg.Telemetry.Metrics.Path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		}))
	}
	if cfg.Telemetry.Health.Enabled {
		checker := health.New(cfg.Telemetry.Health.CheckTimeout)
		checker.RegisterCheck("storage", storeCheck)
		health.Register(mux, checker, Version)
	}
	return mux
}
