package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"taxmate-hq/throttle/pkg/cli"
	"taxmate-hq/throttle/pkg/config"
	"taxmate-hq/throttle/pkg/server"
	"taxmate-hq/throttle/pkg/telemetry/health"
	"taxmate-hq/throttle/pkg/telemetry/logging"
	"taxmate-hq/throttle/pkg/telemetry/metrics"
	"taxmate-hq/throttle/pkg/telemetry/tracing"
	"taxmate-hq/throttle/pkg/throttle"
	"taxmate-hq/throttle/pkg/throttle/sweeper"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the throttle service",
	Long: `Start the throttle HTTP service with the specified configuration.

The service answers admission checks from the chat front end, exposes quota
and registry statistics, reclaims inactive users on a cron schedule and,
when throttle.watch is set, reloads the quota table when the config file
changes.

Examples:
  # Start with default config
  throttle run

  # Start with custom config
  throttle run --config /etc/throttle/config.yaml

  # Override listen address
  throttle run --listen 0.0.0.0:8090

  # Validate config without starting the service
  throttle run --dry-run`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the service")
}

func runService(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return fmt.Errorf("failed to load config %q: %w", cfgFile, err)
	}
	cfg := config.MustGetConfig()

	if err := applyRunOverrides(cfg); err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:             cfg.Telemetry.Logging.Level,
		Format:            cfg.Telemetry.Logging.Format,
		AddSource:         cfg.Telemetry.Logging.AddSource,
		PseudonymizeUsers: cfg.Telemetry.Logging.PseudonymizeUsers,
		Writer:            cmd.ErrOrStderr(),
	})
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return cli.NewFormatter(cli.FormatText).FormatTo(out, newValidateReport(cfgFile, cfg))
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	if err := serve(ctx, cfg, logger, out); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// applyRunOverrides applies command line flags on top of the loaded
// configuration and validates the result.
func applyRunOverrides(cfg *config.Config) error {
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	return config.Validate(cfg)
}

// serve wires the throttle, its sweeper, the config watcher and the HTTP
// server, and blocks until ctx is cancelled or one of them fails.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) error {
	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	th := throttle.New(
		throttle.WithPolicies(cfg.Throttle.Policies()),
		throttle.WithLogger(logger),
		throttle.WithObserver(collector),
		throttle.WithActiveHorizon(cfg.Throttle.ActiveHorizon),
	)

	tracer, err := tracing.New(ctx, &cfg.Telemetry.Tracing, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
	checker.RegisterCheck("throttle", throttleCheck(th))

	var sw *sweeper.Sweeper
	if cfg.Throttle.GC.IsEnabled() {
		sw, err = sweeper.New(th, sweeper.Config{
			Schedule: cfg.Throttle.GC.Schedule,
			MaxAge:   cfg.Throttle.GC.MaxAge,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		checker.RegisterCheck("sweeper", func(context.Context) error {
			if !sw.IsRunning() {
				return errors.New("garbage collection sweeper is not running")
			}
			return nil
		})
	}

	srv, err := server.New(server.Options{
		Server:    cfg.Server,
		Telemetry: cfg.Telemetry,
		Throttle:  th,
		Metrics:   collector,
		Tracer:    tracer,
		Health:    checker,
		Version:   versionInfo(),
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// Everything that can fail synchronously starts before the listener, so
	// an early return leaves no goroutine behind.
	if sw != nil {
		if err := sw.Start(gctx); err != nil {
			return err
		}
		defer sw.Stop()
	}

	var watcher *config.Watcher
	if cfg.Throttle.Watch {
		watcher, err = config.NewWatcher(cfgFile, cfg.Throttle.WatchDebounce, logger)
		if err != nil {
			return err
		}
	}

	g.Go(func() error { return srv.Start(gctx) })

	if watcher != nil {
		g.Go(func() error {
			return watcher.Watch(gctx, func(next *config.Config) error {
				return th.SetPolicies(next.Throttle.Policies())
			})
		})
	}

	printBanner(out, cfg, sw)

	return g.Wait()
}

// throttleCheck fails readiness when the quota table is empty, since every
// request would then be admitted unlimited.
func throttleCheck(th *throttle.Throttle) health.CheckFunc {
	return func(context.Context) error {
		if len(th.Policies()) == 0 {
			return errors.New("no quota categories configured")
		}
		return nil
	}
}

func printBanner(out io.Writer, cfg *config.Config, sw *sweeper.Sweeper) {
	fmt.Fprintf(out, "Throttle v%s\n", Version)
	fmt.Fprintf(out, "✓ Configuration loaded from %s\n", cfgFile)
	fmt.Fprintf(out, "✓ %d quota categories\n", len(cfg.Throttle.Categories))
	if sw != nil {
		fmt.Fprintf(out, "✓ Garbage collection scheduled (%s, max age %s)\n", cfg.Throttle.GC.Schedule, cfg.Throttle.GC.MaxAge)
	}
	if cfg.Throttle.Watch {
		fmt.Fprintln(out, "✓ Watching config file for quota changes")
	}
	fmt.Fprintf(out, "✓ Listening on %s\n", cfg.Server.ListenAddress)
	if cfg.Telemetry.Metrics.IsEnabled() {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")
}
