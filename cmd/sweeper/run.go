package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/p-blackswan/channel-sweeper/internal/bot"
	"github.com/p-blackswan/channel-sweeper/internal/command"
	"github.com/p-blackswan/channel-sweeper/internal/health"
	"github.com/p-blackswan/channel-sweeper/internal/httpserver"
	"github.com/p-blackswan/channel-sweeper/internal/metrics"
	"github.com/p-blackswan/channel-sweeper/internal/scheduler"
	"github.com/p-blackswan/channel-sweeper/internal/settings"
	"github.com/p-blackswan/channel-sweeper/internal/sweep"
)

const shutdownTimeout = 15 * time.Second

func newRunCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the chat platform and sweep channels periodically",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*envFile)
		},
	}
}

func run(envFile string) error {
	cfg, logger, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	profile := sweep.Profile(cfg.SweepProfile)
	policy, err := sweep.PolicyFor(profile)
	if err != nil {
		return err
	}

	store := settings.NewStore(cfg.Defaults(sweep.DefaultsFor(profile)))
	overrides, err := cfg.Overrides()
	if err != nil {
		return err
	}
	store.Seed(overrides)

	logger.Info().
		Str("environment", cfg.Environment).
		Str("platform", cfg.Platform).
		Str("profile", cfg.SweepProfile).
		Dur("default_interval", store.Defaults().Interval).
		Dur("default_cutoff", store.Defaults().Cutoff).
		Int("http_port", cfg.HTTPPort).
		Str("ops_addr", cfg.OpsAddr).
		Int("configured_channels", store.Len()).
		Msg("starting channel sweeper")

	// Context with graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	m := metrics.New()

	conn, err := connect(cfg, logger)
	if err != nil {
		return err
	}

	sweeper := sweep.NewSweeper(conn.client, policy, m, logger)
	sched := scheduler.New(store, sweeper, scheduler.Config{SweepTimeout: cfg.SweepTimeout}, m, logger)
	commands := command.NewHandler(command.Config{
		Prefix:    cfg.CommandPrefix,
		Locale:    cfg.Locale,
		RateLimit: cfg.CommandRateLimit,
	}, store, sched, sweeper, conn.client, m, logger)
	b := bot.New(conn.client, store, sched, commands, logger)

	checker := health.NewChecker(logger)
	checker.Register("platform", health.Bool(b.Ready))
	checker.Register("scheduler", health.Bool(sched.Running))

	servers := []*httpserver.Server{httpserver.NewLiveness(fmt.Sprintf(":%d", cfg.HTTPPort), logger)}
	if cfg.OpsAddr != "" {
		servers = append(servers, httpserver.NewOps(cfg.OpsAddr, checker, m, logger))
	}

	// WaitGroup for in-flight work
	var wg sync.WaitGroup

	for _, srv := range servers {
		wg.Add(1)
		go func(srv *httpserver.Server) {
			defer wg.Done()
			if err := srv.Start(); err != nil {
				logger.Error().Err(err).Str("addr", srv.Addr()).Msg("HTTP server error")
			}
		}(srv)
	}

	gatewayErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		gatewayErr <- conn.gateway.Run(ctx, b)
	}()

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")
	case err := <-gatewayErr:
		if err != nil {
			runErr = fmt.Errorf("%s gateway: %w", conn.client.Name(), err)
			logger.Error().Err(err).Msg("gateway stopped, shutting down")
		}
	}

	// Cancel context to signal all goroutines
	cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}
	sched.Stop(shutdownTimeout)

	// Wait for in-flight work to complete
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(shutdownTimeout):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("channel sweeper stopped")
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}
