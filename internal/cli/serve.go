package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"fabricviz/internal/app"
	"fabricviz/internal/config"
	"fabricviz/internal/handler"
	"fabricviz/internal/hub"
	"fabricviz/internal/ingest"
	"fabricviz/internal/observability"
	"fabricviz/internal/repository/sqlite"
	"fabricviz/internal/service"
	"fabricviz/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the live topology server",
		Long: `Start the runtime loop, connect the configured ingest source and serve
the topology API, SSE frame stream and Prometheus metrics over HTTP.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFromContext(cmd.Context())
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides server.addr)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := loggerFromContext(ctx)
	logger.Info("starting fabricviz", "version", version, "addr", cfg.Server.Addr, "ingest", cfg.Ingest.Kind)

	collector, err := observability.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	bus := service.NewEventBus()
	events := make(chan service.Event, 256)
	bus.Subscribe(events)

	opts := []app.Option{
		app.WithTickRate(cfg.Layout.TickHz),
		app.WithBroadcastEvery(cfg.Presenter.BroadcastEvery),
		app.WithCoalescing(cfg.Layout.Coalescing()),
		app.WithEventBus(bus),
		app.WithCollector(collector),
		app.WithLogger(logger),
	}

	var telemetryReader handler.TelemetryReader
	if cfg.Telemetry.Enabled {
		repo, err := sqlite.New(cfg.Telemetry.DBPath)
		if err != nil {
			return fmt.Errorf("open telemetry store: %w", err)
		}
		sink := telemetry.NewSink(repo,
			telemetry.WithRetain(cfg.Telemetry.Retain),
			telemetry.WithBuffer(cfg.Telemetry.Buffer),
			telemetry.WithLogger(logger),
			telemetry.WithCollector(collector),
		)
		defer func() {
			if err := sink.Close(); err != nil {
				logger.Warn("telemetry close", "err", err)
			}
		}()
		logger.Info("telemetry store opened", "path", cfg.Telemetry.DBPath)
		opts = append(opts, app.WithTelemetry(sink))
		telemetryReader = sink
	}

	rt := app.New(layoutConfig(cfg.Layout), opts...)

	sources := ingest.NewRegistry(logger)
	source, err := newSource(cfg.Ingest, logger, collector)
	if err != nil {
		return err
	}
	if source != nil {
		if err := sources.Register(source); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sseHub := hub.New(logger, hub.WithGreeting(func() any {
		return service.Event{Type: service.EventFrame, Payload: rt.Frame()}
	}))

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	spawn(func() { sseHub.Run(ctx) })
	spawn(func() { hub.Forward(ctx, sseHub, events) })
	spawn(func() {
		if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("runtime stopped", "err", err)
		}
		cancel()
	})
	if err := sources.Start(ctx, rt); err != nil {
		return err
	}

	th := handler.NewTopologyHandler(rt, rt, telemetryReader, logger)
	th.SetSources(sources)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.NewRouter(th, sseHub, collector.Handler(), logger),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// SSE responses stay open, so no write deadline
		WriteTimeout: 0,
	}

	srvErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "runtime", rt.ID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-srvErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}

	sources.Stop()
	wg.Wait()
	logger.Info("stopped")
	return runErr
}
