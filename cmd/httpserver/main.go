package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/rawhttp/internal/app"
	"github.com/Brownie44l1/rawhttp/internal/router"
	"github.com/Brownie44l1/rawhttp/internal/server"
	"github.com/Brownie44l1/rawhttp/internal/static"
	"github.com/Brownie44l1/rawhttp/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "httpserver:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		directory  = flag.String("directory", "", "directory served under /files/")
		addr       = flag.String("addr", "", "listen address (default :4221)")
		logLevel   = flag.String("log-level", "", "debug, info, warn or error")
		logFormat  = flag.String("log-format", "", "text or json")
	)
	flag.Parse()

	config := server.DefaultConfig()
	if *configPath != "" {
		var err error
		if config, err = server.LoadConfig(*configPath); err != nil {
			return err
		}
	}

	// flags beat the file
	if *directory != "" {
		config.Directory = *directory
	}
	if *addr != "" {
		config.Addr = *addr
	}
	if *logLevel != "" {
		config.Log.Level = *logLevel
	}
	if *logFormat != "" {
		config.Log.Format = *logFormat
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, config.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			fmt.Fprintln(os.Stderr, "telemetry shutdown:", err)
		}
	}()

	logger, err := server.NewLogger(os.Stderr, config.Log)
	if err != nil {
		return err
	}
	if providers.Enabled() {
		logger = slog.New(server.NewTeeHandler(logger.Handler(), providers.LogHandler()))
	}
	slog.SetDefault(logger)

	files, err := static.New(config.Directory)
	if err != nil {
		return err
	}
	defer files.Close()

	r := router.New()
	if err := app.Routes(r, files); err != nil {
		return err
	}

	srv, err := server.New(config, r, app.NewPipeline(config.CORS),
		server.WithLogger(logger),
		server.WithMeterProvider(providers.MeterProvider),
		server.WithTracerProvider(providers.TracerProvider),
	)
	if err != nil {
		return err
	}

	logger.Info("starting",
		"addr", config.Addr,
		"directory", files.Dir(),
		"telemetry", providers.Enabled(),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		stop()
	}

	logger.Info("shutting down", "timeout", config.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, server.ErrServerClosed) {
		return err
	}

	stats := srv.Stats()
	logger.Info("final stats",
		"requests", stats.RequestsTotal,
		"errors", stats.ErrorsTotal,
		"errors_4xx", stats.Errors4xx,
		"errors_5xx", stats.Errors5xx,
		"parse_errors", stats.ParseErrors,
		"avg_latency", stats.AverageLatency,
	)
	return nil
}
