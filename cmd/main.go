package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/docopt/docopt.go"
	"go.uber.org/zap"

	"github.com/aqilqeka/Aqil-project/config"
	"github.com/aqilqeka/Aqil-project/dashboard"
	fraudflight "github.com/aqilqeka/Aqil-project/flight"
	"github.com/aqilqeka/Aqil-project/loader"
	"github.com/aqilqeka/Aqil-project/query"
)

const version = "fraudboard version 1.0.0"

const usage = `Fraudboard: credit card fraud analytics.

Usage:
  fraudboard serve [--addr=<addr>] [--flight-addr=<addr>] [--source=<uri>] [--cache-dir=<dir>] [--rows=<n>] [--log-level=<level>] [--env-file=<path>]
  fraudboard summary [--rows=<n>] [--source=<uri>] [--cache-dir=<dir>] [--log-level=<level>] [--env-file=<path>]
  fraudboard (-h | --help)
  fraudboard --version

Options:
  -h --help             Show this screen.
  --version             Show version.
  --addr=<addr>         Dashboard listen address (FRAUDBOARD_ADDR, default :8080).
  --flight-addr=<addr>  Arrow Flight listen address (FRAUDBOARD_FLIGHT_ADDR, default :8815).
  --source=<uri>        Dataset archive: http(s) or gs:// URI, zip file or extracted directory (FRAUDBOARD_SOURCE).
  --cache-dir=<dir>     Directory for the downloaded archive and Arrow snapshot (FRAUDBOARD_CACHE_DIR, default data).
  --rows=<n>            Default number of rows analysed (FRAUDBOARD_DEFAULT_ROWS, default 100000).
  --log-level=<level>   Log level (FRAUDBOARD_LOG_LEVEL, default info).
  --env-file=<path>     Environment file to read [default: .env].
`

func main() {
	arguments, err := docopt.ParseDoc(usage)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		os.Exit(1)
	}
	if v, _ := arguments.Bool("--version"); v {
		fmt.Println(version)
		os.Exit(0)
	}

	envFile, _ := arguments.String("--env-file")
	cfg, err := config.Load(arguments, envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Initialize zap logger.
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(cfg.Level())
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if s, _ := arguments.Bool("summary"); s {
		err = runSummary(cfg, logger)
	} else {
		err = runServe(cfg, logger)
	}
	if err != nil {
		logger.Error("fraudboard failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// runSummary loads the dataset, runs one render pass and prints every
// derived table.
func runSummary(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	table, err := loader.New(cfg.Loader(), logger).Load(ctx)
	if err != nil {
		return err
	}
	res, err := query.NewPipeline(logger).Run(table, cfg.DefaultRows)
	if err != nil {
		return err
	}
	writeReport(os.Stdout, res)
	return nil
}

func runServe(cfg *config.Config, logger *zap.Logger) error {
	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := loader.NewSession(loader.New(cfg.Loader(), logger))
	pipeline := query.NewPipeline(logger)

	server, err := dashboard.NewServer(dashboard.Options{
		Addr:            cfg.Addr,
		DefaultRows:     cfg.DefaultRows,
		RenderCacheSize: cfg.RenderCacheSize,
	}, session, pipeline, logger)
	if err != nil {
		return err
	}

	flightServer := flight.NewServerWithMiddleware(nil)
	if err := flightServer.Init(cfg.FlightAddr); err != nil {
		return fmt.Errorf("init flight server: %w", err)
	}
	flightServer.RegisterFlightService(fraudflight.NewService(session, pipeline, logger))

	// Create error channel for goroutine errors
	errCh := make(chan error, 2)

	// The dataset loads in the background; both surfaces answer "loading"
	// until it is ready.
	go func() {
		if err := session.Init(ctx); err != nil {
			logger.Error("dataset load failed", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("dashboard listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("dashboard server: %w", err)
		}
	}()

	go func() {
		logger.Info("flight service listening", zap.String("addr", flightServer.Addr().String()))
		if err := flightServer.Serve(); err != nil {
			errCh <- fmt.Errorf("flight server: %w", err)
		}
	}()

	// Listen for OS signals for graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-errCh:
		logger.Error("server error", zap.Error(runErr))
	case sig := <-sigCh:
		logger.Info("Received OS signal, shutting down", zap.String("signal", sig.String()))
	}
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("dashboard shutdown", zap.Error(err))
	}
	flightServer.Shutdown()
	return runErr
}
