package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cognicore/pricedex/internal/httpapi"
	"github.com/cognicore/pricedex/pkg/pricedex"
	"github.com/cognicore/pricedex/pkg/pricedex/config"
	"github.com/cognicore/pricedex/pkg/pricedex/fetch"
	"github.com/cognicore/pricedex/pkg/pricedex/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Config file (YAML)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger := cfg.Logging.NewLogger(os.Stderr)
	ctx := context.Background()

	st, err := sqlite.OpenSQLite(ctx, cfg.DatabasePath)
	if err != nil {
		log.Fatal(err)
	}

	fetcher := &fetch.Fetcher{
		URL:        cfg.DatasetURL,
		Cache:      &fetch.Cache{Dir: cfg.CacheDir},
		HTTPClient: http.DefaultClient,
		Logger:     logger,
	}

	engine := pricedex.New(pricedex.Options{
		Store:   st,
		Fetcher: fetcher,
		Logger:  &logger,
	})
	defer engine.Close()

	// Startup import is best-effort: a dead dataset source must not
	// keep previously imported records from being served.
	if report, err := engine.ImportDataset(ctx); err != nil {
		logger.Warn().Err(err).Msg("startup import failed, serving existing data")
	} else {
		logger.Info().Int("count", report.Count).Str("provenance", string(report.Provenance)).Msg("startup import done")
	}

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: httpapi.NewServer(engine, logger),
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTP.Addr).Msg("pricedex listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve error: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}
