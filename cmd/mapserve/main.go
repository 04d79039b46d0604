// Command mapserve serves processed city datasets to the map front
// end, with an in-memory cache in front of the data directory.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hometownmap/parcelpipe/internal/core/config"
	"github.com/hometownmap/parcelpipe/internal/logger"
	"github.com/hometownmap/parcelpipe/internal/metrics"
	"github.com/hometownmap/parcelpipe/internal/server"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "mapserve",
	}, os.Stdout)

	// route stdlib logging through zerolog
	slog.SetDefault(logger.NewSlog(&zl))

	prom := metrics.Init(metrics.BuildInfo{Version: Version})

	store, err := server.NewStore(cfg.DataDir, cfg.Serve.DatasetCacheSize)
	if err != nil {
		zl.Error().Err(err).Msg("init dataset store")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zl.Info().
		Str("version", Version).
		Str("addr", cfg.Serve.Addr).
		Str("data_dir", cfg.DataDir).
		Msg("starting map server")

	if err := server.Run(ctx, cfg.Serve, zl, store, prom); err != nil {
		zl.Error().Err(err).Msg("server failed")
		return 1
	}
	return 0
}
