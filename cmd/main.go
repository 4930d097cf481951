package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"posemaster/pkg/api"
	"posemaster/pkg/compress"
	"posemaster/pkg/config"
	"posemaster/pkg/imagestore"
	"posemaster/pkg/logging"
	"posemaster/pkg/metrics"
	"posemaster/pkg/storage/memory"
	"posemaster/pkg/storage/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config failed")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	reg := metrics.NewRegistry()

	fast := memory.New(int64(cfg.Storage.FastCapacity), cfg.Storage.SessionTTL, reg)
	defer fast.Close()

	archive, err := sqlite.Open(ctx, cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer archive.Close()

	store := imagestore.New(fast, archive, imagestore.Options{
		Compress: compress.Options{
			MaxWidth:  cfg.Image.MaxWidth,
			Quality:   cfg.Image.JPEGQuality,
			MaxPixels: compress.DefaultMaxPixels,
		},
		Placement: imagestore.ThresholdPlacement{
			Threshold: int64(cfg.Storage.FastThreshold),
			Quota:     fast,
		},
		Registry: reg,
	})

	server := api.NewServer(store, reg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("address", cfg.Address).
			Str("database", cfg.Storage.DatabasePath).
			Stringer("fast_capacity", cfg.Storage.FastCapacity).
			Msg("server starting")
		if err := server.Start(cfg.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info().Msg("server shutting down")
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
