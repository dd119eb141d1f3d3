package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"parkmap-service/internal/align"
	"parkmap-service/internal/config"
	"parkmap-service/internal/db"
	"parkmap-service/internal/domain/parking"
	apphttp "parkmap-service/internal/http"
	"parkmap-service/internal/logger"
	"parkmap-service/internal/matcher"
	"parkmap-service/internal/metrics"
	"parkmap-service/internal/repository"
	"parkmap-service/internal/service"
	"parkmap-service/internal/vision"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default ./config.yaml if present)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("service stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Open(cfg.Database, log)
	if err != nil {
		return err
	}
	repo := repository.NewParkingRepository(gormDB)

	detector, closeDetector, err := newDetector(cfg, log)
	if err != nil {
		return err
	}
	defer closeDetector()

	recognizer, err := newRecognizer(cfg)
	if err != nil {
		return err
	}

	aligner, err := align.New(cfg.Pipeline.Aligner, align.Options{
		SmoothingFactor: cfg.Pipeline.SmoothingFactor,
		Padding:         cfg.Pipeline.Padding,
	})
	if err != nil {
		return err
	}

	m := metrics.New()
	svc := service.NewPipelineService(repo, detector, recognizer, newClassifier(cfg, log), service.Options{
		Matcher: matcher.Config{
			MaxPairDistance:   cfg.Pipeline.MaxPairDistance,
			MinTextConfidence: cfg.Pipeline.MinTextConfidence,
			UnknownText:       cfg.Pipeline.UnknownText,
		},
		Aligner:    aligner,
		UploadsDir: cfg.Vision.UploadsDir,
	}, m, log)

	handler := apphttp.NewHandler(svc, log)
	srv := apphttp.NewServer(cfg.HTTP.Addr, apphttp.NewRouter(handler, cfg, m, log))

	go runPeriodically(ctx, svc, cfg.Pipeline.RunInterval, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newClassifier returns nil when no reference images are available; uploads
// then need an explicit location.
func newClassifier(cfg *config.Config, log zerolog.Logger) parking.SiteClassifier {
	if cfg.Vision.BaseImagesDir == "" {
		return nil
	}
	c, err := vision.NewThumbnailClassifier(cfg.Vision.BaseImagesDir, cfg.Vision.ClassifierMinSimilarity, log)
	if err != nil {
		log.Warn().Err(err).Msg("site classifier disabled")
		return nil
	}
	return c
}
