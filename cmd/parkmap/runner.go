package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"parkmap-service/internal/domain/parking"
	"parkmap-service/internal/service"
)

type pendingRunner interface {
	RunPending(ctx context.Context) (*parking.BatchResult, error)
}

// runPeriodically drains the upload queue every interval until ctx ends.
// A non-positive interval disables it.
func runPeriodically(ctx context.Context, r pendingRunner, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		log.Info().Msg("periodic pipeline runs disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce(ctx, r, log)
		}
	}
}

func runOnce(ctx context.Context, r pendingRunner, log zerolog.Logger) {
	res, err := r.RunPending(ctx)
	switch {
	case errors.Is(err, service.ErrRunInProgress):
		log.Debug().Msg("previous pipeline run still active")
	case err != nil:
		log.Error().Err(err).Msg("periodic pipeline run failed")
	case len(res.Results) > 0:
		log.Info().
			Str("run_id", res.RunID).
			Int("uploads", len(res.Results)).
			Int("skipped", res.Skipped).
			Msg("periodic pipeline run done")
	}
}
