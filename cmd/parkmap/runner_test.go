package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"parkmap-service/internal/domain/parking"
	"parkmap-service/internal/service"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (c *countingRunner) RunPending(context.Context) (*parking.BatchResult, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return &parking.BatchResult{RunID: "r"}, nil
}

func TestRunPeriodically(t *testing.T) {
	r := &countingRunner{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		runPeriodically(ctx, r, 5*time.Millisecond, zerolog.Nop())
		close(done)
	}()

	assert.Eventually(t, func() bool { return r.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestRunPeriodically_Disabled(t *testing.T) {
	r := &countingRunner{}
	runPeriodically(context.Background(), r, 0, zerolog.Nop())
	assert.Zero(t, r.calls.Load())
}

func TestRunOnce_ToleratesErrors(t *testing.T) {
	r := &countingRunner{err: service.ErrRunInProgress}
	runOnce(context.Background(), r, zerolog.Nop())
	assert.Equal(t, int32(1), r.calls.Load())
}
