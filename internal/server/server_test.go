package server

import (
	"context"
	"testing"
	"time"

	"github.com/deppfellow/itembatch/internal/config"
	"github.com/deppfellow/itembatch/internal/lib/workerpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPoolOnlyServer(t *testing.T, drain time.Duration) *Server {
	t.Helper()

	logger := zerolog.Nop()
	return &Server{
		Config: &config.Config{
			Batch: &config.BatchConfig{ShutdownTimeout: drain},
		},
		Logger: &logger,
		Pool:   workerpool.New(1, &logger),
	}
}

func TestShutdown_InterruptForcesCancellation(t *testing.T) {
	s := newPoolOnlyServer(t, time.Minute)

	started := make(chan struct{})
	require.NoError(t, s.Pool.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}))
	require.NoError(t, s.Pool.Submit(func(ctx context.Context) {}))
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	begin := time.Now()
	err := s.Shutdown(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(begin), 5*time.Second, "drain waited for the batch timeout")
	assert.True(t, s.Pool.Cancelled())

	select {
	case <-s.Pool.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("workers still running after interrupted shutdown")
	}
}

func TestShutdown_DrainsQueuedWork(t *testing.T) {
	s := newPoolOnlyServer(t, 5*time.Second)

	ran := make(chan struct{}, 3)
	for range 3 {
		require.NoError(t, s.Pool.Submit(func(ctx context.Context) {
			time.Sleep(10 * time.Millisecond)
			ran <- struct{}{}
		}))
	}

	require.NoError(t, s.Shutdown(context.Background()))
	assert.Len(t, ran, 3)
	assert.False(t, s.Pool.Cancelled())

	require.NoError(t, s.Shutdown(context.Background()), "second call is a no-op")
}
