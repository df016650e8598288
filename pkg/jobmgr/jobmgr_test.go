package jobmgr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRejectsDuplicateName(t *testing.T) {
	m := NewManager()
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = m.Run(context.Background(), "sync:g1", func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := m.Run(context.Background(), "sync:g1", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrRunning)
	assert.NoError(t, m.Run(context.Background(), "sync:g2", func(context.Context) error { return nil }))
	assert.Equal(t, []string{"sync:g1"}, m.List())

	close(release)
	m.Wait()
	assert.Empty(t, m.List())
	assert.Equal(t, "No jobs are running.", m.Status())
}

func TestRunReturnsError(t *testing.T) {
	m := NewManager()
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Run(context.Background(), "x", func(context.Context) error { return boom }), boom)
	assert.Empty(t, m.List(), "failed jobs are removed")
}

func TestGoAndStop(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Go(context.Background(), "sweep", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	assert.Equal(t, "Running jobs: sweep", m.Status())

	require.NoError(t, m.Stop("sweep"))
	assert.Empty(t, m.List())
	assert.Error(t, m.Stop("sweep"))
}

func TestParentContextCancelsJobs(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Go(ctx, "sweep", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}))
	cancel()

	done := make(chan struct{})
	go func() { m.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not stop with its parent context")
	}
}
