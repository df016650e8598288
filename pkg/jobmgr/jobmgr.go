// Package jobmgr runs named background jobs. A name can only be running once
// at a time, which lets callers collapse duplicate work such as two gateway
// events asking to sync the same guild.
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrRunning is returned when a job with the same name is already active.
var ErrRunning = errors.New("job already running")

type job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager tracks running jobs. It is safe for concurrent use.
type Manager struct {
	mu   sync.Mutex
	jobs map[string]*job
	wg   sync.WaitGroup
}

func NewManager() *Manager {
	return &Manager{jobs: make(map[string]*job)}
}

func (m *Manager) start(ctx context.Context, name string) (context.Context, *job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jobs[name]; exists {
		return nil, nil, fmt.Errorf("%s: %w", name, ErrRunning)
	}
	ctx, cancel := context.WithCancel(ctx)
	j := &job{cancel: cancel, done: make(chan struct{})}
	m.jobs[name] = j
	m.wg.Add(1)
	return ctx, j, nil
}

func (m *Manager) finish(name string, j *job, err error) {
	j.cancel()
	m.mu.Lock()
	if m.jobs[name] == j {
		delete(m.jobs, name)
	}
	m.mu.Unlock()
	close(j.done)
	m.wg.Done()

	switch {
	case err == nil:
		log.Debug().Str("job", name).Msg("job done")
	case errors.Is(err, context.Canceled):
		log.Debug().Str("job", name).Msg("job cancelled")
	default:
		log.Error().Err(err).Str("job", name).Msg("job failed")
	}
}

// Run runs fn in the calling goroutine and returns its error. The job's
// context is derived from ctx and is cancelled by Stop.
func (m *Manager) Run(ctx context.Context, name string, fn func(ctx context.Context) error) (err error) {
	jctx, j, err := m.start(ctx, name)
	if err != nil {
		return err
	}
	defer func() { m.finish(name, j, err) }()
	return fn(jctx)
}

// Go runs fn in a new goroutine and returns immediately.
func (m *Manager) Go(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	jctx, j, err := m.start(ctx, name)
	if err != nil {
		return err
	}
	go func() {
		err := fn(jctx)
		m.finish(name, j, err)
	}()
	return nil
}

// Stop cancels a running job and waits for it to return.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	j, ok := m.jobs[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not running", name)
	}
	j.cancel()
	<-j.done
	return nil
}

// Wait blocks until every job has returned.
func (m *Manager) Wait() { m.wg.Wait() }

// List returns the names of active jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Status returns a one line summary of active jobs.
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return fmt.Sprintf("Running jobs: %s", strings.Join(active, ", "))
}
