// Package cooldown throttles repeated command invocations per (command, entity).
package cooldown

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type key struct {
	command string
	entity  string
}

type entry struct {
	mu      sync.Mutex
	last    time.Time
	window  time.Duration
	pending bool
	evicted bool
}

// Tracker stores the last successful invocation per (command, entity).
// Each key has its own lock; distinct keys never contend.
type Tracker struct {
	now     func() time.Time
	entries sync.Map // key -> *entry
}

type Option func(*Tracker)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func New(opts ...Option) *Tracker {
	t := &Tracker{now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

// lock returns the live entry for k with its mutex held.
func (t *Tracker) lock(k key) *entry {
	for {
		v, _ := t.entries.LoadOrStore(k, &entry{})
		e := v.(*entry)
		e.mu.Lock()
		if !e.evicted {
			return e
		}
		e.mu.Unlock()
	}
}

func (t *Tracker) remaining(e *entry, window time.Duration) time.Duration {
	if e.pending {
		return window
	}
	if e.last.IsZero() {
		return 0
	}
	if elapsed := t.now().Sub(e.last); elapsed < window {
		return window - elapsed
	}
	return 0
}

// Check returns how long entity must still wait before running command again.
// Zero means not throttled.
func (t *Tracker) Check(command, entity string, window time.Duration) time.Duration {
	if window <= 0 {
		return 0
	}
	v, ok := t.entries.Load(key{command, entity})
	if !ok {
		return 0
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return t.remaining(e, window)
}

// Record marks a successful invocation at the current time. The stored
// timestamp never moves backwards.
func (t *Tracker) Record(command, entity string, window time.Duration) {
	e := t.lock(key{command, entity})
	defer e.mu.Unlock()
	e.record(t.now(), window)
}

func (e *entry) record(now time.Time, window time.Duration) {
	if now.After(e.last) {
		e.last = now
	}
	if window > e.window {
		e.window = window
	}
}

// Reservation holds a key between a passed check and the outcome of the
// invocation. Exactly one of Commit or Release takes effect.
type Reservation struct {
	t      *Tracker
	e      *entry
	window time.Duration
	once   sync.Once
}

// Commit records the invocation as successful.
func (r *Reservation) Commit() {
	if r == nil || r.e == nil {
		return
	}
	r.once.Do(func() {
		r.e.mu.Lock()
		defer r.e.mu.Unlock()
		r.e.pending = false
		r.e.record(r.t.now(), r.window)
	})
}

// Release drops the reservation without recording anything.
func (r *Reservation) Release() {
	if r == nil || r.e == nil {
		return
	}
	r.once.Do(func() {
		r.e.mu.Lock()
		defer r.e.mu.Unlock()
		r.e.pending = false
	})
}

// Reserve atomically checks the key and, when it is free, reserves it so a
// concurrent invocation by the same entity sees it as throttled. When the key
// is throttled, Reserve returns a nil reservation and the remaining wait.
func (t *Tracker) Reserve(command, entity string, window time.Duration) (*Reservation, time.Duration) {
	if window <= 0 {
		return &Reservation{}, 0
	}
	e := t.lock(key{command, entity})
	defer e.mu.Unlock()

	if wait := t.remaining(e, window); wait > 0 {
		return nil, wait
	}
	e.pending = true
	return &Reservation{t: t, e: e, window: window}, 0
}

// Sweep evicts entries whose window has elapsed and returns how many it removed.
func (t *Tracker) Sweep() int {
	now := t.now()
	removed := 0
	t.entries.Range(func(k, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		if !e.pending && now.Sub(e.last) >= e.window {
			e.evicted = true
			t.entries.Delete(k)
			removed++
		}
		e.mu.Unlock()
		return true
	})
	return removed
}

// Len reports the number of tracked keys.
func (t *Tracker) Len() int {
	n := 0
	t.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Run sweeps expired entries every interval until ctx is done.
func (t *Tracker) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.Sweep(); n > 0 {
				log.Debug().Int("evicted", n).Msg("cooldown sweep")
			}
		}
	}
}
