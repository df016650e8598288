package cooldown

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTracker() (*Tracker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return New(WithClock(clock.Now)), clock
}

func TestCheckAndRecord(t *testing.T) {
	tr, clock := newTracker()
	window := 5 * time.Second

	assert.Zero(t, tr.Check("ping", "a", window))

	tr.Record("ping", "a", window)
	assert.Equal(t, window, tr.Check("ping", "a", window))

	clock.Advance(2 * time.Second)
	assert.Equal(t, 3*time.Second, tr.Check("ping", "a", window))
	assert.Zero(t, tr.Check("ping", "b", window), "other entity is independent")
	assert.Zero(t, tr.Check("pong", "a", window), "other command is independent")

	clock.Advance(3 * time.Second)
	assert.Zero(t, tr.Check("ping", "a", window))
}

func TestZeroWindowNeverThrottles(t *testing.T) {
	tr, _ := newTracker()

	tr.Record("ping", "a", 0)
	assert.Zero(t, tr.Check("ping", "a", 0))

	res, wait := tr.Reserve("ping", "a", 0)
	require.NotNil(t, res)
	assert.Zero(t, wait)
	res.Commit()
}

func TestRecordNeverMovesBackwards(t *testing.T) {
	tr, clock := newTracker()
	window := 10 * time.Second

	tr.Record("ping", "a", window)
	clock.Advance(-5 * time.Second)
	tr.Record("ping", "a", window)
	clock.Advance(5 * time.Second)

	assert.Equal(t, window, tr.Check("ping", "a", window))
}

func TestReserve(t *testing.T) {
	tr, clock := newTracker()
	window := 5 * time.Second

	res, wait := tr.Reserve("ping", "a", window)
	require.NotNil(t, res)
	assert.Zero(t, wait)

	second, wait := tr.Reserve("ping", "a", window)
	assert.Nil(t, second, "in-flight reservation blocks the same key")
	assert.Equal(t, window, wait)

	res.Commit()
	clock.Advance(time.Second)

	_, wait = tr.Reserve("ping", "a", window)
	assert.Equal(t, 4*time.Second, wait)

	clock.Advance(4 * time.Second)
	res, wait = tr.Reserve("ping", "a", window)
	require.NotNil(t, res)
	assert.Zero(t, wait)
}

func TestReleaseRecordsNothing(t *testing.T) {
	tr, _ := newTracker()
	window := 5 * time.Second

	res, _ := tr.Reserve("ping", "a", window)
	require.NotNil(t, res)
	res.Release()
	res.Commit() // no effect after Release

	assert.Zero(t, tr.Check("ping", "a", window))
}

func TestConcurrentReserveSameKey(t *testing.T) {
	tr := New()
	window := time.Minute

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res, _ := tr.Reserve("ping", "a", window); res != nil {
				granted.Add(1)
				res.Commit()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), granted.Load())
}

func TestConcurrentDifferentKeys(t *testing.T) {
	tr := New()
	window := time.Minute

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			res, _ := tr.Reserve("ping", string(rune('a'+id)), window)
			assert.NotNil(t, res)
			res.Commit()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 32, tr.Len())
}

func TestSweep(t *testing.T) {
	tr, clock := newTracker()

	tr.Record("ping", "a", 5*time.Second)
	tr.Record("covid", "a", time.Minute)
	res, _ := tr.Reserve("help", "a", time.Second)
	require.NotNil(t, res)

	clock.Advance(10 * time.Second)
	assert.Equal(t, 1, tr.Sweep())
	assert.Equal(t, 2, tr.Len(), "unexpired and in-flight entries stay")

	res.Commit()
	clock.Advance(time.Minute)
	assert.Equal(t, 2, tr.Sweep())
	assert.Zero(t, tr.Len())

	tr.Record("ping", "a", 5*time.Second)
	assert.Equal(t, 5*time.Second, tr.Check("ping", "a", 5*time.Second))
}
