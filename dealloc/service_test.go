package dealloc

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/ndgo/metrics"
)

// owner is large enough to stay out of the tiny allocator, whose blocks may
// be shared between objects and never reported unreachable on their own.
type owner struct {
	payload [64]byte
}

type countingReleaser struct {
	n   atomic.Int32
	err error
}

func (c *countingReleaser) Release() error {
	c.n.Add(1)
	return c.err
}

//go:noinline
func trackTemporary(s *Service, res Releaser) Handle {
	o := &owner{}
	o.payload[0] = 1
	return Track(s, o, res)
}

func collectUntil(t *testing.T, s *Service, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		runtime.GC()
		s.Sweep()
		return cond()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestReclaimOnUnreachable(t *testing.T) {
	m := &metrics.Basic{}
	s := New(WithMetrics(m))
	res := &countingReleaser{}

	h := trackTemporary(s, res)
	assert.NotZero(t, h)

	collectUntil(t, s, func() bool { return s.IsFreed(h) })

	assert.Equal(t, int32(1), res.n.Load())
	assert.False(t, s.IsTracked(h))

	st := s.Stats()
	assert.Equal(t, 0, st.Tracked)
	assert.Equal(t, uint64(1), st.Freed)
	assert.Equal(t, uint64(1), st.Reclaimed)
	assert.Equal(t, int64(1), m.Stats().Reclaimed)
}

func TestReachableOwnerIsNotFreed(t *testing.T) {
	s := New()
	res := &countingReleaser{}
	o := &owner{}
	h := Track(s, o, res)

	for range 3 {
		runtime.GC()
		s.Sweep()
	}

	assert.True(t, s.IsTracked(h))
	assert.Equal(t, int32(0), res.n.Load())
	runtime.KeepAlive(o)
}

func TestUntrackCancelsRelease(t *testing.T) {
	s := New()
	res := &countingReleaser{}

	h := trackTemporary(s, res)
	require.True(t, s.Untrack(h))
	assert.False(t, s.Untrack(h), "second untrack is a no-op")

	for range 3 {
		runtime.GC()
		s.Sweep()
	}

	assert.Equal(t, int32(0), res.n.Load())
	assert.False(t, s.IsFreed(h))
	assert.Equal(t, uint64(1), s.Stats().Untracked)
}

func TestFreeIsExactlyOnce(t *testing.T) {
	s := New()
	res := &countingReleaser{}
	o := &owner{}
	h := Track(s, o, res)

	require.NoError(t, s.Free(h))
	require.NoError(t, s.Free(h))
	assert.False(t, s.Untrack(h))

	assert.Equal(t, int32(1), res.n.Load())
	assert.True(t, s.IsFreed(h))
	assert.Equal(t, uint64(0), s.Stats().Reclaimed)
	runtime.KeepAlive(o)
}

func TestFreeReportsReleaseError(t *testing.T) {
	m := &metrics.Basic{}
	s := New(WithMetrics(m))
	boom := errors.New("munmap failed")
	o := &owner{}
	h := Track(s, o, &countingReleaser{err: boom})

	err := s.Free(h)
	require.ErrorIs(t, err, boom)
	assert.True(t, s.IsFreed(h))
	assert.Equal(t, int64(1), m.Stats().FreeErrors)
	runtime.KeepAlive(o)
}

func TestConcurrentFreeAndUntrack(t *testing.T) {
	s := New()

	for range 100 {
		res := &countingReleaser{}
		o := &owner{}
		h := Track(s, o, res)

		var wg sync.WaitGroup
		var untracked atomic.Int32
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if i%2 == 0 {
					_ = s.Free(h)
				} else if s.Untrack(h) {
					untracked.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), res.n.Load()+untracked.Load(), "exactly one path wins")
		runtime.KeepAlive(o)
	}
}

func TestBackgroundSweeper(t *testing.T) {
	s := New(WithSweepInterval(5 * time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	s.Start(ctx)

	res := &countingReleaser{}
	h := trackTemporary(s, res)

	assert.Eventually(t, func() bool {
		runtime.GC()
		return s.IsFreed(h)
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), res.n.Load())

	s.Close()
	s.Close()
}

func TestCloseWithoutStart(t *testing.T) {
	s := New()
	assert.NotPanics(t, s.Close)
}

func TestDefaultLifecycle(t *testing.T) {
	a := Default()
	assert.Same(t, a, Default())

	ShutdownDefault()
	b := Default()
	assert.NotSame(t, a, b)
	ShutdownDefault()
}
