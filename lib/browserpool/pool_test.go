package browserpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	id     int
	closed atomic.Bool
}

func (e *fakeEngine) Page(ctx context.Context) (*rod.Page, error) {
	return nil, fmt.Errorf("fake engine has no pages")
}

func (e *fakeEngine) Close() error {
	e.closed.Store(true)
	return nil
}

type fakeLauncher struct {
	mu      sync.Mutex
	engines []*fakeEngine
}

func (l *fakeLauncher) launch(ctx context.Context) (Engine, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	eng := &fakeEngine{id: len(l.engines)}
	l.engines = append(l.engines, eng)
	return eng, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.engines)
}

func newTestPool() (*Pool, *fakeLauncher) {
	launcher := &fakeLauncher{}
	return New(Options{Launch: launcher.launch}), launcher
}

func TestFIFOOrder(t *testing.T) {
	pool, _ := newTestPool()
	ctx := context.Background()

	const n = 10
	var mu sync.Mutex
	var order []int

	futures := make([]<-chan error, 0, n)
	for i := 0; i < n; i++ {
		i := i
		futures = append(futures, pool.Submit(ctx, func(ctx context.Context, eng Engine) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}))
	}
	for _, f := range futures {
		require.NoError(t, <-f)
	}

	expected := make([]int, n)
	for i := range expected {
		expected[i] = i
	}
	require.Equal(t, expected, order)
}

func TestTaskErrorDoesNotRelaunch(t *testing.T) {
	pool, launcher := newTestPool()
	ctx := context.Background()

	boom := fmt.Errorf("selector never appeared")
	first := pool.Submit(ctx, func(ctx context.Context, eng Engine) error {
		return boom
	})
	second := pool.Submit(ctx, func(ctx context.Context, eng Engine) error {
		return nil
	})

	require.ErrorIs(t, <-first, boom)
	require.NoError(t, <-second)
	require.Equal(t, 1, launcher.count())
}

func TestTaskPanicFailsOnlyThatTask(t *testing.T) {
	pool, launcher := newTestPool()
	ctx := context.Background()

	first := pool.Submit(ctx, func(ctx context.Context, eng Engine) error {
		panic("nil dereference in page handling")
	})
	second := pool.Submit(ctx, func(ctx context.Context, eng Engine) error {
		return nil
	})

	err := <-first
	require.Error(t, err)
	var fatal FatalError
	require.False(t, errors.As(err, &fatal))
	require.NoError(t, <-second)
	require.Equal(t, 1, launcher.count())
}

func TestEngineFaultRecoveryBound(t *testing.T) {
	pool, launcher := newTestPool()
	ctx := context.Background()

	var attempts atomic.Int32
	head := pool.Submit(ctx, func(ctx context.Context, eng Engine) error {
		attempts.Add(1)
		return EngineFault{Err: fmt.Errorf("protocol timeout")}
	})
	queued := pool.Submit(ctx, func(ctx context.Context, eng Engine) error {
		t.Error("task behind a fatal fault should never run")
		return nil
	})

	var fatal FatalError
	require.ErrorAs(t, <-head, &fatal)
	require.ErrorAs(t, <-queued, &fatal)

	// initial attempt plus exactly three retries, each on a fresh engine
	require.Equal(t, int32(4), attempts.Load())
	require.Equal(t, 4, launcher.count())
	for _, eng := range launcher.engines {
		require.True(t, eng.closed.Load())
	}
}

func TestEngineFaultRecoverySucceeds(t *testing.T) {
	pool, launcher := newTestPool()
	ctx := context.Background()

	var attempts atomic.Int32
	err := pool.Do(ctx, func(ctx context.Context, eng Engine) error {
		if attempts.Add(1) == 1 {
			return EngineFault{Err: fmt.Errorf("protocol timeout")}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int32(2), attempts.Load())
	require.Equal(t, 2, launcher.count())
	require.True(t, launcher.engines[0].closed.Load())
}

func TestEngineReleasedWhenIdle(t *testing.T) {
	pool, launcher := newTestPool()
	ctx := context.Background()

	require.NoError(t, pool.Do(ctx, func(ctx context.Context, eng Engine) error {
		return nil
	}))

	require.Eventually(t, func() bool {
		return launcher.count() == 1 && launcher.engines[0].closed.Load()
	}, time.Second, 5*time.Millisecond)

	// a later submission relaunches on demand
	require.NoError(t, pool.Do(ctx, func(ctx context.Context, eng Engine) error {
		return nil
	}))
	require.Equal(t, 2, launcher.count())
}

func TestForceCloseRejectsQueue(t *testing.T) {
	pool, _ := newTestPool()
	ctx := context.Background()

	release := make(chan struct{})
	started := make(chan struct{})
	running := pool.Submit(ctx, func(ctx context.Context, eng Engine) error {
		close(started)
		<-release
		return nil
	})
	queued := pool.Submit(ctx, func(ctx context.Context, eng Engine) error {
		t.Error("queued task should have been rejected")
		return nil
	})

	<-started
	require.NoError(t, pool.Close(true))
	require.ErrorIs(t, <-queued, ErrShutdown)

	close(release)
	<-running

	err := <-pool.Submit(ctx, func(ctx context.Context, eng Engine) error { return nil })
	require.ErrorIs(t, err, ErrClosed)
}

func TestGracefulCloseDrains(t *testing.T) {
	pool, _ := newTestPool()
	ctx := context.Background()

	var ran atomic.Int32
	futures := make([]<-chan error, 0, 3)
	for i := 0; i < 3; i++ {
		futures = append(futures, pool.Submit(ctx, func(ctx context.Context, eng Engine) error {
			ran.Add(1)
			return nil
		}))
	}

	require.NoError(t, pool.Close(false))
	for _, f := range futures {
		require.NoError(t, <-f)
	}
	require.Equal(t, int32(3), ran.Load())
}

func TestIsEngineFault(t *testing.T) {
	require.True(t, IsEngineFault(EngineFault{Err: fmt.Errorf("x")}))
	require.True(t, IsEngineFault(fmt.Errorf("wrap: %w", EngineFault{Err: fmt.Errorf("x")})))
	require.False(t, IsEngineFault(fmt.Errorf("ordinary")))
	require.False(t, IsEngineFault(nil))
}

func TestClassifyPageError(t *testing.T) {
	require.Nil(t, ClassifyPageError(nil))
	require.True(t, IsEngineFault(ClassifyPageError(fmt.Errorf("websocket: close 1006"))))
	require.False(t, IsEngineFault(ClassifyPageError(fmt.Errorf("element not found"))))
}
