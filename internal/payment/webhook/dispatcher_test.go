package webhook

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smallbiznis/rentpay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDispatcher(workers, size int) *Dispatcher {
	return NewDispatcher(DispatcherParams{
		Cfg: config.Config{DispatchWorkers: workers, DispatchQueueSize: size},
		Log: zap.NewNop(),
	})
}

func TestDispatcherRunsQueuedTasks(t *testing.T) {
	d := newTestDispatcher(2, 8)
	d.Start()

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		d.Submit(Task{Run: func(context.Context) { ran.Add(1) }})
	}
	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, int32(5), ran.Load())
}

func TestDispatcherRunsInlineWhenFull(t *testing.T) {
	d := newTestDispatcher(1, 1)
	d.Start()

	release := make(chan struct{})
	started := make(chan struct{})
	d.Submit(Task{Run: func(context.Context) {
		close(started)
		<-release
	}})
	<-started

	// Worker is busy; this fills the single queue slot.
	d.Submit(Task{Run: func(context.Context) {}})

	inline := false
	d.Submit(Task{Run: func(context.Context) { inline = true }})
	assert.True(t, inline, "a full queue runs the task on the caller")

	close(release)
	require.NoError(t, d.Stop(context.Background()))
}

func TestDispatcherStopTimesOut(t *testing.T) {
	d := newTestDispatcher(1, 1)
	d.Start()

	release := make(chan struct{})
	started := make(chan struct{})
	d.Submit(Task{Run: func(context.Context) {
		close(started)
		<-release
	}})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Stop(ctx), context.DeadlineExceeded)
	close(release)
}

func TestDispatcherSubmitAfterStopRunsInline(t *testing.T) {
	d := newTestDispatcher(1, 4)
	d.Start()
	require.NoError(t, d.Stop(context.Background()))

	var wg sync.WaitGroup
	wg.Add(1)
	ran := false
	d.Submit(Task{Run: func(context.Context) {
		ran = true
		wg.Done()
	}})
	wg.Wait()
	assert.True(t, ran)
}

func TestDispatcherRecoversPanics(t *testing.T) {
	d := newTestDispatcher(1, 1)
	assert.NotPanics(t, func() {
		d.run(Task{Ctx: context.Background(), Run: func(context.Context) { panic("boom") }})
	})
}

func TestRedisDeduperNilIsDisabled(t *testing.T) {
	d := NewRedisDeduper(nil)
	assert.Nil(t, d)

	seen, err := d.Seen(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.NoError(t, d.Mark(context.Background(), "evt_1"))
}
