package desk

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// counting returns an activity that tracks how many copies are running.
func counting(running *atomic.Int32, starts *atomic.Int32) Activity {
	return func(ctx context.Context) {
		starts.Add(1)
		running.Add(1)
		defer running.Add(-1)
		<-ctx.Done()
	}
}

func TestScopeRunsWhileHeld(t *testing.T) {
	defer leaktest.Check(t)()

	var running, starts atomic.Int32
	s := NewScope(context.Background(), "test", zap.NewNop().Sugar(), counting(&running, &starts))
	assert.False(t, s.Running())

	r1 := s.Acquire()
	r2 := s.Acquire()
	require.Eventually(t, func() bool { return running.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 2, s.Holders())

	r1()
	r1()
	assert.True(t, s.Running())
	assert.Equal(t, 1, s.Holders())

	r2()
	assert.False(t, s.Running())
	assert.Equal(t, int32(0), running.Load(), "release waits for the activity to return")
	assert.Equal(t, int32(1), starts.Load())
}

func TestScopeRestartsAfterRelease(t *testing.T) {
	defer leaktest.Check(t)()

	var running, starts atomic.Int32
	s := NewScope(context.Background(), "test", zap.NewNop().Sugar(), counting(&running, &starts))

	for i := 0; i < 3; i++ {
		release := s.Acquire()
		release()
	}
	assert.Equal(t, int32(3), starts.Load())
	assert.Equal(t, int32(0), running.Load())
}

func TestScopeStopsWithBaseContext(t *testing.T) {
	defer leaktest.Check(t)()

	var running, starts atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScope(ctx, "test", zap.NewNop().Sugar(), counting(&running, &starts))

	release := s.Acquire()
	require.Eventually(t, func() bool { return running.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	require.Eventually(t, func() bool { return running.Load() == 0 }, time.Second, time.Millisecond)
	release()
}

func TestViewsShareGenerator(t *testing.T) {
	defer leaktest.Check(t)()

	var genRunning, genStarts, feedRunning, feedStarts, volRunning, volStarts atomic.Int32
	v := NewViews(context.Background(), zap.NewNop().Sugar(),
		counting(&genRunning, &genStarts),
		counting(&feedRunning, &feedStarts),
		counting(&volRunning, &volStarts))

	unmountClient, err := v.Mount(ViewClient)
	require.NoError(t, err)
	unmountManager, err := v.Mount(ViewManager)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return genRunning.Load() == 1 && feedRunning.Load() == 1 && volRunning.Load() == 1
	}, time.Second, time.Millisecond)

	unmountClient()
	assert.True(t, v.Generator.Running())
	assert.False(t, v.Feed.Running())
	assert.True(t, v.Sampler.Running())

	unmountManager()
	assert.False(t, v.Generator.Running())
	assert.False(t, v.Sampler.Running())
	assert.Equal(t, int32(1), genStarts.Load())

	_, err = v.Mount("trader")
	assert.ErrorIs(t, err, ErrUnknownView)
}

func TestMountAllAndNilActivities(t *testing.T) {
	defer leaktest.Check(t)()

	v := NewViews(context.Background(), zap.NewNop().Sugar(), nil, nil, nil)
	unmount := v.MountAll()
	assert.Equal(t, 2, v.Generator.Holders())
	assert.Equal(t, 1, v.Feed.Holders())
	unmount()
	assert.Zero(t, v.Generator.Holders())
}

func TestParseView(t *testing.T) {
	v, err := ParseView("manager")
	require.NoError(t, err)
	assert.Equal(t, ViewManager, v)

	_, err = ParseView("admin")
	assert.ErrorIs(t, err, ErrUnknownView)
}
