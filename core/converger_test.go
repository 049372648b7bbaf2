package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/loadmesh/jenkins-converge/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffSec(t *testing.T) {
	assert.Equal(t, int32(1), backoffSec(0, maxRetryWaitSec))
	assert.Equal(t, int32(2), backoffSec(1, maxRetryWaitSec))
	assert.Equal(t, int32(16), backoffSec(4, maxRetryWaitSec))
	assert.Equal(t, int32(30), backoffSec(5, maxRetryWaitSec))
	assert.Equal(t, int32(30), backoffSec(31, maxRetryWaitSec))
}

func TestRetryTrackerDue(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tracker := NewRetryTracker(testLogger())
	tracker.now = func() time.Time { return now }

	d := model.Desired{Resource: &model.Job{Name: "build-x"}, Intent: model.ActionBuild}
	tracker.Add(d)
	assert.Equal(t, 1, tracker.Len())
	assert.Empty(t, tracker.due())

	now = now.Add(1500 * time.Millisecond)
	due := tracker.due()
	require.Len(t, due, 1)
	assert.Equal(t, "job/build-x", due[0].Key())

	// the second retry waits twice as long
	now = now.Add(1500 * time.Millisecond)
	assert.Empty(t, tracker.due())
	now = now.Add(time.Second)
	assert.Len(t, tracker.due(), 1)

	tracker.Add(d)
	assert.Equal(t, 1, tracker.Len())
	tracker.Remove(d.Key())
	assert.Zero(t, tracker.Len())
}

func TestNewConvergerRejectsInterval(t *testing.T) {
	r := newTestReconciler(t, WithExecutor(NewTestExecutor()))
	_, err := NewConverger(r, nil, 0, 1, nil)
	assert.Error(t, err)
}

func TestConvergerRunOnce(t *testing.T) {
	server := NewMemoryServer(testLogger())
	server.PutJob("build-x", "<project/>")
	desired := []model.Desired{
		{Resource: &model.Job{Name: "build-x"}, Intent: model.ActionBuild},
		{Resource: &model.Job{Name: "ghost"}, Intent: model.ActionBuild},
	}

	var mu sync.Mutex
	var seen []string
	r := newTestReconciler(t, WithExecutor(server))
	c, err := NewConverger(r, desired, time.Minute, 2, func(res *model.ReconcileResult) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, res.Name)
	})
	require.NoError(t, err)

	results := c.RunOnce(context.Background())
	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.ElementsMatch(t, []string{"build-x", "ghost"}, seen)
	assert.Equal(t, 1, c.Pending())
	assert.Equal(t, 1, server.Builds("build-x"))

	server.PutJob("ghost", "<project/>")
	c.RunOnce(context.Background())
	assert.Zero(t, c.Pending())
	assert.Equal(t, 1, server.Builds("ghost"))
}

func TestConvergerRunStopsOnCancel(t *testing.T) {
	server := NewMemoryServer(testLogger())
	server.PutJob("build-x", "<project/>")
	r := newTestReconciler(t, WithExecutor(server))
	c, err := NewConverger(r, []model.Desired{
		{Resource: &model.Job{Name: "build-x"}, Intent: model.ActionBuild},
	}, 10*time.Millisecond, 1, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	assert.Eventually(t, func() bool { return server.Builds("build-x") >= 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("converger did not stop")
	}
}
