package canary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/util/clock"

	"github.com/fluxcd/homeless/pkg/scheduler"
	"github.com/fluxcd/homeless/pkg/scheduler/mock"
)

// fakeClock fires every After at once, and remembers how long it was
// asked to wait.
type fakeClock struct {
	clock.Clock
	waits []time.Duration
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.waits = append(c.waits, d)
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func group(total, canaries, placedCanaries, placed, healthy, unhealthy int) scheduler.DeploymentState {
	g := scheduler.DeploymentState{
		DesiredTotal:    total,
		DesiredCanaries: canaries,
		PlacedAllocs:    placed,
		HealthyAllocs:   healthy,
		UnhealthyAllocs: unhealthy,
	}
	for i := 0; i < placedCanaries; i++ {
		g.PlacedCanaries = append(g.PlacedCanaries, "alloc")
	}
	return g
}

func running(groups map[string]scheduler.DeploymentState) scheduler.Deployment {
	return scheduler.Deployment{ID: "deploy-1", Status: scheduler.StatusRunning, TaskGroups: groups}
}

func TestReady(t *testing.T) {
	for _, tc := range []struct {
		name   string
		groups map[string]scheduler.DeploymentState
		ready  bool
		reason string
	}{
		{
			name:   "all good",
			groups: map[string]scheduler.DeploymentState{"web": group(3, 1, 1, 2, 3, 0)},
			ready:  true,
		},
		{
			name:   "unhealthy allocation",
			groups: map[string]scheduler.DeploymentState{"web": group(3, 1, 1, 2, 3, 1)},
			reason: `task group "web": 1 unhealthy allocations`,
		},
		{
			name:   "not enough healthy",
			groups: map[string]scheduler.DeploymentState{"web": group(3, 1, 1, 2, 2, 0)},
			reason: `task group "web": 2 of 3 allocations healthy`,
		},
		{
			name:   "canaries not placed",
			groups: map[string]scheduler.DeploymentState{"web": group(3, 2, 1, 2, 3, 0)},
			reason: `task group "web": 1 of 2 canaries placed`,
		},
		{
			name:   "too few placed",
			groups: map[string]scheduler.DeploymentState{"web": group(3, 1, 1, 1, 3, 0)},
			reason: `task group "web": 2 of 3 allocations placed`,
		},
		{
			name:   "no canaries placed counts as zero",
			groups: map[string]scheduler.DeploymentState{"web": group(2, 0, 0, 2, 2, 0)},
			ready:  true,
		},
		{
			name: "first failing group in name order",
			groups: map[string]scheduler.DeploymentState{
				"workers": group(3, 1, 0, 2, 3, 0),
				"api":     group(3, 1, 1, 2, 3, 2),
				"web":     group(3, 1, 1, 2, 3, 0),
			},
			reason: `task group "api": 2 unhealthy allocations`,
		},
		{
			name:  "no task groups",
			ready: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ready, reason := Ready(running(tc.groups))
			assert.Equal(t, tc.ready, ready)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestPoll(t *testing.T) {
	for _, tc := range []struct {
		status string
		phase  Phase
		err    error
	}{
		{scheduler.StatusRunning, PhaseRunning, nil},
		{scheduler.StatusPending, PhaseRunning, nil},
		{scheduler.StatusSuccessful, PhaseSuccessful, nil},
		{"", PhaseRunning, ErrStatusUnavailable},
	} {
		m := NewMonitor(&mock.Client{DeploymentAnswer: scheduler.Deployment{Status: tc.status}}, log.NewNopLogger())
		_, phase, err := m.Poll(context.Background(), "deploy-1")
		assert.Equal(t, tc.phase, phase, tc.status)
		assert.Equal(t, tc.err, err, tc.status)
	}

	for _, status := range []string{scheduler.StatusFailed, scheduler.StatusCancelled} {
		m := NewMonitor(&mock.Client{DeploymentAnswer: scheduler.Deployment{Status: status, StatusDescription: "Failed due to unhealthy allocations"}}, log.NewNopLogger())
		_, _, err := m.Poll(context.Background(), "deploy-1")
		failed, ok := err.(*DeploymentFailedError)
		require.True(t, ok, "expected *DeploymentFailedError, got %T", err)
		assert.Equal(t, status, failed.Status)
		assert.Contains(t, failed.Error(), "unhealthy allocations")
	}

	m := NewMonitor(&mock.Client{DeploymentError: errors.New("connection refused")}, log.NewNopLogger())
	_, _, err := m.Poll(context.Background(), "deploy-1")
	assert.Error(t, err)
}

func TestAwaitReady(t *testing.T) {
	c := &mock.Client{
		DeploymentAnswers: []scheduler.Deployment{
			{Status: scheduler.StatusPending, TaskGroups: map[string]scheduler.DeploymentState{"web": group(3, 1, 0, 0, 0, 0)}},
			running(map[string]scheduler.DeploymentState{"web": group(3, 1, 0, 2, 2, 0)}),
			running(map[string]scheduler.DeploymentState{"web": group(3, 1, 1, 2, 2, 0)}),
			running(map[string]scheduler.DeploymentState{"web": group(3, 1, 1, 2, 3, 0)}),
		},
	}
	clk := &fakeClock{}
	m := &Monitor{Client: c, Clock: clk, Interval: 10 * time.Second}

	outcome, err := m.Await(context.Background(), "deploy-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeReady, outcome)
	assert.Equal(t, 4, c.Called("Deployment"))
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second, 10 * time.Second}, clk.waits)
	assert.Equal(t, 0, c.Called("Promote"), "awaiting must not promote")
}

func TestAwaitSuccessful(t *testing.T) {
	c := &mock.Client{
		DeploymentAnswers: []scheduler.Deployment{
			running(map[string]scheduler.DeploymentState{"web": group(3, 1, 0, 0, 0, 0)}),
			{Status: scheduler.StatusSuccessful},
		},
	}
	m := &Monitor{Client: c, Clock: &fakeClock{}}

	outcome, err := m.Await(context.Background(), "deploy-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccessful, outcome)
}

func TestAwaitFailed(t *testing.T) {
	c := &mock.Client{
		DeploymentAnswers: []scheduler.Deployment{
			running(map[string]scheduler.DeploymentState{"web": group(3, 1, 1, 2, 1, 1)}),
			{Status: scheduler.StatusFailed},
		},
	}
	m := &Monitor{Client: c, Clock: &fakeClock{}}

	_, err := m.Await(context.Background(), "deploy-1")
	_, ok := err.(*DeploymentFailedError)
	assert.True(t, ok, "expected *DeploymentFailedError, got %T", err)
}

func TestAwaitCancelled(t *testing.T) {
	c := &mock.Client{
		DeploymentAnswer: running(map[string]scheduler.DeploymentState{"web": group(3, 1, 0, 0, 0, 0)}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// The real clock, so only cancellation can end the wait
	m := &Monitor{Client: c, Clock: clock.RealClock{}, Interval: time.Hour}

	_, err := m.Await(ctx, "deploy-1")
	assert.Equal(t, context.Canceled, err)
}

func TestPromote(t *testing.T) {
	c := &mock.Client{}
	m := NewMonitor(c, log.NewNopLogger())
	require.NoError(t, m.Promote(context.Background(), "deploy-1"))
	assert.Equal(t, []string{"deploy-1"}, c.Promoted)

	c.PromoteError = errors.New("no canaries to promote")
	assert.Error(t, m.Promote(context.Background(), "deploy-1"))
}

func TestAwaitProgress(t *testing.T) {
	m := &mock.Client{}
	m.DeploymentAnswers = []scheduler.Deployment{
		running(map[string]scheduler.DeploymentState{"web": group(3, 1, 1, 2, 1, 0)}),
		running(map[string]scheduler.DeploymentState{"web": group(3, 1, 1, 2, 3, 0)}),
	}
	var seen [][2]int
	monitor := &Monitor{Client: m, Clock: &fakeClock{}, Interval: time.Second}
	monitor.Progress = func(d scheduler.Deployment) {
		healthy, total := Healthy(d)
		seen = append(seen, [2]int{healthy, total})
	}
	outcome, err := monitor.Await(context.Background(), "deploy-1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeReady, outcome)
	assert.Equal(t, [][2]int{{1, 3}, {3, 3}}, seen)
}

func TestHealthy(t *testing.T) {
	healthy, total := Healthy(running(map[string]scheduler.DeploymentState{
		"web":    group(3, 1, 1, 2, 2, 0),
		"worker": group(2, 0, 0, 2, 2, 0),
	}))
	assert.Equal(t, 4, healthy)
	assert.Equal(t, 5, total)
}

func TestAwaitJudgesAnyUnfinishedStatus(t *testing.T) {
	ready := running(map[string]scheduler.DeploymentState{"web": group(3, 1, 1, 2, 3, 0)})
	for _, status := range []string{scheduler.StatusPending, "paused"} {
		d := ready
		d.Status = status
		c := &mock.Client{DeploymentAnswer: d}
		m := &Monitor{Client: c, Clock: &fakeClock{}, Interval: time.Second}

		outcome, err := m.Await(context.Background(), "deploy-1")
		require.NoError(t, err, status)
		assert.Equal(t, OutcomeReady, outcome, status)
		assert.Equal(t, 1, c.Called("Deployment"), status)
	}
}
