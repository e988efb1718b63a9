// Package canary watches a deployment with canaries until they are
// ready to be promoted, or the deployment has finished one way or the
// other.
package canary

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/clock"

	"github.com/fluxcd/homeless/pkg/scheduler"
)

const DefaultInterval = 10 * time.Second

// ErrStatusUnavailable is returned when the scheduler answers with a
// deployment that has no status.
var ErrStatusUnavailable = errors.New("failed to retrieve deployment status")

// DeploymentFailedError is returned when the deployment ends without
// succeeding.
type DeploymentFailedError struct {
	ID          string
	Status      string
	Description string
}

func (e *DeploymentFailedError) Error() string {
	msg := fmt.Sprintf("deployment %s is %s; cannot promote canaries", e.ID, e.Status)
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

// Phase is how far a deployment has got, as far as canaries are
// concerned.
type Phase int

const (
	PhaseRunning Phase = iota
	PhaseSuccessful
)

// Outcome says why Await returned.
type Outcome string

const (
	// The deployment finished without needing promotion.
	OutcomeSuccessful Outcome = "successful"
	// The deployment is running and its canaries are ready.
	OutcomeReady Outcome = "ready"
)

type Monitor struct {
	Client   scheduler.Client
	Clock    clock.Clock
	Interval time.Duration
	Logger   log.Logger
	// Progress, if not nil, is given each unfinished deployment Await
	// polls.
	Progress func(scheduler.Deployment)
}

func NewMonitor(c scheduler.Client, logger log.Logger) *Monitor {
	return &Monitor{
		Client:   c,
		Clock:    clock.RealClock{},
		Interval: DefaultInterval,
		Logger:   logger,
	}
}

func (m *Monitor) logger() log.Logger {
	if m.Logger == nil {
		return log.NewNopLogger()
	}
	return m.Logger
}

// Poll fetches the deployment afresh and says which phase it's in. A
// failed or cancelled deployment is an error.
func (m *Monitor) Poll(ctx context.Context, deploymentID string) (scheduler.Deployment, Phase, error) {
	d, err := m.Client.Deployment(ctx, deploymentID)
	if err != nil {
		return d, PhaseRunning, errors.Wrapf(err, "fetching deployment %s", deploymentID)
	}
	switch d.Status {
	case "":
		return d, PhaseRunning, ErrStatusUnavailable
	case scheduler.StatusSuccessful:
		return d, PhaseSuccessful, nil
	case scheduler.StatusFailed, scheduler.StatusCancelled:
		return d, PhaseRunning, &DeploymentFailedError{
			ID:          deploymentID,
			Status:      d.Status,
			Description: d.StatusDescription,
		}
	}
	return d, PhaseRunning, nil
}

// Ready says whether every task group's canaries are placed and
// healthy, and enough allocations are placed and healthy overall. When
// not, the reason names the first group, in name order, that isn't.
func Ready(d scheduler.Deployment) (bool, string) {
	names := make([]string, 0, len(d.TaskGroups))
	for name := range d.TaskGroups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		g := d.TaskGroups[name]
		placedCanaries := len(g.PlacedCanaries)
		switch {
		case placedCanaries != g.DesiredCanaries:
			return false, fmt.Sprintf("task group %q: %d of %d canaries placed", name, placedCanaries, g.DesiredCanaries)
		case g.UnhealthyAllocs > 0:
			return false, fmt.Sprintf("task group %q: %d unhealthy allocations", name, g.UnhealthyAllocs)
		case g.HealthyAllocs < g.DesiredTotal:
			return false, fmt.Sprintf("task group %q: %d of %d allocations healthy", name, g.HealthyAllocs, g.DesiredTotal)
		case placedCanaries+g.PlacedAllocs < g.DesiredTotal:
			return false, fmt.Sprintf("task group %q: %d of %d allocations placed", name, placedCanaries+g.PlacedAllocs, g.DesiredTotal)
		}
	}
	return true, ""
}

// Healthy counts the healthy allocations of the deployment, and how
// many it wants in total.
func Healthy(d scheduler.Deployment) (healthy, total int) {
	for _, g := range d.TaskGroups {
		healthy += g.HealthyAllocs
		total += g.DesiredTotal
	}
	return healthy, total
}

// Await polls the deployment every Interval until it has succeeded,
// or is running with canaries ready to promote. It gives up only when
// the deployment fails, the status can't be had, or ctx is done.
func (m *Monitor) Await(ctx context.Context, deploymentID string) (Outcome, error) {
	logger := log.With(m.logger(), "deployment", deploymentID)
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	for {
		d, phase, err := m.Poll(ctx, deploymentID)
		if err != nil {
			return "", err
		}
		if phase == PhaseSuccessful {
			logger.Log("status", d.Status, "msg", "deployment finished without promotion")
			return OutcomeSuccessful, nil
		}

		// Any status short of terminal counts as running: a pending
		// deployment is judged on its counters like any other.
		if m.Progress != nil {
			m.Progress(d)
		}
		for name, g := range d.TaskGroups {
			level.Debug(logger).Log("group", name,
				"desired_total", g.DesiredTotal, "desired_canaries", g.DesiredCanaries,
				"placed_canaries", len(g.PlacedCanaries), "placed_allocs", g.PlacedAllocs,
				"healthy", g.HealthyAllocs, "unhealthy", g.UnhealthyAllocs)
		}
		ready, reason := Ready(d)
		if ready {
			logger.Log("status", d.Status, "msg", "canaries are ready for promotion")
			return OutcomeReady, nil
		}
		logger.Log("status", d.Status, "waiting", reason)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-m.Clock.After(interval):
		}
	}
}

// Promote promotes the canaries of every task group in the deployment.
func (m *Monitor) Promote(ctx context.Context, deploymentID string) error {
	if err := m.Client.Promote(ctx, deploymentID); err != nil {
		return errors.Wrapf(err, "promoting deployment %s", deploymentID)
	}
	m.logger().Log("deployment", deploymentID, "msg", "canaries promoted")
	return nil
}
