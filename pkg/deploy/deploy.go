// Package deploy runs a deployment from end to end: it renders the
// job, applies the environment's overrides and the new version, plans
// and submits the job, and watches any canaries until they can be
// promoted.
package deploy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/fluxcd/homeless/pkg/canary"
	"github.com/fluxcd/homeless/pkg/config"
	herr "github.com/fluxcd/homeless/pkg/errors"
	"github.com/fluxcd/homeless/pkg/jobspec"
	"github.com/fluxcd/homeless/pkg/merge"
	"github.com/fluxcd/homeless/pkg/overrides"
	"github.com/fluxcd/homeless/pkg/patch"
	"github.com/fluxcd/homeless/pkg/scheduler"
	"github.com/fluxcd/homeless/pkg/spec"
)

// ReadyEvent describes a deployment whose canaries are ready.
type ReadyEvent struct {
	Job          string
	Environment  string
	DeploymentID string
	Tag          string
	Tasks        patch.Result
}

// ReadyFunc is called once the canaries of a deployment are ready
// for promotion. An error from it fails the deployment.
type ReadyFunc func(ctx context.Context, ev ReadyEvent) error

type Request struct {
	Environment string
	Job         string
	Tasks       patch.Selector
	Tag         string
	PlanOnly    bool
	// Destination, if not nil, overrides where the job runs.
	Destination *config.Destination
	OnReady     ReadyFunc
	// Promote the canaries as soon as they're ready, after OnReady.
	Promote bool
}

type Result struct {
	JobID        string
	Plan         scheduler.PlanResponse
	Tasks        patch.Result
	Planned      bool
	EvalID       string
	DeploymentID string
	// Ready is true if the deployment has canaries that were found
	// ready for promotion.
	Ready    bool
	Promoted bool
	Outcome  canary.Outcome
}

type Config struct {
	Templates jobspec.Loader
	Overrides overrides.Store
	Scheduler scheduler.Client
	Monitor   *canary.Monitor
	Logger    log.Logger
	// Out is where the plan is printed for the operator.
	Out io.Writer
}

type Orchestrator struct {
	templates jobspec.Loader
	overrides overrides.Store
	scheduler scheduler.Client
	monitor   *canary.Monitor
	logger    log.Logger
	out       io.Writer
}

func New(c Config) *Orchestrator {
	o := &Orchestrator{
		templates: c.Templates,
		overrides: c.Overrides,
		scheduler: c.Scheduler,
		monitor:   c.Monitor,
		logger:    c.Logger,
		out:       c.Out,
	}
	if o.overrides == nil {
		o.overrides = overrides.Nop{}
	}
	if o.logger == nil {
		o.logger = log.NewNopLogger()
	}
	if o.out == nil {
		o.out = io.Discard
	}
	if o.monitor == nil {
		o.monitor = canary.NewMonitor(c.Scheduler, o.logger)
	}
	return o
}

// Render produces the job that would be submitted for the request,
// without talking to the scheduler.
func (o *Orchestrator) Render(ctx context.Context, req Request) (spec.Specification, patch.Result, error) {
	logger := log.With(o.logger, "job", req.Job, "environment", req.Environment)

	base, err := o.templates.Load(ctx, req.Job)
	if err != nil {
		return spec.Specification{}, nil, errors.Wrap(err, "loading job template")
	}

	extra, err := o.overrides.Get(ctx, req.Job, req.Environment)
	if err != nil {
		return spec.Specification{}, nil, errors.Wrap(err, "fetching overrides")
	}
	if extra == nil {
		logger.Log("msg", "no overrides found")
	}

	merged := base
	if extra != nil {
		if merged, err = merge.Specification(base, extra); err != nil {
			return spec.Specification{}, nil, &herr.Error{
				Type: herr.Merge,
				Help: fmt.Sprintf(`Could not apply the overrides for job %q in environment %q

    %s

Check the overrides document for this job and environment.
`, req.Job, req.Environment, err),
				Err: err,
			}
		}
	}
	if req.Destination != nil {
		merged = withDestination(merged, *req.Destination)
	}

	final, result, err := patch.Versions(merged, req.Tag, req.Tasks)
	if err != nil {
		return spec.Specification{}, nil, errors.Wrap(err, "patching versions")
	}
	logger.Log("tag", req.Tag, "tasks", result.Describe())

	debug := level.Debug(logger)
	debug.Log("spec", final.Indented())
	if diff, err := mergePatch(base, final); err == nil {
		debug.Log("changes", diff)
	}
	return final, result, nil
}

// Deploy plans the job and, unless only a plan was asked for, submits
// it and waits for any canaries to be ready.
func (o *Orchestrator) Deploy(ctx context.Context, req Request) (res Result, err error) {
	defer func() { observeDeploy(req, res, err) }()
	logger := log.With(o.logger, "job", req.Job, "environment", req.Environment)

	final, tasks, err := o.Render(ctx, req)
	if err != nil {
		return res, err
	}
	res.Tasks = tasks
	res.JobID = final.ID()

	plan, err := o.scheduler.Plan(ctx, final.Job)
	if err != nil {
		return res, errors.Wrap(err, "planning job")
	}
	res.Plan = plan
	if len(plan.FailedTGAllocs) > 0 {
		failure := &scheduler.PlacementFailureError{Job: res.JobID, Failures: plan.FailedTGAllocs}
		fmt.Fprintf(o.out, "Failed to place allocations:\n%s\n", failure.Indented())
		return res, failure
	}
	scheduler.PrintPlan(o.out, plan)

	if req.PlanOnly {
		res.Planned = true
		logger.Log("msg", "plan only; not submitting")
		return res, nil
	}

	submitted, err := o.scheduler.Submit(ctx, final.Job, plan.JobModifyIndex)
	if err != nil {
		return res, errors.Wrap(err, "submitting job")
	}
	res.EvalID = submitted.EvalID
	logger.Log("eval", submitted.EvalID, "index", submitted.JobModifyIndex)
	if submitted.Warnings != "" {
		logger.Log("warnings", submitted.Warnings)
	}
	if submitted.EvalID == "" || !hasCanaries(final) {
		return res, nil
	}

	eval, err := o.scheduler.Evaluation(ctx, submitted.EvalID)
	if err != nil {
		return res, errors.Wrapf(err, "fetching evaluation %s", submitted.EvalID)
	}
	if eval.DeploymentID == "" {
		logger.Log("eval", eval.ID, "msg", "evaluation created no deployment")
		return res, nil
	}
	res.DeploymentID = eval.DeploymentID

	res.Outcome, err = o.monitor.Await(ctx, eval.DeploymentID)
	if err != nil {
		return res, classifyMonitorError(err)
	}
	if res.Outcome != canary.OutcomeReady {
		return res, nil
	}
	res.Ready = true
	if req.OnReady != nil {
		err = req.OnReady(ctx, ReadyEvent{
			Job:          res.JobID,
			Environment:  req.Environment,
			DeploymentID: res.DeploymentID,
			Tag:          req.Tag,
			Tasks:        tasks,
		})
		if err != nil {
			return res, err
		}
	}
	if req.Promote {
		if err = o.monitor.Promote(ctx, res.DeploymentID); err != nil {
			return res, err
		}
		res.Promoted = true
	}
	return res, nil
}

type PromoteRequest struct {
	Job string
}

type PromoteResult struct {
	DeploymentID string
	// Promoted is false when the deployment finished without needing
	// promotion.
	Promoted bool
}

// Promote waits for the canaries of the job's latest deployment to be
// ready, then promotes them.
func (o *Orchestrator) Promote(ctx context.Context, req PromoteRequest) (PromoteResult, error) {
	var res PromoteResult
	d, err := o.scheduler.LatestDeployment(ctx, req.Job)
	if err != nil {
		return res, errors.Wrapf(err, "fetching latest deployment of job %s", req.Job)
	}
	if d.ID == "" {
		return res, herr.ConfigurationError(errors.Errorf("job %q has no deployment to promote", req.Job))
	}
	res.DeploymentID = d.ID

	outcome, err := o.monitor.Await(ctx, d.ID)
	if err != nil {
		return res, classifyMonitorError(err)
	}
	if outcome == canary.OutcomeSuccessful {
		return res, nil
	}
	if err := o.monitor.Promote(ctx, d.ID); err != nil {
		return res, err
	}
	res.Promoted = true
	return res, nil
}

func withDestination(s spec.Specification, d config.Destination) spec.Specification {
	out := s.Copy()
	out.Job.Set(spec.FieldRegion, d.Region)
	out.Job.Set(spec.FieldDatacenter, d.Datacenter)
	out.Job.Set(spec.FieldDatacenters, []interface{}{d.Datacenter})
	return out
}

// hasCanaries says whether the job, or any of its task groups, asks
// for canaries in its update stanza.
func hasCanaries(s spec.Specification) bool {
	if canaries(s.Job) {
		return true
	}
	for _, group := range s.TaskGroups() {
		if canaries(group) {
			return true
		}
	}
	return false
}

func canaries(m *spec.Map) bool {
	update, ok := m.GetMap(spec.FieldUpdate)
	if !ok {
		return false
	}
	v, _ := update.Get(spec.FieldCanary)
	switch n := spec.Normalize(v).(type) {
	case int64:
		return n > 0
	case int:
		return n > 0
	case float64:
		return n > 0
	}
	return false
}

func mergePatch(before, after spec.Specification) (string, error) {
	a, err := json.Marshal(before)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(after)
	if err != nil {
		return "", err
	}
	p, err := jsonpatch.CreateMergePatch(a, b)
	if err != nil {
		return "", err
	}
	return string(p), nil
}

func classifyMonitorError(err error) error {
	var failed *canary.DeploymentFailedError
	switch {
	case errors.As(err, &failed):
		return &herr.Error{
			Type: herr.Deployment,
			Help: fmt.Sprintf(`Deployment %s did not succeed

    %s

Look at the deployment's allocations in the scheduler to find out why.
`, failed.ID, err),
			Err: err,
		}
	case errors.Cause(err) == canary.ErrStatusUnavailable:
		return &herr.Error{
			Type: herr.Status,
			Help: fmt.Sprintf(`Could not read the deployment status from the scheduler

    %s

Try again, or check the deployment by hand.
`, err),
			Err:  err,
		}
	}
	return err
}
