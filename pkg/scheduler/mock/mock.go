// Package mock provides a scheduler.Client that answers from fields,
// and a battery of tests for anything that wraps one.
package mock

import (
	"context"
	"sync"

	"github.com/fluxcd/homeless/pkg/scheduler"
	"github.com/fluxcd/homeless/pkg/spec"
)

type Client struct {
	mu    sync.Mutex
	calls []string

	PlanArgTest func(job *spec.Map) error
	PlanAnswer  scheduler.PlanResponse
	PlanError   error

	SubmitArgTest func(job *spec.Map, index scheduler.ModifyIndex) error
	SubmitAnswer  scheduler.SubmitResponse
	SubmitError   error

	EvaluationAnswer scheduler.Evaluation
	EvaluationError  error

	// DeploymentAnswers are handed out in order, the last one repeating.
	// When empty, DeploymentAnswer is used.
	DeploymentAnswers []scheduler.Deployment
	DeploymentAnswer  scheduler.Deployment
	DeploymentError   error

	LatestDeploymentAnswer scheduler.Deployment
	LatestDeploymentError  error

	Promoted     []string
	PromoteError error
}

var _ scheduler.Client = &Client{}

func (c *Client) record(method string) {
	c.mu.Lock()
	c.calls = append(c.calls, method)
	c.mu.Unlock()
}

// Calls returns the methods called so far, in order.
func (c *Client) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// Called counts the calls made to the named method.
func (c *Client) Called(method string) int {
	n := 0
	for _, m := range c.Calls() {
		if m == method {
			n++
		}
	}
	return n
}

func (c *Client) Plan(ctx context.Context, job *spec.Map) (scheduler.PlanResponse, error) {
	c.record("Plan")
	if c.PlanArgTest != nil {
		if err := c.PlanArgTest(job); err != nil {
			return scheduler.PlanResponse{}, err
		}
	}
	return c.PlanAnswer, c.PlanError
}

func (c *Client) Submit(ctx context.Context, job *spec.Map, index scheduler.ModifyIndex) (scheduler.SubmitResponse, error) {
	c.record("Submit")
	if c.SubmitArgTest != nil {
		if err := c.SubmitArgTest(job, index); err != nil {
			return scheduler.SubmitResponse{}, err
		}
	}
	return c.SubmitAnswer, c.SubmitError
}

func (c *Client) Evaluation(ctx context.Context, evalID string) (scheduler.Evaluation, error) {
	c.record("Evaluation")
	return c.EvaluationAnswer, c.EvaluationError
}

func (c *Client) Deployment(ctx context.Context, deploymentID string) (scheduler.Deployment, error) {
	c.record("Deployment")
	if c.DeploymentError != nil {
		return scheduler.Deployment{}, c.DeploymentError
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch len(c.DeploymentAnswers) {
	case 0:
		return c.DeploymentAnswer, nil
	case 1:
		return c.DeploymentAnswers[0], nil
	}
	d := c.DeploymentAnswers[0]
	c.DeploymentAnswers = c.DeploymentAnswers[1:]
	return d, nil
}

func (c *Client) LatestDeployment(ctx context.Context, jobID string) (scheduler.Deployment, error) {
	c.record("LatestDeployment")
	return c.LatestDeploymentAnswer, c.LatestDeploymentError
}

func (c *Client) Promote(ctx context.Context, deploymentID string) error {
	c.record("Promote")
	if c.PromoteError != nil {
		return c.PromoteError
	}
	c.mu.Lock()
	c.Promoted = append(c.Promoted, deploymentID)
	c.mu.Unlock()
	return nil
}
