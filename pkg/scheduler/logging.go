package scheduler

import (
	"context"

	"github.com/go-kit/kit/log"

	"github.com/fluxcd/homeless/pkg/spec"
)

var _ Client = &ErrorLoggingClient{}

// ErrorLoggingClient logs any error returned by the client it wraps.
type ErrorLoggingClient struct {
	client Client
	logger log.Logger
}

func NewErrorLoggingClient(c Client, l log.Logger) *ErrorLoggingClient {
	return &ErrorLoggingClient{c, l}
}

func (p *ErrorLoggingClient) Plan(ctx context.Context, job *spec.Map) (_ PlanResponse, err error) {
	defer func() {
		if err != nil {
			// Omit the job as it could be large
			p.logger.Log("method", "Plan", "error", err)
		}
	}()
	return p.client.Plan(ctx, job)
}

func (p *ErrorLoggingClient) Submit(ctx context.Context, job *spec.Map, index ModifyIndex) (_ SubmitResponse, err error) {
	defer func() {
		if err != nil {
			p.logger.Log("method", "Submit", "index", index, "error", err)
		}
	}()
	return p.client.Submit(ctx, job, index)
}

func (p *ErrorLoggingClient) Evaluation(ctx context.Context, evalID string) (_ Evaluation, err error) {
	defer func() {
		if err != nil {
			p.logger.Log("method", "Evaluation", "eval", evalID, "error", err)
		}
	}()
	return p.client.Evaluation(ctx, evalID)
}

func (p *ErrorLoggingClient) Deployment(ctx context.Context, deploymentID string) (_ Deployment, err error) {
	defer func() {
		if err != nil {
			p.logger.Log("method", "Deployment", "deployment", deploymentID, "error", err)
		}
	}()
	return p.client.Deployment(ctx, deploymentID)
}

func (p *ErrorLoggingClient) LatestDeployment(ctx context.Context, jobID string) (_ Deployment, err error) {
	defer func() {
		if err != nil {
			p.logger.Log("method", "LatestDeployment", "job", jobID, "error", err)
		}
	}()
	return p.client.LatestDeployment(ctx, jobID)
}

func (p *ErrorLoggingClient) Promote(ctx context.Context, deploymentID string) (err error) {
	defer func() {
		if err != nil {
			p.logger.Log("method", "Promote", "deployment", deploymentID, "error", err)
		}
	}()
	return p.client.Promote(ctx, deploymentID)
}
