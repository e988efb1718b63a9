// Package nomad talks to the Nomad HTTP API directly, and to Consul's
// key-value store.
package nomad

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	herr "github.com/fluxcd/homeless/pkg/errors"
	transport "github.com/fluxcd/homeless/pkg/http"
	"github.com/fluxcd/homeless/pkg/http/client"
	"github.com/fluxcd/homeless/pkg/scheduler"
	"github.com/fluxcd/homeless/pkg/spec"
)

const (
	DefaultPort  = "4646"
	TokenHeader  = "X-Nomad-Token"
	EnvToken     = "NOMAD_TOKEN"
	EnvNomadAddr = "NOMAD_ADDR"
)

type Client struct {
	http *client.Client
}

var _ scheduler.Client = &Client{}

// New returns a client for the Nomad agent at endpoint (e.g.,
// `http://127.0.0.1:4646`). The token is sent as an ACL token when
// not empty.
func New(c *http.Client, endpoint, token string) *Client {
	return &Client{
		http: client.New(c, transport.NewNomadRouter(), endpoint, client.Token{Header: TokenHeader, Value: token}),
	}
}

func jobID(job *spec.Map) (string, error) {
	id, ok := job.GetString(spec.FieldID)
	if !ok || id == "" {
		return "", herr.ConfigurationError(errors.New("job has no ID"))
	}
	return id, nil
}

type planRequest struct {
	Job  *spec.Map
	Diff bool
}

func (c *Client) Plan(ctx context.Context, job *spec.Map) (scheduler.PlanResponse, error) {
	var res scheduler.PlanResponse
	id, err := jobID(job)
	if err != nil {
		return res, err
	}
	err = c.http.PostWithBody(ctx, &res, client.R(transport.PlanJob, "id", id), planRequest{Job: job, Diff: true})
	return res, err
}

type registerRequest struct {
	Job            *spec.Map
	EnforceIndex   bool
	JobModifyIndex scheduler.ModifyIndex
}

func (c *Client) Submit(ctx context.Context, job *spec.Map, index scheduler.ModifyIndex) (scheduler.SubmitResponse, error) {
	var res scheduler.SubmitResponse
	err := c.http.PostWithBody(ctx, &res, client.R(transport.RegisterJob), registerRequest{
		Job:            job,
		EnforceIndex:   true,
		JobModifyIndex: index,
	})
	return res, err
}

func (c *Client) Evaluation(ctx context.Context, evalID string) (scheduler.Evaluation, error) {
	var res scheduler.Evaluation
	err := c.http.Get(ctx, &res, client.R(transport.GetEvaluation, "id", evalID))
	return res, err
}

func (c *Client) Deployment(ctx context.Context, deploymentID string) (scheduler.Deployment, error) {
	var res scheduler.Deployment
	err := c.http.Get(ctx, &res, client.R(transport.GetDeployment, "id", deploymentID))
	return res, err
}

func (c *Client) LatestDeployment(ctx context.Context, jobID string) (scheduler.Deployment, error) {
	var res scheduler.Deployment
	err := c.http.Get(ctx, &res, client.R(transport.LatestDeployment, "id", jobID))
	return res, err
}

type promoteRequest struct {
	DeploymentID string
	All          bool
}

func (c *Client) Promote(ctx context.Context, deploymentID string) error {
	return c.http.PostWithBody(ctx, nil, client.R(transport.PromoteCanaries, "id", deploymentID), promoteRequest{
		DeploymentID: deploymentID,
		All:          true,
	})
}
