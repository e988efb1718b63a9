// Package lambda relays scheduler operations through a function that
// can reach the scheduler, e.g., an AWS Lambda function running inside
// the cluster's network. The other end is package proxy.
package lambda

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	awslambda "github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"
	"github.com/pkg/errors"

	transport "github.com/fluxcd/homeless/pkg/http"
	"github.com/fluxcd/homeless/pkg/http/client"
	"github.com/fluxcd/homeless/pkg/kv"
	"github.com/fluxcd/homeless/pkg/scheduler"
	"github.com/fluxcd/homeless/pkg/spec"
)

// Invoker sends a payload to the function and returns its answer.
type Invoker interface {
	Invoke(ctx context.Context, payload []byte) ([]byte, error)
}

type InvokerFunc func(ctx context.Context, payload []byte) ([]byte, error)

func (f InvokerFunc) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	return f(ctx, payload)
}

// Function invokes an AWS Lambda function synchronously.
type Function struct {
	API  lambdaiface.LambdaAPI
	Name string
}

func (f Function) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	out, err := f.API.InvokeWithContext(ctx, &awslambda.InvokeInput{
		FunctionName:   aws.String(f.Name),
		InvocationType: aws.String(awslambda.InvocationTypeRequestResponse),
		Payload:        payload,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "invoking function %s", f.Name)
	}
	status := int(aws.Int64Value(out.StatusCode))
	if status != http.StatusOK || out.FunctionError != nil {
		return nil, &scheduler.CallError{
			Method:     "Invoke",
			Target:     f.Name,
			StatusCode: status,
			Body:       strings.TrimSpace(aws.StringValue(out.FunctionError) + " " + string(out.Payload)),
		}
	}
	return out.Payload, nil
}

// NewHTTPInvoker invokes a proxy served over HTTP at endpoint.
func NewHTTPInvoker(c *http.Client, endpoint string) Invoker {
	hc := client.New(c, transport.NewProxyRouter(), endpoint, client.Token{})
	return InvokerFunc(func(ctx context.Context, payload []byte) ([]byte, error) {
		return hc.PostRaw(ctx, client.R(transport.Invoke), payload)
	})
}

type Client struct {
	invoker Invoker
}

var (
	_ scheduler.Client = &Client{}
	_ kv.Publisher     = &Client{}
)

func New(invoker Invoker) *Client {
	return &Client{invoker: invoker}
}

func (c *Client) call(ctx context.Context, p Payload, dest interface{}) error {
	body, err := json.Marshal(p)
	if err != nil {
		return errors.Wrapf(err, "encoding %s payload", p.Action)
	}
	out, err := c.invoker.Invoke(ctx, body)
	if err != nil {
		return err
	}
	if dest == nil || len(out) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(out, dest), "decoding %s result", p.Action)
}

func (c *Client) Plan(ctx context.Context, job *spec.Map) (scheduler.PlanResponse, error) {
	var res scheduler.PlanResponse
	err := c.call(ctx, Payload{Action: ActionPlan, Spec: job}, &res)
	return res, err
}

func (c *Client) Submit(ctx context.Context, job *spec.Map, index scheduler.ModifyIndex) (scheduler.SubmitResponse, error) {
	var res scheduler.SubmitResponse
	err := c.call(ctx, Payload{Action: ActionRun, Spec: job, Index: &index}, &res)
	return res, err
}

func (c *Client) Evaluation(ctx context.Context, evalID string) (scheduler.Evaluation, error) {
	var res scheduler.Evaluation
	err := c.call(ctx, Payload{Action: ActionGetEvaluation, EvaluationID: evalID}, &res)
	return res, err
}

func (c *Client) Deployment(ctx context.Context, deploymentID string) (scheduler.Deployment, error) {
	var res scheduler.Deployment
	err := c.call(ctx, Payload{Action: ActionGetDeployment, DeploymentID: deploymentID}, &res)
	return res, err
}

func (c *Client) LatestDeployment(ctx context.Context, jobID string) (scheduler.Deployment, error) {
	var res scheduler.Deployment
	err := c.call(ctx, Payload{Action: ActionGetLastDeployment, JobID: jobID}, &res)
	return res, err
}

func (c *Client) Promote(ctx context.Context, deploymentID string) error {
	return c.call(ctx, Payload{Action: ActionPromote, DeploymentID: deploymentID}, nil)
}

// Put writes to the key-value store next to the scheduler.
func (c *Client) Put(ctx context.Context, key, value string) error {
	var res PutKVResult
	if err := c.call(ctx, Payload{Action: ActionPutKV, Key: key, Value: value}, &res); err != nil {
		return err
	}
	if strings.TrimSpace(res.Result) == "false" {
		return errors.Errorf("key-value store refused to write key %q", key)
	}
	return nil
}
