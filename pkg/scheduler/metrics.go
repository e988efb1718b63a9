package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	hmetrics "github.com/fluxcd/homeless/pkg/metrics"
	"github.com/fluxcd/homeless/pkg/spec"
)

var (
	requestDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: hmetrics.Namespace,
		Subsystem: "scheduler",
		Name:      "request_duration_seconds",
		Help:      "Scheduler request duration in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{hmetrics.LabelMethod, hmetrics.LabelSuccess})
)

var _ Client = &instrumentedClient{}

type instrumentedClient struct {
	c Client
}

// Instrument records the duration and outcome of every call.
func Instrument(c Client) Client {
	return &instrumentedClient{c}
}

func observe(method string, err error, begin time.Time) {
	requestDuration.With(
		hmetrics.LabelMethod, method,
		hmetrics.LabelSuccess, fmt.Sprint(err == nil),
	).Observe(time.Since(begin).Seconds())
}

func (i *instrumentedClient) Plan(ctx context.Context, job *spec.Map) (_ PlanResponse, err error) {
	defer func(begin time.Time) { observe("Plan", err, begin) }(time.Now())
	return i.c.Plan(ctx, job)
}

func (i *instrumentedClient) Submit(ctx context.Context, job *spec.Map, index ModifyIndex) (_ SubmitResponse, err error) {
	defer func(begin time.Time) { observe("Submit", err, begin) }(time.Now())
	return i.c.Submit(ctx, job, index)
}

func (i *instrumentedClient) Evaluation(ctx context.Context, evalID string) (_ Evaluation, err error) {
	defer func(begin time.Time) { observe("Evaluation", err, begin) }(time.Now())
	return i.c.Evaluation(ctx, evalID)
}

func (i *instrumentedClient) Deployment(ctx context.Context, deploymentID string) (_ Deployment, err error) {
	defer func(begin time.Time) { observe("Deployment", err, begin) }(time.Now())
	return i.c.Deployment(ctx, deploymentID)
}

func (i *instrumentedClient) LatestDeployment(ctx context.Context, jobID string) (_ Deployment, err error) {
	defer func(begin time.Time) { observe("LatestDeployment", err, begin) }(time.Now())
	return i.c.LatestDeployment(ctx, jobID)
}

func (i *instrumentedClient) Promote(ctx context.Context, deploymentID string) (err error) {
	defer func(begin time.Time) { observe("Promote", err, begin) }(time.Now())
	return i.c.Promote(ctx, deploymentID)
}
