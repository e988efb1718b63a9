package deploy

import (
	"github.com/go-kit/kit/metrics/prometheus"
	"github.com/pkg/errors"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	herr "github.com/fluxcd/homeless/pkg/errors"
	"github.com/fluxcd/homeless/pkg/metrics"
	"github.com/fluxcd/homeless/pkg/scheduler"
)

// Values of the outcome label.
const (
	outcomePlanned    = "planned"
	outcomeSubmitted  = "submitted"
	outcomeSuccessful = "successful"
	outcomeReady      = "ready"
	outcomeFailed     = "failed"
)

var (
	deploysTotal = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "deploy",
		Name:      "total",
		Help:      "Count of deployments, by how they ended.",
	}, []string{metrics.LabelJob, metrics.LabelEnvironment, metrics.LabelOutcome})
	failuresTotal = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: "deploy",
		Name:      "failures_total",
		Help:      "Count of failed deployments, by the stage that gave up.",
	}, []string{metrics.LabelJob, metrics.LabelStage})
)

func observeDeploy(req Request, res Result, err error) {
	outcome := outcomeSubmitted
	switch {
	case err != nil:
		outcome = outcomeFailed
		failuresTotal.With(metrics.LabelJob, req.Job, metrics.LabelStage, stageOf(err)).Add(1)
	case res.Planned:
		outcome = outcomePlanned
	case res.Ready:
		outcome = outcomeReady
	case res.Outcome != "":
		outcome = outcomeSuccessful
	}
	deploysTotal.With(metrics.LabelJob, req.Job, metrics.LabelEnvironment, req.Environment, metrics.LabelOutcome, outcome).Add(1)
}

// stageOf names the part of a deployment an error came from, using the
// same categories as the errors shown to the operator.
func stageOf(err error) string {
	var placement *scheduler.PlacementFailureError
	if errors.As(err, &placement) {
		return string(herr.Placement)
	}
	var e *herr.Error
	if errors.As(err, &e) {
		return string(e.Type)
	}
	return string(herr.Server)
}
