package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

/*
Labels and so on for metrics used in homeless.
*/

const (
	Namespace = "homeless"

	LabelMethod  = "method"
	LabelSuccess = "success"

	// Labels for deployment metrics
	LabelJob         = "job"
	LabelEnvironment = "environment"
	LabelOutcome     = "outcome"
	LabelStage       = "stage"
)

// Push sends everything in the default registry to a Prometheus
// pushgateway. A CI step doesn't live long enough to be scraped.
func Push(url, job string, groupings map[string]string) error {
	pusher := push.New(url, job).Gatherer(prometheus.DefaultGatherer)
	for k, v := range groupings {
		pusher = pusher.Grouping(k, v)
	}
	return errors.Wrapf(pusher.Push(), "pushing metrics to %s", url)
}
