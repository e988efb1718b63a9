package main

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/fluxcd/homeless/pkg/canary"
	herr "github.com/fluxcd/homeless/pkg/errors"
	"github.com/fluxcd/homeless/pkg/scheduler"
)

type usageError struct {
	error
}

func newUsageError(msg string) usageError {
	return usageError{error: errors.New(msg)}
}

var errorWantedNoArgs = newUsageError("expected no (non-flag) arguments")

// humane puts err in one of the categories shown to the operator,
// with help on what to do about it.
func humane(err error) *herr.Error {
	var (
		e         *herr.Error
		placement *scheduler.PlacementFailureError
		call      *scheduler.CallError
		failed    *canary.DeploymentFailedError
	)
	switch {
	case pkgerrors.As(err, &placement):
		return &herr.Error{
			Type: herr.Placement,
			Help: fmt.Sprintf(`The scheduler could not place the job

The plan for job %q failed to place allocations for these task groups:

%s

Nothing was submitted. Check the resources and constraints asked for,
and the capacity of the cluster.
`, placement.Job, placement.Indented()),
			Err: err,
		}
	case pkgerrors.As(err, &e):
		return e
	case pkgerrors.As(err, &call):
		return &herr.Error{
			Type: herr.Scheduler,
			Help: fmt.Sprintf(`The scheduler refused a request

    %s

If the status is 409, the job was changed since it was planned; run
the deployment again.
`, call),
			Err: err,
		}
	case pkgerrors.As(err, &failed):
		return &herr.Error{
			Type: herr.Deployment,
			Help: fmt.Sprintf(`Deployment %s did not succeed

    %s
`, failed.ID, err),
			Err:  err,
		}
	case pkgerrors.Cause(err) == context.DeadlineExceeded:
		return &herr.Error{
			Type: herr.Deployment,
			Help: fmt.Sprintf(`Gave up waiting for the deployment

    %s

The deployment may still be in progress. Look at it in the scheduler,
or run with a longer --timeout.
`, err),
			Err: err,
		}
	}
	return herr.CoverAllError(err)
}
