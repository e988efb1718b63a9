package mock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcd/homeless/pkg/scheduler"
	"github.com/fluxcd/homeless/pkg/spec"
)

// -- Battery of tests for a scheduler.Client implementation. Since
// these essentially wrap the client in various transports, we expect
// arguments and answers to be preserved.

func ClientTestBattery(t *testing.T, wrap func(mock scheduler.Client) scheduler.Client) {
	job := spec.MapOf(
		spec.FieldID, "helloworld",
		spec.FieldName, "helloworld",
		spec.FieldDatacenters, []interface{}{"dc1"},
	)

	planAnswer := scheduler.PlanResponse{
		Diff: scheduler.JobDiff{
			ID:   "helloworld",
			Type: "Edited",
			TaskGroups: []scheduler.TaskGroupDiff{
				{
					Name:    "api",
					Type:    "Edited",
					Updates: map[string]uint64{"canary": 1, "ignore": 2},
					Tasks: []scheduler.TaskDiff{
						{
							Name:        "server",
							Type:        "Edited",
							Annotations: []string{"forces create/destroy update"},
							Fields: []scheduler.FieldDiff{
								{Name: "image", Type: "Edited", Old: "app:1", New: "app:2", Annotations: []string{}},
							},
						},
					},
				},
			},
		},
		FailedTGAllocs: map[string]json.RawMessage{
			"api": json.RawMessage(`{"NodesEvaluated":3}`),
		},
		JobModifyIndex: 42,
	}
	submitAnswer := scheduler.SubmitResponse{
		EvalID:         "eval-1",
		JobModifyIndex: 43,
	}
	evalAnswer := scheduler.Evaluation{
		ID:           "eval-1",
		Status:       "complete",
		DeploymentID: "deploy-1",
	}
	deploymentAnswer := scheduler.Deployment{
		ID:     "deploy-1",
		JobID:  "helloworld",
		Status: scheduler.StatusRunning,
		TaskGroups: map[string]scheduler.DeploymentState{
			"api": {
				DesiredTotal:    3,
				DesiredCanaries: 1,
				PlacedCanaries:  []string{"alloc-1"},
				PlacedAllocs:    2,
				HealthyAllocs:   3,
			},
		},
	}

	checkJob := func(j *spec.Map) error {
		if id, _ := j.GetString(spec.FieldID); id != "helloworld" {
			return fmt.Errorf("expected job helloworld, got %q", id)
		}
		return nil
	}

	wantIndex := scheduler.ModifyIndex(42)
	mock := &Client{
		PlanArgTest: checkJob,
		PlanAnswer:  planAnswer,
		SubmitArgTest: func(j *spec.Map, index scheduler.ModifyIndex) error {
			if index != wantIndex {
				return fmt.Errorf("expected index %d, got %d", wantIndex, index)
			}
			return checkJob(j)
		},
		SubmitAnswer:           submitAnswer,
		EvaluationAnswer:       evalAnswer,
		DeploymentAnswer:       deploymentAnswer,
		LatestDeploymentAnswer: deploymentAnswer,
	}

	ctx := context.Background()

	// OK, here we go
	client := wrap(mock)

	plan, err := client.Plan(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, planAnswer, plan)
	mock.PlanError = errors.New("plan failure")
	_, err = client.Plan(ctx, job)
	assert.Error(t, err, "expected error from Plan")

	submitted, err := client.Submit(ctx, job, 42)
	require.NoError(t, err)
	assert.Equal(t, submitAnswer, submitted)
	_, err = client.Submit(ctx, job, 41)
	assert.Error(t, err, "expected Submit to see the index it was given")
	// A job that was never registered is planned at index 0.
	wantIndex = 0
	_, err = client.Submit(ctx, job, 0)
	assert.NoError(t, err, "expected Submit to pass on a zero index")
	wantIndex = 42
	mock.SubmitError = errors.New("submit failure")
	_, err = client.Submit(ctx, job, 42)
	assert.Error(t, err, "expected error from Submit")

	eval, err := client.Evaluation(ctx, "eval-1")
	require.NoError(t, err)
	assert.Equal(t, evalAnswer, eval)
	mock.EvaluationError = errors.New("evaluation failure")
	_, err = client.Evaluation(ctx, "eval-1")
	assert.Error(t, err, "expected error from Evaluation")

	d, err := client.Deployment(ctx, "deploy-1")
	require.NoError(t, err)
	assert.Equal(t, deploymentAnswer, d)
	mock.DeploymentError = errors.New("deployment failure")
	_, err = client.Deployment(ctx, "deploy-1")
	assert.Error(t, err, "expected error from Deployment")

	d, err = client.LatestDeployment(ctx, "helloworld")
	require.NoError(t, err)
	assert.Equal(t, deploymentAnswer, d)
	mock.LatestDeploymentError = errors.New("latest deployment failure")
	_, err = client.LatestDeployment(ctx, "helloworld")
	assert.Error(t, err, "expected error from LatestDeployment")

	require.NoError(t, client.Promote(ctx, "deploy-1"))
	assert.Equal(t, []string{"deploy-1"}, mock.Promoted)
	mock.PromoteError = errors.New("promote failure")
	assert.Error(t, client.Promote(ctx, "deploy-1"), "expected error from Promote")
}
