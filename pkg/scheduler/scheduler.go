// Package scheduler describes the operations a deployment needs from
// the cluster scheduler, independently of how they reach it.
package scheduler

import (
	"context"
	"encoding/json"

	"github.com/fluxcd/homeless/pkg/spec"
)

// ModifyIndex is the scheduler's optimistic concurrency token: a job
// submitted with an index is only accepted if the job hasn't been
// modified since that index.
type ModifyIndex uint64

// Client is implemented by each transport. There is one method per
// operation; a transport that needs to name operations on the wire
// does so with its own closed set of values.
type Client interface {
	// Plan does a dry run of scheduling the job.
	Plan(ctx context.Context, job *spec.Map) (PlanResponse, error)
	// Submit registers the job, enforcing the given modify index.
	Submit(ctx context.Context, job *spec.Map, index ModifyIndex) (SubmitResponse, error)
	Evaluation(ctx context.Context, evalID string) (Evaluation, error)
	Deployment(ctx context.Context, deploymentID string) (Deployment, error)
	LatestDeployment(ctx context.Context, jobID string) (Deployment, error)
	// Promote promotes the canaries of all task groups.
	Promote(ctx context.Context, deploymentID string) error
}

type PlanResponse struct {
	Diff           JobDiff
	FailedTGAllocs map[string]json.RawMessage
	JobModifyIndex ModifyIndex
}

type JobDiff struct {
	ID         string
	Type       string
	TaskGroups []TaskGroupDiff
}

type TaskGroupDiff struct {
	Name    string
	Type    string
	Updates map[string]uint64
	Tasks   []TaskDiff
}

type TaskDiff struct {
	Name        string
	Type        string
	Annotations []string
	Fields      []FieldDiff
}

type FieldDiff struct {
	Name        string
	Type        string
	Old         string
	New         string
	Annotations []string
}

type SubmitResponse struct {
	EvalID         string
	JobModifyIndex ModifyIndex
	Warnings       string `json:",omitempty"`
}

type Evaluation struct {
	ID           string
	Status       string
	DeploymentID string
}

// Deployment status values.
const (
	StatusPending    = "pending"
	StatusRunning    = "running"
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

type Deployment struct {
	ID                string
	JobID             string
	Status            string
	StatusDescription string
	TaskGroups        map[string]DeploymentState
}

// DeploymentState holds the allocation counters of one task group in
// a deployment.
type DeploymentState struct {
	Promoted        bool
	DesiredTotal    int
	DesiredCanaries int
	// IDs of the canary allocations placed so far
	PlacedCanaries  []string
	PlacedAllocs    int
	HealthyAllocs   int
	UnhealthyAllocs int
}
