package lambda

import (
	"github.com/pkg/errors"

	"github.com/fluxcd/homeless/pkg/scheduler"
	"github.com/fluxcd/homeless/pkg/spec"
)

// Action names an operation on the wire. The set is closed; a
// function receiving anything else must refuse it.
type Action string

const (
	ActionPlan              Action = "plan"
	ActionRun               Action = "run"
	ActionGetEvaluation     Action = "get_eval"
	ActionGetDeployment     Action = "get_deployment"
	ActionGetLastDeployment Action = "get_last_deployment"
	ActionPromote           Action = "promote"
	ActionPutKV             Action = "put_kv"
)

var actions = []Action{
	ActionPlan,
	ActionRun,
	ActionGetEvaluation,
	ActionGetDeployment,
	ActionGetLastDeployment,
	ActionPromote,
	ActionPutKV,
}

func ParseAction(s string) (Action, error) {
	for _, a := range actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", errors.Errorf("unknown action %q", s)
}

// Payload is what's sent to the function. Only the fields relevant to
// the action are set. Index is a pointer since 0, the index of a job
// that was never registered, must still be sent.
type Payload struct {
	Action       Action                 `json:"action"`
	Spec         *spec.Map              `json:"spec,omitempty"`
	Index        *scheduler.ModifyIndex `json:"index,omitempty"`
	EvaluationID string                 `json:"evaluation_id,omitempty"`
	DeploymentID string                 `json:"deployment_id,omitempty"`
	JobID        string                 `json:"job_id,omitempty"`
	Key          string                 `json:"key,omitempty"`
	Value        string                 `json:"value,omitempty"`
}

// PutKVResult is the answer to ActionPutKV: the key-value store's
// response, as text.
type PutKVResult struct {
	Result string `json:"result"`
}
