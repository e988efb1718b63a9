// Package proxy is the far end of package lambda: it receives
// action payloads and carries them out against the scheduler and the
// key-value store it can reach.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/Jeffail/gabs"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	herr "github.com/fluxcd/homeless/pkg/errors"
	"github.com/fluxcd/homeless/pkg/kv"
	"github.com/fluxcd/homeless/pkg/scheduler"
	"github.com/fluxcd/homeless/pkg/scheduler/lambda"
	"github.com/fluxcd/homeless/pkg/spec"
)

type Handler struct {
	Scheduler scheduler.Client
	// May be nil, in which case put_kv is refused
	KV     kv.Publisher
	Logger log.Logger
}

// BadPayloadError is returned for payloads that can't be acted on.
type BadPayloadError struct {
	Reason string
}

func (e *BadPayloadError) Error() string {
	return "bad payload: " + e.Reason
}

func badPayload(format string, args ...interface{}) error {
	return &herr.Error{
		Type: herr.Configuration,
		Help: `The proxy was sent a payload it could not act on. This usually means
the client and the proxy are different versions.
`,
		Err: &BadPayloadError{Reason: errors.Errorf(format, args...).Error()},
	}
}

// Handle carries out the action named in payload, and returns the
// result encoded as JSON.
func (h *Handler) Handle(ctx context.Context, payload []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	event, err := gabs.ParseJSONDecoder(dec)
	if err != nil {
		return nil, badPayload("%v", err)
	}

	name, ok := event.Path("action").Data().(string)
	if !ok {
		return nil, badPayload("no action given")
	}
	action, err := lambda.ParseAction(name)
	if err != nil {
		return nil, badPayload("%v", err)
	}

	logger := h.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	logger = log.With(logger, "action", action)
	result, err := h.dispatch(ctx, action, event, payload)
	if err != nil {
		logger.Log("err", err)
		return nil, err
	}
	logger.Log("result", "ok")
	return json.Marshal(result)
}

func (h *Handler) dispatch(ctx context.Context, action lambda.Action, event *gabs.Container, payload []byte) (interface{}, error) {
	switch action {
	case lambda.ActionPlan:
		job, err := jobOf(payload)
		if err != nil {
			return nil, err
		}
		return h.Scheduler.Plan(ctx, job)
	case lambda.ActionRun:
		job, err := jobOf(payload)
		if err != nil {
			return nil, err
		}
		index, err := indexOf(event)
		if err != nil {
			return nil, err
		}
		return h.Scheduler.Submit(ctx, job, index)
	case lambda.ActionGetEvaluation:
		id, err := requiredString(event, "evaluation_id")
		if err != nil {
			return nil, err
		}
		return h.Scheduler.Evaluation(ctx, id)
	case lambda.ActionGetDeployment:
		id, err := requiredString(event, "deployment_id")
		if err != nil {
			return nil, err
		}
		return h.Scheduler.Deployment(ctx, id)
	case lambda.ActionGetLastDeployment:
		id, err := requiredString(event, "job_id")
		if err != nil {
			return nil, err
		}
		return h.Scheduler.LatestDeployment(ctx, id)
	case lambda.ActionPromote:
		id, err := requiredString(event, "deployment_id")
		if err != nil {
			return nil, err
		}
		return struct{}{}, h.Scheduler.Promote(ctx, id)
	case lambda.ActionPutKV:
		if h.KV == nil {
			return nil, badPayload("no key-value store configured")
		}
		key, err := requiredString(event, "key")
		if err != nil {
			return nil, err
		}
		value, _ := event.Path("value").Data().(string)
		if err := h.KV.Put(ctx, key, value); err != nil {
			return nil, err
		}
		return lambda.PutKVResult{Result: "true"}, nil
	}
	return nil, badPayload("unhandled action %q", action)
}

// jobOf decodes the job separately from the rest of the payload, so
// that it keeps its key order.
func jobOf(payload []byte) (*spec.Map, error) {
	var p struct {
		Spec *spec.Map `json:"spec"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, badPayload("decoding spec: %v", err)
	}
	if p.Spec == nil {
		return nil, badPayload("no spec given")
	}
	return p.Spec, nil
}

func indexOf(event *gabs.Container) (scheduler.ModifyIndex, error) {
	n, ok := event.Path("index").Data().(json.Number)
	if !ok {
		return 0, badPayload("no index given")
	}
	i, err := n.Int64()
	if err != nil || i < 0 {
		return 0, badPayload("index %q is not a modify index", n)
	}
	return scheduler.ModifyIndex(i), nil
}

func requiredString(event *gabs.Container, field string) (string, error) {
	s, ok := event.Path(field).Data().(string)
	if !ok || s == "" {
		return "", badPayload("no %s given", field)
	}
	return s, nil
}
