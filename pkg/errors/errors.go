package errors

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Representation of errors surfaced to the operator. These are
// divided into a small number of categories, essentially
// distinguished by which stage of a deployment gave up; i.e., is this
// error:
//  - a problem with the input, which will not go away until the
//    pipeline configuration is fixed?
//  - a problem combining the overrides with the base job?
//  - the scheduler refusing, or failing to place, the job?
//  - the rollout itself failing?
type Error struct {
	Type Type
	// a message that can be printed out for the user
	Help string `json:"help"`
	// the underlying error that can be e.g., logged for developers to look at
	Err error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

// Cause lets github.com/pkg/errors find the underlying error.
func (e *Error) Cause() error {
	return e.Err
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Type string

const (
	// Required input is absent or malformed; nothing remote was touched
	Configuration Type = "configuration"
	// The overrides could not be combined with the base job
	Merge Type = "merge"
	// The scheduler answered a call with a non-success status
	Scheduler Type = "scheduler"
	// The plan could not place one or more task groups
	Placement Type = "placement"
	// The deployment being watched failed or was cancelled
	Deployment Type = "deployment"
	// The deployment status could not be read
	Status Type = "status"
	// Something went wrong that we don't have a category for
	Server Type = "server"
)

// Is reports whether err, or an error it wraps, is an *Error of the
// given type.
func Is(err error, t Type) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == t
	}
	return false
}

func IsConfiguration(err error) bool {
	return Is(err, Configuration)
}

// ConfigurationError marks err as the result of missing or malformed
// input.
func ConfigurationError(err error) *Error {
	return &Error{
		Type: Configuration,
		Help: `Invalid configuration

    ` + err.Error() + `

Check the plugin settings in your pipeline (or the flags given on the
command line), and the job templates available to this step.
`,
		Err: err,
	}
}

func (e *Error) MarshalJSON() ([]byte, error) {
	var errMsg string
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	jsonable := &struct {
		Type string `json:"type"`
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{
		Type: string(e.Type),
		Help: e.Help,
		Err:  errMsg,
	}
	return json.Marshal(jsonable)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	jsonable := &struct {
		Type string `json:"type"`
		Help string `json:"help"`
		Err  string `json:"error,omitempty"`
	}{}
	if err := json.Unmarshal(data, &jsonable); err != nil {
		return err
	}
	e.Type = Type(jsonable.Type)
	e.Help = jsonable.Help
	if jsonable.Err != "" {
		e.Err = errors.New(jsonable.Err)
	}
	return nil
}

func CoverAllError(err error) *Error {
	return &Error{
		Type: Server,
		Err:  err,
		Help: `Error: ` + err.Error() + `

We don't have a specific help message for the error above.

It would help us remedy this if you log an issue at

    https://github.com/fluxcd/homeless/issues

saying what you were doing when you saw this, and quoting the message
at the top.
`,
	}
}
