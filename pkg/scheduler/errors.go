package scheduler

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// CallError is returned when the scheduler (or whatever is relaying
// calls to it) answers with a non-success status.
type CallError struct {
	Method     string
	Target     string
	StatusCode int
	Body       string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("API call %s to %s failed with status %d: %s", e.Method, e.Target, e.StatusCode, strings.TrimSpace(e.Body))
}

// PlacementFailureError is returned when a plan reports task groups
// that could not be placed. Failures holds the scheduler's account
// of each, keyed by task group.
type PlacementFailureError struct {
	Job      string
	Failures map[string]json.RawMessage
}

func (e *PlacementFailureError) Groups() []string {
	var groups []string
	for g := range e.Failures {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

func (e *PlacementFailureError) Error() string {
	return fmt.Sprintf("job %q: failed to place allocations for task group(s) %s", e.Job, strings.Join(e.Groups(), ", "))
}

// Indented renders the failures as indented JSON.
func (e *PlacementFailureError) Indented() string {
	bs, err := json.MarshalIndent(e.Failures, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", e.Failures)
	}
	return string(bs)
}
