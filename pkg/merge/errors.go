package merge

import (
	"fmt"
)

// ConflictError is returned when a list in the overrides meets
// something other than a list (or nothing) in the base.
type ConflictError struct {
	Key  string
	Base interface{}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting values at %q, list type can override only empty values or lists (found %T)", e.Key, e.Base)
}

// UnsupportedTypeError is returned for override values that are
// neither scalars, mappings nor lists.
type UnsupportedTypeError struct {
	Key   string
	Value interface{}
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("overrides must only contain scalar or mapping values; unsupported type %T at %q", e.Value, e.Key)
}

// ConditionError is returned for a conditional override that can't
// be understood.
type ConditionError struct {
	Expression string
	Reason     string
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("condition %q: %s", e.Expression, e.Reason)
}
