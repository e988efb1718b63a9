package merge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fluxcd/homeless/pkg/spec"
)

const conditionPrefix = "@cond"

type Operator string

const (
	Equal    Operator = "="
	NotEqual Operator = "!="
)

// Condition is a predicate of the form `<field> <op> <value>`, as
// written in an override key `@cond(field op value)`.
type Condition struct {
	Field string
	Op    Operator
	Value string
}

// IsCondition says whether an override key introduces a conditional
// override.
func IsCondition(key string) bool {
	return strings.HasPrefix(key, conditionPrefix)
}

// ParseCondition parses an override key such as `@cond(Type = service)`.
// The three parts must be separated by single spaces.
func ParseCondition(key string) (Condition, error) {
	expr := strings.TrimPrefix(key, conditionPrefix+"(")
	expr = strings.TrimRight(expr, ")")
	parts := strings.Split(expr, " ")
	if len(parts) != 3 {
		return Condition{}, &ConditionError{Expression: key, Reason: "invalid syntax"}
	}
	op := Operator(parts[1])
	switch op {
	case Equal, NotEqual:
	default:
		return Condition{}, &ConditionError{Expression: key, Reason: fmt.Sprintf("operation %q is not recognized", parts[1])}
	}
	return Condition{Field: parts[0], Op: op, Value: parts[2]}, nil
}

// Match evaluates the condition against the top level of doc. A
// field that is not present never matches, whatever the operator.
func (c Condition) Match(doc *spec.Map) bool {
	v, ok := doc.Get(c.Field)
	if !ok {
		return false
	}
	present, scalar := scalarString(v)
	switch c.Op {
	case Equal:
		return scalar && present == c.Value
	case NotEqual:
		return !scalar || present != c.Value
	}
	return false
}

func (c Condition) String() string {
	return fmt.Sprintf("%s(%s %s %s)", conditionPrefix, c.Field, c.Op, c.Value)
}

// scalarString gives the textual form of a scalar, to compare with
// the (always textual) value in a condition.
func scalarString(v interface{}) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case int:
		return strconv.Itoa(v), true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	case spec.Decimal:
		return string(v), true
	case nil:
		return "null", true
	}
	return "", false
}
