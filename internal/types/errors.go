package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for expression evaluation and policy resolution.
var (
	// ErrRecursionExceeded indicates the evaluator depth counter passed its ceiling.
	ErrRecursionExceeded = errors.New("expression recursion depth exceeded")

	// ErrUnknownOperation indicates an Operation node named an unregistered function.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrUnknownComparator indicates a Condition node named an unregistered comparator.
	ErrUnknownComparator = errors.New("unknown comparator")

	// ErrUnknownPermission indicates a Permission node named an unregistered check.
	ErrUnknownPermission = errors.New("unknown permission check")

	// ErrWildcardOnNonArray indicates a wildcard path segment reached a non-array value.
	ErrWildcardOnNonArray = errors.New("wildcard segment on non-array value")

	// ErrMalformedExpression indicates a nil or structurally invalid expression node.
	ErrMalformedExpression = errors.New("malformed expression node")

	// ErrPathTooDeep indicates a field path exceeds MaxPathSegments.
	ErrPathTooDeep = errors.New("field path exceeds maximum depth")

	// ErrEmptyPath indicates a FieldAccess node with no path segments.
	ErrEmptyPath = errors.New("field path is empty")

	// ErrPolicyNotFound indicates no policy is registered for (resource, action).
	// Callers on the access-check path must treat this as denied.
	ErrPolicyNotFound = errors.New("no policy registered for resource/action")

	// ErrOperationCollision indicates a custom operation name already exists
	// in the builtin registry. Custom operations merge over, never silently
	// replace, builtins.
	ErrOperationCollision = errors.New("operation name collides with builtin")
)

// SecurityError is terminal: a field path referenced a denylisted segment
// that could reach interpreter or host internals. It must propagate, never
// be defaulted, since swallowing it turns a detected attack into a silent
// authorization bypass.
type SecurityError struct {
	Path    string // full dot path that failed validation
	Segment string // offending segment
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("security violation: path %q contains forbidden segment %q", e.Path, e.Segment)
}

// Budget dimensions reported by BudgetError.
const (
	BudgetDepth      = "depth"
	BudgetOperations = "operations"
	BudgetTimeout    = "timeout"
)

// BudgetError is terminal: an evaluation exceeded its depth, operation, or
// time budget. No partial result accompanies it.
type BudgetError struct {
	Dimension string // one of BudgetDepth, BudgetOperations, BudgetTimeout
	Limit     int64  // configured ceiling (millis for timeout)
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("evaluation budget exceeded: %s limit %d", e.Dimension, e.Limit)
}

// IsTerminal reports whether err is a SecurityError or BudgetError, the two
// classes that must propagate unchanged through every layer.
func IsTerminal(err error) bool {
	var se *SecurityError
	var be *BudgetError
	return errors.As(err, &se) || errors.As(err, &be)
}
