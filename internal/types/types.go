// Package types provides domain models shared across authcore components.
//
// Zero-dependency design: types.go and errors.go use only the standard
// library so the expression and policy packages stay light. ID utilities in
// ids.go import uuid but are isolated for selective inclusion.
package types

// Record is a candidate record under authorization: an already-decoded JSON
// object. The engine never parses wire formats itself; callers hand in the
// decoded map and get a filtered copy back.
type Record = map[string]any

// Action names the operation a policy governs.
type Action string

// Supported policy actions.
const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// IsValid reports whether the action is one of the four supported values.
func (a Action) IsValid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// Resource limits enforced by the sandbox to prevent DoS and keep one
// evaluation cheap. These are defaults; Budget overrides them per engine.
const (
	// DefaultMaxDepth bounds expression tree recursion.
	// 32 levels handles any realistic policy; runaway nesting aborts early.
	DefaultMaxDepth = 32

	// DefaultMaxOperations bounds visited nodes per evaluation.
	// 1000 nodes is two orders of magnitude above typical allow expressions.
	DefaultMaxOperations = 1000

	// DefaultTimeoutMillis bounds wall-clock time per evaluation.
	// Checked retroactively at each node visit, not preemptively.
	DefaultTimeoutMillis = 100

	// MaxPathSegments bounds dot-path length during field resolution.
	// 16 levels handles deeply nested records without stack pressure.
	MaxPathSegments = 16
)
