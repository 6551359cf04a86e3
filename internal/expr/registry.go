package expr

import (
	"fmt"

	"github.com/tidegate/authcore/internal/types"
)

/*
 * Operation registry.
 *
 * Immutable map from operation name to pure function over evaluated
 * arguments. Context-aware permission checks live in a parallel map and
 * additionally receive the (isolated) evaluation context.
 *
 * Comparator names (eq, ne, ...) are plain operations; Condition dispatch
 * looks them up in the same map, so every comparison has exactly one
 * implementation.
 *
 * Merge semantics: custom operations produce a merged copy of the default
 * registry rather than mutating it, so tenants sharing a process never leak
 * operations into each other. A custom name colliding with a builtin is an
 * error, never a silent replacement.
 */

// OpFunc is a pure function over already-evaluated arguments.
type OpFunc func(args []any) (any, error)

// CtxOpFunc is a permission-flavored operation that additionally receives
// the evaluation context. Implementations must treat it as read-only.
type CtxOpFunc func(c *Context, args []any) (any, error)

// Registry maps operation names to implementations. Immutable after
// construction; safe for concurrent use.
type Registry struct {
	ops    map[string]OpFunc
	ctxOps map[string]CtxOpFunc
}

// Default returns the builtin registry: math, string, date, logic,
// comparison, array, and permission operations.
func Default() *Registry {
	return &Registry{
		ops:    builtinOps(),
		ctxOps: builtinCtxOps(),
	}
}

// Merge returns a new registry combining the receiver with custom
// operations. Returns ErrOperationCollision when a custom name shadows an
// existing operation.
func (r *Registry) Merge(custom map[string]OpFunc) (*Registry, error) {
	merged := &Registry{
		ops:    make(map[string]OpFunc, len(r.ops)+len(custom)),
		ctxOps: make(map[string]CtxOpFunc, len(r.ctxOps)),
	}
	for name, fn := range r.ops {
		merged.ops[name] = fn
	}
	for name, fn := range r.ctxOps {
		merged.ctxOps[name] = fn
	}
	for name, fn := range custom {
		if _, exists := merged.ops[name]; exists {
			return nil, fmt.Errorf("%w: %s", types.ErrOperationCollision, name)
		}
		if _, exists := merged.ctxOps[name]; exists {
			return nil, fmt.Errorf("%w: %s", types.ErrOperationCollision, name)
		}
		merged.ops[name] = fn
	}
	return merged, nil
}

// Has reports whether name resolves to any operation, plain or
// context-aware.
func (r *Registry) Has(name string) bool {
	if _, ok := r.ops[name]; ok {
		return true
	}
	_, ok := r.ctxOps[name]
	return ok
}

func (r *Registry) op(name string) (OpFunc, bool) {
	fn, ok := r.ops[name]
	return fn, ok
}

func (r *Registry) ctxOp(name string) (CtxOpFunc, bool) {
	fn, ok := r.ctxOps[name]
	return fn, ok
}

// Truthy implements the engine's truthiness rule: false, nil, zero numbers,
// empty strings, and empty containers are falsey; everything else is truthy.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
