package expr

import (
	"fmt"

	"github.com/tidegate/authcore/internal/types"
)

/*
 * Recursive tree-walking evaluator.
 *
 * Dispatch by node kind:
 *   - Literal: value verbatim
 *   - FieldAccess: path resolution with null propagation (fieldpath.go)
 *   - Operation: eager left-to-right argument evaluation, then registry call
 *   - Condition: both sides evaluated, comparator shared with Operation
 *   - Permission: context-aware check with static string arguments
 *
 * A per-evaluator depth counter increments on entry and decrements on exit;
 * exceeding the ceiling returns ErrRecursionExceeded. On any error the
 * counter is forcibly reset to zero so one failure cannot corrupt later
 * calls on the same instance.
 *
 * Not safe for concurrent use: the depth counter is shared mutable state.
 * Use one Evaluator per evaluation call, or per worker.
 */

// visitFunc observes Operation/Condition/Permission node visits. The sandbox
// installs it for budget accounting; a non-nil error aborts evaluation.
type visitFunc func(e Expr) error

// Evaluator walks expression trees against a context. Zero-value maxDepth
// means the types.DefaultMaxDepth ceiling.
type Evaluator struct {
	registry *Registry
	maxDepth int
	depth    int
	visit    visitFunc
}

// NewEvaluator creates an evaluator over the given registry.
// maxDepth <= 0 selects types.DefaultMaxDepth.
func NewEvaluator(registry *Registry, maxDepth int) *Evaluator {
	if maxDepth <= 0 {
		maxDepth = types.DefaultMaxDepth
	}
	return &Evaluator{
		registry: registry,
		maxDepth: maxDepth,
	}
}

// Evaluate computes the value of e against c.
// The context is used as-is; callers wanting isolation and budgets use
// Sandbox.Evaluate, which wraps this.
func (ev *Evaluator) Evaluate(e Expr, c *Context) (any, error) {
	if c == nil {
		c = &Context{}
	}
	v, err := ev.eval(e, c)
	if err != nil {
		// Reset so one failed evaluation cannot skew depth accounting
		// for subsequent calls on this instance.
		ev.depth = 0
		return nil, err
	}
	return v, nil
}

func (ev *Evaluator) eval(e Expr, c *Context) (any, error) {
	ev.depth++
	defer func() { ev.depth-- }()
	if ev.depth > ev.maxDepth {
		return nil, types.ErrRecursionExceeded
	}

	switch n := e.(type) {
	case *Literal:
		return n.Value, nil

	case *FieldAccess:
		return resolvePath(n.Path, c)

	case *Operation:
		if err := ev.observe(e); err != nil {
			return nil, err
		}
		args, err := ev.evalArgs(n.Args, c)
		if err != nil {
			return nil, err
		}
		if fn, ok := ev.registry.ctxOp(n.Name); ok {
			return fn(c, args)
		}
		fn, ok := ev.registry.op(n.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", types.ErrUnknownOperation, n.Name)
		}
		return fn(args)

	case *Condition:
		if err := ev.observe(e); err != nil {
			return nil, err
		}
		fn, ok := ev.registry.op(n.Op)
		if !ok {
			return nil, fmt.Errorf("%w: %s", types.ErrUnknownComparator, n.Op)
		}
		left, err := ev.evalSide(n.Left, c)
		if err != nil {
			return nil, err
		}
		right, err := ev.evalSide(n.Right, c)
		if err != nil {
			return nil, err
		}
		return fn([]any{left, right})

	case *Permission:
		if err := ev.observe(e); err != nil {
			return nil, err
		}
		fn, ok := ev.registry.ctxOp(n.Check)
		if !ok {
			return nil, fmt.Errorf("%w: %s", types.ErrUnknownPermission, n.Check)
		}
		args := make([]any, len(n.Args))
		for i, a := range n.Args {
			args[i] = a
		}
		return fn(c, args)

	case nil:
		return nil, types.ErrMalformedExpression

	default:
		return nil, fmt.Errorf("%w: %T", types.ErrMalformedExpression, e)
	}
}

// evalArgs evaluates operation arguments eagerly, left to right.
func (ev *Evaluator) evalArgs(args []Expr, c *Context) ([]any, error) {
	out := make([]any, len(args))
	for i, arg := range args {
		v, err := ev.eval(arg, c)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// evalSide evaluates one side of a condition; a nil side (unary comparators
// such as exists) evaluates to nil.
func (ev *Evaluator) evalSide(e Expr, c *Context) (any, error) {
	if e == nil {
		return nil, nil
	}
	return ev.eval(e, c)
}

func (ev *Evaluator) observe(e Expr) error {
	if ev.visit == nil {
		return nil
	}
	return ev.visit(e)
}
