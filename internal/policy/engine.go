package policy

import (
	"sync/atomic"

	"github.com/tidegate/authcore/internal/expr"
	"github.com/tidegate/authcore/internal/types"
)

/*
 * Access-check engine.
 *
 * checkAccess flow: exact-match policy lookup (missing policy is denied, a
 * hard invariant), sandboxed evaluation of the allow-expression, boolean
 * coercion via the engine truthiness rule.
 *
 * Fail-closed uniformity: missing policy and plain evaluation errors both
 * collapse into the same canonical denied result - there is no third,
 * permissive branch for a refactor to widen. SecurityError and BudgetError
 * additionally propagate to the caller (still denied), because a detected
 * attack or exhausted budget must be observable, never silently defaulted.
 *
 * The policy set sits behind an atomic pointer; Reload swaps whole sets so
 * an in-flight evaluation always sees one fully formed version. The engine
 * itself is safe for concurrent use - the sandbox allocates per-call
 * evaluator state.
 */

// AccessRequest carries everything one access decision needs.
type AccessRequest struct {
	Resource string
	Action   types.Action
	User     expr.User
	Record   types.Record   // candidate record, nil for create/list checks
	Params   map[string]any // request-scoped parameters
}

// Engine exposes access checks, row-filter derivation, and field masks over
// an atomically reloadable policy set.
type Engine struct {
	set     atomic.Pointer[Set]
	sandbox *expr.Sandbox
	globals map[string]any
}

// NewEngine creates an engine over the given set.
// A nil registry selects the builtin registry; a zero budget selects the
// conservative defaults.
func NewEngine(set *Set, registry *expr.Registry, budget expr.Budget) *Engine {
	if registry == nil {
		registry = expr.Default()
	}
	e := &Engine{
		sandbox: expr.NewSandbox(registry, budget),
	}
	if set == nil {
		set = &Set{policies: map[policyKey]*Policy{}}
	}
	e.set.Store(set)
	return e
}

// SetGlobals installs process-wide constants exposed to expressions under
// the "globals." path root. Call before serving traffic.
func (e *Engine) SetGlobals(globals map[string]any) {
	e.globals = globals
}

// Reload atomically replaces the whole policy set.
func (e *Engine) Reload(set *Set) {
	if set == nil {
		return
	}
	e.set.Store(set)
}

// Current returns the live policy set.
func (e *Engine) Current() *Set {
	return e.set.Load()
}

// CheckAccess decides whether the actor may perform the action.
//
// Returns false for a missing policy, a falsey allow result, or any plain
// evaluation error (malformed policy). The error return is non-nil only for
// terminal SecurityError/BudgetError conditions, and the decision is false
// then too: callers may always treat the boolean as the decision and the
// error as an alerting signal.
func (e *Engine) CheckAccess(req AccessRequest) (bool, error) {
	p, ok := e.Current().Lookup(req.Resource, req.Action)
	if !ok {
		return false, nil
	}

	v, err := e.sandbox.Evaluate(p.Allow, e.contextFor(req))
	if err != nil {
		if types.IsTerminal(err) {
			return false, err
		}
		// Malformed policy: canonical denied, same as no policy at all.
		return false, nil
	}
	return expr.Truthy(v), nil
}

// Evaluate runs an arbitrary expression under the engine's sandbox for
// non-security computed fields. Unlike CheckAccess it surfaces every error,
// so callers may log and substitute null.
func (e *Engine) Evaluate(x expr.Expr, req AccessRequest) (any, error) {
	return e.sandbox.Evaluate(x, e.contextFor(req))
}

func (e *Engine) contextFor(req AccessRequest) *expr.Context {
	return &expr.Context{
		Data:    req.Record,
		User:    req.User,
		Params:  req.Params,
		Globals: e.globals,
	}
}
