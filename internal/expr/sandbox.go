package expr

import (
	"errors"
	"fmt"
	"time"

	"github.com/tidegate/authcore/internal/types"
)

/*
 * Safety sandbox.
 *
 * Wraps the evaluator with the guarantees the policy engine relies on:
 *
 *   1. Static validation: every FieldAccess segment is checked against a
 *      fixed denylist of names that could reach interpreter or host
 *      internals. Any match fails with SecurityError before evaluation
 *      starts, so no operation ever runs on a hostile tree.
 *   2. Budget: an operation counter increments on every visited
 *      Operation/Condition/Permission node against MaxOperations, and the
 *      wall clock is checked against the deadline at each visit. Either
 *      overage aborts with BudgetError; no partial result is returned.
 *      The timeout is retroactive, detected at the next node visit, so a
 *      single node is never interrupted mid-operation.
 *   3. Optional allow-list restricting which operation names may run at
 *      all. Absence means "registry default", not "nothing allowed".
 *   4. Context isolation: the context is structurally copied before
 *      evaluation, so no operation can write back into the caller's data
 *      (e.g. appending to user.roles to self-elevate mid-evaluation).
 *
 * Contract: Evaluate either matches the unguarded evaluator's result, or
 * fails with exactly one of SecurityError/BudgetError (or the underlying
 * plain evaluation error) - never an undefined partial success.
 *
 * A Sandbox holds only immutable configuration and allocates a fresh
 * Evaluator per call, so a single instance may be shared across goroutines.
 */

// forbiddenSegments denylists path segments that address interpreter or
// host internals rather than record data. Policies arrive from operators,
// but a compromised authoring channel must not become code execution.
var forbiddenSegments = map[string]struct{}{
	"__proto__":   {},
	"prototype":   {},
	"constructor": {},
	"process":     {},
	"global":      {},
	"globalThis":  {},
	"module":      {},
	"require":     {},
	"eval":        {},
	"Function":    {},
	"__dirname":   {},
	"__filename":  {},
}

// Budget bounds one evaluation. Zero values select conservative defaults;
// AllowedOperations nil means every registered operation may run.
type Budget struct {
	MaxDepth          int
	MaxOperations     int
	Timeout           time.Duration
	AllowedOperations []string
}

// DefaultBudget returns the conservative default budget.
func DefaultBudget() Budget {
	return Budget{
		MaxDepth:      types.DefaultMaxDepth,
		MaxOperations: types.DefaultMaxOperations,
		Timeout:       types.DefaultTimeoutMillis * time.Millisecond,
	}
}

// normalized fills zero budget fields with defaults.
func (b Budget) normalized() Budget {
	def := DefaultBudget()
	if b.MaxDepth <= 0 {
		b.MaxDepth = def.MaxDepth
	}
	if b.MaxOperations <= 0 {
		b.MaxOperations = def.MaxOperations
	}
	if b.Timeout <= 0 {
		b.Timeout = def.Timeout
	}
	return b
}

// Sandbox evaluates expressions under a budget with path validation and
// context isolation. Immutable after construction; safe for concurrent use.
type Sandbox struct {
	registry *Registry
	budget   Budget
	allowed  map[string]struct{} // nil = registry default
}

// NewSandbox creates a sandbox over the registry with the given budget.
func NewSandbox(registry *Registry, budget Budget) *Sandbox {
	s := &Sandbox{
		registry: registry,
		budget:   budget.normalized(),
	}
	if budget.AllowedOperations != nil {
		s.allowed = make(map[string]struct{}, len(budget.AllowedOperations))
		for _, name := range budget.AllowedOperations {
			s.allowed[name] = struct{}{}
		}
	}
	return s
}

// ValidatePaths statically checks every FieldAccess path in the tree
// against the denylist. Returns a SecurityError on the first match. Run
// once per tree at load time and again defensively before each evaluation.
func ValidatePaths(e Expr) error {
	switch n := e.(type) {
	case *Literal, nil:
		return nil
	case *FieldAccess:
		segments, err := splitPath(n.Path)
		if err != nil {
			// Shape errors surface at evaluation; validation only hunts
			// for hostile names.
			return nil
		}
		for _, seg := range segments {
			if _, forbidden := forbiddenSegments[seg]; forbidden {
				return &types.SecurityError{Path: n.Path, Segment: seg}
			}
		}
		return nil
	case *Operation:
		for _, arg := range n.Args {
			if err := ValidatePaths(arg); err != nil {
				return err
			}
		}
		return nil
	case *Condition:
		if err := ValidatePaths(n.Left); err != nil {
			return err
		}
		return ValidatePaths(n.Right)
	case *Permission:
		return nil
	default:
		return fmt.Errorf("%w: %T", types.ErrMalformedExpression, e)
	}
}

// Evaluate runs e against an isolated copy of c under the sandbox budget.
func (s *Sandbox) Evaluate(e Expr, c *Context) (any, error) {
	if err := ValidatePaths(e); err != nil {
		return nil, err
	}

	budget := s.budget
	deadline := time.Now().Add(budget.Timeout)
	visited := 0

	ev := NewEvaluator(s.registry, budget.MaxDepth)
	ev.visit = func(e Expr) error {
		visited++
		if visited > budget.MaxOperations {
			return &types.BudgetError{
				Dimension: types.BudgetOperations,
				Limit:     int64(budget.MaxOperations),
			}
		}
		if time.Now().After(deadline) {
			return &types.BudgetError{
				Dimension: types.BudgetTimeout,
				Limit:     budget.Timeout.Milliseconds(),
			}
		}
		if s.allowed != nil {
			if name, named := operationName(e); named {
				if _, ok := s.allowed[name]; !ok {
					return fmt.Errorf("operation %q not in sandbox allow-list", name)
				}
			}
		}
		return nil
	}

	v, err := ev.Evaluate(e, c.Isolate())
	if err != nil {
		if errors.Is(err, types.ErrRecursionExceeded) {
			return nil, &types.BudgetError{
				Dimension: types.BudgetDepth,
				Limit:     int64(budget.MaxDepth),
			}
		}
		return nil, err
	}
	return v, nil
}

// operationName extracts the registry name a node dispatches on.
func operationName(e Expr) (string, bool) {
	switch n := e.(type) {
	case *Operation:
		return n.Name, true
	case *Condition:
		return n.Op, true
	case *Permission:
		return n.Check, true
	default:
		return "", false
	}
}
