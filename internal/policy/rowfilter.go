package policy

import (
	"strings"

	"github.com/tidegate/authcore/internal/expr"
	"github.com/tidegate/authcore/internal/types"
)

/*
 * Row-filter extraction.
 *
 * A structural transform over the allow-expression, not an evaluation: it
 * inspects node shape only and therefore cannot carry side effects. The
 * output is a deliberately strict subset of the expression language -
 * {field: value} leaves under AND/OR combinators - because that is what a
 * storage layer can push into a WHERE clause without resolving ambient
 * state.
 *
 * Soundness over completeness: anything not reducible to a concrete
 * predicate (permission checks, cross-field comparisons, non-eq operators)
 * contributes no constraint. Inside an OR that forces the whole branch set
 * to widen to "no constraint", since one unencodable alternative may admit
 * any row. The filter errs toward returning more candidate rows, never
 * fewer; the access check stays the authority over each row.
 */

// Combinator keys inside a RowFilter.
const (
	CombinatorAnd = "AND"
	CombinatorOr  = "OR"
)

// RowFilter is a storage-agnostic predicate tree: field-name keys map to
// required values, and the reserved AND/OR keys hold sub-filter slices.
// The empty filter means "no constraint".
type RowFilter map[string]any

// Empty reports whether the filter constrains nothing.
func (f RowFilter) Empty() bool {
	return len(f) == 0
}

// And returns the conjunction of filters, dropping unconstrained members.
func And(filters ...RowFilter) RowFilter {
	kept := make([]RowFilter, 0, len(filters))
	for _, f := range filters {
		if !f.Empty() {
			kept = append(kept, f)
		}
	}
	switch len(kept) {
	case 0:
		return RowFilter{}
	case 1:
		return kept[0]
	default:
		children := make([]RowFilter, len(kept))
		copy(children, kept)
		return RowFilter{CombinatorAnd: children}
	}
}

// Or returns the disjunction of filters. Any unconstrained member widens
// the whole disjunction to unconstrained: OR with an always-true branch is
// always true.
func Or(filters ...RowFilter) RowFilter {
	if len(filters) == 0 {
		return RowFilter{}
	}
	children := make([]RowFilter, 0, len(filters))
	for _, f := range filters {
		if f.Empty() {
			return RowFilter{}
		}
		children = append(children, f)
	}
	if len(children) == 1 {
		return children[0]
	}
	return RowFilter{CombinatorOr: children}
}

// ApplyRowFilters derives the storage filter implied by an allow-expression
// for the given context. The context supplies the user whose ambient values
// ("user."-paths) are resolved into concrete constraint values.
func ApplyRowFilters(e expr.Expr, c *expr.Context) RowFilter {
	if c == nil {
		c = &expr.Context{}
	}
	switch n := e.(type) {
	case *expr.Operation:
		switch n.Name {
		case "and":
			children := make([]RowFilter, 0, len(n.Args))
			for _, arg := range n.Args {
				children = append(children, ApplyRowFilters(arg, c))
			}
			return And(children...)
		case "or":
			children := make([]RowFilter, 0, len(n.Args))
			for _, arg := range n.Args {
				children = append(children, ApplyRowFilters(arg, c))
			}
			return Or(children...)
		default:
			return RowFilter{}
		}

	case *expr.Condition:
		return extractCondition(n, c)

	default:
		// Literal, FieldAccess, Permission, nil: ambient or shapeless,
		// enforced on the access-check path instead.
		return RowFilter{}
	}
}

// RowFilterFor looks up the policy for (resource, action) and derives its
// filter for the user. The second result is false when no policy exists;
// fail-closed callers must then return no rows at all rather than an
// unconstrained query.
func (e *Engine) RowFilterFor(resource string, action types.Action, user expr.User, params map[string]any) (RowFilter, bool) {
	p, ok := e.Current().Lookup(resource, action)
	if !ok {
		return RowFilter{}, false
	}
	c := &expr.Context{User: user, Params: params, Globals: e.globals}
	return ApplyRowFilters(p.Allow, c), true
}

// extractCondition turns an eq-condition into a {field: value} leaf when
// one side is a storable field path and the other resolves to a concrete
// value. Everything else contributes no constraint.
func extractCondition(n *expr.Condition, c *expr.Context) RowFilter {
	if n.Op != "eq" {
		return RowFilter{}
	}

	if field, ok := storableField(n.Left); ok {
		if value, ok := concreteValue(n.Right, c); ok {
			return RowFilter{field: value}
		}
		return RowFilter{}
	}
	if field, ok := storableField(n.Right); ok {
		if value, ok := concreteValue(n.Left, c); ok {
			return RowFilter{field: value}
		}
	}
	return RowFilter{}
}

// storableField accepts a FieldAccess addressing the record itself: no
// reserved root, no wildcard segment.
func storableField(e expr.Expr) (string, bool) {
	fa, ok := e.(*expr.FieldAccess)
	if !ok {
		return "", false
	}
	first, _, _ := strings.Cut(fa.Path, ".")
	switch first {
	case "user", "params", "globals", "":
		return "", false
	}
	if strings.Contains(fa.Path, expr.Wildcard) {
		return "", false
	}
	return fa.Path, true
}

// concreteValue resolves the value side of a leaf: a literal verbatim, or a
// "user."-path resolved against the ambient user.
func concreteValue(e expr.Expr, c *expr.Context) (any, bool) {
	switch n := e.(type) {
	case *expr.Literal:
		return n.Value, true
	case *expr.FieldAccess:
		first, _, _ := strings.Cut(n.Path, ".")
		if first != "user" {
			return nil, false
		}
		v, err := expr.Resolve(n.Path, c)
		if err != nil {
			return nil, false
		}
		return v, true
	default:
		return nil, false
	}
}
