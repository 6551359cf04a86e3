// Package expr implements the declarative expression language used by policy
// rules: a closed node set, a registry of pure operations, a recursive
// evaluator, and a safety sandbox with budgets and path validation.
package expr

import (
	"strings"

	"github.com/tidegate/authcore/internal/types"
)

/*
 * Expression model.
 *
 * Closed tagged union over five node kinds. The sealed interface (unexported
 * marker method) means every node kind lives in this package; evaluator,
 * validator, and extractor switch exhaustively over the set and treat any
 * other value as malformed.
 *
 * Node kinds:
 *   - Literal: value verbatim
 *   - FieldAccess: dot-delimited path into the evaluation context
 *   - Operation: named registry function over eagerly evaluated arguments
 *   - Condition: binary comparison, sharing comparator implementations with
 *     Operation dispatch
 *   - Permission: named context-aware check with static string arguments
 *
 * Trees are immutable once built. Depth and arity are bounded by the sandbox
 * budget, never by the types themselves.
 */

// Expr is a node in the expression tree. The node set is closed: only the
// five types in this package implement it.
type Expr interface {
	isExpr()
}

// Literal holds a constant value: string, number, bool, nil, or arrays and
// objects thereof.
type Literal struct {
	Value any
}

func (*Literal) isExpr() {}

// FieldAccess references a value in the evaluation context by dot-delimited
// path. The first segment selects the root bag: "user", "params", and
// "globals" address those context members, anything else addresses the
// candidate record. A "*" segment requires an array at that position and
// yields the array (projected through any trailing segments) for an
// enclosing array operation to consume; it never silently iterates.
type FieldAccess struct {
	Path string
}

func (*FieldAccess) isExpr() {}

// Operation invokes a registered function by name over evaluated arguments.
type Operation struct {
	Name string
	Args []Expr
}

func (*Operation) isExpr() {}

// Condition compares two sub-expressions with a named comparator
// (eq, ne, gt, lt, gte, lte, in, exists).
type Condition struct {
	Op    string
	Left  Expr
	Right Expr
}

func (*Condition) isExpr() {}

// Permission invokes a context-aware check (hasRole, isOwner, ...) with
// static string arguments.
type Permission struct {
	Check string
	Args  []string
}

func (*Permission) isExpr() {}

// Lit builds a Literal node.
func Lit(v any) *Literal { return &Literal{Value: v} }

// Field builds a FieldAccess node.
func Field(path string) *FieldAccess { return &FieldAccess{Path: path} }

// Op builds an Operation node.
func Op(name string, args ...Expr) *Operation { return &Operation{Name: name, Args: args} }

// Cond builds a Condition node.
func Cond(op string, left, right Expr) *Condition { return &Condition{Op: op, Left: left, Right: right} }

// Perm builds a Permission node.
func Perm(check string, args ...string) *Permission { return &Permission{Check: check, Args: args} }

// Wildcard is the path segment that expands an array for a downstream
// array operation.
const Wildcard = "*"

// splitPath splits a dot-delimited path into segments and validates shape.
// Returns ErrEmptyPath for empty paths or empty segments, ErrPathTooDeep
// past MaxPathSegments.
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, types.ErrEmptyPath
	}
	segments := strings.Split(path, ".")
	if len(segments) > types.MaxPathSegments {
		return nil, types.ErrPathTooDeep
	}
	for _, seg := range segments {
		if seg == "" {
			return nil, types.ErrEmptyPath
		}
	}
	return segments, nil
}
