// Package policy binds allow-expressions to (resource, action) pairs and
// derives access decisions, storage row filters, and field masks from them.
package policy

import (
	"fmt"

	"github.com/tidegate/authcore/internal/expr"
	"github.com/tidegate/authcore/internal/types"
)

/*
 * Policy model.
 *
 * A Policy is one declarative rule: the boolean allow-expression for a
 * (resource, action) pair plus optional read/write/deny field lists. A Set
 * is the immutable collection of all policies; the engine swaps whole sets
 * atomically on reload so in-flight evaluations always observe one fully
 * formed version.
 *
 * NewSet is the single construction path and validates everything the
 * runtime relies on: action names, non-nil allow trees, denylisted path
 * segments (rejected at load, not first evaluation), and (resource, action)
 * uniqueness.
 */

// FieldWildcard grants every field in a read/write list.
const FieldWildcard = "*"

// FieldSpec declares which fields an action may read or write.
// Nil or empty Read/Write default to the wildcard; Deny always wins.
type FieldSpec struct {
	Read  []string
	Write []string
	Deny  []string
}

// Policy is a single (resource, action)-bound rule. Immutable once loaded.
type Policy struct {
	ID       types.PolicyID
	Resource string
	Action   types.Action
	Allow    expr.Expr
	Fields   *FieldSpec
}

type policyKey struct {
	resource string
	action   types.Action
}

// Set is an immutable collection of policies keyed by (resource, action).
// Lookups are pure reads and may be shared freely across goroutines.
type Set struct {
	policies map[policyKey]*Policy
}

// NewSet validates policies and builds an immutable set.
func NewSet(policies []*Policy) (*Set, error) {
	set := &Set{policies: make(map[policyKey]*Policy, len(policies))}
	for _, p := range policies {
		if p == nil {
			return nil, fmt.Errorf("%w: nil policy", types.ErrMalformedExpression)
		}
		if p.Resource == "" {
			return nil, fmt.Errorf("policy %s: resource is required", p.ID)
		}
		if !p.Action.IsValid() {
			return nil, fmt.Errorf("policy %s: invalid action %q", p.ID, p.Action)
		}
		if p.Allow == nil {
			return nil, fmt.Errorf("policy %s (%s/%s): allow expression is required", p.ID, p.Resource, p.Action)
		}
		// Hostile paths are rejected at load time; first-evaluation
		// rejection would let a bad document serve traffic until hit.
		if err := expr.ValidatePaths(p.Allow); err != nil {
			return nil, fmt.Errorf("policy %s (%s/%s): %w", p.ID, p.Resource, p.Action, err)
		}
		key := policyKey{resource: p.Resource, action: p.Action}
		if _, dup := set.policies[key]; dup {
			return nil, fmt.Errorf("duplicate policy for %s/%s", p.Resource, p.Action)
		}
		set.policies[key] = p
	}
	return set, nil
}

// Lookup returns the policy for (resource, action) by exact match.
func (s *Set) Lookup(resource string, action types.Action) (*Policy, bool) {
	p, ok := s.policies[policyKey{resource: resource, action: action}]
	return p, ok
}

// Len returns the number of policies in the set.
func (s *Set) Len() int {
	return len(s.policies)
}

// Resources returns the distinct resource names with at least one policy.
func (s *Set) Resources() []string {
	seen := make(map[string]struct{})
	var out []string
	for key := range s.policies {
		if _, ok := seen[key.resource]; ok {
			continue
		}
		seen[key.resource] = struct{}{}
		out = append(out, key.resource)
	}
	return out
}
