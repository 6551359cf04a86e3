// Package policyfile decodes policy documents from JSON into the expression
// shape the policy engine consumes. The engine itself parses no external
// format; this package is the loader collaborator sitting in front of it.
package policyfile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tidegate/authcore/internal/expr"
	"github.com/tidegate/authcore/internal/policy"
	"github.com/tidegate/authcore/internal/types"
)

/*
 * Document format: one JSON object per expression node, tagged by key.
 *
 *   {"lit": <value>}
 *   {"field": "uploadedBy"}
 *   {"op": "or", "args": [<node>, ...]}
 *   {"cond": {"op": "eq", "left": <node>, "right": <node>}}
 *   {"perm": {"check": "hasRole", "args": ["admin"]}}
 *
 * Exactly one tag per node. Unknown fields are rejected so typos in a
 * policy document fail at load time rather than silently changing meaning.
 * Every loaded allow tree also passes sandbox path validation before the
 * set is returned, so a hostile document never reaches evaluation.
 */

// Document is the serialized form of a policy set.
type Document struct {
	Version  string        `json:"version,omitempty"`
	Policies []PolicyEntry `json:"policies"`
}

// PolicyEntry is one serialized policy.
type PolicyEntry struct {
	ID       string     `json:"id,omitempty"`
	Resource string     `json:"resource"`
	Action   string     `json:"action"`
	Allow    *Node      `json:"allow"`
	Fields   *FieldSpec `json:"fields,omitempty"`
}

// FieldSpec mirrors policy.FieldSpec in serialized form.
type FieldSpec struct {
	Read  []string `json:"read,omitempty"`
	Write []string `json:"write,omitempty"`
	Deny  []string `json:"deny,omitempty"`
}

// Node is one serialized expression node.
type Node struct {
	Lit   json.RawMessage `json:"lit,omitempty"`
	Field string          `json:"field,omitempty"`
	Op    string          `json:"op,omitempty"`
	Args  []Node          `json:"args,omitempty"`
	Cond  *CondNode       `json:"cond,omitempty"`
	Perm  *PermNode       `json:"perm,omitempty"`
}

// CondNode is the serialized form of a Condition.
type CondNode struct {
	Op    string `json:"op"`
	Left  *Node  `json:"left,omitempty"`
	Right *Node  `json:"right,omitempty"`
}

// PermNode is the serialized form of a Permission check.
type PermNode struct {
	Check string   `json:"check"`
	Args  []string `json:"args,omitempty"`
}

// Parse decodes a policy document and builds a validated policy set.
func Parse(r io.Reader) (*policy.Set, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode policy document: %w", err)
	}
	return Build(doc)
}

// Load reads a JSON policy document from disk.
func Load(path string) (*policy.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open policy document: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Build converts an already-decoded document into a validated policy set.
// Policies without an ID are assigned a fresh UUIDv7.
func Build(doc Document) (*policy.Set, error) {
	policies := make([]*policy.Policy, 0, len(doc.Policies))
	for idx, entry := range doc.Policies {
		p, err := buildPolicy(entry)
		if err != nil {
			return nil, fmt.Errorf("policy %d (%s/%s): %w", idx, entry.Resource, entry.Action, err)
		}
		policies = append(policies, p)
	}
	return policy.NewSet(policies)
}

func buildPolicy(entry PolicyEntry) (*policy.Policy, error) {
	id := types.PolicyID(entry.ID)
	if entry.ID == "" {
		id = types.NewPolicyID()
	} else {
		parsed, err := types.ParsePolicyID(entry.ID)
		if err != nil {
			return nil, fmt.Errorf("invalid policy id %q: %w", entry.ID, err)
		}
		id = parsed
	}

	if entry.Allow == nil {
		return nil, fmt.Errorf("allow expression is required")
	}
	allow, err := buildNode(entry.Allow)
	if err != nil {
		return nil, err
	}

	p := &policy.Policy{
		ID:       id,
		Resource: entry.Resource,
		Action:   types.Action(entry.Action),
		Allow:    allow,
	}
	if entry.Fields != nil {
		p.Fields = &policy.FieldSpec{
			Read:  entry.Fields.Read,
			Write: entry.Fields.Write,
			Deny:  entry.Fields.Deny,
		}
	}
	return p, nil
}

func buildNode(n *Node) (expr.Expr, error) {
	if n == nil {
		return nil, fmt.Errorf("missing expression node")
	}

	tags := 0
	if n.Lit != nil {
		tags++
	}
	if n.Field != "" {
		tags++
	}
	if n.Op != "" {
		tags++
	}
	if n.Cond != nil {
		tags++
	}
	if n.Perm != nil {
		tags++
	}
	if tags != 1 {
		return nil, fmt.Errorf("expression node must carry exactly one of lit/field/op/cond/perm, got %d", tags)
	}

	switch {
	case n.Lit != nil:
		var v any
		if err := json.Unmarshal(n.Lit, &v); err != nil {
			return nil, fmt.Errorf("decode literal: %w", err)
		}
		return expr.Lit(v), nil

	case n.Field != "":
		return expr.Field(n.Field), nil

	case n.Op != "":
		args := make([]expr.Expr, 0, len(n.Args))
		for i := range n.Args {
			arg, err := buildNode(&n.Args[i])
			if err != nil {
				return nil, fmt.Errorf("op %s arg %d: %w", n.Op, i, err)
			}
			args = append(args, arg)
		}
		return expr.Op(n.Op, args...), nil

	case n.Cond != nil:
		if n.Cond.Op == "" {
			return nil, fmt.Errorf("condition comparator is required")
		}
		left, err := buildSide(n.Cond.Left)
		if err != nil {
			return nil, fmt.Errorf("cond %s left: %w", n.Cond.Op, err)
		}
		right, err := buildSide(n.Cond.Right)
		if err != nil {
			return nil, fmt.Errorf("cond %s right: %w", n.Cond.Op, err)
		}
		return expr.Cond(n.Cond.Op, left, right), nil

	default:
		if n.Perm.Check == "" {
			return nil, fmt.Errorf("permission check name is required")
		}
		return expr.Perm(n.Perm.Check, n.Perm.Args...), nil
	}
}

// buildSide allows a nil condition side (unary comparators such as exists).
func buildSide(n *Node) (expr.Expr, error) {
	if n == nil {
		return nil, nil
	}
	return buildNode(n)
}
