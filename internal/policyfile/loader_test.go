package policyfile

import (
	"strings"
	"testing"

	"github.com/tidegate/authcore/internal/expr"
	"github.com/tidegate/authcore/internal/policy"
	"github.com/tidegate/authcore/internal/types"
)

const documentsPolicy = `{
  "version": "1",
  "policies": [
    {
      "resource": "documents",
      "action": "read",
      "allow": {
        "op": "or",
        "args": [
          {"cond": {"op": "eq", "left": {"field": "published"}, "right": {"lit": true}}},
          {"cond": {"op": "eq", "left": {"field": "uploadedBy"}, "right": {"field": "user.id"}}}
        ]
      },
      "fields": {"deny": ["internalNotes"]}
    },
    {
      "resource": "documents",
      "action": "delete",
      "allow": {"perm": {"check": "hasRole", "args": ["admin"]}}
    }
  ]
}`

func TestParse_BuildsWorkingSet(t *testing.T) {
	set, err := Parse(strings.NewReader(documentsPolicy))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if set.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", set.Len())
	}

	p, ok := set.Lookup("documents", types.ActionRead)
	if !ok {
		t.Fatalf("Lookup(documents/read) not found")
	}
	if p.ID == "" {
		t.Errorf("policy without explicit id got no generated id")
	}
	if p.Fields == nil || len(p.Fields.Deny) != 1 || p.Fields.Deny[0] != "internalNotes" {
		t.Errorf("Fields = %+v, want deny internalNotes", p.Fields)
	}

	// The decoded tree must behave like its hand-built equivalent.
	engine := policy.NewEngine(set, nil, expr.Budget{})
	allowed, err := engine.CheckAccess(policy.AccessRequest{
		Resource: "documents",
		Action:   types.ActionRead,
		User:     expr.User{ID: "user-1"},
		Record:   types.Record{"published": false, "uploadedBy": "user-1"},
	})
	if err != nil {
		t.Fatalf("CheckAccess() error = %v", err)
	}
	if !allowed {
		t.Errorf("CheckAccess() = false for owner, want true")
	}
}

func TestParse_ExplicitID(t *testing.T) {
	id := types.NewPolicyID()
	doc := `{"policies": [{
	  "id": "` + string(id) + `",
	  "resource": "documents",
	  "action": "read",
	  "allow": {"lit": true}
	}]}`

	set, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	p, _ := set.Lookup("documents", types.ActionRead)
	if p.ID != id {
		t.Errorf("ID = %s, want %s", p.ID, id)
	}
}

func TestParse_UnaryComparator(t *testing.T) {
	doc := `{"policies": [{
	  "resource": "documents",
	  "action": "read",
	  "allow": {"cond": {"op": "exists", "left": {"field": "reviewedAt"}}}
	}]}`

	set, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	p, _ := set.Lookup("documents", types.ActionRead)
	cond, ok := p.Allow.(*expr.Condition)
	if !ok {
		t.Fatalf("Allow = %T, want *expr.Condition", p.Allow)
	}
	if cond.Right != nil {
		t.Errorf("Right = %v, want nil for unary comparator", cond.Right)
	}
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown top-level field",
			doc:  `{"rules": []}`,
		},
		{
			name: "node with two tags",
			doc: `{"policies": [{"resource": "r", "action": "read",
				"allow": {"lit": true, "field": "x"}}]}`,
		},
		{
			name: "node with no tags",
			doc:  `{"policies": [{"resource": "r", "action": "read", "allow": {}}]}`,
		},
		{
			name: "missing allow",
			doc:  `{"policies": [{"resource": "r", "action": "read"}]}`,
		},
		{
			name: "invalid action",
			doc:  `{"policies": [{"resource": "r", "action": "browse", "allow": {"lit": true}}]}`,
		},
		{
			name: "malformed id",
			doc:  `{"policies": [{"id": "not-a-uuid", "resource": "r", "action": "read", "allow": {"lit": true}}]}`,
		},
		{
			name: "condition without comparator",
			doc: `{"policies": [{"resource": "r", "action": "read",
				"allow": {"cond": {"op": "", "left": {"lit": 1}}}}]}`,
		},
		{
			name: "permission without check",
			doc: `{"policies": [{"resource": "r", "action": "read",
				"allow": {"perm": {"check": ""}}}]}`,
		},
		{
			name: "denylisted path segment",
			doc: `{"policies": [{"resource": "r", "action": "read",
				"allow": {"cond": {"op": "eq", "left": {"field": "__proto__.x"}, "right": {"lit": 1}}}}]}`,
		},
		{
			name: "duplicate resource action",
			doc: `{"policies": [
				{"resource": "r", "action": "read", "allow": {"lit": true}},
				{"resource": "r", "action": "read", "allow": {"lit": false}}
			]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(tt.doc)); err == nil {
				t.Errorf("Parse() error = nil, want rejection")
			}
		})
	}
}
