package expr

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/tidegate/authcore/internal/types"
)

func TestValidatePaths_Denylist(t *testing.T) {
	tests := []struct {
		name    string
		expr    Expr
		segment string
	}{
		{
			name:    "proto segment",
			expr:    Field("__proto__.polluted"),
			segment: "__proto__",
		},
		{
			name:    "constructor mid-path",
			expr:    Field("author.constructor.name"),
			segment: "constructor",
		},
		{
			name:    "process root",
			expr:    Field("process.env"),
			segment: "process",
		},
		{
			name:    "nested inside operation",
			expr:    Op("add", Lit(1.0), Op("count", Field("require.cache"))),
			segment: "require",
		},
		{
			name:    "condition side",
			expr:    Cond("eq", Field("eval"), Lit("x")),
			segment: "eval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePaths(tt.expr)
			var secErr *types.SecurityError
			if !errors.As(err, &secErr) {
				t.Fatalf("ValidatePaths() error = %v, want SecurityError", err)
			}
			if secErr.Segment != tt.segment {
				t.Errorf("SecurityError.Segment = %q, want %q", secErr.Segment, tt.segment)
			}
		})
	}
}

func TestValidatePaths_CleanTree(t *testing.T) {
	clean := Op("and",
		Cond("eq", Field("status"), Lit("active")),
		Cond("eq", Field("author.id"), Field("user.id")),
		Perm("hasRole", "editor"),
	)
	if err := ValidatePaths(clean); err != nil {
		t.Fatalf("ValidatePaths() error = %v, want nil", err)
	}
}

func TestSandbox_DenylistBeforeEvaluation(t *testing.T) {
	s := NewSandbox(Default(), DefaultBudget())

	// The hostile access sits behind a branch evaluation would visit
	// late; validation still rejects the whole tree up front.
	e := Op("and",
		Lit(true),
		Cond("eq", Field("__proto__.x"), Lit(1.0)),
	)
	_, err := s.Evaluate(e, testContext())
	var secErr *types.SecurityError
	if !errors.As(err, &secErr) {
		t.Fatalf("Evaluate() error = %v, want SecurityError", err)
	}
}

func TestSandbox_OperationBudget(t *testing.T) {
	s := NewSandbox(Default(), Budget{MaxOperations: 5})

	small := Op("add", Lit(1.0), Lit(2.0))
	if _, err := s.Evaluate(small, testContext()); err != nil {
		t.Fatalf("Evaluate(small) error = %v, want nil", err)
	}

	big := Expr(Lit(0.0))
	for i := 0; i < 10; i++ {
		big = Op("add", big, Lit(1.0))
	}
	_, err := s.Evaluate(big, testContext())
	var budgetErr *types.BudgetError
	if !errors.As(err, &budgetErr) {
		t.Fatalf("Evaluate(big) error = %v, want BudgetError", err)
	}
	if budgetErr.Dimension != types.BudgetOperations {
		t.Errorf("BudgetError.Dimension = %v, want operations", budgetErr.Dimension)
	}
}

func TestSandbox_DepthBudget(t *testing.T) {
	s := NewSandbox(Default(), Budget{MaxDepth: 8, MaxOperations: 10000})

	deep := Expr(Lit(1.0))
	for i := 0; i < 20; i++ {
		deep = Op("add", deep, Lit(1.0))
	}
	_, err := s.Evaluate(deep, testContext())
	var budgetErr *types.BudgetError
	if !errors.As(err, &budgetErr) {
		t.Fatalf("Evaluate() error = %v, want BudgetError", err)
	}
	if budgetErr.Dimension != types.BudgetDepth {
		t.Errorf("BudgetError.Dimension = %v, want depth", budgetErr.Dimension)
	}
}

func TestSandbox_Timeout(t *testing.T) {
	s := NewSandbox(Default(), Budget{
		Timeout:       time.Nanosecond,
		MaxOperations: 1 << 30,
	})

	// Enough nodes that at least one visit happens after the deadline.
	e := Expr(Lit(0.0))
	for i := 0; i < 50; i++ {
		e = Op("add", e, Lit(1.0))
	}

	_, err := s.Evaluate(e, testContext())
	var budgetErr *types.BudgetError
	if !errors.As(err, &budgetErr) {
		t.Fatalf("Evaluate() error = %v, want BudgetError", err)
	}
	if budgetErr.Dimension != types.BudgetTimeout {
		t.Errorf("BudgetError.Dimension = %v, want timeout", budgetErr.Dimension)
	}
}

func TestSandbox_AllowList(t *testing.T) {
	s := NewSandbox(Default(), Budget{
		AllowedOperations: []string{"eq", "and", "hasRole"},
	})

	allowed := Op("and",
		Cond("eq", Field("status"), Lit("active")),
		Perm("hasRole", "editor"),
	)
	result, err := s.Evaluate(allowed, testContext())
	if err != nil {
		t.Fatalf("Evaluate(allowed) error = %v, want nil", err)
	}
	if result != true {
		t.Errorf("Evaluate(allowed) = %v, want true", result)
	}

	blocked := Op("add", Lit(1.0), Lit(2.0))
	if _, err := s.Evaluate(blocked, testContext()); err == nil {
		t.Fatalf("Evaluate(blocked) error = nil, want allow-list rejection")
	}
}

func TestSandbox_ContextIsolation(t *testing.T) {
	registry, err := Default().Merge(map[string]OpFunc{
		// Deliberately hostile: mutates whatever map or slice it is handed.
		"corrupt": func(args []any) (any, error) {
			for _, arg := range args {
				switch t := arg.(type) {
				case map[string]any:
					t["injected"] = true
				case []any:
					if len(t) > 0 {
						t[0] = "overwritten"
					}
				}
			}
			return true, nil
		},
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	s := NewSandbox(registry, DefaultBudget())
	c := testContext()

	e := Op("corrupt", Field("author"), Field("user.roles"))
	if _, err := s.Evaluate(e, c); err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}

	author := c.Data["author"].(map[string]any)
	if _, polluted := author["injected"]; polluted {
		t.Errorf("sandbox leaked a record mutation back to the caller")
	}
	if c.User.Roles[0] != "editor" {
		t.Errorf("sandbox leaked a roles mutation back to the caller: %v", c.User.Roles)
	}
}

func TestSandbox_SharedAcrossCalls(t *testing.T) {
	s := NewSandbox(Default(), Budget{MaxOperations: 10})

	e := Op("add", Lit(1.0), Lit(2.0), Lit(3.0))
	// The counter must start fresh every call, not accumulate on the
	// shared sandbox.
	for i := 0; i < 100; i++ {
		result, err := s.Evaluate(e, testContext())
		if err != nil {
			t.Fatalf("Evaluate() call %d error = %v", i, err)
		}
		if result != 6.0 {
			t.Fatalf("Evaluate() call %d = %v, want 6", i, result)
		}
	}
}

func TestSandbox_PropertyMatchesUnguardedEvaluator(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	s := NewSandbox(Default(), DefaultBudget())

	properties.Property("sandbox agrees with plain evaluation within budget", prop.ForAll(
		func(a, b float64, branch bool) bool {
			var e Expr
			if branch {
				e = Cond("gt", Lit(a), Lit(b))
			} else {
				e = Op("add", Lit(a), Lit(b))
			}

			plain, err1 := NewEvaluator(Default(), 0).Evaluate(e, testContext())
			guarded, err2 := s.Evaluate(e, testContext())
			if (err1 == nil) != (err2 == nil) {
				return false
			}
			return plain == guarded
		},
		gen.Float64Range(-1e6, 1e6),
		gen.Float64Range(-1e6, 1e6),
		gen.Bool(),
	))

	properties.Property("isolation holds for arbitrary role lists", prop.ForAll(
		func(roles []string) bool {
			c := &Context{User: User{ID: "u", Roles: roles}}
			before := make([]string, len(roles))
			copy(before, roles)

			_, _ = s.Evaluate(Perm("hasRole", "admin"), c)

			if len(c.User.Roles) != len(before) {
				return false
			}
			for i := range before {
				if c.User.Roles[i] != before[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}
