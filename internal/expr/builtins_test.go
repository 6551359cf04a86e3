package expr

import (
	"testing"
	"time"
)

// callOp dispatches a builtin by name with already-evaluated arguments.
func callOp(t *testing.T, name string, args ...any) (any, error) {
	t.Helper()
	fn, ok := Default().op(name)
	if !ok {
		t.Fatalf("operation %q not registered", name)
	}
	return fn(args)
}

func TestBuiltins_Math(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		args     []any
		expected any
		wantErr  bool
	}{
		{name: "add variadic", op: "add", args: []any{1.0, 2.0, 3.0}, expected: 6.0},
		{name: "add mixed int", op: "add", args: []any{1, 2.5}, expected: 3.5},
		{name: "sub", op: "sub", args: []any{10.0, 4.0}, expected: 6.0},
		{name: "mul", op: "mul", args: []any{2.0, 3.0, 4.0}, expected: 24.0},
		{name: "div", op: "div", args: []any{10.0, 4.0}, expected: 2.5},
		{name: "div by zero", op: "div", args: []any{1.0, 0.0}, wantErr: true},
		{name: "mod", op: "mod", args: []any{10.0, 3.0}, expected: 1.0},
		{name: "mod by zero", op: "mod", args: []any{1.0, 0.0}, wantErr: true},
		{name: "min", op: "min", args: []any{3.0, 1.0, 2.0}, expected: 1.0},
		{name: "max", op: "max", args: []any{3.0, 1.0, 2.0}, expected: 3.0},
		{name: "abs", op: "abs", args: []any{-4.5}, expected: 4.5},
		{name: "round", op: "round", args: []any{2.5}, expected: 3.0},
		{name: "floor", op: "floor", args: []any{2.9}, expected: 2.0},
		{name: "ceil", op: "ceil", args: []any{2.1}, expected: 3.0},
		{name: "add non-numeric", op: "add", args: []any{"x", 1.0}, wantErr: true},
		{name: "add empty", op: "add", args: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := callOp(t, tt.op, tt.args...)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("%s(%v) error = nil, want error", tt.op, tt.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s(%v) error = %v", tt.op, tt.args, err)
			}
			if result != tt.expected {
				t.Errorf("%s(%v) = %v, expected %v", tt.op, tt.args, result, tt.expected)
			}
		})
	}
}

func TestBuiltins_Strings(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		args     []any
		expected any
		wantErr  bool
	}{
		{name: "concat", op: "concat", args: []any{"a", "b", "c"}, expected: "abc"},
		{name: "concat coerces number", op: "concat", args: []any{"v", 2.0}, expected: "v2"},
		{name: "concat coerces nil", op: "concat", args: []any{"x", nil}, expected: "x"},
		{name: "upper", op: "upper", args: []any{"abc"}, expected: "ABC"},
		{name: "lower", op: "lower", args: []any{"ABC"}, expected: "abc"},
		{name: "trim", op: "trim", args: []any{"  x  "}, expected: "x"},
		{name: "contains", op: "contains", args: []any{"hello", "ell"}, expected: true},
		{name: "startsWith", op: "startsWith", args: []any{"hello", "he"}, expected: true},
		{name: "endsWith miss", op: "endsWith", args: []any{"hello", "he"}, expected: false},
		{name: "substring", op: "substring", args: []any{"hello", 1.0, 3.0}, expected: "el"},
		{name: "substring open end", op: "substring", args: []any{"hello", 3.0}, expected: "lo"},
		{name: "substring clamps", op: "substring", args: []any{"hi", 0.0, 100.0}, expected: "hi"},
		{name: "substring inverted", op: "substring", args: []any{"hi", 5.0, 2.0}, expected: ""},
		{name: "length string", op: "length", args: []any{"abc"}, expected: 3.0},
		{name: "length array", op: "length", args: []any{[]any{1, 2}}, expected: 2.0},
		{name: "length nil", op: "length", args: []any{nil}, expected: 0.0},
		{name: "upper non-string", op: "upper", args: []any{1.0}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := callOp(t, tt.op, tt.args...)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("%s(%v) error = nil, want error", tt.op, tt.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s(%v) error = %v", tt.op, tt.args, err)
			}
			if result != tt.expected {
				t.Errorf("%s(%v) = %v, expected %v", tt.op, tt.args, result, tt.expected)
			}
		})
	}
}

func TestBuiltins_Dates(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		args     []any
		expected any
		wantErr  bool
	}{
		{name: "before", op: "before", args: []any{"2024-01-01", "2024-06-15"}, expected: true},
		{name: "after", op: "after", args: []any{"2024-01-01", "2024-06-15"}, expected: false},
		{name: "before rfc3339", op: "before", args: []any{"2024-01-01T10:00:00Z", "2024-01-01T11:00:00Z"}, expected: true},
		{name: "daysBetween", op: "daysBetween", args: []any{"2024-01-01", "2024-01-11"}, expected: 10.0},
		{name: "daysBetween symmetric", op: "daysBetween", args: []any{"2024-01-11", "2024-01-01"}, expected: 10.0},
		{name: "invalid timestamp", op: "before", args: []any{"yesterday", "2024-01-01"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := callOp(t, tt.op, tt.args...)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("%s(%v) error = nil, want error", tt.op, tt.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s(%v) error = %v", tt.op, tt.args, err)
			}
			if result != tt.expected {
				t.Errorf("%s(%v) = %v, expected %v", tt.op, tt.args, result, tt.expected)
			}
		})
	}
}

func TestBuiltins_Now(t *testing.T) {
	result, err := callOp(t, "now")
	if err != nil {
		t.Fatalf("now() error = %v", err)
	}
	s, ok := result.(string)
	if !ok {
		t.Fatalf("now() = %T, want string", result)
	}
	if _, err := time.Parse(time.RFC3339, s); err != nil {
		t.Errorf("now() = %q, not RFC3339: %v", s, err)
	}
}

func TestBuiltins_Arrays(t *testing.T) {
	arr := []any{1.0, 2.0, 3.0}

	tests := []struct {
		name     string
		op       string
		args     []any
		expected any
		wantErr  bool
	}{
		{name: "count", op: "count", args: []any{arr}, expected: 3.0},
		{name: "count nil", op: "count", args: []any{nil}, expected: 0.0},
		{name: "sum", op: "sum", args: []any{arr}, expected: 6.0},
		{name: "sum skips nil entries", op: "sum", args: []any{[]any{1.0, nil, 2.0}}, expected: 3.0},
		{name: "avg", op: "avg", args: []any{arr}, expected: 2.0},
		{name: "avg empty", op: "avg", args: []any{[]any{}}, expected: nil},
		{name: "first", op: "first", args: []any{arr}, expected: 1.0},
		{name: "first empty", op: "first", args: []any{[]any{}}, expected: nil},
		{name: "last", op: "last", args: []any{arr}, expected: 3.0},
		{name: "includes", op: "includes", args: []any{arr, 2.0}, expected: true},
		{name: "includes miss", op: "includes", args: []any{arr, 9.0}, expected: false},
		{name: "count non-array", op: "count", args: []any{"x"}, wantErr: true},
		{name: "sum non-numeric", op: "sum", args: []any{[]any{"x"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := callOp(t, tt.op, tt.args...)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("%s(%v) error = nil, want error", tt.op, tt.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s(%v) error = %v", tt.op, tt.args, err)
			}
			if result != tt.expected {
				t.Errorf("%s(%v) = %v, expected %v", tt.op, tt.args, result, tt.expected)
			}
		})
	}
}

func TestBuiltins_Logic(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		args     []any
		expected any
	}{
		{name: "and all true", op: "and", args: []any{true, 1.0, "x"}, expected: true},
		{name: "and with falsey", op: "and", args: []any{true, ""}, expected: false},
		{name: "or with truthy", op: "or", args: []any{0.0, "x"}, expected: true},
		{name: "or all falsey", op: "or", args: []any{0.0, "", nil}, expected: false},
		{name: "not", op: "not", args: []any{false}, expected: true},
		{name: "if true branch", op: "if", args: []any{true, "a", "b"}, expected: "a"},
		{name: "if false branch", op: "if", args: []any{nil, "a", "b"}, expected: "b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := callOp(t, tt.op, tt.args...)
			if err != nil {
				t.Fatalf("%s(%v) error = %v", tt.op, tt.args, err)
			}
			if result != tt.expected {
				t.Errorf("%s(%v) = %v, expected %v", tt.op, tt.args, result, tt.expected)
			}
		})
	}
}
