package expr

import (
	"fmt"
	"math"
	"strings"
	"time"
)

/*
 * Builtin operations.
 *
 * Pure functions over evaluated arguments, grouped by concern: math,
 * string, date, logic, comparison (compare.go), and array. Context-aware
 * permission checks live in permissions.go.
 *
 * Arity and type errors are plain evaluation errors: they indicate a
 * malformed policy, and the access-check path fails closed on them.
 */

func errArity(name string, want, got int) error {
	return fmt.Errorf("operation %s: expected %d arguments, got %d", name, want, got)
}

// binary adapts a two-argument function to OpFunc with arity checking.
func binary(fn func(a, b any) (any, error)) OpFunc {
	return func(args []any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("expected 2 arguments, got %d", len(args))
		}
		return fn(args[0], args[1])
	}
}

func builtinOps() map[string]OpFunc {
	ops := make(map[string]OpFunc)
	for name, fn := range comparatorOps() {
		ops[name] = fn
	}
	for name, fn := range mathOps() {
		ops[name] = fn
	}
	for name, fn := range stringOps() {
		ops[name] = fn
	}
	for name, fn := range dateOps() {
		ops[name] = fn
	}
	for name, fn := range logicOps() {
		ops[name] = fn
	}
	for name, fn := range arrayOps() {
		ops[name] = fn
	}
	return ops
}

func mathOps() map[string]OpFunc {
	return map[string]OpFunc{
		"add": reduceNumeric("add", func(acc, n float64) float64 { return acc + n }),
		"mul": reduceNumeric("mul", func(acc, n float64) float64 { return acc * n }),
		"sub": numericBinary("sub", func(a, b float64) (float64, error) { return a - b, nil }),
		"div": numericBinary("div", func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, fmt.Errorf("operation div: division by zero")
			}
			return a / b, nil
		}),
		"mod": numericBinary("mod", func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, fmt.Errorf("operation mod: division by zero")
			}
			return math.Mod(a, b), nil
		}),
		"min":   pickNumeric("min", func(best, n float64) bool { return n < best }),
		"max":   pickNumeric("max", func(best, n float64) bool { return n > best }),
		"abs":   numericUnary("abs", math.Abs),
		"round": numericUnary("round", math.Round),
		"floor": numericUnary("floor", math.Floor),
		"ceil":  numericUnary("ceil", math.Ceil),
	}
}

func reduceNumeric(name string, fn func(acc, n float64) float64) OpFunc {
	return func(args []any) (any, error) {
		if len(args) == 0 {
			return nil, errArity(name, 1, 0)
		}
		acc, ok := toFloat64(args[0])
		if !ok {
			return nil, fmt.Errorf("operation %s: non-numeric argument %v", name, args[0])
		}
		for _, arg := range args[1:] {
			n, ok := toFloat64(arg)
			if !ok {
				return nil, fmt.Errorf("operation %s: non-numeric argument %v", name, arg)
			}
			acc = fn(acc, n)
		}
		return acc, nil
	}
}

func pickNumeric(name string, better func(best, n float64) bool) OpFunc {
	return reduceNumeric(name, func(acc, n float64) float64 {
		if better(acc, n) {
			return n
		}
		return acc
	})
}

func numericBinary(name string, fn func(a, b float64) (float64, error)) OpFunc {
	return binary(func(a, b any) (any, error) {
		na, oka := toFloat64(a)
		nb, okb := toFloat64(b)
		if !oka || !okb {
			return nil, fmt.Errorf("operation %s: non-numeric arguments", name)
		}
		return fn(na, nb)
	})
}

func numericUnary(name string, fn func(n float64) float64) OpFunc {
	return func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, errArity(name, 1, len(args))
		}
		n, ok := toFloat64(args[0])
		if !ok {
			return nil, fmt.Errorf("operation %s: non-numeric argument %v", name, args[0])
		}
		return fn(n), nil
	}
}

func stringOps() map[string]OpFunc {
	return map[string]OpFunc{
		"concat": func(args []any) (any, error) {
			var sb strings.Builder
			for _, arg := range args {
				sb.WriteString(stringify(arg))
			}
			return sb.String(), nil
		},
		"upper": stringUnary("upper", strings.ToUpper),
		"lower": stringUnary("lower", strings.ToLower),
		"trim":  stringUnary("trim", strings.TrimSpace),
		"contains": stringBinary("contains", func(s, sub string) any {
			return strings.Contains(s, sub)
		}),
		"startsWith": stringBinary("startsWith", func(s, prefix string) any {
			return strings.HasPrefix(s, prefix)
		}),
		"endsWith": stringBinary("endsWith", func(s, suffix string) any {
			return strings.HasSuffix(s, suffix)
		}),
		"substring": func(args []any) (any, error) {
			if len(args) < 2 || len(args) > 3 {
				return nil, fmt.Errorf("operation substring: expected 2 or 3 arguments, got %d", len(args))
			}
			s, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("operation substring: non-string argument")
			}
			start, ok := toFloat64(args[1])
			if !ok {
				return nil, fmt.Errorf("operation substring: non-numeric start")
			}
			end := float64(len(s))
			if len(args) == 3 {
				end, ok = toFloat64(args[2])
				if !ok {
					return nil, fmt.Errorf("operation substring: non-numeric end")
				}
			}
			return sliceString(s, int(start), int(end)), nil
		},
		"length": func(args []any) (any, error) {
			if len(args) != 1 {
				return nil, errArity("length", 1, len(args))
			}
			switch v := args[0].(type) {
			case nil:
				return float64(0), nil
			case string:
				return float64(len(v)), nil
			case []any:
				return float64(len(v)), nil
			case map[string]any:
				return float64(len(v)), nil
			default:
				return nil, fmt.Errorf("operation length: unsupported type %T", args[0])
			}
		},
	}
}

func stringUnary(name string, fn func(s string) string) OpFunc {
	return func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, errArity(name, 1, len(args))
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("operation %s: non-string argument %v", name, args[0])
		}
		return fn(s), nil
	}
}

func stringBinary(name string, fn func(a, b string) any) OpFunc {
	return binary(func(a, b any) (any, error) {
		sa, oka := a.(string)
		sb, okb := b.(string)
		if !oka || !okb {
			return nil, fmt.Errorf("operation %s: non-string arguments", name)
		}
		return fn(sa, sb), nil
	})
}

// sliceString clamps indices so policies never panic on out-of-range values.
func sliceString(s string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(s) {
		end = len(s)
	}
	if start >= end {
		return ""
	}
	return s[start:end]
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		// Trim the ".0" JSON numbers pick up on round-trip.
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func dateOps() map[string]OpFunc {
	return map[string]OpFunc{
		// now reads the clock but writes nothing; policies use it for
		// embargo-style comparisons against stored timestamps.
		"now": func(args []any) (any, error) {
			if len(args) != 0 {
				return nil, errArity("now", 0, len(args))
			}
			return time.Now().UTC().Format(time.RFC3339), nil
		},
		"before": timeBinary("before", func(a, b time.Time) any { return a.Before(b) }),
		"after":  timeBinary("after", func(a, b time.Time) any { return a.After(b) }),
		"daysBetween": timeBinary("daysBetween", func(a, b time.Time) any {
			return math.Abs(b.Sub(a).Hours() / 24)
		}),
	}
}

func timeBinary(name string, fn func(a, b time.Time) any) OpFunc {
	return binary(func(a, b any) (any, error) {
		ta, err := parseTime(a)
		if err != nil {
			return nil, fmt.Errorf("operation %s: %w", name, err)
		}
		tb, err := parseTime(b)
		if err != nil {
			return nil, fmt.Errorf("operation %s: %w", name, err)
		}
		return fn(ta, tb), nil
	})
}

func parseTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			// Date-only form is common in stored records.
			parsed, err = time.Parse("2006-01-02", t)
		}
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q", t)
		}
		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("invalid timestamp %v", v)
	}
}

func logicOps() map[string]OpFunc {
	return map[string]OpFunc{
		"and": func(args []any) (any, error) {
			for _, arg := range args {
				if !Truthy(arg) {
					return false, nil
				}
			}
			return true, nil
		},
		"or": func(args []any) (any, error) {
			for _, arg := range args {
				if Truthy(arg) {
					return true, nil
				}
			}
			return false, nil
		},
		"not": func(args []any) (any, error) {
			if len(args) != 1 {
				return nil, errArity("not", 1, len(args))
			}
			return !Truthy(args[0]), nil
		},
		"if": func(args []any) (any, error) {
			if len(args) != 3 {
				return nil, errArity("if", 3, len(args))
			}
			if Truthy(args[0]) {
				return args[1], nil
			}
			return args[2], nil
		},
	}
}

func arrayOps() map[string]OpFunc {
	return map[string]OpFunc{
		"count": arrayUnary("count", func(arr []any) (any, error) {
			return float64(len(arr)), nil
		}),
		"sum": arrayUnary("sum", func(arr []any) (any, error) {
			return sumNumeric("sum", arr)
		}),
		"avg": arrayUnary("avg", func(arr []any) (any, error) {
			if len(arr) == 0 {
				return nil, nil
			}
			total, err := sumNumeric("avg", arr)
			if err != nil {
				return nil, err
			}
			return total / float64(len(arr)), nil
		}),
		"first": arrayUnary("first", func(arr []any) (any, error) {
			if len(arr) == 0 {
				return nil, nil
			}
			return arr[0], nil
		}),
		"last": arrayUnary("last", func(arr []any) (any, error) {
			if len(arr) == 0 {
				return nil, nil
			}
			return arr[len(arr)-1], nil
		}),
		"includes": binary(func(a, b any) (any, error) {
			return compareIn(b, a), nil
		}),
	}
}

func arrayUnary(name string, fn func(arr []any) (any, error)) OpFunc {
	return func(args []any) (any, error) {
		if len(args) != 1 {
			return nil, errArity(name, 1, len(args))
		}
		// nil from a null-propagated field access counts as an empty array.
		if args[0] == nil {
			return fn(nil)
		}
		arr, ok := args[0].([]any)
		if !ok {
			return nil, fmt.Errorf("operation %s: non-array argument %T", name, args[0])
		}
		return fn(arr)
	}
}

// sumNumeric totals numeric elements, skipping nil entries from wildcard
// projections over records missing the projected field.
func sumNumeric(name string, arr []any) (float64, error) {
	var total float64
	for _, elem := range arr {
		if elem == nil {
			continue
		}
		n, ok := toFloat64(elem)
		if !ok {
			return 0, fmt.Errorf("operation %s: non-numeric element %v", name, elem)
		}
		total += n
	}
	return total, nil
}
