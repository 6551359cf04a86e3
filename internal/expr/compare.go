package expr

/*
 * Comparator implementations.
 *
 * Registered as plain operations and shared by Condition dispatch so each
 * comparison exists exactly once. Values come from decoded JSON, so numeric
 * comparison handles float64/int/int64 mixing.
 *
 * Why function-based: eight comparators via switch-free small functions stay
 * cleaner than interface polymorphism with minimal behavior variation.
 */

// compareEqual performs equality comparison with numeric type mixing.
func compareEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	return a == b
}

// compareNumeric performs three-way numeric comparison (-1/0/1).
// Returns 0 for incomparable types; callers pair it with the ok flag.
func compareNumeric(a, b any) (int, bool) {
	na, nb, ok := asNumbers(a, b)
	if !ok {
		// Fall back to string ordering so date strings compare lexically.
		sa, oka := a.(string)
		sb, okb := b.(string)
		if !oka || !okb {
			return 0, false
		}
		switch {
		case sa < sb:
			return -1, true
		case sa > sb:
			return 1, true
		default:
			return 0, true
		}
	}
	switch {
	case na < nb:
		return -1, true
	case na > nb:
		return 1, true
	default:
		return 0, true
	}
}

// asNumbers attempts to convert both values to float64 for numeric comparison.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

// toFloat64 converts value to float64 if it's a numeric type.
// Handles float64, int, int64 from JSON unmarshaling.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// compareIn checks membership of value in an array (or substring on
// strings) using equality semantics.
func compareIn(value, set any) bool {
	switch s := set.(type) {
	case []any:
		for _, elem := range s {
			if compareEqual(value, elem) {
				return true
			}
		}
		return false
	case []string:
		vs, ok := value.(string)
		if !ok {
			return false
		}
		for _, elem := range s {
			if elem == vs {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func comparatorOps() map[string]OpFunc {
	return map[string]OpFunc{
		"eq": binary(func(a, b any) (any, error) {
			return compareEqual(a, b), nil
		}),
		"ne": binary(func(a, b any) (any, error) {
			return !compareEqual(a, b), nil
		}),
		"gt": binary(func(a, b any) (any, error) {
			c, ok := compareNumeric(a, b)
			return ok && c > 0, nil
		}),
		"lt": binary(func(a, b any) (any, error) {
			c, ok := compareNumeric(a, b)
			return ok && c < 0, nil
		}),
		"gte": binary(func(a, b any) (any, error) {
			c, ok := compareNumeric(a, b)
			return ok && c >= 0, nil
		}),
		"lte": binary(func(a, b any) (any, error) {
			c, ok := compareNumeric(a, b)
			return ok && c <= 0, nil
		}),
		"in": binary(func(a, b any) (any, error) {
			return compareIn(a, b), nil
		}),
		// exists ignores a second operand; Condition(exists, x, nil) and
		// Operation("exists", x) share it.
		"exists": func(args []any) (any, error) {
			if len(args) < 1 {
				return nil, errArity("exists", 1, len(args))
			}
			return args[0] != nil, nil
		},
	}
}
