package store

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tidegate/authcore/internal/policy"
)

/*
 * Row-filter translation.
 *
 * Converts the engine's storage-agnostic RowFilter tree into a
 * parameterized SQL predicate. Field names map to columns through an
 * explicit table map; a constraint on a field the table does not carry is a
 * translation error rather than a dropped predicate, since dropping a
 * constraint would return rows the filter was meant to exclude.
 *
 * Leaf fields within one filter node are emitted in sorted order so the
 * same filter always yields the same SQL (stable query plans, testable
 * output).
 */

var identPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// BuildWhere renders a RowFilter into a SQL predicate with ? placeholders
// (callers Rebind for the active driver). The empty filter yields an empty
// clause; callers omit WHERE entirely then.
func BuildWhere(f policy.RowFilter, columns map[string]string) (string, []any, error) {
	if f.Empty() {
		return "", nil, nil
	}
	return renderFilter(f, columns)
}

func renderFilter(f policy.RowFilter, columns map[string]string) (string, []any, error) {
	var conjuncts []string
	var args []any

	// Leaf constraints in deterministic order.
	fields := make([]string, 0, len(f))
	for key := range f {
		if key == policy.CombinatorAnd || key == policy.CombinatorOr {
			continue
		}
		fields = append(fields, key)
	}
	sort.Strings(fields)

	for _, field := range fields {
		column, ok := columns[field]
		if !ok {
			return "", nil, fmt.Errorf("row filter references unknown field %q", field)
		}
		if !identPattern.MatchString(column) {
			return "", nil, fmt.Errorf("invalid column name %q", column)
		}
		value := f[field]
		if value == nil {
			conjuncts = append(conjuncts, column+" IS NULL")
			continue
		}
		conjuncts = append(conjuncts, column+" = ?")
		args = append(args, value)
	}

	for _, combinator := range []string{policy.CombinatorAnd, policy.CombinatorOr} {
		raw, ok := f[combinator]
		if !ok {
			continue
		}
		children, ok := raw.([]policy.RowFilter)
		if !ok {
			return "", nil, fmt.Errorf("combinator %s holds %T, expected filter list", combinator, raw)
		}
		clause, childArgs, err := renderCombinator(combinator, children, columns)
		if err != nil {
			return "", nil, err
		}
		if clause != "" {
			conjuncts = append(conjuncts, clause)
			args = append(args, childArgs...)
		}
	}

	switch len(conjuncts) {
	case 0:
		return "", nil, nil
	case 1:
		return conjuncts[0], args, nil
	default:
		return "(" + strings.Join(conjuncts, " AND ") + ")", args, nil
	}
}

func renderCombinator(combinator string, children []policy.RowFilter, columns map[string]string) (string, []any, error) {
	clauses := make([]string, 0, len(children))
	var args []any
	for _, child := range children {
		clause, childArgs, err := renderFilter(child, columns)
		if err != nil {
			return "", nil, err
		}
		if clause == "" {
			if combinator == policy.CombinatorOr {
				// An unconstrained OR branch admits every row.
				return "", nil, nil
			}
			continue
		}
		clauses = append(clauses, clause)
		args = append(args, childArgs...)
	}

	switch len(clauses) {
	case 0:
		return "", nil, nil
	case 1:
		return clauses[0], args, nil
	}

	joiner := " AND "
	if combinator == policy.CombinatorOr {
		joiner = " OR "
	}
	return "(" + strings.Join(clauses, joiner) + ")", args, nil
}
