package expr

import (
	"github.com/tidegate/authcore/internal/types"
)

/*
 * Field path resolution.
 *
 * Resolves dot-delimited paths through nested objects and arrays. Absence is
 * data, not an error: any null or missing intermediate short-circuits the
 * whole access to nil so policies can test optional fields with eq/exists.
 *
 * Root routing: the first segment selects the context bag. "user", "params",
 * and "globals" address those members; every other first segment addresses
 * the candidate record, so "uploadedBy" and "user.id" resolve symmetrically
 * on both the access-check and filter-extraction paths.
 *
 * Wildcard semantics: a "*" segment requires the current value to be an
 * array and yields it for the enclosing array operation. Trailing segments
 * after the wildcard project each element through the remaining path
 * (missing elements become nil entries, preserving length). A wildcard on a
 * non-array is an evaluation error, never silent iteration.
 */

// Resolve resolves a dot path against the context.
// Returns nil for missing or null intermediates, ErrWildcardOnNonArray when
// a "*" segment reaches a non-array value. Exported for the row-filter
// extractor, which resolves "user."-paths without running the evaluator.
func Resolve(path string, c *Context) (any, error) {
	return resolvePath(path, c)
}

// resolvePath resolves a dot path against the context.
func resolvePath(path string, c *Context) (any, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	var current any
	switch segments[0] {
	case "user":
		current = c.userBag()
	case "params":
		current = c.Params
	case "globals":
		current = c.Globals
	default:
		// First segment addresses the record itself.
		return walkSegments(segments, c.Data)
	}
	return walkSegments(segments[1:], current)
}

// walkSegments traverses nested values following the remaining segments.
func walkSegments(segments []string, current any) (any, error) {
	for i, seg := range segments {
		if current == nil {
			return nil, nil
		}

		if seg == Wildcard {
			arr, ok := current.([]any)
			if !ok {
				return nil, types.ErrWildcardOnNonArray
			}
			rest := segments[i+1:]
			if len(rest) == 0 {
				return arr, nil
			}
			// Project each element through the trailing path. Nested
			// wildcards recurse; resolution failures inside an element
			// propagate, missing values stay nil.
			projected := make([]any, len(arr))
			for j, elem := range arr {
				v, err := walkSegments(rest, elem)
				if err != nil {
					return nil, err
				}
				projected[j] = v
			}
			return projected, nil
		}

		obj, ok := current.(map[string]any)
		if !ok {
			// Scalar or array mid-path without wildcard: absence, not error.
			return nil, nil
		}
		next, ok := obj[seg]
		if !ok {
			return nil, nil
		}
		current = next
	}
	return current, nil
}
