package expr

/*
 * Evaluation context and isolation.
 *
 * Context carries the candidate record, the acting user, request parameters,
 * and process globals for one evaluation. The contract is read-only: no
 * operation may observe a context mutated by a sibling or prior call.
 *
 * Go has no deep-freeze, so the sandbox enforces the invariant by structural
 * copy: Isolate() deep-copies every map and slice before evaluation, so an
 * operation writing into, e.g., user.roles elevates only its private copy
 * and the caller's objects are never exposed mutable.
 */

// User identifies the actor for one evaluation.
type User struct {
	ID          string
	Roles       []string
	Permissions []string
}

// Context is the read-only input to one evaluation.
type Context struct {
	Data    map[string]any // candidate record
	User    User
	Params  map[string]any // request-scoped parameters
	Globals map[string]any // process-wide constants
}

// Isolate returns a structurally independent copy of the context.
// Mutations of the copy (or values reachable from it) never reach the
// original.
func (c *Context) Isolate() *Context {
	if c == nil {
		return &Context{}
	}
	return &Context{
		Data: copyMap(c.Data),
		User: User{
			ID:          c.User.ID,
			Roles:       copyStrings(c.User.Roles),
			Permissions: copyStrings(c.User.Permissions),
		},
		Params:  copyMap(c.Params),
		Globals: copyMap(c.Globals),
	}
}

// userBag exposes the user as a path-addressable map for FieldAccess under
// the "user." root and for row-filter resolution.
func (c *Context) userBag() map[string]any {
	return map[string]any{
		"id":          c.User.ID,
		"roles":       anySlice(c.User.Roles),
		"permissions": anySlice(c.User.Permissions),
	}
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

// copyValue deep-copies maps and slices; scalars are value-copied by
// assignment. Unknown reference types do not occur in decoded JSON input.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = copyValue(elem)
		}
		return out
	case []string:
		return copyStrings(t)
	default:
		return v
	}
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func anySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
