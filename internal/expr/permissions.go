package expr

import (
	"fmt"
)

/*
 * Context-aware permission checks.
 *
 * These operations consult the acting user (and for isOwner, the candidate
 * record) in addition to their arguments. They read the isolated context
 * copy and never write through it.
 *
 * Row-filter extraction treats every one of these as unreducible: a role or
 * permission check depends on the user, not the row, so it is enforced on
 * the access-check path and contributes no storage constraint.
 */

// defaultOwnerField is consulted when isOwner is called without an explicit
// field argument.
const defaultOwnerField = "ownerId"

func builtinCtxOps() map[string]CtxOpFunc {
	return map[string]CtxOpFunc{
		"hasRole": func(c *Context, args []any) (any, error) {
			role, err := oneString("hasRole", args)
			if err != nil {
				return nil, err
			}
			return containsString(c.User.Roles, role), nil
		},
		"hasAnyRole": func(c *Context, args []any) (any, error) {
			roles, err := allStrings("hasAnyRole", args)
			if err != nil {
				return nil, err
			}
			for _, role := range roles {
				if containsString(c.User.Roles, role) {
					return true, nil
				}
			}
			return false, nil
		},
		"hasAllRoles": func(c *Context, args []any) (any, error) {
			roles, err := allStrings("hasAllRoles", args)
			if err != nil {
				return nil, err
			}
			for _, role := range roles {
				if !containsString(c.User.Roles, role) {
					return false, nil
				}
			}
			return true, nil
		},
		"hasPermission": func(c *Context, args []any) (any, error) {
			perm, err := oneString("hasPermission", args)
			if err != nil {
				return nil, err
			}
			return containsString(c.User.Permissions, perm), nil
		},
		"isOwner": func(c *Context, args []any) (any, error) {
			field := defaultOwnerField
			if len(args) > 0 {
				f, ok := args[0].(string)
				if !ok {
					return nil, fmt.Errorf("check isOwner: non-string field argument %v", args[0])
				}
				field = f
			}
			if c.User.ID == "" {
				return false, nil
			}
			owner, err := walkSegments(splitOrSingle(field), c.Data)
			if err != nil {
				return nil, err
			}
			return compareEqual(owner, c.User.ID), nil
		},
		"isAuthenticated": func(c *Context, args []any) (any, error) {
			if len(args) != 0 {
				return nil, errArity("isAuthenticated", 0, len(args))
			}
			return c.User.ID != "", nil
		},
		"isAnonymous": func(c *Context, args []any) (any, error) {
			if len(args) != 0 {
				return nil, errArity("isAnonymous", 0, len(args))
			}
			return c.User.ID == "", nil
		},
	}
}

func oneString(name string, args []any) (string, error) {
	if len(args) != 1 {
		return "", errArity(name, 1, len(args))
	}
	s, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("check %s: non-string argument %v", name, args[0])
	}
	return s, nil
}

func allStrings(name string, args []any) ([]string, error) {
	if len(args) == 0 {
		return nil, errArity(name, 1, 0)
	}
	out := make([]string, 0, len(args))
	for _, arg := range args {
		s, ok := arg.(string)
		if !ok {
			return nil, fmt.Errorf("check %s: non-string argument %v", name, arg)
		}
		out = append(out, s)
	}
	return out, nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// splitOrSingle splits an owner field path, tolerating malformed input by
// treating it as a single segment (the lookup then simply misses).
func splitOrSingle(path string) []string {
	segments, err := splitPath(path)
	if err != nil {
		return []string{path}
	}
	return segments
}
