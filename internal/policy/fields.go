package policy

import (
	"github.com/tidegate/authcore/internal/types"
)

/*
 * Field-level permissions.
 *
 * Independent of row selection: the rule's static read/write/deny lists
 * decide which named fields cross the boundary in either direction. This is
 * the last line of defense against privilege escalation via extra fields
 * smuggled into a write payload.
 *
 * Deny always wins, regardless of where it appears in the source spec.
 * Against an explicit list, denied names are removed; against the wildcard,
 * FilterRecord subtracts them from the record itself, since a wildcard list
 * cannot be enumerated up front.
 */

// FieldMode selects the read or write list of a FieldSpec.
type FieldMode string

// Field filter directions.
const (
	FieldRead  FieldMode = "read"
	FieldWrite FieldMode = "write"
)

// FilterFields resolves a field spec into effective read and write lists:
// declared lists (wildcard when omitted) minus every denied name.
func FilterFields(spec *FieldSpec) (read, write []string) {
	if spec == nil {
		return []string{FieldWildcard}, []string{FieldWildcard}
	}
	read = removeDenied(defaultWildcard(spec.Read), spec.Deny)
	write = removeDenied(defaultWildcard(spec.Write), spec.Deny)
	return read, write
}

// FilterDataFields returns a new record containing only the intersection of
// the record's own keys and allowed. The wildcard passes the record through
// (still copied); fields absent from the source are never synthesized.
func FilterDataFields(data types.Record, allowed []string) types.Record {
	if data == nil {
		return nil
	}
	out := make(types.Record, len(data))
	if hasWildcard(allowed) {
		for k, v := range data {
			out[k] = v
		}
		return out
	}
	for _, name := range allowed {
		if v, ok := data[name]; ok {
			out[name] = v
		}
	}
	return out
}

// FilterRecord applies a field spec to a record in one direction, honoring
// deny even when the allowed list is the wildcard.
func FilterRecord(data types.Record, spec *FieldSpec, mode FieldMode) types.Record {
	read, write := FilterFields(spec)
	allowed := read
	if mode == FieldWrite {
		allowed = write
	}
	out := FilterDataFields(data, allowed)
	if spec == nil || len(spec.Deny) == 0 {
		return out
	}
	for _, name := range spec.Deny {
		delete(out, name)
	}
	return out
}

// FieldsFor resolves the effective read/write lists for (resource, action).
// The third result is false when no policy exists; fail-closed callers
// expose no fields then.
func (e *Engine) FieldsFor(resource string, action types.Action) (read, write []string, ok bool) {
	p, found := e.Current().Lookup(resource, action)
	if !found {
		return nil, nil, false
	}
	read, write = FilterFields(p.Fields)
	return read, write, true
}

// FilterRecordFor applies the (resource, action) field spec to a record.
// Returns an empty record when no policy exists: no policy, no fields.
func (e *Engine) FilterRecordFor(resource string, action types.Action, data types.Record, mode FieldMode) types.Record {
	p, found := e.Current().Lookup(resource, action)
	if !found {
		return types.Record{}
	}
	return FilterRecord(data, p.Fields, mode)
}

func defaultWildcard(names []string) []string {
	if len(names) == 0 {
		return []string{FieldWildcard}
	}
	return names
}

func removeDenied(names, deny []string) []string {
	if len(deny) == 0 {
		out := make([]string, len(names))
		copy(out, names)
		return out
	}
	denied := make(map[string]struct{}, len(deny))
	for _, name := range deny {
		denied[name] = struct{}{}
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, drop := denied[name]; drop {
			continue
		}
		out = append(out, name)
	}
	return out
}

func hasWildcard(names []string) bool {
	for _, name := range names {
		if name == FieldWildcard {
			return true
		}
	}
	return false
}
