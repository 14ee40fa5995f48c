// Package nested reads and writes values addressed by dotted names, such as
// "user.address.city", over nested map[string]any data.
//
// The CRUD layer uses it to project flat column values into nested response
// objects and, with Flatten, to turn nested request payloads back into flat
// values. All functions are pure: they only touch the maps passed in.
//
// Read cannot distinguish a missing path from a stored nil; Exists can:
//
//	data := map[string]any{"a": map[string]any{"b": nil}}
//	nested.Read("a.b", data)   // nil
//	nested.Exists("a.b", data) // true
//	nested.Exists("a.c", data) // false
package nested

import (
	"errors"
	"sort"
	"strings"

	"github.com/syssam/portsql"
	"github.com/syssam/portsql/schema/field"
)

// Separator splits a name into path segments.
const Separator = "."

// ErrNilMap is returned by Write when there is no map to write into.
var ErrNilMap = errors.New("nested: write into nil map")

// Exists reports whether the leaf addressed by name is present in data.
// A present leaf holding nil is reported as existing.
func Exists(name string, data map[string]any) bool {
	node, last, ok := parent(name, data)
	if !ok {
		return false
	}
	_, ok = node[last]
	return ok
}

// Read returns the value addressed by name, or nil if any segment is
// missing. A stored nil and a missing path both read as nil.
func Read(name string, data map[string]any) any {
	node, last, ok := parent(name, data)
	if !ok {
		return nil
	}
	return node[last]
}

// parent walks all segments but the last and returns the map holding the
// leaf together with the leaf key.
func parent(name string, data map[string]any) (map[string]any, string, bool) {
	if data == nil {
		return nil, "", false
	}
	if !strings.Contains(name, Separator) {
		return data, name, true
	}
	parts := strings.Split(name, Separator)
	node := data
	for _, p := range parts[:len(parts)-1] {
		child, ok := node[p].(map[string]any)
		if !ok {
			return nil, "", false
		}
		node = child
	}
	return node, parts[len(parts)-1], true
}

// Write stores value at the leaf addressed by name, creating intermediate
// maps as needed, after casting it to t.
//
// It fails with a *portsql.ConflictError if an intermediate segment already
// holds a non-map value, with a *portsql.DuplicateFieldError if the leaf is
// already present, and with a *portsql.CastError if the cast fails. Nothing
// is stored at the leaf on failure. A nil out fails with ErrNilMap.
func Write(out map[string]any, name string, value any, t field.Type) error {
	if out == nil {
		return ErrNilMap
	}
	parts := strings.Split(name, Separator)
	node := out
	for i, p := range parts[:len(parts)-1] {
		existing, ok := node[p]
		if !ok {
			child := make(map[string]any)
			node[p] = child
			node = child
			continue
		}
		child, ok := existing.(map[string]any)
		if !ok {
			return portsql.NewConflictError(name, strings.Join(parts[:i+1], Separator))
		}
		node = child
	}
	last := parts[len(parts)-1]
	if _, ok := node[last]; ok {
		return portsql.NewDuplicateFieldError(name)
	}
	v, err := field.Cast(value, t)
	if err != nil {
		return err
	}
	node[last] = v
	return nil
}

// Flatten returns the leaves of data keyed by their dotted names. Nested
// maps are descended; every other value, including nil, is a leaf.
func Flatten(data map[string]any) map[string]any {
	out := make(map[string]any)
	flatten("", data, out)
	return out
}

func flatten(prefix string, data map[string]any, out map[string]any) {
	for k, v := range data {
		name := k
		if prefix != "" {
			name = prefix + Separator + k
		}
		if child, ok := v.(map[string]any); ok && len(child) > 0 {
			flatten(name, child, out)
			continue
		}
		out[name] = v
	}
}

// Names returns the sorted dotted names of the leaves in data.
func Names(data map[string]any) []string {
	flat := Flatten(data)
	names := make([]string, 0, len(flat))
	for k := range flat {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
