package environ

import (
	"maps"
	"slices"
	"strings"
)

// Immutable mapping from environment variable name to value.
//
// Iteration through [Map.Keys] and [Map.Environ] is sorted by name so that
// logs and command lines are reproducible.
type Map struct {
	vars map[string]string
}

// Creates a map from "key=value" entries, as returned by [os.Environ].
// Entries without "=" are skipped and later entries win.
func FromEnviron(entries []string) Map {
	vars := make(map[string]string, len(entries))
	for _, e := range entries {
		if k, v, ok := strings.Cut(e, "="); ok {
			vars[k] = v
		}
	}
	return Map{vars: vars}
}

// Returns the value of a variable and whether it is set.
func (m Map) Get(key string) (string, bool) {
	v, ok := m.vars[key]
	return v, ok
}

// Returns the value of a variable, or "" when unset.
func (m Map) Value(key string) string {
	return m.vars[key]
}

// Returns the number of variables.
func (m Map) Len() int {
	return len(m.vars)
}

// Returns the variable names in sorted order.
func (m Map) Keys() []string {
	return slices.Sorted(maps.Keys(m.vars))
}

// Returns the variables as sorted "key=value" strings.
func (m Map) Environ() []string {
	keys := m.Keys()
	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, k+"="+m.vars[k])
	}
	return env
}

// Returns a copy of the variables as a plain map.
func (m Map) ToMap() map[string]string {
	return maps.Clone(m.vars)
}

// Reports whether two maps hold the same variables.
func (m Map) Equal(other Map) bool {
	return maps.Equal(m.vars, other.vars)
}

// Formats the map as a shell-sourceable list of exports.
func (m Map) String() string {
	var b strings.Builder
	for _, kv := range m.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		b.WriteString("export ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(shellQuote(v))
		b.WriteString("\n")
	}
	return b.String()
}

// Single-quotes a value for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
