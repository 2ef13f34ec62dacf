package environ

import (
	"maps"
	"strings"
)

// Name of the variable that carries accumulated rustc flags.
const RustflagsVar = "CARGO_BUILD_RUSTFLAGS"

// Accumulates variables and produces an immutable [Map].
//
// Rules call Set in order; the last write of a key wins. Rustc flags are
// collected separately and joined into [RustflagsVar] by Build.
type Builder struct {
	vars      map[string]string
	rustflags []string
}

// Creates an empty [Builder].
func NewBuilder() *Builder {
	return &Builder{vars: make(map[string]string)}
}

// Sets a variable, replacing any earlier value.
func (b *Builder) Set(key, value string) *Builder {
	b.vars[key] = value
	return b
}

// Appends rustc flags, preserving order.
func (b *Builder) Rustflags(flags ...string) *Builder {
	b.rustflags = append(b.rustflags, flags...)
	return b
}

// Copies every variable of m into the builder.
func (b *Builder) Merge(m Map) *Builder {
	maps.Copy(b.vars, m.vars)
	return b
}

// Returns the composed map. The builder may continue to be used; later
// changes do not affect maps already built.
func (b *Builder) Build() Map {
	vars := maps.Clone(b.vars)
	if len(b.rustflags) > 0 {
		flags := strings.Join(b.rustflags, " ")
		if existing := vars[RustflagsVar]; existing != "" {
			flags = existing + " " + flags
		}
		vars[RustflagsVar] = flags
	}
	return Map{vars: vars}
}
