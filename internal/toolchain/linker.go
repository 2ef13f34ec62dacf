package toolchain

import "strings"

// Family of the linker the C toolchain drives.
type LinkerKind string

const (
	LinkerGNU  LinkerKind = "gnu"  // GNU ld (bfd).
	LinkerGold LinkerKind = "gold" // GNU gold.
	LinkerMold LinkerKind = "mold" // mold.
	LinkerLLD  LinkerKind = "lld"  // LLVM lld.
)

// Reports whether the linker belongs to the LLVM family.
func (k LinkerKind) IsLLVM() bool {
	switch strings.ToLower(string(k)) {
	case "lld", "ld.lld", "ld64.lld", "lld-link", "llvm":
		return true
	}
	return false
}

// C toolchain commands for one platform.
type Compiler struct {
	CC     string `yaml:"cc"`     // C compiler.
	CXX    string `yaml:"cxx"`    // C++ compiler.
	Linker string `yaml:"linker"` // Linker driver passed to cargo.
}

// Fills unset commands with conventional names for the given triple.
//
// A native compiler defaults to "cc" and "c++"; a cross compiler defaults to
// the "<triple>-gcc" naming used by cross toolchains. The linker defaults to
// the C compiler driver.
func (c Compiler) withDefaults(triple string, native bool) Compiler {
	if c.CC == "" {
		if native {
			c.CC = "cc"
		} else {
			c.CC = triple + "-gcc"
		}
	}
	if c.CXX == "" {
		if native {
			c.CXX = "c++"
		} else {
			c.CXX = triple + "-g++"
		}
	}
	if c.Linker == "" {
		c.Linker = c.CC
	}
	return c
}
