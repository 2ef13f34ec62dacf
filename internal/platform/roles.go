package platform

// The three platforms involved in one compilation.
type Roles struct {
	Build  Triple // Platform running the compiler.
	Host   Triple // Platform the compiled tooling and build scripts target.
	Target Triple // Platform the output binary runs on.
}

// Returns roles for a native build, where all three platforms coincide.
func NativeRoles(t Triple) Roles {
	return Roles{Build: t, Host: t, Target: t}
}

// Returns roles for compiling on build for target.
//
// Cargo treats the platform passed to --target as the host of the produced
// artifacts, so host and target are the same triple here.
func CrossRoles(build, target Triple) Roles {
	return Roles{Build: build, Host: target, Target: target}
}

// Reports whether the build needs no cross-compilation variables.
func (r Roles) IsNative() bool {
	return r.Build == r.Host && r.Host == r.Target
}
