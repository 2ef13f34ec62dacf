package internal

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (

	// Name of the tool, used for the command and log output.
	Name = "tessera"

	// String to indicate an undefined variable
	defaultUndefined = "(undefined)"

	// Main branch name, omitted from version strings
	mainBranch = "main"

	// Length of the commit hash shown in version strings
	shortCommitLen = 12
)

var (
	version   = "" // Release version (e.g., "0.4.1")
	stage     = "" // Git branch the release was cut from (e.g., "main")
	gitCommit = "" // Git commit hash

	rawQuiet   = "false" // Whether to enable quiet mode
	rawDebug   = "false" // Whether to enable debug mode
	rawVerbose = "false" // Whether to enable verbose logging
)

// Returns the release version without a "v" prefix, or "(undefined)".
func Version() string {
	v := strings.ToLower(strings.TrimSpace(version))
	if v == "" {
		return defaultUndefined
	}
	return strings.TrimPrefix(v, "v")
}

// Returns the branch the release was cut from, or "(undefined)".
func Stage() string {
	s := strings.TrimSpace(stage)
	if s == "" {
		return defaultUndefined
	}
	return strings.ToLower(s)
}

// Returns the commit the binary was built from.
//
// Falls back to the VCS stamp the Go toolchain embeds when the linker flag
// is unset, and to "(undefined)" when neither is present.
func GitCommit() string {
	if c := strings.TrimSpace(gitCommit); c != "" {
		return c
	}
	if c, dirty := vcsRevision(); c != "" {
		if dirty {
			c += "-dirty"
		}
		return c
	}
	return defaultUndefined
}

// Returns the revision recorded in the build info.
func vcsRevision() (string, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	var rev string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	return rev, dirty
}

// Returns the build platform as "<os>/<arch>".
func Arch() string {
	return runtime.GOOS + "/" + runtime.GOARCH
}

// Returns true unless the version, commit and stage were all set at link
// time, as release pipelines do.
func IsLocal() bool {
	return strings.TrimSpace(version) == "" ||
		strings.TrimSpace(gitCommit) == "" ||
		strings.TrimSpace(stage) == ""
}

// Returns a detailed version string.
//
// Release builds read "<version>[+<stage>] <commit> [<os>/<arch>]", with the
// stage omitted for the main branch. Local builds read
// "(local) <commit> [<os>/<arch>]".
func VersionString() string {
	commit := GitCommit()
	if len(commit) > shortCommitLen && !strings.HasSuffix(commit, "-dirty") {
		commit = commit[:shortCommitLen]
	}

	if IsLocal() {
		return fmt.Sprintf("(local) %s [%s]", commit, Arch())
	}

	s := ""
	if Stage() != mainBranch {
		s = "+" + Stage()
	}
	return fmt.Sprintf("%s%s %s [%s]", Version(), s, commit, Arch())
}
