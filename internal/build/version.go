package build

import (
	"log/slog"

	"github.com/cruciblehq/tessera/internal/environ"
	"github.com/cruciblehq/tessera/internal/source"
)

// Variable the server's build script reads to suffix its version string.
const VersionExtraVar = "CONDUIT_VERSION_EXTRA"

// Returns the environment that stamps the workspace revision into builds.
//
// When dir is not inside a git repository the map is empty and the server
// reports its plain version.
func VersionEnv(dir string) environ.Map {
	rev, err := source.Read(dir)
	if err != nil {
		slog.Debug("no source revision", "dir", dir, "error", err)
		return environ.NewBuilder().Build()
	}
	return environ.NewBuilder().Set(VersionExtraVar, rev.Short()).Build()
}
