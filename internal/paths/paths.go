package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	toolName = "tessera"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644

	// Permission mode for executables written by the tool.
	ExecutableFileMode os.FileMode = 0755

	// Default project configuration file name.
	ConfigFile = "tessera.yaml"
)

// Path to the directory for downloaded and verified toolchain archives.
//
//	Linux:   $XDG_CACHE_HOME/tessera/toolchains
//	macOS:   ~/Library/Caches/tessera/toolchains
func Toolchains() string {
	return filepath.Join(xdg.CacheHome, toolName, "toolchains")
}

// Path to the directory holding conformance harness results.
//
//	Linux:   $XDG_STATE_HOME/tessera/results
//	macOS:   ~/Library/Application Support/tessera/results
func Results() string {
	return filepath.Join(xdg.StateHome, toolName, "results")
}

// Path to the user-level configuration file, consulted when the project
// directory has none.
//
//	Linux:   $XDG_CONFIG_HOME/tessera/tessera.yaml
//	macOS:   ~/Library/Application Support/tessera/tessera.yaml
func UserConfig() string {
	return filepath.Join(xdg.ConfigHome, toolName, ConfigFile)
}
