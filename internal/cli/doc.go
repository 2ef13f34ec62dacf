// Parses flags, loads the project configuration, and runs tessera commands.
//
// The command accepts the following global flags:
//
//	-q, --quiet     Suppress informational output.
//	-v, --verbose   Enable verbose output.
//	-d, --debug     Enable debug output.
//	-c, --config    Project configuration file.
//
// Flags override build-time defaults set via linker flags. After parsing, the
// global logger is reconfigured to reflect the final level and verbosity
// before the selected command runs. Commands that need the project
// configuration load it on demand, so "tessera version" works anywhere.
package cli
