// Provides platform-appropriate paths for tessera.
//
// All paths follow XDG conventions on Linux and platform-native conventions
// on macOS and Windows. The tool name "tessera" is used as the subdirectory
// under each base path.
package paths
