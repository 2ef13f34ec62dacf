package toolchain

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Layout of a rust-toolchain.toml file.
type channelFile struct {
	Toolchain struct {
		Channel string `toml:"channel"`
	} `toml:"toolchain"`
}

// Reads the pinned channel from a rust-toolchain.toml file.
//
// The legacy single-line "rust-toolchain" format is also accepted.
func LoadChannel(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var f channelFile
	if err := toml.Unmarshal(data, &f); err != nil {
		line := strings.TrimSpace(string(data))
		if line != "" && !strings.ContainsAny(line, "\n=[") {
			return line, nil
		}
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidSpec, path, err)
	}

	if f.Toolchain.Channel == "" {
		return "", fmt.Errorf("%w: %s declares no channel", ErrInvalidSpec, path)
	}
	return f.Toolchain.Channel, nil
}
