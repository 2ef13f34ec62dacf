package matrix

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

// Name of a cargo manifest.
const cargoManifest = "Cargo.toml"

// Fields of a cargo manifest relevant to feature discovery.
type manifest struct {
	Workspace struct {
		Members []string `toml:"members"`
	} `toml:"workspace"`
	Features map[string]any `toml:"features"`
}

// Every feature declared across a cargo workspace.
type Catalogue struct {
	features []string
}

// Reads the workspace manifest at root and every member manifest, and
// collects the names of their features.
//
// Member entries may be glob patterns, as in cargo. The resulting list is
// sorted and deduplicated.
func LoadCatalogue(root string) (*Catalogue, error) {
	ws, err := readManifest(filepath.Join(root, cargoManifest))
	if err != nil {
		return nil, err
	}

	features := slices.Collect(maps.Keys(ws.Features))

	for _, pattern := range ws.Workspace.Members {
		dirs, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("workspace member %q: %w", pattern, err)
		}
		for _, dir := range dirs {
			path := filepath.Join(dir, cargoManifest)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			m, err := readManifest(path)
			if err != nil {
				return nil, err
			}
			features = slices.AppendSeq(features, maps.Keys(m.Features))
		}
	}

	slices.Sort(features)
	return &Catalogue{features: slices.Compact(features)}, nil
}

// Creates a catalogue from a list of feature names.
func NewCatalogue(features ...string) *Catalogue {
	f := slices.Clone(features)
	slices.Sort(f)
	return &Catalogue{features: slices.Compact(f)}
}

// Returns every declared feature, sorted.
func (c *Catalogue) Features() []string {
	return slices.Clone(c.features)
}

// Reports whether a feature is declared.
func (c *Catalogue) Has(feature string) bool {
	_, ok := slices.BinarySearch(c.features, feature)
	return ok
}

// Returns [ErrUnknownFeature] naming the first undeclared feature.
func (c *Catalogue) Validate(features []string) error {
	for _, f := range features {
		if !c.Has(f) {
			return fmt.Errorf("%w: %q", ErrUnknownFeature, f)
		}
	}
	return nil
}

// Decodes one cargo manifest.
func readManifest(path string) (manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest{}, err
	}
	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return manifest{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
