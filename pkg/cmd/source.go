package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Source yields command definitions for a Registry load.
type Source interface {
	Specs() ([]Spec, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func() ([]Spec, error)

func (f SourceFunc) Specs() ([]Spec, error) { return f() }

// StaticSource is a fixed list of specs.
type StaticSource []Spec

func (s StaticSource) Specs() ([]Spec, error) { return slices.Clone(s), nil }

// Manifest tunes already-defined commands without recompiling. Unknown
// command names are an error so typos do not go unnoticed.
type Manifest struct {
	Commands map[string]ManifestEntry `yaml:"commands"`
}

type ManifestEntry struct {
	Aliases  []string `yaml:"aliases"`
	Category *string  `yaml:"category"`
	Cooldown *string  `yaml:"cooldown"`
	Disabled bool     `yaml:"disabled"`
}

// ParseManifest decodes a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// WithManifest overlays the YAML manifest at path on src. An empty path
// returns src unchanged.
func WithManifest(src Source, path string) Source {
	if path == "" {
		return src
	}
	return SourceFunc(func() ([]Spec, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		m, err := ParseManifest(data)
		if err != nil {
			return nil, err
		}
		specs, err := src.Specs()
		if err != nil {
			return nil, err
		}
		return m.Apply(specs)
	})
}

// Apply returns specs with manifest overrides applied and disabled commands removed.
func (m *Manifest) Apply(specs []Spec) ([]Spec, error) {
	byName := make(map[string]int, len(specs))
	for i, s := range specs {
		byName[strings.ToLower(s.Name)] = i
	}

	out := slices.Clone(specs)
	disabled := map[int]bool{}
	for name, e := range m.Commands {
		i, ok := byName[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("manifest: unknown command %q", name)
		}
		s := &out[i]
		if len(e.Aliases) > 0 {
			s.Aliases = slices.Clone(e.Aliases)
		}
		if e.Category != nil {
			s.Category = *e.Category
		}
		if e.Cooldown != nil {
			d, err := time.ParseDuration(*e.Cooldown)
			if err != nil {
				return nil, fmt.Errorf("manifest: command %q cooldown: %w", name, err)
			}
			s.Cooldown = d
		}
		if e.Disabled {
			disabled[i] = true
		}
	}

	kept := out[:0]
	for i, s := range out {
		if !disabled[i] {
			kept = append(kept, s)
		}
	}
	return kept, nil
}
