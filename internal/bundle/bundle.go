// Package bundle loads component manifests: YAML documents describing
// which components a demo or deployment should instantiate, their
// dependency wiring, and the provided interfaces they publish. This is
// the engine's bundle-activator analogue, minus OSGi's class-loading
// machinery — a manifest only ever names demo-registered component
// factories by kind.
package bundle

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"celixdm/pkg/logging"
)

// Manifest is the top-level shape of a bundle YAML file.
type Manifest struct {
	Bundle     string           `yaml:"bundle"`
	Components []ComponentSpec  `yaml:"components"`
}

// ComponentSpec describes one component to instantiate: which factory
// kind builds it, its name, and its dependency wiring.
type ComponentSpec struct {
	Kind         string             `yaml:"kind"`
	Name         string             `yaml:"name"`
	Dependencies []DependencySpec   `yaml:"dependencies,omitempty"`
	Provides     []ProvidedSpec     `yaml:"provides,omitempty"`
}

// DependencySpec describes one service dependency a component declares.
type DependencySpec struct {
	Service  string `yaml:"service"`
	Required bool   `yaml:"required"`
	Strategy string `yaml:"strategy,omitempty"` // "suspend" (default) or "locking"
	Filter   string `yaml:"filter,omitempty"`
}

// ProvidedSpec describes one service a component publishes.
type ProvidedSpec struct {
	Service string            `yaml:"service"`
	Ranking int               `yaml:"ranking,omitempty"`
	Extra   map[string]string `yaml:"properties,omitempty"`
}

// Load reads and parses a bundle manifest from path.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("bundle: reading %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("bundle: parsing %s: %w", path, err)
	}

	if m.Bundle == "" {
		return Manifest{}, fmt.Errorf("bundle: %s: missing required \"bundle\" name", path)
	}
	for i, c := range m.Components {
		if c.Name == "" {
			return Manifest{}, fmt.Errorf("bundle: %s: component at index %d has no name", path, i)
		}
		if c.Kind == "" {
			return Manifest{}, fmt.Errorf("bundle: %s: component %q has no kind", path, c.Name)
		}
	}

	logging.Info("Bundle", "loaded manifest %q from %s: %d component(s)", m.Bundle, path, len(m.Components))
	return m, nil
}
