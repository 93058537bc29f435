// Package pack loads remolder manifests, routes each resource location to
// its format and remolder chain, and reads and writes packs of resources.
package pack

import (
	"errors"
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"

	"github.com/agentic-research/remolder/api"
)

// LoadManifest loads and parses a YAML manifest file.
func LoadManifest(path string) (*api.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}
	return ParseManifest(data)
}

// ParseManifest parses YAML manifest data, applies defaults and validates it.
func ParseManifest(data []byte) (*api.Manifest, error) {
	var m api.Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	applyDefaults(&m)
	if err := validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func applyDefaults(m *api.Manifest) {
	if m.Version == "" {
		m.Version = "1"
	}
	if m.Config == nil {
		m.Config = map[string]any{}
	}
	for i := range m.Remolders {
		r := &m.Remolders[i]
		if r.Name == "" {
			r.Name = fmt.Sprintf("%s#%d", r.Kind, i)
		}
	}
}

func validate(m *api.Manifest) error {
	var errs []error
	for _, r := range m.Remolders {
		if r.Kind == "" {
			errs = append(errs, fmt.Errorf("remolder %s: missing kind", r.Name))
		}
		if len(r.Targets) == 0 {
			errs = append(errs, fmt.Errorf("remolder %s: no targets", r.Name))
		}
		for _, p := range append(append([]string(nil), r.Targets...), r.Packs...) {
			if _, err := path.Match(p, ""); err != nil {
				errs = append(errs, fmt.Errorf("remolder %s: bad pattern %q: %w", r.Name, p, err))
			}
		}
		if r.When != nil && r.When.Value == "" {
			errs = append(errs, fmt.Errorf("remolder %s: condition without a value", r.Name))
		}
	}
	return errors.Join(errs...)
}
