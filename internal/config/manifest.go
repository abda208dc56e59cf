package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/edgeflow/conductor/internal/backendstate"
)

// Manifest is the on-disk description of the fleet's static shape:
// the schedule policies an operator can pick between at install time,
// and the edge-node/service topology the Backend surfaces read-only
// through /services, /edge_nodes and /priority_info. It is read from
// Config.ResourceManifestPath; a missing file is not an error, only an
// empty fleet with no policies and no topology.
type Manifest struct {
	Policies []backendstate.Policy `yaml:"policies"`
	Topology backendstate.Topology `yaml:"topology"`
}

// LoadManifest reads path as YAML into a Manifest. A missing file
// returns an empty Manifest and no error, since an operator may run
// `conductor server` before installing anything.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Manifest{}, nil
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("config: read manifest %q: %w", path, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("config: parse manifest %q: %w", path, err)
	}
	return m, nil
}
