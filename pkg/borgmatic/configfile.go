// pkg/borgmatic/configfile.go

package borgmatic

import (
	"os"

	cerr "github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// ConfiguredRepository is a repository declared in a borgmatic config file.
type ConfiguredRepository struct {
	Path  string
	Label string
}

// UnmarshalYAML accepts both the plain string form and the {path, label}
// mapping used since borgmatic 1.7.10.
func (r *ConfiguredRepository) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.Path = node.Value
		return nil
	}
	var m struct {
		Path  string `yaml:"path"`
		Label string `yaml:"label"`
	}
	if err := node.Decode(&m); err != nil {
		return err
	}
	r.Path, r.Label = m.Path, m.Label
	return nil
}

type configFile struct {
	Repositories []ConfiguredRepository `yaml:"repositories"`
	// borgmatic < 1.8 nests repositories under location.
	Location struct {
		Repositories []ConfiguredRepository `yaml:"repositories"`
	} `yaml:"location"`
}

// ReadRepositories lists the repositories a borgmatic config file declares.
// It does not follow includes; it is used for diagnostics only.
func ReadRepositories(path string) ([]ConfiguredRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerr.Wrapf(err, "read borgmatic config %s", path)
	}
	return ParseRepositories(data)
}

// ParseRepositories is ReadRepositories on already loaded YAML.
func ParseRepositories(data []byte) ([]ConfiguredRepository, error) {
	var cfg configFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cerr.Wrap(err, "parse borgmatic config")
	}
	repos := append(cfg.Repositories, cfg.Location.Repositories...)
	out := repos[:0]
	for _, r := range repos {
		if r.Path != "" {
			out = append(out, r)
		}
	}
	return out, nil
}
