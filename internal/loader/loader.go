package loader

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sourceplane/slurmster/internal/errors"
	"github.com/sourceplane/slurmster/internal/model"
	"github.com/sourceplane/slurmster/internal/schema"
)

// LoadConfig reads, schema-validates and decodes an experiment file.
// The result is not normalised; see normalize.Config.
func LoadConfig(path string) (*model.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithHint(
			errors.Configurationf("failed to read experiment file %s: %v", path, err),
			"pass the experiment file with --config",
		)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return cfg, nil
}

// ParseConfig validates and decodes experiment YAML
func ParseConfig(data []byte) (*model.Config, error) {
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, err
	}

	if err := validator.ValidateConfigYAML(data); err != nil {
		return nil, err
	}

	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		if errors.Is(err, errors.ErrConfiguration) {
			return nil, err
		}
		return nil, errors.Configurationf("failed to parse experiment YAML: %v", err)
	}

	return &cfg, nil
}
