// Package policy loads the category denylist and quality floor from an
// optional YAML file. This is the engine's view of the external risk/policy
// tag source: tags arrive on entities, the denylist arrives here.
package policy

import (
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Policy holds the constraint parameters sourced from the policy file.
type Policy struct {
	DeniedCategories []string `yaml:"denied_categories"`
	QualityFloor     float64  `yaml:"quality_floor"`
}

// Default returns the policy used when no file is configured: nothing
// denied, a low quality floor.
func Default() Policy {
	return Policy{QualityFloor: 0.2}
}

// Load reads a policy file. A missing path (or empty argument) yields the
// default policy rather than an error; a malformed file is fatal.
func Load(path string) (Policy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			zap.L().Debug("policy: file absent, using defaults", zap.String("path", path))
			return Default(), nil
		}
		return Policy{}, eris.Wrapf(err, "policy: read %s", path)
	}

	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, eris.Wrapf(err, "policy: parse %s", path)
	}
	if p.QualityFloor < 0 || p.QualityFloor > 1 {
		return Policy{}, eris.Errorf("policy: quality_floor %.3f outside [0,1]", p.QualityFloor)
	}
	return p, nil
}
