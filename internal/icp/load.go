package icp

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-engine/internal/model"
)

// LoadProfile reads an ICP definition from a YAML file.
func LoadProfile(path string) (model.ICP, error) {
	var profile model.ICP

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, eris.Wrapf(err, "icp: read profile %s", path)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, eris.Wrapf(err, "icp: parse profile %s", path)
	}
	return profile, nil
}
