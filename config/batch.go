package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BatchQuery is one entry of a batch file.
type BatchQuery struct {
	Brand string `yaml:"brand"`
	Model string `yaml:"model"`
}

// BatchFile is the shape of a YAML batch file:
//
//	queries:
//	  - brand: toyota
//	    model: corolla
//	  - brand: ford
//	    model: focus
type BatchFile struct {
	Queries []BatchQuery `yaml:"queries"`
}

// LoadBatchFile reads and validates a batch file.
func LoadBatchFile(path string) (*BatchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}

	var batch BatchFile
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parsing batch file %s: %w", path, err)
	}
	if len(batch.Queries) == 0 {
		return nil, fmt.Errorf("batch file %s lists no queries", path)
	}
	for i, q := range batch.Queries {
		if q.Brand == "" || q.Model == "" {
			return nil, fmt.Errorf("batch file %s: query %d is missing brand or model", path, i+1)
		}
	}
	return &batch, nil
}
