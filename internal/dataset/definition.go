package dataset

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Definition binds a dataset key to its source file and expected header.
type Definition struct {
	Key      string   `yaml:"key"`
	Filename string   `yaml:"filename"`
	Columns  []string `yaml:"columns"`
	Label    string   `yaml:"label"`
}

const (
	ProductionPlan = "production_plan"
	StandardTimes  = "standard_times"
)

// DefaultDefinitions returns the production plan and standard time datasets.
func DefaultDefinitions() []Definition {
	return []Definition{
		{
			Key:      ProductionPlan,
			Filename: "production_plan.csv",
			Columns:  []string{"納期", "個数", "部品番号", "部品名", "製番", "工程名"},
			Label:    "生産計画",
		},
		{
			Key:      StandardTimes,
			Filename: "standard_times.csv",
			Columns:  []string{"部品名", "機械標準工数", "製造オーダー番号", "部品番号", "工程名"},
			Label:    "標準工数",
		},
	}
}

type definitionsFile struct {
	Datasets []Definition `yaml:"datasets"`
}

// LoadDefinitions reads dataset definitions from a YAML file of the form
//
//	datasets:
//	  - key: production_plan
//	    filename: production_plan.csv
//	    label: 生産計画
//	    columns: [納期, 個数, 部品番号, 部品名, 製番, 工程名]
func LoadDefinitions(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset definitions: %w", err)
	}
	return ParseDefinitions(data)
}

func ParseDefinitions(data []byte) ([]Definition, error) {
	var f definitionsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("yaml parse: %w", err)
	}
	if len(f.Datasets) == 0 {
		return nil, fmt.Errorf("no datasets defined")
	}

	seen := make(map[string]bool, len(f.Datasets))
	for i, d := range f.Datasets {
		switch {
		case d.Key == "":
			return nil, fmt.Errorf("dataset %d: missing key", i)
		case d.Filename == "":
			return nil, fmt.Errorf("dataset %s: missing filename", d.Key)
		case len(d.Columns) == 0:
			return nil, fmt.Errorf("dataset %s: missing columns", d.Key)
		case seen[d.Key]:
			return nil, fmt.Errorf("dataset %s: duplicate key", d.Key)
		}
		if d.Label == "" {
			f.Datasets[i].Label = d.Key
		}
		seen[d.Key] = true
	}
	return f.Datasets, nil
}
