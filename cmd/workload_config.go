package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Define struct for YAML
type WorkloadConfig struct {
	Workloads map[string]Workload `yaml:"workloads"`
}

type Workload struct {
	PromptTokensMean  int `yaml:"prompt_tokens"`
	PromptTokensStdev int `yaml:"prompt_tokens_stdev"`
	PromptTokensMin   int `yaml:"prompt_tokens_min"`
	PromptTokensMax   int `yaml:"prompt_tokens_max"`
	OutputTokensMean  int `yaml:"output_tokens"`
	OutputTokensStdev int `yaml:"output_tokens_stdev"`
	OutputTokensMin   int `yaml:"output_tokens_min"`
	OutputTokensMax   int `yaml:"output_tokens_max"`
}

// GetWorkloadConfig loads a named workload preset from a YAML file. Returns
// nil when the preset does not exist.
func GetWorkloadConfig(workloadFilePath string, workloadType string) *Workload {
	// Read YAML file
	data, err := os.ReadFile(workloadFilePath)
	if err != nil {
		logrus.Fatalf("unable to read workload config %s: %v", workloadFilePath, err)
	}

	// Parse YAML
	var cfg WorkloadConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logrus.Fatalf("unable to parse workload config %s: %v", workloadFilePath, err)
	}

	if workload, workloadExists := cfg.Workloads[workloadType]; workloadExists {
		logrus.Infof("Using preset workload %v", workloadType)
		return &workload
	}
	return nil
}
