package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/meigma/zipmerge"
)

// ruleSpec is one entry of a --rules file.
type ruleSpec struct {
	Pattern string `yaml:"pattern"`
	Policy  string `yaml:"policy"`
}

// loadRules reads a yaml list of {pattern, policy} rules, preserving file
// order. Policies are reject, first-wins, last-wins, or concat.
func loadRules(path string) ([]zipmerge.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var specs []ruleSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	rules := make([]zipmerge.Rule, 0, len(specs))
	for i, spec := range specs {
		if spec.Pattern == "" {
			return nil, fmt.Errorf("%s: rule %d has no pattern", path, i)
		}
		policy, err := zipmerge.ParsePolicy(spec.Policy)
		if err != nil {
			return nil, fmt.Errorf("%s: rule %d: %w", path, i, err)
		}
		rules = append(rules, zipmerge.Rule{Pattern: spec.Pattern, Policy: policy})
	}
	return rules, nil
}
