package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/practicum-api/internal/models"
)

type schemeFile struct {
	Name       string `yaml:"name"`
	Components []struct {
		Name     string  `yaml:"name"`
		MaxScore float64 `yaml:"max_score"`
		Weight   float64 `yaml:"weight"`
	} `yaml:"components"`
}

// LoadGradingScheme reads component templates from a YAML file. An empty path
// yields the default practicum scheme.
func LoadGradingScheme(path string) (models.GradingScheme, error) {
	if strings.TrimSpace(path) == "" {
		return models.DefaultGradingScheme(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.GradingScheme{}, fmt.Errorf("read grading scheme: %w", err)
	}
	return ParseGradingScheme(raw)
}

// ParseGradingScheme decodes a YAML grading scheme document.
func ParseGradingScheme(raw []byte) (models.GradingScheme, error) {
	var doc schemeFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return models.GradingScheme{}, fmt.Errorf("parse grading scheme: %w", err)
	}
	if len(doc.Components) == 0 {
		return models.GradingScheme{}, fmt.Errorf("grading scheme %q has no components", doc.Name)
	}
	scheme := models.GradingScheme{Name: doc.Name}
	for i, c := range doc.Components {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return models.GradingScheme{}, fmt.Errorf("grading scheme component %d: name required", i+1)
		}
		if c.MaxScore <= 0 {
			return models.GradingScheme{}, fmt.Errorf("grading scheme component %s: max_score must be positive", name)
		}
		if c.Weight < 0 {
			return models.GradingScheme{}, fmt.Errorf("grading scheme component %s: weight must not be negative", name)
		}
		scheme.Components = append(scheme.Components, models.ComponentTemplate{Name: name, MaxScore: c.MaxScore, Weight: c.Weight})
	}
	return scheme, nil
}
