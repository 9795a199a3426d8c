package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"jobmate/aggregator-service/internal/model"
	"jobmate/aggregator-service/internal/validate"
)

// SourceConfig is the per-source block of the pipeline file. Only the
// fields a given adapter understands are read by it.
type SourceConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Domain     string   `yaml:"domain"`
	BaseURL    string   `yaml:"base_url" validate:"omitempty,url"`
	Boards     []string `yaml:"boards"`    // greenhouse
	Companies  []string `yaml:"companies"` // lever
	FeedURL    string   `yaml:"feed_url" validate:"omitempty,url"`
	SourceName string   `yaml:"source_name"`
	City       string   `yaml:"city"`     // craigslist
	Category   string   `yaml:"category"` // craigslist
	AppID      string   `yaml:"app_id"`   // adzuna
	AppKey     string   `yaml:"app_key"`
	Country    string   `yaml:"country"`
	MaxPages   int      `yaml:"max_pages" validate:"gte=0"`
}

// Source is one named entry of the sources mapping.
type Source struct {
	Key    string
	Config SourceConfig
}

// Sources keeps the order in which sources appear in the file, which is the
// order their links are concatenated in.
type Sources []Source

// UnmarshalYAML decodes a mapping of source key → block, preserving order.
func (s *Sources) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("sources: line %d: expected a mapping", node.Line)
	}
	out := make(Sources, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var cfg SourceConfig
		if err := node.Content[i+1].Decode(&cfg); err != nil {
			return fmt.Errorf("sources.%s: %w", key, err)
		}
		out = append(out, Source{Key: key, Config: cfg})
	}
	*s = out
	return nil
}

// Employer is one target of the employer-directed (h1b) mode.
type Employer struct {
	Name      string `yaml:"name" json:"name" validate:"required"`
	ATS       string `yaml:"ats" json:"ats" validate:"required"`
	BoardSlug string `yaml:"board_slug" json:"boardSlug" validate:"required"`
}

// File is the YAML pipeline configuration.
type File struct {
	Profiles       []model.SearchProfile `yaml:"profiles"`
	Sources        Sources               `yaml:"sources" validate:"dive"`
	IncludeDomains []string              `yaml:"include_domains"`
	ExcludeDomains []string              `yaml:"exclude_domains"`
	H1BEmployers   []Employer            `yaml:"h1b_employers" validate:"dive"`
}

// LoadFile reads and validates the pipeline file at path.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline config: %w", err)
	}
	return ParseFile(data)
}

// ParseFile decodes a pipeline file. ${VAR} references are expanded from the
// environment first so credentials can stay out of the file.
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &f); err != nil {
		return nil, fmt.Errorf("parse pipeline config: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("pipeline config: %w", err)
	}

	seen := make(map[string]bool, len(f.Profiles))
	for i, p := range f.Profiles {
		valid, err := model.NewSearchProfile(p)
		if err != nil {
			return nil, fmt.Errorf("profiles[%d]: %w", i, err)
		}
		if seen[valid.Name] {
			return nil, fmt.Errorf("profiles[%d]: duplicate profile name %q", i, valid.Name)
		}
		seen[valid.Name] = true
		f.Profiles[i] = valid
	}
	return &f, nil
}

// Profile looks a profile up by name.
func (f *File) Profile(name string) (model.SearchProfile, bool) {
	for _, p := range f.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return model.SearchProfile{}, false
}
