package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	// SourcesConfig points at the directories (or zip archives) holding the
	// scholarly sources to publish.
	SourcesConfig struct {
		Editions     string `yaml:"editions" sanitize:"path_clean" validate:"required"`
		Translations string `yaml:"translations,omitempty" sanitize:"path_clean"`
		Commentaries string `yaml:"commentaries,omitempty" sanitize:"path_clean"`
	}

	// CrossRefConfig controls how textual cross-references are recognized
	// and where their links point.
	CrossRefConfig struct {
		Prefix      string `yaml:"prefix" validate:"required"`
		DefaultSlug string `yaml:"default_slug" validate:"required"`
	}

	SiteConfig struct {
		Title             string `yaml:"title"`
		BaseURL           string `yaml:"base_url,omitempty" validate:"omitempty,url"`
		Output            string `yaml:"output" sanitize:"path_clean" validate:"required"`
		PagePathTemplate  string `yaml:"page_path_template"`
		TemplatesOverride string `yaml:"templates_override,omitempty" sanitize:"path_clean"`
		AssetsPath        string `yaml:"assets_path,omitempty" sanitize:"path_clean"`
		StylesheetPath    string `yaml:"stylesheet_path,omitempty" sanitize:"assure_file_access"`
		WorkSlug          string `yaml:"work_slug,omitempty"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Sources   SourcesConfig  `yaml:"sources"`
		CrossRefs CrossRefConfig `yaml:"cross_references"`
		Site      SiteConfig     `yaml:"site"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, alternative is to use struct
	// field name and reflection which I want to avoid for now
	PagePathTemplateFieldName TemplateFieldName = "page_path_template"
)

// Page path templates are expanded later, per page, with their own data -
// gencfg must leave them alone.
var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(PagePathTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
