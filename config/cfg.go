package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"

	"ept/translate"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	APIConfig struct {
		URL     string       `yaml:"url" validate:"omitempty,url"`
		Key     SecretString `yaml:"key"`
		Model   string       `yaml:"model"`
		Timeout int          `yaml:"timeout_sec" validate:"gte=0"`
	}

	TranslationConfig struct {
		SourceLanguage string               `yaml:"source_language" validate:"omitempty,bcp47_language_tag"`
		TargetLanguage string               `yaml:"target_language" validate:"required,bcp47_language_tag"`
		SubmitMode     translate.SubmitKind `yaml:"submit_mode" validate:"gte=0"`
		MaxChunkTokens int                  `yaml:"max_chunk_tokens" validate:"min=256"`
		Encoding       string               `yaml:"tokenizer_encoding"`
	}

	DocumentConfig struct {
		TranslateToc          bool   `yaml:"translate_toc"`
		TranslateMetadata     bool   `yaml:"translate_metadata"`
		ConvertMath           bool   `yaml:"convert_math"`
		OutputNameTemplate    string `yaml:"output_name_template"`
		FileNameTransliterate bool   `yaml:"file_name_transliterate"`
	}

	Config struct {
		Version     int               `yaml:"version" validate:"eq=1"`
		Document    DocumentConfig    `yaml:"document"`
		Translation TranslationConfig `yaml:"translation"`
		API         APIConfig         `yaml:"api"`
		Logging     LoggingConfig     `yaml:"logging"`
		Reporting   ReporterConfig    `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, alternative is to use struct
	// field name and reflection which I want to avoid for now
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

// APITimeout returns the configured API timeout as a duration.
func (c *APIConfig) APITimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

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
// superimposes its values on top of expanded configuration tamplate to provide
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
