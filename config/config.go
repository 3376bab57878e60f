// Package config loads .textkey.yaml, the project configuration.
//
// The file is optional; a project without it uses the layout of a stock
// Vue project: src/utils/i18n.ts with English and French sections.
//
//	translation_file: src/utils/i18n.ts
//	locales: [en, fr]
//	provider: openai
//	model: gpt-4o
//	references:
//	  template: "{{ $t.{key} }}"
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/textkey/i18n"
	"github.com/minios-linux/textkey/markup"
	"github.com/minios-linux/textkey/textsfile"
)

// FileName is the default config file name.
const FileName = ".textkey.yaml"

// DefaultTranslationFile is used when translation_file is not set.
const DefaultTranslationFile = "src/utils/i18n.ts"

// EnvTranslationFile overrides translation_file.
const EnvTranslationFile = "TEXTKEY_TRANSLATION_FILE"

var (
	// ErrTranslationFileNotFound means the configured file does not exist.
	ErrTranslationFileNotFound = errors.New("translation file not found")
	// ErrNotTypeScript means the configured file has no .ts extension.
	ErrNotTypeScript = errors.New("translation file is not a TypeScript file")
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// Config is the .textkey.yaml structure.
type Config struct {
	// TranslationFile is the definitions file, relative to the project root.
	TranslationFile string `yaml:"translation_file,omitempty"`
	// TypeName is the declared type of the sections ("Texts").
	TypeName string `yaml:"type_name,omitempty"`
	// ValueType is the per-key type in the type section ("NoParamString").
	ValueType string `yaml:"value_type,omitempty"`
	// Locales lists the value sections, in file order.
	Locales []string `yaml:"locales,omitempty"`

	// Provider is the AI provider ID (default "openai").
	Provider string `yaml:"provider,omitempty"`
	// Model overrides the provider's default model.
	Model string `yaml:"model,omitempty"`
	// BaseURL overrides the provider's API endpoint.
	BaseURL string `yaml:"base_url,omitempty"`
	// Prompt overrides the system prompt. {{languages}} is expanded.
	Prompt string `yaml:"prompt,omitempty"`
	// MaxConcurrent bounds parallel requests when several selections are
	// translated at once (default 1). A pointer so an explicit 0 is kept
	// and rejected by Validate.
	MaxConcurrent *int `yaml:"max_concurrent,omitempty"`

	// References are the replacement forms written into the source.
	References markup.References `yaml:"references,omitempty"`

	// Root is the absolute project root.
	Root string `yaml:"-"`

	path string
}

// Default returns the configuration used when no file exists.
func Default(root string) *Config {
	c := &Config{Root: root}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	layout := textsfile.DefaultLayout()
	if c.TranslationFile == "" {
		c.TranslationFile = DefaultTranslationFile
	}
	if c.TypeName == "" {
		c.TypeName = layout.TypeName
	}
	if c.ValueType == "" {
		c.ValueType = layout.ValueType
	}
	if c.Locales == nil {
		c.Locales = append([]string(nil), layout.Locales...)
	}
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.MaxConcurrent == nil {
		n := 1
		c.MaxConcurrent = &n
	}

	refs := markup.DefaultReferences()
	if c.References.Script == "" {
		c.References.Script = refs.Script
	}
	if c.References.Template == "" {
		c.References.Template = refs.Template
	}
	if c.References.Attribute == "" {
		c.References.Attribute = refs.Attribute
	}
}

// Concurrency returns the parallel request limit, at least 1.
func (c *Config) Concurrency() int {
	if c.MaxConcurrent == nil || *c.MaxConcurrent < 1 {
		return 1
	}
	return *c.MaxConcurrent
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads .textkey.yaml from root, fills in defaults, applies the
// environment override and validates the result. A missing file is not an
// error.
func Load(root string) (*Config, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	c := &Config{}
	path := filepath.Join(absRoot, FileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		c.path = path
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	c.Root = absRoot
	if v := strings.TrimSpace(os.Getenv(EnvTranslationFile)); v != "" {
		c.TranslationFile = v
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		if c.path != "" {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return nil, err
	}
	return c, nil
}

// Path returns the loaded file, or "" when defaults are in use.
func (c *Config) Path() string {
	return c.path
}

// TranslationPath returns the absolute path of the translation file.
func (c *Config) TranslationPath() string {
	if filepath.IsAbs(c.TranslationFile) {
		return c.TranslationFile
	}
	return filepath.Join(c.Root, filepath.FromSlash(c.TranslationFile))
}

// Layout derives the textsfile layout.
func (c *Config) Layout() textsfile.Layout {
	l := textsfile.DefaultLayout()
	l.TypeName = c.TypeName
	l.ValueType = c.ValueType
	l.Locales = append([]string(nil), c.Locales...)
	return l
}

// ---------------------------------------------------------------------------
// Translation file check
// ---------------------------------------------------------------------------

// TranslationFileError describes an unusable translation file.
type TranslationFileError struct {
	Path string
	Err  error
}

func (e *TranslationFileError) Error() string {
	if errors.Is(e.Err, ErrNotTypeScript) {
		return i18n.T("The translation file must be a TypeScript (.ts) file.")
	}
	return i18n.T("Translation file not found at path: %s", e.Path)
}

func (e *TranslationFileError) Unwrap() error { return e.Err }

// ValidateTranslationFile checks that the translation file exists and is a
// TypeScript file.
func (c *Config) ValidateTranslationFile() error {
	path := c.TranslationPath()
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return &TranslationFileError{Path: path, Err: ErrTranslationFileNotFound}
	}
	if filepath.Ext(path) != ".ts" {
		return &TranslationFileError{Path: path, Err: ErrNotTypeScript}
	}
	return nil
}
