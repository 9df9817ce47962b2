// Package config provides configuration management for the pbipgen CLI.
//
// Configuration is layered with koanf: built-in defaults, then pbipgen.yaml,
// then PBIPGEN_ environment variables, then command-line flags.
package config

import (
	"github.com/leapstack-labs/pbipgen/internal/model"
)

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`

	Template   string            `koanf:"template"`
	Data       string            `koanf:"data"`
	Output     OutputConfig      `koanf:"output"`
	Parameters []ParameterConfig `koanf:"parameters" validate:"dive"`
	Naming     NamingConfig      `koanf:"naming"`
	Rename     RenameConfig      `koanf:"rename"`
	Cache      CacheConfig       `koanf:"cache"`
	Workers    int               `koanf:"workers" validate:"gte=0,lte=256"`
	StatePath  string            `koanf:"state_path"`
	History    bool              `koanf:"history"`
	Format     string            `koanf:"format" validate:"oneof=auto text markdown json"`
	Verbose    bool              `koanf:"verbose"`
	Logging    LoggingConfig     `koanf:"logging"`
}

// OutputConfig controls where generated projects go.
type OutputConfig struct {
	Directory string `koanf:"directory" validate:"required"`
	Overwrite bool   `koanf:"overwrite"`
}

// ParameterConfig names a template parameter filled from the data column of
// the same name.
type ParameterConfig struct {
	Name string     `koanf:"name" yaml:"name" validate:"required"`
	Type model.Kind `koanf:"type" yaml:"type,omitempty"`
}

// NamingConfig controls how each row's base name is derived.
type NamingConfig struct {
	Column     string `koanf:"column"`
	Expression string `koanf:"expression"`
}

// RenameConfig controls the reference rewrite.
type RenameConfig struct {
	TextExtensions []string `koanf:"text_extensions"`
}

// CacheConfig lists cache files dropped from every output.
type CacheConfig struct {
	Patterns []string `koanf:"patterns"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
	File   string `koanf:"file"`
}

// Specs converts the configured parameters for the generator.
func (c *Config) Specs() []model.Spec {
	specs := make([]model.Spec, len(c.Parameters))
	for i, p := range c.Parameters {
		kind := p.Type
		if kind == "" {
			kind = model.KindString
		}
		specs[i] = model.Spec{Name: p.Name, Type: kind}
	}
	return specs
}

// Default configuration values.
const (
	DefaultConfigFile = "pbipgen.yaml"
	DefaultOutputDir  = "outputs"
	DefaultStateFile  = ".pbipgen/state.db"
	DefaultFormat     = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel   = "warn"
	DefaultLogFormat  = "text"
)

// Project layout created by init and searched by discover.
const (
	TemplatesDir = "templates"
	ConfigsDir   = "configs"
	DataDir      = "data"
	OutputsDir   = "outputs"
)
