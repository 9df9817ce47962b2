package config

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/pbipgen/internal/dataset"
	"github.com/leapstack-labs/pbipgen/internal/model"
	"github.com/leapstack-labs/pbipgen/internal/project"
)

// File is the on-disk shape of pbipgen.yaml written by init.
type File struct {
	Template   string            `yaml:"template"`
	Data       string            `yaml:"data"`
	Output     FileOutput        `yaml:"output"`
	Parameters []ParameterConfig `yaml:"parameters"`
	Naming     FileNaming        `yaml:"naming"`
	Rename     FileRename        `yaml:"rename"`
	Cache      FileCache         `yaml:"cache"`
	Workers    int               `yaml:"workers"`
	StatePath  string            `yaml:"state_path"`
	History    bool              `yaml:"history"`
}

// FileOutput is the output section of File.
type FileOutput struct {
	Directory string `yaml:"directory"`
	Overwrite bool   `yaml:"overwrite"`
}

// FileNaming is the naming section of File.
type FileNaming struct {
	Column     string `yaml:"column"`
	Expression string `yaml:"expression"`
}

// FileRename is the rename section of File.
type FileRename struct {
	TextExtensions []string `yaml:"text_extensions"`
}

// FileCache is the cache section of File.
type FileCache struct {
	Patterns []string `yaml:"patterns"`
}

// DefaultFile returns the starter configuration for a new project.
func DefaultFile() *File {
	return &File{
		Template: TemplatesDir + "/Example_PBIP",
		Data:     DataDir + "/rows.csv",
		Output:   FileOutput{Directory: OutputsDir},
		Parameters: []ParameterConfig{
			{Name: "Owner", Type: model.KindString},
		},
		Naming: FileNaming{
			Column:     dataset.DefaultNameColumn,
			Expression: dataset.DefaultNameExpression,
		},
		Rename:    FileRename{TextExtensions: project.DefaultTextExtensions},
		Cache:     FileCache{Patterns: project.DefaultCachePatterns},
		StatePath: DefaultStateFile,
		History:   true,
	}
}

const fileHeader = `# pbipgen configuration
#
# Each row of 'data' produces a copy of 'template' under 'output.directory'.
# Every entry in 'parameters' must be declared by the template and names the
# data column holding its value. Types: string, integer, float, boolean.
`

// Marshal renders f as YAML with a short explanatory header.
func (f *File) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	buf.WriteString("\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.Bytes(), nil
}
