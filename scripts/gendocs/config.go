package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/pbipgen/internal/cli/config"
)

// ConfigField documents one pbipgen.yaml key.
type ConfigField struct {
	Key         string
	Type        string
	Description string
}

// configFields lists the keys of pbipgen.yaml in file order. Defaults come
// from config.Defaults so the page cannot drift from the loader.
var configFields = []ConfigField{
	{Key: "template", Type: "path", Description: "Master PBIP project folder holding <Name>.pbip"},
	{Key: "data", Type: "path", Description: "CSV file with one row per output project"},
	{Key: "output.directory", Type: "path", Description: "Folder receiving one project per row"},
	{Key: "output.overwrite", Type: "bool", Description: "Replace projects left by a previous run"},
	{Key: "parameters", Type: "list", Description: "Parameters to fill: `name` (also the CSV column) and `type` (string, integer, float, boolean)"},
	{Key: "naming.column", Type: "string", Description: "Column holding the output base name"},
	{Key: "naming.expression", Type: "starlark", Description: "Expression used when the naming column is absent or empty"},
	{Key: "rename.text_extensions", Type: "list", Description: "File extensions whose content is scanned for the template name"},
	{Key: "cache.patterns", Type: "list", Description: "File names removed from every output"},
	{Key: "workers", Type: "int", Description: "Rows generated in parallel; 0 uses the number of CPUs"},
	{Key: "state_path", Type: "path", Description: "Run history database"},
	{Key: "history", Type: "bool", Description: "Record runs in the history database"},
	{Key: "format", Type: "string", Description: "Output format: auto, text, markdown or json"},
	{Key: "verbose", Type: "bool", Description: "Debug logging"},
	{Key: "logging.level", Type: "string", Description: "debug, info, warn or error"},
	{Key: "logging.format", Type: "string", Description: "text or json"},
	{Key: "logging.file", Type: "path", Description: "Write logs to this file instead of stderr"},
}

func generateConfigDocs(outDir string) error {
	log.Printf("Generating configuration docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "pbipgen configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph(fmt.Sprintf("pbipgen reads %s from the working directory or the nearest parent. "+
		"Relative paths resolve against the folder holding the file.", InlineCode(config.DefaultConfigFile)))

	defaults := config.Defaults()
	rows := make([][]string, 0, len(configFields))
	for _, f := range configFields {
		def := "-"
		if v, ok := defaults[f.Key]; ok {
			def = InlineCode(formatDefault(v))
		}
		env := config.EnvPrefix + strings.ToUpper(strings.ReplaceAll(f.Key, ".", "__"))
		rows = append(rows, []string{InlineCode(f.Key), f.Type, def, InlineCode(env), f.Description})
	}
	w.Table([]string{"Key", "Type", "Default", "Environment", "Description"}, rows)

	w.Header(2, "Example")
	example, err := config.DefaultFile().Marshal()
	if err != nil {
		return err
	}
	w.CodeBlock("yaml", string(example))

	log.Printf("  Generated configuration.md")
	return os.WriteFile(filepath.Join(outDir, "configuration.md"), w.Bytes(), 0o600)
}

func formatDefault(v any) string {
	if list, ok := v.([]string); ok {
		return "[" + strings.Join(list, ", ") + "]"
	}
	return fmt.Sprint(v)
}
