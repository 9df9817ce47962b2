package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/pbipgen/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// generateCLIDocs generates CLI documentation from Cobra commands.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)

	// Create output directory
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Get root command
	rootCmd := cli.NewRootCmd()

	// Generate index page
	if err := generateCLIIndex(rootCmd, outDir); err != nil {
		return fmt.Errorf("failed to generate index: %w", err)
	}
	log.Printf("  Generated index.md")

	// Generate page for each command
	for _, cmd := range rootCmd.Commands() {
		if cmd.Hidden || cmd.Name() == "help" || cmd.Name() == "__complete" {
			continue
		}
		if err := generateCommandPage(cmd, outDir); err != nil {
			return fmt.Errorf("failed to generate page for %s: %w", cmd.Name(), err)
		}
		log.Printf("  Generated %s.md", cmd.Name())
	}

	return nil
}

// generateCLIIndex generates the CLI overview page.
func generateCLIIndex(rootCmd *cobra.Command, outDir string) error {
	w := NewMarkdownWriter()

	// Frontmatter
	w.Frontmatter("CLI Reference", "Command-line interface reference for pbipgen")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph("pbipgen clones a master Power BI project once per row of a CSV file, renames each copy and writes the row's parameter values into its semantic model.")

	w.Header(2, "Installation")
	w.CodeBlock("bash", "go install github.com/leapstack-labs/pbipgen/cmd/pbipgen@latest")

	w.Header(2, "Basic Usage")
	w.CodeBlock("bash", "pbipgen <command> [options]")

	w.Header(2, "Commands")
	var rows [][]string
	for _, cmd := range rootCmd.Commands() {
		if cmd.Hidden || cmd.Name() == "help" || cmd.Name() == "__complete" {
			continue
		}
		link := fmt.Sprintf("[%s](/cli/%s)", InlineCode(cmd.Name()), cmd.Name())
		rows = append(rows, []string{link, cleanDescription(cmd.Short)})
	}
	w.Table([]string{"Command", "Description"}, rows)

	w.Header(2, "Global Options")
	w.Paragraph("These flags are available for all commands:")
	writeFlagsTable(w, rootCmd.PersistentFlags())

	w.Header(2, "Environment Variables")
	w.Paragraph("Every configuration key can be set with a `PBIPGEN_` variable. Nested keys use a double underscore, e.g. `PBIPGEN_OUTPUT__DIRECTORY`. See the [configuration reference](/configuration).")
	w.Paragraph("Command-line flags take precedence over environment variables, which take precedence over `pbipgen.yaml`.")

	w.Header(2, "Exit Codes")
	w.Table([]string{"Code", "Meaning"}, [][]string{
		{InlineCode("0"), "Success"},
		{InlineCode("1"), "Error, failed rows or failed validation (check stderr for details)"},
	})

	w.Header(2, "Getting Help")
	w.CodeBlock("bash", `# General help
pbipgen help
pbipgen --help

# Command-specific help
pbipgen generate --help`)

	// Write file
	filename := filepath.Join(outDir, "index.md")
	return os.WriteFile(filename, w.Bytes(), 0600)
}

// generateCommandPage writes <name>.md for one command.
func generateCommandPage(cmd *cobra.Command, outDir string) error {
	w := NewMarkdownWriter()
	w.Frontmatter(cmd.Name(), cmd.Short)
	w.GeneratedMarker()

	w.Header(1, cmd.Name())
	desc := cmd.Long
	if desc == "" {
		desc = cmd.Short
	}
	w.Paragraph(desc)

	w.Header(2, "Usage")
	useLine := cmd.UseLine()
	if !strings.HasPrefix(useLine, "pbipgen") {
		useLine = "pbipgen " + useLine
	}
	w.CodeBlock("bash", useLine)

	if len(cmd.Aliases) > 0 {
		w.Header(2, "Aliases")
		aliases := make([]string, len(cmd.Aliases))
		for i, a := range cmd.Aliases {
			aliases[i] = InlineCode(a)
		}
		w.BulletList(aliases)
	}

	if cmd.HasLocalFlags() {
		w.Header(2, "Options")
		writeFlagsTable(w, cmd.LocalFlags())
	}
	if cmd.HasInheritedFlags() {
		w.Header(2, "Global Options")
		writeFlagsTable(w, cmd.InheritedFlags())
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", dedent(cmd.Example))
	}

	return os.WriteFile(filepath.Join(outDir, cmd.Name()+".md"), w.Bytes(), 0o600)
}

func writeFlagsTable(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		short := ""
		if f.Shorthand != "" {
			short = "-" + f.Shorthand
		}
		def := f.DefValue
		if def != "" && f.Value.Type() == "string" {
			def = InlineCode(def)
		}
		rows = append(rows, []string{InlineCode("--" + f.Name), short, def, cleanDescription(f.Usage)})
	})
	w.Table([]string{"Option", "Short", "Default", "Description"}, rows)
}

// dedent strips the indentation shared by every non-blank line.
func dedent(text string) string {
	lines := strings.Split(text, "\n")
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	for i, line := range lines {
		if len(line) >= indent && indent > 0 {
			lines[i] = line[indent:]
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
