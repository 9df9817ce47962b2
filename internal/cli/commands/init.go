package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pbipgen/internal/cli/config"
	"github.com/leapstack-labs/pbipgen/internal/cli/output"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new pbipgen project",
		Long: `Initialize a new pbipgen project with the default directory structure and configuration.

This creates:
  - templates/ directory for master PBIP projects
  - configs/ directory for alternative configuration files
  - data/ directory for CSV row files
  - outputs/ directory receiving generated projects
  - pbipgen.yaml configuration file`,
		Example: `  # Initialize in current directory
  pbipgen init

  # Initialize in a new directory
  pbipgen init reports

  # Force overwrite existing config
  pbipgen init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			format, _ := cmd.Flags().GetString("format")
			r := output.FromContext(cmd.Context())
			if r == nil {
				r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(format))
			}
			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

func runInit(r *output.Renderer, dir string, force bool) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	configPath := filepath.Join(dir, config.DefaultConfigFile)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists\nHint: Use --force to overwrite", config.DefaultConfigFile)
	}

	created := make([]string, 0, 5)
	for _, sub := range []string{config.TemplatesDir, config.ConfigsDir, config.DataDir, config.OutputsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", sub, err)
		}
		created = append(created, sub+"/")
	}

	data, err := config.DefaultFile().Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.DefaultConfigFile, err)
	}
	created = append(created, config.DefaultConfigFile)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{"directory": dir, "created": created})
	}

	for _, f := range created {
		r.Printf("  %s %s\n", r.Styles().StatusSuccess.String(), f)
	}
	r.Println("")
	r.Success("pbipgen project initialized!")
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Copy your master project into templates/ (e.g. templates/Example_PBIP/)")
	r.Println("  2. Put the row data in data/rows.csv")
	r.Println("  3. List the parameters to fill in pbipgen.yaml ('pbipgen params' shows them)")
	r.Println("  4. Run 'pbipgen validate', then 'pbipgen generate'")

	return nil
}
