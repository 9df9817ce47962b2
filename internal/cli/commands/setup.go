// Package commands implements the pbipgen subcommands.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pbipgen/internal/cli/config"
	"github.com/leapstack-labs/pbipgen/internal/cli/output"
	"github.com/leapstack-labs/pbipgen/internal/state"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext returns the config, logger and renderer prepared by the
// root command. When a command runs on its own, as in tests, the
// configuration is loaded from the command's flags.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	if cfg == nil {
		var cfgFile string
		if f := cmd.Flags().Lookup("config"); f != nil {
			cfgFile = f.Value.String()
		}
		loaded, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	r := output.FromContext(ctx)
	if r == nil {
		r = output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Format))
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(ctx),
		Renderer: r,
	}, nil
}

// openStore opens the run history database.
func openStore(cfg *config.Config, logger *slog.Logger) (*state.SQLiteStore, error) {
	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	return store, nil
}
