// Package cli provides the command-line interface for pbipgen.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pbipgen/internal/cli/commands"
	"github.com/leapstack-labs/pbipgen/internal/cli/config"
	"github.com/leapstack-labs/pbipgen/internal/cli/output"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// skipConfig lists commands that run without loading pbipgen.yaml.
var skipConfig = map[string]bool{
	"help":                    true,
	"completion":              true,
	cobra.ShellCompRequestCmd: true,
	"version":                 true,
	"init":                    true,
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string
	var logCloser io.Closer

	rootCmd := &cobra.Command{
		Use:   "pbipgen",
		Short: "pbipgen - Power BI project generator",
		Long: `pbipgen clones a master Power BI project (PBIP) once per row of a CSV file.

Each copy is renamed to the row's base name, references to the old name are
rewritten, and the parameters of its semantic model are set to the row's
values. Both model.bim and TMDL semantic models are supported.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfig[cmd.Name()] {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			logger, closer, err := config.NewLogger(cfg.Logging, cfg.Verbose, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			logCloser = closer

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = config.WithConfig(ctx, cfg)
			ctx = context.WithValue(ctx, config.LoggerKey(), logger)
			ctx = output.WithRenderer(ctx, output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Format)))
			cmd.SetContext(ctx)

			if configFile := config.GetConfigFileUsed(); configFile != "" {
				logger.Debug("using config file", "path", configFile)
			}
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./pbipgen.yaml, searched upward)")
	rootCmd.PersistentFlags().String("format", "", "Output format (auto|text|markdown|json)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output (debug logging)")
	rootCmd.PersistentFlags().String("state", "", "Path to run history database")
	rootCmd.PersistentFlags().Bool("no-history", false, "Do not record runs in the history database")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text|json)")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of stderr")

	_ = rootCmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.Modes, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(commands.NewVersionCommand(commands.BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
	}))
	rootCmd.AddCommand(commands.NewGenerateCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewParamsCommand())
	rootCmd.AddCommand(commands.NewDiscoverCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command with ctx, which is cancelled on interrupt
// by the caller.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for pbipgen.

To load completions:

Bash:
  $ source <(pbipgen completion bash)

Zsh:
  $ pbipgen completion zsh > "${fpath[1]}/_pbipgen"

Fish:
  $ pbipgen completion fish | source

PowerShell:
  PS> pbipgen completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
