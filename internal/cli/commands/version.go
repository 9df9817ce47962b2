package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildDate string
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display pbipgen version and build information.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pbipgen v%s\n", info.Version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "commit %s, built %s, %s/%s\n",
				info.GitCommit, info.BuildDate, runtime.GOOS, runtime.GOARCH)
		},
	}
}
