package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pbipgen/internal/cli/output"
	"github.com/leapstack-labs/pbipgen/internal/state"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past generation runs",
		Long: `List recent generation runs recorded in the state database, or show the
per-row results of a single run.`,
		Example: `  # Recent runs
  pbipgen history

  # Rows of one run
  pbipgen history 6f1c2a9e-...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Number of runs to list")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string, opts *HistoryOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	store, err := openStore(cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	r := cc.Renderer
	out := output.HistoryOutput{}

	if len(args) == 0 {
		runs, err := store.ListRuns(ctx, opts.Limit)
		if err != nil {
			return err
		}
		out.Runs = []output.RunInfo{}
		for _, run := range runs {
			out.Runs = append(out.Runs, runInfo(run))
		}
		if r.EffectiveMode() == output.ModeJSON {
			return r.JSON(out)
		}
		renderRuns(r, out.Runs)
		return nil
	}

	run, err := store.GetRun(ctx, args[0])
	if err != nil {
		return err
	}
	rows, err := store.GetRowResults(ctx, run.ID)
	if err != nil {
		return err
	}
	info := runInfo(run)
	out.Run = &info
	for _, row := range rows {
		out.Rows = append(out.Rows, output.RowOutput{
			Row:        row.Row,
			BaseName:   row.BaseName,
			OutputPath: row.OutputPath,
			Status:     row.Status,
			FailedAt:   row.FailedAt,
			Error:      row.Error,
			DurationMS: row.Duration.Milliseconds(),
		})
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, "Run "+info.ID)
	r.Println(output.FormatKeyValue("Status", info.Status))
	r.Println(output.FormatKeyValue("Started", info.StartedAt))
	r.Println(output.FormatKeyValue("Template", info.Template))
	r.Println(output.FormatKeyValue("Data", info.DataFile))
	r.Println(output.FormatKeyValue("Output", info.OutputDir))
	if info.Error != "" {
		r.Println(output.FormatKeyValue("Error", info.Error))
	}
	r.Println("")
	renderRows(r, out.Rows)
	r.Println("")
	renderSummary(r, output.Summary{Total: info.Total, Done: info.Done, Failed: info.Failed})
	return nil
}

func runInfo(run *state.Run) output.RunInfo {
	info := output.RunInfo{
		ID:        run.ID,
		Template:  run.Template,
		DataFile:  run.DataFile,
		OutputDir: run.OutputDir,
		Status:    string(run.Status),
		Total:     run.Total,
		Done:      run.Done,
		Failed:    run.Failed,
		StartedAt: run.StartedAt.Format(time.RFC3339),
		Error:     run.Error,
	}
	if run.CompletedAt != nil {
		info.CompletedAt = run.CompletedAt.Format(time.RFC3339)
	}
	return info
}

func renderRuns(r *output.Renderer, runs []output.RunInfo) {
	r.Header(1, "Generation History")
	if len(runs) == 0 {
		r.Println("No runs recorded yet. Run 'pbipgen generate' first.")
		return
	}

	rows := make([][]string, len(runs))
	for i, run := range runs {
		rows[i] = []string{
			run.ID,
			run.StartedAt,
			output.StatusLabel(run.Status),
			strconv.Itoa(run.Total),
			fmt.Sprintf("%d/%d", run.Done, run.Failed),
		}
	}
	r.Table([]string{"Run", "Started", "Status", "Rows", "Done/Failed"}, rows)
}
