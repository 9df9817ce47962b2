package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pbipgen/internal/cli/config"
	"github.com/leapstack-labs/pbipgen/internal/cli/output"
	"github.com/leapstack-labs/pbipgen/internal/dataset"
	"github.com/leapstack-labs/pbipgen/internal/pipeline"
	"github.com/leapstack-labs/pbipgen/internal/project"
	"github.com/leapstack-labs/pbipgen/internal/state"
	"github.com/leapstack-labs/pbipgen/internal/watch"
)

// GenerateOptions holds options for the generate command.
type GenerateOptions struct {
	DryRun bool
	Watch  bool
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand() *cobra.Command {
	opts := &GenerateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one project per data row",
		Long: `Clone the template once per row of the data file, rename it to the row's
base name and write the row's parameter values into the semantic model.

Rows are independent: a failed row is reported and left on disk, the others
continue. The command exits non-zero when any row failed.`,
		Example: `  # Generate using pbipgen.yaml
  pbipgen generate

  # Override template, data and output
  pbipgen generate -t templates/Example_PBIP -d data/rows.csv -o outputs

  # Show the planned names and paths without writing anything
  pbipgen generate --dry-run

  # Regenerate whenever the data file or config changes
  pbipgen generate --watch`,
		Aliases: []string{"gen"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, opts)
		},
	}

	cmd.Flags().StringP("template", "t", "", "Path to the template project folder")
	cmd.Flags().StringP("data", "d", "", "Path to the CSV data file")
	cmd.Flags().StringP("output-dir", "o", "", "Directory receiving generated projects")
	cmd.Flags().IntP("workers", "j", 0, "Rows generated in parallel (default: number of CPUs)")
	cmd.Flags().Bool("overwrite", false, "Replace projects left by a previous run")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Plan names and paths without writing")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Regenerate when the data file or config changes")

	return cmd
}

func runGenerate(cmd *cobra.Command, opts *GenerateOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	if err := cc.Cfg.RequireTemplate(); err != nil {
		return err
	}
	if err := cc.Cfg.RequireData(); err != nil {
		return err
	}

	if opts.Watch {
		return watchGenerate(cmd.Context(), cmd, cc)
	}

	out, err := generate(cmd.Context(), cc, opts.DryRun, cc.Cfg.Output.Overwrite)
	if err != nil {
		return err
	}
	if err := renderGenerate(cc.Renderer, out); err != nil {
		return err
	}
	if out.Summary.Failed > 0 {
		return &RowsFailedError{Failed: out.Summary.Failed, Total: out.Summary.Total}
	}
	return nil
}

// newGenerator loads the template, data and naming rule and validates the
// configured parameters against the template.
func newGenerator(cfg *config.Config, logger *slog.Logger, overwrite bool) (*pipeline.Generator, *dataset.Table, error) {
	tmpl, err := project.LoadTemplate(cfg.Template)
	if err != nil {
		return nil, nil, err
	}
	table, err := dataset.LoadCSV(cfg.Data)
	if err != nil {
		return nil, nil, err
	}
	namer, err := dataset.NewNamer(cfg.Naming.Column, cfg.Naming.Expression)
	if err != nil {
		return nil, nil, err
	}

	specs := cfg.Specs()
	if missing := dataset.MissingColumns(table, specs); len(missing) > 0 {
		logger.Warn("data file lacks parameter columns; every row will fail", "columns", missing)
	}

	gen, err := pipeline.New(pipeline.Config{
		Template:      tmpl,
		Specs:         specs,
		OutputDir:     cfg.Output.Directory,
		Namer:         namer,
		Cloner:        project.NewCloner(cfg.Cache.Patterns, logger),
		Renamer:       project.NewRenamer(cfg.Rename.TextExtensions, logger),
		CachePatterns: cfg.Cache.Patterns,
		Workers:       cfg.Workers,
		Overwrite:     overwrite,
		Logger:        logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return gen, table, nil
}

// generate runs (or plans) one generation and records it in the run history.
func generate(ctx context.Context, cc *CommandContext, dryRun, overwrite bool) (*output.GenerateOutput, error) {
	cfg := cc.Cfg
	logger := cc.Logger

	gen, table, err := newGenerator(cfg, logger, overwrite)
	if err != nil {
		return nil, err
	}

	out := &output.GenerateOutput{
		Template:  cfg.Template,
		Format:    string(gen.Catalog().Format),
		OutputDir: cfg.Output.Directory,
		DryRun:    dryRun,
	}

	if dryRun {
		for _, p := range gen.Plan(table.Rows) {
			out.Rows = append(out.Rows, planOutput(p))
		}
		out.Summary = summarizeRows(out.Rows)
		return out, nil
	}

	var store *state.SQLiteStore
	var run *state.Run
	if cfg.History {
		store, err = openStore(cfg, logger)
		if err != nil {
			logger.Warn("run history disabled", "error", err.Error())
		} else {
			defer store.Close()
			run, err = store.CreateRun(ctx, state.RunInfo{
				Template:  cfg.Template,
				DataFile:  cfg.Data,
				OutputDir: cfg.Output.Directory,
			})
			if err != nil {
				logger.Warn("failed to record run", "error", err.Error())
			}
		}
	}

	results, runErr := gen.Run(ctx, table.Rows)
	for _, r := range results {
		out.Rows = append(out.Rows, resultOutput(r))
	}
	out.Summary = summarizeRows(out.Rows)

	if run != nil {
		out.RunID = run.ID
		// The context may be cancelled already; history is still written.
		if err := recordRun(context.WithoutCancel(ctx), store, run.ID, results, out.Summary, runErr); err != nil {
			logger.Warn("failed to record run", "error", err.Error())
		}
	}

	if runErr != nil {
		return out, fmt.Errorf("generation interrupted: %w", runErr)
	}
	return out, nil
}

func recordRun(ctx context.Context, store state.Store, runID string, results []pipeline.Result, s output.Summary, runErr error) error {
	rows := make([]state.RowResult, len(results))
	for i, r := range results {
		rows[i] = state.RowResult{
			Row:        r.Row,
			BaseName:   r.BaseName,
			OutputPath: r.OutputPath,
			Status:     string(r.Status),
			FailedAt:   string(r.FailedAt),
			Warnings:   len(r.Warnings),
			Duration:   r.Duration,
		}
		if r.Err != nil {
			rows[i].Error = r.Err.Error()
		}
	}
	if err := store.RecordRows(ctx, runID, rows); err != nil {
		return err
	}

	status := state.RunStatusCompleted
	var msg string
	switch {
	case runErr != nil:
		status = state.RunStatusCancelled
		msg = runErr.Error()
	case s.Failed > 0:
		status = state.RunStatusFailed
		msg = fmt.Sprintf("%d of %d rows failed", s.Failed, s.Total)
	}
	return store.CompleteRun(ctx, runID, status, state.Counts{Total: s.Total, Done: s.Done, Failed: s.Failed}, msg)
}

func renderGenerate(r *output.Renderer, out *output.GenerateOutput) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		title := "Generation Results"
		if out.DryRun {
			title = "Generation Plan"
		}
		r.Println(output.FormatHeader(1, title))
		r.Println("")
		r.Println(output.FormatKeyValue("Template", out.Template))
		r.Println(output.FormatKeyValue("Format", out.Format))
		r.Println(output.FormatKeyValue("Output", out.OutputDir))
		if out.RunID != "" {
			r.Println(output.FormatKeyValue("Run", out.RunID))
		}
		r.Println("")
	default:
		styles := r.Styles()
		r.Printf("%s %s (%s)\n", styles.Bold.Render("Template:"), styles.Path.Render(out.Template), out.Format)
		r.Printf("%s %s\n", styles.Bold.Render("Output:"), styles.Path.Render(out.OutputDir))
		if out.DryRun {
			r.Println(styles.Muted.Render("Dry run: nothing was written"))
		}
		r.Println("")
	}

	renderRows(r, out.Rows)
	r.Println("")
	renderSummary(r, out.Summary)
	return nil
}

// watchGenerate regenerates on every change to the data file or config
// until the command context is cancelled. Outputs of the previous
// generation are replaced.
func watchGenerate(ctx context.Context, cmd *cobra.Command, cc *CommandContext) error {
	files := []string{cc.Cfg.Data}
	if used := config.GetConfigFileUsed(); used != "" {
		files = append(files, used)
	}

	w, err := watch.New(watch.Config{Files: files, Logger: cc.Logger})
	if err != nil {
		return err
	}

	once := func(ctx context.Context) {
		out, err := generate(ctx, cc, false, true)
		if err != nil {
			cc.Renderer.Error(err.Error())
			return
		}
		if err := renderGenerate(cc.Renderer, out); err != nil {
			cc.Renderer.Error(err.Error())
		}
	}

	once(ctx)
	cc.Renderer.Println("")
	cc.Renderer.Println(cc.Renderer.Styles().Muted.Render("Watching " + filepath.Base(cc.Cfg.Data) + " for changes (Ctrl+C to stop)"))

	return w.Run(ctx, func(ctx context.Context, changed []string) error {
		if cfgFile := config.GetConfigFileUsed(); cfgFile != "" && contains(changed, cfgFile) {
			reloaded, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("config not reloaded: %w", err)
			}
			cc.Cfg = reloaded
		}
		once(ctx)
		return nil
	})
}

func contains(paths []string, target string) bool {
	abs, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	for _, p := range paths {
		if p == abs {
			return true
		}
	}
	return false
}
