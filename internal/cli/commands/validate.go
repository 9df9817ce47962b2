package commands

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pbipgen/internal/cli/config"
	"github.com/leapstack-labs/pbipgen/internal/cli/output"
	"github.com/leapstack-labs/pbipgen/internal/dataset"
	"github.com/leapstack-labs/pbipgen/internal/model"
	"github.com/leapstack-labs/pbipgen/internal/pipeline"
	"github.com/leapstack-labs/pbipgen/internal/project"
)

// Check statuses.
const (
	CheckOK    = "ok"
	CheckWarn  = "warn"
	CheckError = "error"
)

// ErrValidationFailed is returned when validate found at least one error.
var ErrValidationFailed = errors.New("validation failed")

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check template, config and data without writing",
		Long: `Check that the template is a usable PBIP project, that every configured
parameter is declared in its semantic model, that the data file carries the
parameter columns and that every row names and binds cleanly.

Nothing is written. The command exits non-zero when any check fails.`,
		Example: `  # Validate the configured template and data
  pbipgen validate

  # Validate another data file, as JSON
  pbipgen validate -d data/next_quarter.csv --format json`,
		Args: cobra.NoArgs,
		RunE: runValidate,
	}

	cmd.Flags().StringP("template", "t", "", "Path to the template project folder")
	cmd.Flags().StringP("data", "d", "", "Path to the CSV data file")
	cmd.Flags().StringP("output-dir", "o", "", "Directory receiving generated projects")
	cmd.Flags().Bool("overwrite", false, "Treat existing output folders as replaceable")

	return cmd
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	out := validate(cc.Cfg)
	if err := renderValidate(cc.Renderer, out); err != nil {
		return err
	}
	if !out.Valid {
		return ErrValidationFailed
	}
	return nil
}

// validate runs every check it can; a failed check only skips the checks
// that depend on it.
func validate(cfg *config.Config) *output.ValidateOutput {
	out := &output.ValidateOutput{Template: cfg.Template, Data: cfg.Data}
	add := func(name, status string, details ...string) {
		out.Checks = append(out.Checks, output.CheckOutput{Name: name, Status: status, Details: details})
	}
	specs := cfg.Specs()

	var tmpl *project.Template
	var catalog *model.Catalog
	if err := cfg.RequireTemplate(); err != nil {
		add("template", CheckError, err.Error())
	} else if tmpl, err = project.LoadTemplate(cfg.Template); err != nil {
		add("template", CheckError, err.Error())
	} else {
		add("template", CheckOK, fmt.Sprintf("%s (%s model)", tmpl.BaseName, tmpl.Format))
		if catalog, err = tmpl.Catalog(); err != nil {
			add("catalog", CheckError, err.Error())
		} else if catalog.Len() == 0 {
			add("catalog", CheckWarn, "semantic model declares no parameters")
		} else {
			add("catalog", CheckOK, fmt.Sprintf("%d parameter(s) declared", catalog.Len()))
		}
	}

	if catalog != nil {
		if len(specs) == 0 {
			add("parameters", CheckWarn, "no parameters configured; outputs will keep the template values")
		} else if err := catalog.Validate(specs); err != nil {
			add("parameters", CheckError, err.Error())
		} else {
			add("parameters", CheckOK, fmt.Sprintf("%d parameter(s) mapped", len(specs)))
		}
	}

	namer, err := dataset.NewNamer(cfg.Naming.Column, cfg.Naming.Expression)
	if err != nil {
		add("naming", CheckError, err.Error())
	}

	var table *dataset.Table
	if err := cfg.RequireData(); err != nil {
		add("data", CheckError, err.Error())
	} else if table, err = dataset.LoadCSV(cfg.Data); err != nil {
		add("data", CheckError, err.Error())
	} else {
		add("data", CheckOK, fmt.Sprintf("%d row(s), %d column(s)", len(table.Rows), len(table.Header)))
		name, status, details := columnsCheck(cfg, table, specs)
		add(name, status, details...)
	}

	if table != nil && namer != nil {
		out.Rows = validateRows(cfg, tmpl, namer, specs, table)
		failed := 0
		for _, r := range out.Rows {
			if r.Error != "" {
				failed++
			}
		}
		if failed > 0 {
			add("rows", CheckError, fmt.Sprintf("%d of %d row(s) cannot be generated", failed, len(out.Rows)))
		} else {
			add("rows", CheckOK, fmt.Sprintf("%d row(s) ready", len(out.Rows)))
		}
	}

	out.Valid = true
	for _, c := range out.Checks {
		if c.Status == CheckError {
			out.Valid = false
		}
	}
	return out
}

func columnsCheck(cfg *config.Config, table *dataset.Table, specs []model.Spec) (string, string, []string) {
	var details []string
	status := CheckOK

	if missing := dataset.MissingColumns(table, specs); len(missing) > 0 {
		status = CheckError
		details = append(details, fmt.Sprintf("missing parameter column(s): %v", missing))
	}

	used := []string{cfg.Naming.Column}
	for _, s := range specs {
		used = append(used, s.Name)
	}
	var extra []string
	for _, col := range table.Header {
		if !slices.Contains(used, col) {
			extra = append(extra, col)
		}
	}
	if len(extra) > 0 {
		// Extra columns may feed the naming expression; they are not an error.
		if status == CheckOK {
			status = CheckWarn
		}
		details = append(details, fmt.Sprintf("column(s) not mapped to a parameter: %v", extra))
	}
	return "columns", status, details
}

// validateRows plans every row. With a usable template the generator's own
// planning is used, so collisions with existing outputs are reported too.
func validateRows(cfg *config.Config, tmpl *project.Template, namer *dataset.Namer, specs []model.Spec, table *dataset.Table) []output.RowOutput {
	rows := make([]output.RowOutput, 0, len(table.Rows))

	if tmpl != nil {
		gen, err := pipeline.New(pipeline.Config{
			Template:      tmpl,
			Specs:         specs,
			OutputDir:     cfg.Output.Directory,
			Namer:         namer,
			CachePatterns: cfg.Cache.Patterns,
			Overwrite:     cfg.Output.Overwrite,
		})
		if err == nil {
			for _, p := range gen.Plan(table.Rows) {
				row := planOutput(p)
				if row.Error == "" {
					row.Status = CheckOK
				}
				rows = append(rows, row)
			}
			return rows
		}
	}

	seen := make(map[string]int, len(table.Rows))
	for _, r := range table.Rows {
		row := output.RowOutput{Row: r.Index, Status: CheckOK}
		binding, err := dataset.Resolve(namer, specs, r)
		switch {
		case err != nil:
			row.Status, row.Error = string(pipeline.StatusFailed), err.Error()
		default:
			row.BaseName = binding.BaseName
			if prev, ok := seen[binding.BaseName]; ok {
				row.Status = string(pipeline.StatusFailed)
				row.Error = fmt.Sprintf("output name %q already used by row %d", binding.BaseName, prev)
			} else {
				seen[binding.BaseName] = r.Index
			}
		}
		rows = append(rows, row)
	}
	return rows
}

func renderValidate(r *output.Renderer, out *output.ValidateOutput) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	r.Header(1, "Validation")
	styles := r.Styles()
	markdown := r.EffectiveMode() == output.ModeMarkdown

	for _, c := range out.Checks {
		detail := ""
		if len(c.Details) > 0 {
			detail = c.Details[0]
		}
		if markdown {
			r.Println(output.FormatKeyValue(c.Name, c.Status+" "+detail))
		} else {
			mark := styles.StatusSuccess.String()
			switch c.Status {
			case CheckWarn:
				mark = styles.Warning.Render("!")
			case CheckError:
				mark = styles.StatusFailed.String()
			}
			r.Printf("%s %-10s %s\n", mark, c.Name, detail)
		}
		for _, d := range c.Details[min(1, len(c.Details)):] {
			r.Printf("    %s\n", d)
		}
	}

	var bad []output.RowOutput
	for _, row := range out.Rows {
		if row.Error != "" {
			bad = append(bad, row)
		}
	}
	if len(bad) > 0 {
		r.Println("")
		r.Header(2, "Rows")
		renderRows(r, bad)
	}

	r.Println("")
	if out.Valid {
		r.Success("Configuration is valid")
	} else {
		r.Error("Configuration has errors")
	}
	return nil
}
