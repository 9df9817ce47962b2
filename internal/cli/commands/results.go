package commands

import (
	"fmt"
	"strconv"

	"github.com/leapstack-labs/pbipgen/internal/cli/output"
	"github.com/leapstack-labs/pbipgen/internal/pipeline"
)

// StatusPlanned marks a dry-run row that would be generated.
const StatusPlanned = "PLANNED"

// RowsFailedError is returned when at least one row did not complete, so
// that the process exits non-zero.
type RowsFailedError struct {
	Failed int
	Total  int
}

func (e *RowsFailedError) Error() string {
	return fmt.Sprintf("%d of %d rows failed", e.Failed, e.Total)
}

func resultOutput(r pipeline.Result) output.RowOutput {
	row := output.RowOutput{
		Row:        r.Row,
		BaseName:   r.BaseName,
		OutputPath: r.OutputPath,
		Status:     string(r.Status),
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		row.Error = r.Err.Error()
		row.FailedAt = string(r.FailedAt)
	}
	for _, w := range r.Warnings {
		row.Warnings = append(row.Warnings, w.String())
	}
	return row
}

func planOutput(p pipeline.Plan) output.RowOutput {
	row := output.RowOutput{
		Row:        p.Row.Index,
		OutputPath: p.OutputPath,
		Status:     StatusPlanned,
	}
	if p.Binding != nil {
		row.BaseName = p.Binding.BaseName
	}
	if p.Err != nil {
		row.Status = string(pipeline.StatusFailed)
		row.FailedAt = string(pipeline.StatusPending)
		row.Error = p.Err.Error()
	}
	return row
}

func summarizeRows(rows []output.RowOutput) output.Summary {
	s := output.Summary{Total: len(rows)}
	for _, r := range rows {
		if r.Error != "" {
			s.Failed++
		} else {
			s.Done++
		}
	}
	return s
}

// renderRows prints a table of rows in text or markdown mode.
func renderRows(r *output.Renderer, rows []output.RowOutput) {
	styles := r.Styles()
	text := r.EffectiveMode() == output.ModeText

	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		status := output.StatusLabel(row.Status)
		detail := row.Error
		if row.FailedAt != "" {
			status += " at " + output.StatusLabel(row.FailedAt)
		}
		if detail == "" && len(row.Warnings) > 0 {
			detail = fmt.Sprintf("%d warning(s)", len(row.Warnings))
		}
		if text {
			if row.Error != "" {
				status = styles.Error.Render(status)
			} else {
				status = styles.Success.Render(status)
			}
		}
		table = append(table, []string{strconv.Itoa(row.Row), row.BaseName, status, detail})
	}
	r.Table([]string{"Row", "Name", "Status", "Detail"}, table)
}

func renderSummary(r *output.Renderer, s output.Summary) {
	msg := fmt.Sprintf("%d rows: %d done, %d failed", s.Total, s.Done, s.Failed)
	if s.Failed > 0 {
		r.Error(msg)
		return
	}
	r.Success(msg)
}
