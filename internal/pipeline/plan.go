package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/pbipgen/internal/dataset"
)

// Plan is a row resolved to its output before anything is written.
type Plan struct {
	Row        dataset.Row
	Binding    *dataset.Binding
	OutputPath string
	// Err is set when the row cannot be generated.
	Err error
}

// Plan resolves every row in order. Rows are named and bound one after the
// other so that on a collision the earlier row keeps the path.
func (g *Generator) Plan(rows []dataset.Row) []Plan {
	plans := make([]Plan, len(rows))
	// Keys are case-folded so two names differing only in case collide on
	// every filesystem.
	claimed := make(map[string]int, len(rows))

	for i, row := range rows {
		p := Plan{Row: row}

		binding, err := dataset.Resolve(g.cfg.Namer, g.cfg.Specs, row)
		if err != nil {
			p.Err = err
			plans[i] = p
			continue
		}
		p.Binding = binding
		p.OutputPath = filepath.Join(g.cfg.OutputDir, binding.BaseName)

		key := strings.ToLower(p.OutputPath)
		if prev, ok := claimed[key]; ok {
			p.Err = &CollisionError{BaseName: binding.BaseName, Path: p.OutputPath, Row: prev}
		} else if within(g.cfg.Template.Root, p.OutputPath) {
			// Never overwrite the template itself.
			p.Err = &CollisionError{BaseName: binding.BaseName, Path: p.OutputPath}
		} else if _, err := os.Lstat(p.OutputPath); err == nil && !g.cfg.Overwrite {
			p.Err = &CollisionError{BaseName: binding.BaseName, Path: p.OutputPath}
		} else {
			claimed[key] = row.Index
		}

		if p.Err == nil && binding.BaseName != g.cfg.Template.BaseName &&
			strings.Contains(binding.BaseName, g.cfg.Template.BaseName) {
			g.logger.Warn("output name contains the template name; the rewrite cannot remove every occurrence",
				"row", row.Index, "base_name", binding.BaseName, "template", g.cfg.Template.BaseName)
		}
		plans[i] = p
	}
	return plans
}
