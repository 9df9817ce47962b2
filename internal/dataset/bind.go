package dataset

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/pbipgen/internal/model"
)

// RowError lists everything wrong with one row. It fails only that row.
type RowError struct {
	Row      int
	Problems []string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, strings.Join(e.Problems, "; "))
}

// Binding is a row resolved to its output name and parameter values.
type Binding struct {
	Row      Row
	BaseName string
	Values   map[string]model.Literal
}

// Bind converts the row's value for every spec into a model literal.
func Bind(specs []model.Spec, row Row) (map[string]model.Literal, error) {
	values := make(map[string]model.Literal, len(specs))
	var problems []string
	for _, s := range specs {
		raw, ok := row.Get(s.Name)
		if !ok {
			problems = append(problems, fmt.Sprintf("missing column %q", s.Name))
			continue
		}
		lit, err := s.Type.Convert(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("parameter %s: %v", s.Name, err))
			continue
		}
		values[s.Name] = lit
	}
	if len(problems) > 0 {
		return nil, &RowError{Row: row.Index, Problems: problems}
	}
	return values, nil
}

// Resolve names the row and binds its values, collecting every problem of
// the row into a single RowError.
func Resolve(namer *Namer, specs []model.Spec, row Row) (*Binding, error) {
	var problems []string

	name, err := namer.Name(row)
	if err != nil {
		problems = append(problems, err.Error())
	}

	values, err := Bind(specs, row)
	if err != nil {
		if rowErr, ok := err.(*RowError); ok {
			problems = append(problems, rowErr.Problems...)
		} else {
			problems = append(problems, err.Error())
		}
	}

	if len(problems) > 0 {
		return nil, &RowError{Row: row.Index, Problems: problems}
	}
	return &Binding{Row: row, BaseName: name, Values: values}, nil
}

// MissingColumns returns the spec names the header does not declare.
func MissingColumns(t *Table, specs []model.Spec) []string {
	var missing []string
	for _, s := range specs {
		if !t.HasColumn(s.Name) {
			missing = append(missing, s.Name)
		}
	}
	return missing
}
