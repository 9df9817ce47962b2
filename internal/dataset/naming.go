package dataset

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Naming defaults.
const (
	DefaultNameColumn     = "Report_Name"
	DefaultNameExpression = `Name + "_" + Owner`
)

const maxNamingSteps = 100_000

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Namer derives the output base name of a row. The value of Column wins
// when present and non-empty; otherwise Expression is evaluated as Starlark
// with the row's columns in scope.
type Namer struct {
	Column     string
	Expression string

	opts *syntax.FileOptions
}

// NewNamer creates a namer and checks that the expression parses.
func NewNamer(column, expression string) (*Namer, error) {
	n := &Namer{Column: column, Expression: expression, opts: &syntax.FileOptions{}}
	if column == "" && strings.TrimSpace(expression) == "" {
		return nil, errors.New("naming needs a column or an expression")
	}
	if strings.TrimSpace(expression) != "" {
		if _, err := n.opts.ParseExpr("naming", expression, 0); err != nil {
			return nil, fmt.Errorf("invalid naming expression: %w", err)
		}
	}
	return n, nil
}

// Name returns the base name for row.
func (n *Namer) Name(row Row) (string, error) {
	if n.Column != "" {
		if v, ok := row.Get(n.Column); ok && strings.TrimSpace(v) != "" {
			name := strings.TrimSpace(v)
			return name, ValidateBaseName(name)
		}
	}
	if strings.TrimSpace(n.Expression) == "" {
		return "", fmt.Errorf("column %q is empty and no naming expression is configured", n.Column)
	}

	name, err := n.eval(row)
	if err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	return name, ValidateBaseName(name)
}

func (n *Namer) eval(row Row) (string, error) {
	globals := make(starlark.StringDict, len(row.Values)+1)
	dict := starlark.NewDict(len(row.Values))
	for col, v := range row.Values {
		if err := dict.SetKey(starlark.String(col), starlark.String(v)); err != nil {
			return "", err
		}
		if identifier.MatchString(col) {
			globals[col] = starlark.String(v)
		}
	}
	globals["row"] = dict

	thread := &starlark.Thread{
		Name:  "naming",
		Print: func(_ *starlark.Thread, _ string) {},
	}
	thread.SetMaxExecutionSteps(maxNamingSteps)

	v, err := starlark.EvalOptions(n.opts, thread, "naming", n.Expression, globals)
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return "", fmt.Errorf("naming expression: %s", evalErr.Msg)
		}
		return "", fmt.Errorf("naming expression: %w", err)
	}

	s, ok := starlark.AsString(v)
	if !ok {
		return "", fmt.Errorf("naming expression returned %s, want string", v.Type())
	}
	return s, nil
}

// ValidateBaseName checks that name can stand as a single path segment.
func ValidateBaseName(name string) error {
	switch {
	case name == "":
		return errors.New("output name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("output name %q is not allowed", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("output name %q contains a path separator", name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("output name %q contains a NUL byte", name)
	}
	return nil
}
