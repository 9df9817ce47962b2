package model

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// tmdlDocument stores parameters as tables under definition/tables, one
// file per table. A parameter table has a partition whose source line is a
// literal with parameter metadata.
type tmdlDocument struct {
	root string
}

func (d *tmdlDocument) Format() Format { return FormatTableDefinitions }

var (
	tableHeader = regexp.MustCompile(`^table\s+(.+?)\s*$`)
	sourceLine  = regexp.MustCompile(`^(\s*source\s*=\s*)(\S.*)$`)
)

// tmdlLine is one line of a table file with its terminator split off.
type tmdlLine struct {
	body string
	eol  string
}

func splitLines(content string) []tmdlLine {
	parts := strings.SplitAfter(content, "\n")
	lines := make([]tmdlLine, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		body := strings.TrimRight(p, "\r\n")
		lines = append(lines, tmdlLine{body: body, eol: p[len(body):]})
	}
	return lines
}

func joinLines(lines []tmdlLine) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.body)
		b.WriteString(l.eol)
	}
	return b.String()
}

// tableName unquotes a TMDL object name. Quoted names use '' for a quote.
func tableName(raw string) string {
	if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		return strings.ReplaceAll(raw[1:len(raw)-1], "''", "'")
	}
	return raw
}

// tmdlSource is a parameter source line found in a table file.
type tmdlSource struct {
	table  string
	line   int // 0-based
	prefix int // byte length of "source = " including indentation
	decl   declaration
	rest   string
}

// scanTable finds the parameter declaration of one table file, if any.
func scanTable(lines []tmdlLine) (tmdlSource, bool, error) {
	table := ""
	for i, l := range lines {
		if table == "" {
			if m := tableHeader.FindStringSubmatch(l.body); m != nil {
				table = tableName(m[1])
				continue
			}
		}

		m := sourceLine.FindStringSubmatchIndex(l.body)
		if m == nil {
			continue
		}
		prefix, expr := m[3], l.body[m[4]:m[5]]
		decl, ok := parseLiteral(expr)
		if !ok || !hasMarker(expr[decl.end:]) {
			continue
		}
		if table == "" {
			return tmdlSource{}, false, fmt.Errorf("line %d: parameter source outside of a table", i+1)
		}
		return tmdlSource{table: table, line: i, prefix: prefix, decl: decl, rest: expr[decl.end:]}, true, nil
	}
	return tmdlSource{}, false, nil
}

func (d *tmdlDocument) tablesDir() string {
	return filepath.Join(d.root, DefinitionDir, TablesDir)
}

func (d *tmdlDocument) tableFiles() ([]string, error) {
	entries, err := os.ReadDir(d.tablesDir())
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), TableExt) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// relPath is the location file path, relative to the semantic model root.
func relPath(name string) string {
	return DefinitionDir + "/" + TablesDir + "/" + name
}

func (d *tmdlDocument) Parameters() ([]Parameter, error) {
	files, err := d.tableFiles()
	if err != nil {
		return nil, err
	}

	var params []Parameter
	for _, name := range files {
		path := filepath.Join(d.tablesDir(), name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		src, ok, err := scanTable(splitLines(string(data)))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if !ok {
			continue
		}
		params = append(params, Parameter{
			Name:     src.table,
			Value:    src.decl.value,
			Meta:     src.rest,
			Location: Location{File: relPath(name), Line: src.line + 1},
		})
	}
	return params, nil
}

func (d *tmdlDocument) WriteParameters(assignments []Assignment) error {
	byFile := make(map[string][]Assignment)
	var order []string
	for _, a := range assignments {
		f := a.Parameter.Location.File
		if _, ok := byFile[f]; !ok {
			order = append(order, f)
		}
		byFile[f] = append(byFile[f], a)
	}

	for _, file := range order {
		if err := d.writeFile(file, byFile[file]); err != nil {
			return err
		}
	}
	return nil
}

func (d *tmdlDocument) writeFile(file string, assignments []Assignment) error {
	path := filepath.Join(d.root, filepath.FromSlash(file))
	if len(assignments) > 1 {
		a := assignments[1]
		return &ParameterWriteError{Name: a.Parameter.Name, Location: a.Parameter.Location, Reason: "table file already holds another parameter"}
	}
	a := assignments[0]
	p := a.Parameter

	info, err := os.Stat(path)
	if err != nil {
		return &ParameterWriteError{Name: p.Name, Location: p.Location, Reason: err.Error()}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	lines := splitLines(string(data))
	src, ok, err := scanTable(lines)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if !ok || src.table != p.Name || src.line+1 != p.Location.Line {
		return &ParameterWriteError{Name: p.Name, Location: p.Location, Reason: "parameter source line not found"}
	}

	l := &lines[src.line]
	start := src.prefix + src.decl.start
	end := src.prefix + src.decl.end
	l.body = l.body[:start] + a.Value.String() + l.body[end:]

	out := joinLines(lines)
	if out == string(data) {
		return nil
	}
	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
