package testutil

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Param is a parameter declared in a fixture semantic model.
type Param struct {
	Name string
	// Literal is written as is, e.g. `"North"` or `42`.
	Literal string
	// Type is the Type= metadata hint. Defaults to "Any".
	Type string
}

// CacheContent is the binary payload written as the fixture cache file.
var CacheContent = []byte{0x00, 0xff, 0xfe, 'c', 'a', 'c', 'h', 'e', 0x00}

func (p Param) expression() string {
	typ := p.Type
	if typ == "" {
		typ = "Any"
	}
	return fmt.Sprintf(`%s meta [IsParameterQuery=true, Type="%s", IsParameterQueryRequired=true]`, p.Literal, typ)
}

// NewJSONTemplate writes a PBIP template whose semantic model is a model.bim
// file and returns its root, <tempdir>/<base>.
func NewJSONTemplate(t testing.TB, base string, params ...Param) string {
	t.Helper()
	root := newProjectRoot(t, base)

	expressions := make([]map[string]any, 0, len(params)+1)
	for _, p := range params {
		expressions = append(expressions, map[string]any{
			"name":       p.Name,
			"kind":       "m",
			"expression": p.expression(),
			"lineageTag": "tag-" + strings.ToLower(p.Name),
		})
	}
	expressions = append(expressions, map[string]any{
		"name":       "Source Path",
		"kind":       "m",
		"expression": fmt.Sprintf("let\n    Source = \"C:\\\\%s\\\\data\"\nin\n    Source", base),
	})

	bim := map[string]any{
		"name":               base,
		"compatibilityLevel": 1567,
		"model": map[string]any{
			"culture":     "en-US",
			"expressions": expressions,
			"tables": []any{
				map[string]any{"name": "Sales", "columns": []any{map[string]any{"name": "Amount", "dataType": "double"}}},
			},
		},
	}
	data, err := json.MarshalIndent(bim, "", "  ")
	if err != nil {
		t.Fatalf("failed to encode model.bim: %v", err)
	}
	WriteFile(t, filepath.Join(root, base+".SemanticModel", "model.bim"), string(data)+"\n")
	return root
}

// NewTMDLTemplate writes a PBIP template whose semantic model is a TMDL
// definition folder with one table file per parameter.
func NewTMDLTemplate(t testing.TB, base string, params ...Param) string {
	t.Helper()
	root := newProjectRoot(t, base)
	definition := filepath.Join(root, base+".SemanticModel", "definition")

	var refs strings.Builder
	for _, p := range params {
		fmt.Fprintf(&refs, "ref table %s\n", p.Name)
	}
	WriteFile(t, filepath.Join(definition, "model.tmdl"),
		"model Model\n\tculture: en-US\n\tdefaultPowerBIDataSourceVersion: powerBI_V3\n\n"+refs.String()+"ref table Sales\n")
	WriteFile(t, filepath.Join(definition, "database.tmdl"), "database "+base+"\n\tcompatibilityLevel: 1567\n")

	for _, p := range params {
		WriteFile(t, filepath.Join(definition, "tables", p.Name+".tmdl"), fmt.Sprintf(
			"table %s\n\tlineageTag: tag-%s\n\n\tcolumn %s\n\t\tdataType: string\n\t\tsourceColumn: %s\n\n"+
				"\tpartition %s = m\n\t\tmode: import\n\t\tsource = %s\n\n\tannotation PBI_ResultType = Text\n",
			p.Name, strings.ToLower(p.Name), p.Name, p.Name, p.Name, p.expression()))
	}
	WriteFile(t, filepath.Join(definition, "tables", "Sales.tmdl"), fmt.Sprintf(
		"table Sales\n\n\tpartition Sales = m\n\t\tmode: import\n\t\tsource =\n\t\t\t\tlet\n"+
			"\t\t\t\t    Source = Csv.Document(File.Contents(\"C:\\%s\\sales.csv\"))\n\t\t\t\tin\n\t\t\t\t    Source\n", base))
	return root
}

func newProjectRoot(t testing.TB, base string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), base)

	WriteFile(t, filepath.Join(root, base+".pbip"), fmt.Sprintf(
		"{\n  \"version\": \"1.0\",\n  \"artifacts\": [\n    {\n      \"report\": {\n        \"path\": \"%s.Report\"\n      }\n    }\n  ]\n}\n", base))

	report := filepath.Join(root, base+".Report")
	WriteFile(t, filepath.Join(report, "definition.pbir"), fmt.Sprintf(
		"{\n  \"version\": \"4.0\",\n  \"datasetReference\": {\n    \"byPath\": {\n      \"path\": \"../%s.SemanticModel\"\n    }\n  }\n}\n", base))
	WriteFile(t, filepath.Join(report, ".platform"), fmt.Sprintf(
		"{\n  \"metadata\": {\n    \"type\": \"Report\",\n    \"displayName\": \"%s\"\n  }\n}\n", base))
	WriteFile(t, filepath.Join(report, "report.json"), fmt.Sprintf(
		"{\n  \"sections\": [\n    {\n      \"displayName\": \"%s Overview\"\n    }\n  ]\n}\n", base))
	WriteFile(t, filepath.Join(report, "StaticResources", base+"_logo.png"), "\x89PNG\r\n\x1a\n"+base)

	model := filepath.Join(root, base+".SemanticModel")
	WriteFile(t, filepath.Join(model, "definition.pbism"), "{\n  \"version\": \"4.0\",\n  \"settings\": {}\n}\n")
	WriteFile(t, filepath.Join(model, ".platform"), fmt.Sprintf(
		"{\n  \"metadata\": {\n    \"type\": \"SemanticModel\",\n    \"displayName\": \"%s\"\n  }\n}\n", base))
	WriteFile(t, filepath.Join(model, ".pbi", "cache.abf"), string(CacheContent))
	WriteFile(t, filepath.Join(model, ".pbi", "localSettings.json"), "{\n  \"version\": \"1.0\"\n}\n")
	return root
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// WriteCSV writes a CSV file with a header and rows and returns its path.
func WriteCSV(t testing.TB, dir string, header []string, rows ...[]string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(strings.Join(header, ",") + "\n")
	for _, r := range rows {
		b.WriteString(strings.Join(r, ",") + "\n")
	}
	path := filepath.Join(dir, "rows.csv")
	WriteFile(t, path, b.String())
	return path
}

// ReadTree returns every regular file below root keyed by its slash path
// relative to root. Symlinks are recorded as "-> target".
func ReadTree(t testing.TB, root string) map[string]string {
	t.Helper()
	tree := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			tree[rel] = "-> " + target
		case d.Type().IsRegular():
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			tree[rel] = string(data)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to read tree %s: %v", root, err)
	}
	return tree
}

// Paths returns the sorted keys of a tree read by ReadTree.
func Paths(tree map[string]string) []string {
	paths := make([]string, 0, len(tree))
	for p := range tree {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
