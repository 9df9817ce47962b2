package dataset

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/pbipgen/internal/model"
	"github.com/leapstack-labs/pbipgen/internal/testutil"
)

func TestReadCSV(t *testing.T) {
	input := "\ufeffName, Owner ,Region\r\nNorth,Alice,\"North, East\"\r\nSouth,Bob,South\r\n"

	table, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Owner", "Region"}, table.Header)
	require.Len(t, table.Rows, 2)

	first := table.Rows[0]
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, map[string]string{"Name": "North", "Owner": "Alice", "Region": "North, East"}, first.Values)
	assert.Equal(t, 2, table.Rows[1].Index)

	assert.True(t, table.HasColumn("Owner"))
	assert.False(t, table.HasColumn("owner"))
}

func TestReadCSV_UTF16(t *testing.T) {
	// UTF-16LE with BOM: "A\nx\n"
	input := string([]byte{0xff, 0xfe, 'A', 0, '\n', 0, 'x', 0, '\n', 0})

	table, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, table.Header)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "x", table.Rows[0].Values["A"])
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"empty", "", "header line is required"},
		{"empty column name", "Name,,Owner\n", "column 2 has no name"},
		{"duplicate column", "Name,Owner,Name\n", `"Name" appears twice`},
		{"ragged row", "Name,Owner\nNorth\n", "wrong number of fields"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadCSV(t *testing.T) {
	path := testutil.WriteCSV(t, t.TempDir(), []string{"Report_Name", "Region"}, []string{"North_Report", "North"})

	table, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "North_Report", table.Rows[0].Values["Report_Name"])

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func row(values map[string]string) Row {
	return Row{Index: 1, Line: 2, Values: values}
}

func TestNamer_Name(t *testing.T) {
	tests := []struct {
		name       string
		column     string
		expression string
		values     map[string]string
		want       string
		wantErr    string
	}{
		{
			name:       "column value",
			column:     DefaultNameColumn,
			expression: DefaultNameExpression,
			values:     map[string]string{"Report_Name": " North_Report ", "Name": "x", "Owner": "y"},
			want:       "North_Report",
		},
		{
			name:       "empty column falls back to expression",
			column:     DefaultNameColumn,
			expression: DefaultNameExpression,
			values:     map[string]string{"Report_Name": "", "Name": "Sales", "Owner": "Finance"},
			want:       "Sales_Finance",
		},
		{
			name:       "row dict for unsafe column names",
			column:     "",
			expression: `row["Report Title"].replace(" ", "-")`,
			values:     map[string]string{"Report Title": "Q1 Sales"},
			want:       "Q1-Sales",
		},
		{
			name:       "undefined column",
			column:     DefaultNameColumn,
			expression: DefaultNameExpression,
			values:     map[string]string{"Name": "Sales"},
			wantErr:    "undefined: Owner",
		},
		{
			name:       "non-string result",
			column:     "",
			expression: `len(Name)`,
			values:     map[string]string{"Name": "Sales"},
			wantErr:    "want string",
		},
		{
			name:       "path separator",
			column:     "Report_Name",
			expression: "",
			values:     map[string]string{"Report_Name": "a/b"},
			wantErr:    "path separator",
		},
		{
			name:       "no expression configured",
			column:     "Report_Name",
			expression: "",
			values:     map[string]string{"Report_Name": ""},
			wantErr:    "no naming expression",
		},
		{
			name:       "dot dot",
			column:     "",
			expression: `".."`,
			values:     map[string]string{},
			wantErr:    "not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewNamer(tt.column, tt.expression)
			require.NoError(t, err)

			got, err := n.Name(row(tt.values))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewNamer_Errors(t *testing.T) {
	_, err := NewNamer("", "")
	assert.Error(t, err)

	_, err = NewNamer("", `Name +`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid naming expression")
}

func TestBind(t *testing.T) {
	specs := []model.Spec{
		{Name: "Region", Type: model.KindString},
		{Name: "Limit", Type: model.KindInteger},
		{Name: "Active", Type: model.KindBoolean},
	}

	values, err := Bind(specs, row(map[string]string{"Region": `N"E`, "Limit": "10", "Active": "yes"}))
	require.NoError(t, err)
	assert.Equal(t, `"N""E"`, values["Region"].String())
	assert.Equal(t, "10", values["Limit"].String())
	assert.Equal(t, "true", values["Active"].String())

	_, err = Bind(specs, row(map[string]string{"Limit": "ten", "Active": "maybe"}))
	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 1, rowErr.Row)
	assert.Len(t, rowErr.Problems, 3)
	assert.Contains(t, err.Error(), `missing column "Region"`)
	assert.Contains(t, err.Error(), "parameter Limit")
}

func TestResolve(t *testing.T) {
	namer, err := NewNamer(DefaultNameColumn, DefaultNameExpression)
	require.NoError(t, err)
	specs := []model.Spec{{Name: "Region", Type: model.KindString}}

	b, err := Resolve(namer, specs, row(map[string]string{"Report_Name": "North_Report", "Region": "North"}))
	require.NoError(t, err)
	assert.Equal(t, "North_Report", b.BaseName)
	assert.Equal(t, "North", b.Values["Region"].Text)

	_, err = Resolve(namer, specs, row(map[string]string{"Name": "x"}))
	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Len(t, rowErr.Problems, 2)
}

func TestMissingColumns(t *testing.T) {
	table := &Table{Header: []string{"Name", "Region"}}
	specs := []model.Spec{{Name: "Region"}, {Name: "Owner"}}
	assert.Equal(t, []string{"Owner"}, MissingColumns(table, specs))
}
