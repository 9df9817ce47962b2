package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(FormatJSON, []Parameter{
		{Name: "Region", Value: Literal{Text: "South", Quoted: true}, Location: Location{Index: 0}},
		{Name: "Owner", Value: Literal{Text: "A", Quoted: true}, Location: Location{Index: 3}},
		{Name: "Limit", Value: Literal{Text: "10"}, Location: Location{Index: 5}},
	})
	require.NoError(t, err)
	return c
}

func TestNewCatalog_DuplicateName(t *testing.T) {
	_, err := NewCatalog(FormatJSON, []Parameter{
		{Name: "Region", Location: Location{Index: 0}},
		{Name: "Region", Location: Location{Index: 4}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expressions[0]")
	assert.Contains(t, err.Error(), "expressions[4]")
}

func TestCatalog_Lookup(t *testing.T) {
	c := testCatalog(t)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"Limit", "Owner", "Region"}, c.Names())

	p, ok := c.Lookup("Owner")
	require.True(t, ok)
	assert.Equal(t, 3, p.Location.Index)

	_, ok = c.Lookup("owner")
	assert.False(t, ok)
}

func TestCatalog_Validate(t *testing.T) {
	c := testCatalog(t)

	require.NoError(t, c.Validate([]Spec{{Name: "Region", Type: KindString}, {Name: "Limit", Type: KindInteger}}))

	err := c.Validate([]Spec{{Name: "Region"}, {Name: "Country"}, {Name: "Year"}, {Name: "Country"}})
	var mismatch *ParameterMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, []string{"Country", "Year"}, mismatch.Missing)
	assert.Equal(t, []string{"Limit", "Owner", "Region"}, mismatch.Available)
	assert.Contains(t, err.Error(), "Country, Year")
}

func TestCatalog_Assign(t *testing.T) {
	c := testCatalog(t)

	assignments, err := c.Assign(map[string]Literal{
		"Limit":  {Text: "20"},
		"Region": {Text: "North", Quoted: true},
	})
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, "Region", assignments[0].Parameter.Name)
	assert.Equal(t, "Limit", assignments[1].Parameter.Name)
	assert.Equal(t, "20", assignments[1].Value.Text)

	_, err = c.Assign(map[string]Literal{"Nope": {Text: "x"}})
	var mismatch *ParameterMismatchError
	assert.True(t, errors.As(err, &mismatch))
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
		want  Format
	}{
		{
			name: "bim",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, BIMFileName), []byte("{}"), 0o644))
			},
			want: FormatJSON,
		},
		{
			name: "bim wins over definition",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, BIMFileName), []byte("{}"), 0o644))
				require.NoError(t, os.MkdirAll(filepath.Join(dir, DefinitionDir, TablesDir), 0o755))
				require.NoError(t, os.WriteFile(filepath.Join(dir, DefinitionDir, ModelTMDLFile), nil, 0o644))
			},
			want: FormatJSON,
		},
		{
			name: "tmdl",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.MkdirAll(filepath.Join(dir, DefinitionDir, TablesDir), 0o755))
				require.NoError(t, os.WriteFile(filepath.Join(dir, DefinitionDir, ModelTMDLFile), nil, 0o644))
			},
			want: FormatTableDefinitions,
		},
		{
			name: "definition without tables",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.MkdirAll(filepath.Join(dir, DefinitionDir), 0o755))
				require.NoError(t, os.WriteFile(filepath.Join(dir, DefinitionDir, ModelTMDLFile), nil, 0o644))
			},
			want: FormatUnknown,
		},
		{
			name:  "empty",
			setup: func(t *testing.T, dir string) {},
			want:  FormatUnknown,
		},
		{
			name: "model.bim is a directory",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.Mkdir(filepath.Join(dir, BIMFileName), 0o755))
			},
			want: FormatUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(t, dir)
			assert.Equal(t, tt.want, DetectFormat(dir))
		})
	}
}

func TestOpen_UnknownFormat(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(dir)

	var detectErr *FormatDetectionError
	require.True(t, errors.As(err, &detectErr))
	assert.Equal(t, dir, detectErr.Dir)
	assert.Contains(t, err.Error(), "Hint:")

	_, err = Extract(dir)
	assert.True(t, errors.As(err, &detectErr))
}
