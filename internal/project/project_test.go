package project

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/pbipgen/internal/model"
	"github.com/leapstack-labs/pbipgen/internal/testutil"
)

func TestLoadTemplate(t *testing.T) {
	root := testutil.NewJSONTemplate(t, "Example_PBIP", testutil.Param{Name: "Region", Literal: `"South"`})

	tmpl, err := LoadTemplate(root)
	require.NoError(t, err)
	assert.Equal(t, "Example_PBIP", tmpl.BaseName)
	assert.Equal(t, filepath.Join(root, "Example_PBIP.pbip"), tmpl.Descriptor)
	assert.Equal(t, filepath.Join(root, "Example_PBIP.Report"), tmpl.ReportDir)
	assert.Equal(t, filepath.Join(root, "Example_PBIP.SemanticModel"), tmpl.SemanticModelDir)
	assert.Equal(t, model.FormatJSON, tmpl.Format)

	catalog, err := tmpl.Catalog()
	require.NoError(t, err)
	assert.Equal(t, []string{"Region"}, catalog.Names())
}

func TestLoadTemplate_TMDL(t *testing.T) {
	root := testutil.NewTMDLTemplate(t, "Sales_Master", testutil.Param{Name: "Owner", Literal: `"Owner A"`, Type: "Text"})

	tmpl, err := LoadTemplate(root)
	require.NoError(t, err)
	assert.Equal(t, model.FormatTableDefinitions, tmpl.Format)
}

func TestLoadTemplate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		wantMsg string
	}{
		{
			name:    "missing directory",
			setup:   func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") },
			wantMsg: "invalid template",
		},
		{
			name:    "no descriptor",
			setup:   func(t *testing.T) string { return t.TempDir() },
			wantMsg: "no .pbip file",
		},
		{
			name: "missing report folder",
			setup: func(t *testing.T) string {
				root := testutil.NewJSONTemplate(t, "Base")
				require.NoError(t, os.RemoveAll(filepath.Join(root, "Base.Report")))
				return root
			},
			wantMsg: "missing Base.Report/",
		},
		{
			name: "ambiguous descriptors",
			setup: func(t *testing.T) string {
				root := testutil.NewJSONTemplate(t, "Base")
				testutil.WriteFile(t, filepath.Join(root, "Other.pbip"), "{}")
				testutil.WriteFile(t, filepath.Join(root, "Third.pbip"), "{}")
				require.NoError(t, os.Rename(root, filepath.Join(filepath.Dir(root), "Renamed")))
				return filepath.Join(filepath.Dir(root), "Renamed")
			},
			wantMsg: "none matches the folder name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTemplate(tt.setup(t))
			var tmplErr *TemplateError
			require.True(t, errors.As(err, &tmplErr))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadTemplate_DescriptorMatchingFolderWins(t *testing.T) {
	root := testutil.NewJSONTemplate(t, "Base")
	testutil.WriteFile(t, filepath.Join(root, "Other.pbip"), "{}")

	tmpl, err := LoadTemplate(root)
	require.NoError(t, err)
	assert.Equal(t, "Base", tmpl.BaseName)
}

func TestLoadTemplate_UnknownFormat(t *testing.T) {
	root := testutil.NewJSONTemplate(t, "Base")
	require.NoError(t, os.Remove(filepath.Join(root, "Base.SemanticModel", "model.bim")))

	_, err := LoadTemplate(root)
	var detectErr *model.FormatDetectionError
	assert.True(t, errors.As(err, &detectErr))
}

func TestCloner_Clone(t *testing.T) {
	src := testutil.NewJSONTemplate(t, "Base", testutil.Param{Name: "Region", Literal: `"South"`})
	require.NoError(t, os.Chmod(filepath.Join(src, "Base.pbip"), 0o600))
	if runtime.GOOS != "windows" {
		require.NoError(t, os.Symlink("Base.pbip", filepath.Join(src, "link.pbip")))
	}

	dst := filepath.Join(t.TempDir(), "out", "North")
	c := NewCloner(DefaultCachePatterns, testutil.NewTestLogger(t))
	require.NoError(t, c.Clone(context.Background(), src, dst))

	want := testutil.ReadTree(t, src)
	delete(want, "Base.SemanticModel/.pbi/cache.abf")
	assert.Equal(t, want, testutil.ReadTree(t, dst))

	info, err := os.Stat(filepath.Join(dst, "Base.pbip"))
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, fs.FileMode(0o600), info.Mode().Perm())
	}

	// No staging directory is left beside the destination.
	entries, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "North", entries[0].Name())
}

func TestCloner_DestinationExists(t *testing.T) {
	src := testutil.NewJSONTemplate(t, "Base")
	dst := t.TempDir()

	err := NewCloner(nil, nil).Clone(context.Background(), src, dst)
	var cloneErr *CloneError
	require.True(t, errors.As(err, &cloneErr))
	assert.True(t, errors.Is(err, fs.ErrExist))
}

func TestCloner_FailureRemovesStaging(t *testing.T) {
	src := testutil.NewJSONTemplate(t, "Base")
	dst := filepath.Join(t.TempDir(), "North")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewCloner(nil, nil).Clone(ctx, src, dst)
	var cloneErr *CloneError
	require.True(t, errors.As(err, &cloneErr))
	assert.True(t, errors.Is(err, context.Canceled))

	entries, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRenameArtifacts(t *testing.T) {
	root := testutil.NewJSONTemplate(t, "Base")

	require.NoError(t, RenameArtifacts(root, "Base", "North"))
	for _, name := range Artifacts("North") {
		_, err := os.Lstat(filepath.Join(root, name))
		assert.NoError(t, err, name)
	}
	for _, name := range Artifacts("Base") {
		_, err := os.Lstat(filepath.Join(root, name))
		assert.True(t, errors.Is(err, fs.ErrNotExist), name)
	}

	err := RenameArtifacts(root, "Base", "South")
	assert.Error(t, err)
}

func TestRenamer_Apply(t *testing.T) {
	root := testutil.NewJSONTemplate(t, "Example_PBIP", testutil.Param{Name: "Region", Literal: `"South"`})
	require.NoError(t, RenameArtifacts(root, "Example_PBIP", "North_Report"))
	testutil.WriteFile(t, filepath.Join(root, "North_Report.Report", "Example_PBIP_pages", "Example_PBIP_page1.json"), `{"title":"Example_PBIP"}`)
	testutil.WriteFile(t, filepath.Join(root, "notes.txt"), "Example_PBIP\xff\xfe")

	r := NewRenamer(nil, testutil.NewTestLogger(t))
	report, err := r.Apply(root, "Example_PBIP", "North_Report")
	require.NoError(t, err)

	tree := testutil.ReadTree(t, root)
	for path, content := range tree {
		assert.NotContains(t, path, "Example_PBIP", "path %s", path)
		if path == "notes.txt" || strings.HasSuffix(path, ".png") || strings.HasSuffix(path, ".abf") {
			continue
		}
		assert.NotContains(t, content, "Example_PBIP", "content of %s", path)
	}

	assert.Equal(t, `{"title":"North_Report"}`, tree["North_Report.Report/North_Report_pages/North_Report_page1.json"])
	assert.Contains(t, tree["North_Report.pbip"], `"path": "North_Report.Report"`)
	assert.Contains(t, tree["North_Report.Report/definition.pbir"], `"path": "../North_Report.SemanticModel"`)
	assert.Contains(t, tree, "North_Report.Report/StaticResources/North_Report_logo.png")

	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "notes.txt", report.Warnings[0].Path)
	assert.Equal(t, 3, report.Renamed)
	assert.Positive(t, report.FilesRewritten)

	// A second pass finds nothing left to change.
	again, err := r.Apply(root, "Example_PBIP", "North_Report")
	require.NoError(t, err)
	assert.Zero(t, again.FilesRewritten)
	assert.Zero(t, again.Renamed)
}

func TestRenamer_IsCaseSensitive(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "a.json"), `["Base", "base", "BASE"]`)

	_, err := NewRenamer(nil, nil).Apply(root, "Base", "North")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "a.json"))
	require.NoError(t, err)
	assert.Equal(t, `["North", "base", "BASE"]`, string(data))
}

func TestRenamer_Collision(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "Base.txt"), "x")
	testutil.WriteFile(t, filepath.Join(root, "North.txt"), "y")

	_, err := NewRenamer(nil, nil).Apply(root, "Base", "North")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRenamer_TextExtensions(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "a.json"), "Base")
	testutil.WriteFile(t, filepath.Join(root, "b.custom"), "Base")

	_, err := NewRenamer([]string{".custom"}, nil).Apply(root, "Base", "North")
	require.NoError(t, err)

	tree := testutil.ReadTree(t, root)
	assert.Equal(t, "Base", tree["a.json"])
	assert.Equal(t, "North", tree["b.custom"])

	_, err = NewRenamer([]string{"*"}, nil).Apply(root, "Base", "North")
	require.NoError(t, err)
	assert.Equal(t, "North", testutil.ReadTree(t, root)["a.json"])
}

func TestRemoveCache(t *testing.T) {
	root := testutil.NewTMDLTemplate(t, "Base")

	found, err := FindCache(root, DefaultCachePatterns)
	require.NoError(t, err)
	assert.Equal(t, []string{"Base.SemanticModel/.pbi/cache.abf"}, found)

	removed, err := RemoveCache(root, DefaultCachePatterns)
	require.NoError(t, err)
	assert.Equal(t, found, removed)
	assert.NoFileExists(t, filepath.Join(root, "Base.SemanticModel", ".pbi", "cache.abf"))

	removed, err = RemoveCache(root, DefaultCachePatterns)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestPatterns(t *testing.T) {
	assert.True(t, MatchAny([]string{"*.abf"}, "cache.abf"))
	assert.False(t, MatchAny([]string{"*.abf"}, "model.bim"))
	assert.False(t, MatchAny([]string{"["}, "cache.abf"))

	assert.NoError(t, ValidatePatterns([]string{"cache.abf", "*.tmp"}))
	assert.Error(t, ValidatePatterns([]string{"["}))
}
