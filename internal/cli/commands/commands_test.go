package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/pbipgen/internal/cli/config"
	"github.com/leapstack-labs/pbipgen/internal/cli/output"
	"github.com/leapstack-labs/pbipgen/internal/testutil"
)

const projectConfig = `template: templates/Example_PBIP
data: data/rows.csv
parameters:
  - name: Owner
`

// newProject lays out a project with a json template under templates/,
// a data file and pbipgen.yaml, and makes it the working directory.
// Commands print JSON.
func newProject(t *testing.T, cfg string, header []string, rows ...[]string) string {
	t.Helper()
	dir := t.TempDir()

	tmpl := testutil.NewJSONTemplate(t, "Example_PBIP",
		testutil.Param{Name: "Owner", Literal: `"Sales"`},
		testutil.Param{Name: "Threshold", Literal: "10", Type: "Number"},
	)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, config.TemplatesDir), 0o755))
	require.NoError(t, os.Rename(tmpl, filepath.Join(dir, config.TemplatesDir, "Example_PBIP")))

	testutil.WriteCSV(t, filepath.Join(dir, config.DataDir), header, rows...)
	testutil.WriteFile(t, filepath.Join(dir, config.DefaultConfigFile), cfg)

	t.Chdir(dir)
	t.Setenv("PBIPGEN_FORMAT", "json")
	return dir
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), "output: %s", s)
	return v
}

func TestGenerate(t *testing.T) {
	dir := newProject(t, projectConfig, []string{"Name", "Owner"},
		[]string{"North", "Finance"},
		[]string{"South", "Ops"},
	)

	stdout, _, err := execute(t, NewGenerateCommand())
	require.NoError(t, err)

	out := decode[output.GenerateOutput](t, stdout)
	assert.Equal(t, output.Summary{Total: 2, Done: 2}, out.Summary)
	assert.Equal(t, "json", out.Format)
	assert.NotEmpty(t, out.RunID, "run is recorded in history")
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "North_Finance", out.Rows[0].BaseName)
	assert.Equal(t, "DONE", out.Rows[0].Status)

	project := filepath.Join(dir, "outputs", "North_Finance")
	assert.FileExists(t, filepath.Join(project, "North_Finance.pbip"))
	bim, err := os.ReadFile(filepath.Join(project, "North_Finance.SemanticModel", "model.bim"))
	require.NoError(t, err)
	assert.Contains(t, string(bim), `\"Finance\" meta [IsParameterQuery=true`)
	assert.NoFileExists(t, filepath.Join(project, "North_Finance.SemanticModel", ".pbi", "cache.abf"))

	t.Run("history lists the run", func(t *testing.T) {
		stdout, _, err := execute(t, NewHistoryCommand())
		require.NoError(t, err)
		hist := decode[output.HistoryOutput](t, stdout)
		require.Len(t, hist.Runs, 1)
		assert.Equal(t, out.RunID, hist.Runs[0].ID)
		assert.Equal(t, "completed", hist.Runs[0].Status)
		assert.Equal(t, 2, hist.Runs[0].Done)
	})

	t.Run("history shows rows of a run", func(t *testing.T) {
		stdout, _, err := execute(t, NewHistoryCommand(), out.RunID)
		require.NoError(t, err)
		hist := decode[output.HistoryOutput](t, stdout)
		require.NotNil(t, hist.Run)
		require.Len(t, hist.Rows, 2)
		assert.Equal(t, "South_Ops", hist.Rows[1].BaseName)
	})

	t.Run("second run without overwrite fails every row", func(t *testing.T) {
		stdout, _, err := execute(t, NewGenerateCommand())
		var rowsErr *RowsFailedError
		require.True(t, errors.As(err, &rowsErr), "got %v", err)
		assert.Equal(t, 2, rowsErr.Failed)

		out := decode[output.GenerateOutput](t, stdout)
		assert.Contains(t, out.Rows[0].Error, "North_Finance")
	})

	t.Run("overwrite replaces outputs", func(t *testing.T) {
		_, _, err := execute(t, NewGenerateCommand(), "--overwrite")
		require.NoError(t, err)
	})
}

func TestGenerate_DryRun(t *testing.T) {
	dir := newProject(t, projectConfig, []string{"Name", "Owner"},
		[]string{"North", "Finance"},
		[]string{"North", "Finance"},
	)

	stdout, _, err := execute(t, NewGenerateCommand(), "--dry-run", "-o", "build")
	require.NoError(t, err, "a dry run reports problems without failing")

	out := decode[output.GenerateOutput](t, stdout)
	assert.True(t, out.DryRun)
	assert.Equal(t, filepath.Join(dir, "build"), out.OutputDir)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, StatusPlanned, out.Rows[0].Status)
	assert.Equal(t, filepath.Join(dir, "build", "North_Finance"), out.Rows[0].OutputPath)
	assert.Equal(t, "FAILED", out.Rows[1].Status)
	assert.Contains(t, out.Rows[1].Error, "row 1")
	assert.Equal(t, output.Summary{Total: 2, Done: 1, Failed: 1}, out.Summary)

	assert.NoDirExists(t, filepath.Join(dir, "build"))
}

func TestGenerate_RowIsolation(t *testing.T) {
	dir := newProject(t, projectConfig+"  - name: Threshold\n    type: integer\nhistory: false\n",
		[]string{"Name", "Owner", "Threshold"},
		[]string{"North", "Finance", "1"},
		[]string{"North", "Finance", "2"},
		[]string{"East", "Ops", "ten"},
		[]string{"South", "Ops", "5"},
	)

	stdout, _, err := execute(t, NewGenerateCommand(), "-j", "2")
	var rowsErr *RowsFailedError
	require.True(t, errors.As(err, &rowsErr))
	assert.Equal(t, &RowsFailedError{Failed: 2, Total: 4}, rowsErr)

	out := decode[output.GenerateOutput](t, stdout)
	assert.Empty(t, out.RunID)
	assert.DirExists(t, filepath.Join(dir, "outputs", "North_Finance"))
	assert.DirExists(t, filepath.Join(dir, "outputs", "South_Ops"))
	assert.NoDirExists(t, filepath.Join(dir, "outputs", "East_Ops"))
	assert.NoFileExists(t, filepath.Join(dir, ".pbipgen", "state.db"))

	assert.Contains(t, out.Rows[1].Error, "collides with row 1")
	assert.Contains(t, out.Rows[2].Error, "Threshold")
}

func TestGenerate_ConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		cfg    string
		errMsg string
	}{
		{
			name:   "parameter not declared",
			cfg:    projectConfig + "  - name: Region\n",
			errMsg: "Region",
		},
		{
			name:   "missing template",
			cfg:    "data: data/rows.csv\n",
			errMsg: "no template configured",
		},
		{
			name:   "bad naming expression",
			cfg:    projectConfig + "naming:\n  expression: 'Name +'\n",
			errMsg: "invalid naming expression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := newProject(t, tt.cfg, []string{"Name", "Owner"}, []string{"North", "Finance"})
			_, _, err := execute(t, NewGenerateCommand())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.NoDirExists(t, filepath.Join(dir, "outputs", "North_Finance"))
		})
	}
}

func TestGenerate_TextOutput(t *testing.T) {
	newProject(t, projectConfig, []string{"Name", "Owner"}, []string{"North", "Finance"})
	t.Setenv("PBIPGEN_FORMAT", "markdown")

	stdout, stderr, err := execute(t, NewGenerateCommand())
	require.NoError(t, err)
	assert.Contains(t, stdout, "# Generation Results")
	assert.Contains(t, stdout, "| 1 | North_Finance | Done |")
	assert.Contains(t, stderr, "1 rows: 1 done, 0 failed")
}

func TestValidate(t *testing.T) {
	t.Run("valid project", func(t *testing.T) {
		newProject(t, projectConfig, []string{"Name", "Owner"},
			[]string{"North", "Finance"},
			[]string{"South", "Ops"},
		)

		stdout, _, err := execute(t, NewValidateCommand())
		require.NoError(t, err)

		out := decode[output.ValidateOutput](t, stdout)
		assert.True(t, out.Valid)
		statuses := make(map[string]string)
		for _, c := range out.Checks {
			statuses[c.Name] = c.Status
		}
		assert.Equal(t, map[string]string{
			"template":   CheckOK,
			"catalog":    CheckOK,
			"parameters": CheckOK,
			"data":       CheckOK,
			"columns":    CheckWarn, // Name only feeds the naming expression
			"rows":       CheckOK,
		}, statuses)
		require.Len(t, out.Rows, 2)
		assert.Equal(t, "South_Ops", out.Rows[1].BaseName)
	})

	t.Run("reports every problem", func(t *testing.T) {
		newProject(t, projectConfig+"  - name: Threshold\n    type: integer\n  - name: Region\n",
			[]string{"Name", "Owner", "Threshold"},
			[]string{"North", "Finance", "ten"},
			[]string{"South", "Ops", "5"},
			[]string{"South", "Ops", "5"},
		)

		stdout, _, err := execute(t, NewValidateCommand())
		require.ErrorIs(t, err, ErrValidationFailed)

		out := decode[output.ValidateOutput](t, stdout)
		assert.False(t, out.Valid)

		byName := make(map[string]output.CheckOutput)
		for _, c := range out.Checks {
			byName[c.Name] = c
		}
		assert.Equal(t, CheckError, byName["parameters"].Status)
		assert.Contains(t, byName["parameters"].Details[0], "Region")
		assert.Equal(t, CheckError, byName["columns"].Status)
		assert.Equal(t, CheckError, byName["rows"].Status)

		require.Len(t, out.Rows, 3)
		assert.Contains(t, out.Rows[0].Error, "Threshold")
		assert.Contains(t, out.Rows[0].Error, "Region")
	})

	t.Run("name collisions", func(t *testing.T) {
		newProject(t, projectConfig, []string{"Name", "Owner"},
			[]string{"North", "Finance"},
			[]string{"north", "finance"},
		)

		stdout, _, err := execute(t, NewValidateCommand())
		require.ErrorIs(t, err, ErrValidationFailed)

		out := decode[output.ValidateOutput](t, stdout)
		require.Len(t, out.Rows, 2)
		assert.Equal(t, CheckOK, out.Rows[0].Status)
		assert.Contains(t, out.Rows[1].Error, "collides with row 1")
	})
}

func TestParams(t *testing.T) {
	newProject(t, projectConfig, []string{"Name", "Owner"})

	stdout, _, err := execute(t, NewParamsCommand())
	require.NoError(t, err)

	out := decode[output.ParamsOutput](t, stdout)
	assert.Equal(t, "Example_PBIP", out.BaseName)
	assert.Equal(t, "json", out.Format)
	assert.Equal(t, []output.ParameterInfo{
		{Name: "Owner", Value: `"Sales"`, Type: "Any", Location: "expressions[0]"},
		{Name: "Threshold", Value: "10", Type: "Number", Location: "expressions[1]"},
	}, out.Parameters)

	t.Run("explicit tmdl template", func(t *testing.T) {
		root := testutil.NewTMDLTemplate(t, "Finance_PBIP", testutil.Param{Name: "Owner", Literal: `"Finance"`})
		stdout, _, err := execute(t, NewParamsCommand(), root)
		require.NoError(t, err)

		out := decode[output.ParamsOutput](t, stdout)
		assert.Equal(t, "tmdl", out.Format)
		require.Len(t, out.Parameters, 1)
		assert.Equal(t, `"Finance"`, out.Parameters[0].Value)
	})

	t.Run("not a template", func(t *testing.T) {
		_, _, err := execute(t, NewParamsCommand(), t.TempDir())
		assert.ErrorContains(t, err, "invalid template")
	})
}

func TestInit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")

	stdout, stderr, err := execute(t, NewInitCommand(), dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "pbipgen.yaml")
	assert.Contains(t, stderr, "pbipgen project initialized!")

	for _, sub := range []string{"templates", "configs", "data", "outputs"} {
		assert.DirExists(t, filepath.Join(dir, sub))
	}

	cfg, err := config.Load(filepath.Join(dir, config.DefaultConfigFile), nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "templates", "Example_PBIP"), cfg.Template)

	_, _, err = execute(t, NewInitCommand(), dir)
	assert.ErrorContains(t, err, "already exists")

	_, _, err = execute(t, NewInitCommand(), dir, "--force")
	assert.NoError(t, err)
}

func TestDiscover(t *testing.T) {
	dir := newProject(t, projectConfig, []string{"Name", "Owner"})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "templates", "Broken"), 0o755))
	testutil.WriteFile(t, filepath.Join(dir, "configs", "q4.yaml"), projectConfig)
	testutil.WriteFile(t, filepath.Join(dir, "configs", "notes.txt"), "ignored")

	stdout, _, err := execute(t, NewDiscoverCommand())
	require.NoError(t, err)

	out := decode[output.DiscoverOutput](t, stdout)
	assert.Equal(t, dir, out.ProjectRoot)
	require.Len(t, out.Templates, 2)
	assert.Equal(t, "Broken", out.Templates[0].Name)
	assert.NotEmpty(t, out.Templates[0].Error)
	assert.Equal(t, output.TemplateInfo{
		Name:       "Example_PBIP",
		Path:       filepath.Join(dir, "templates", "Example_PBIP"),
		Format:     "json",
		Parameters: 2,
	}, out.Templates[1])
	assert.Equal(t, []string{filepath.Join(dir, "configs", "q4.yaml")}, out.Configs)
	assert.Equal(t, []string{filepath.Join(dir, "data", "rows.csv")}, out.DataFiles)
}

func TestHistory_Empty(t *testing.T) {
	newProject(t, projectConfig, []string{"Name", "Owner"})
	t.Setenv("PBIPGEN_FORMAT", "markdown")

	stdout, _, err := execute(t, NewHistoryCommand())
	require.NoError(t, err)
	assert.Contains(t, stdout, "No runs recorded yet")

	_, _, err = execute(t, NewHistoryCommand(), "missing-run")
	assert.ErrorContains(t, err, "run not found")
}
