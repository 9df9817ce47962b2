package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCLIDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generateCLIDocs(dir))

	index, err := os.ReadFile(filepath.Join(dir, "index.md"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "[`generate`](/cli/generate)")
	assert.Contains(t, string(index), "`--no-history`")

	page, err := os.ReadFile(filepath.Join(dir, "generate.md"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "pbipgen generate [flags]")
	assert.Contains(t, string(page), "| `--dry-run` |  | false |")
	assert.Contains(t, string(page), "\npbipgen generate --watch\n", "examples are dedented")
}

func TestGenerateConfigDocs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generateConfigDocs(dir))

	page, err := os.ReadFile(filepath.Join(dir, "configuration.md"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "| `output.directory` | path | `outputs` | `PBIPGEN_OUTPUT__DIRECTORY` |")
	assert.Contains(t, string(page), "| `cache.patterns` | list | `[cache.abf]` |")
	assert.Contains(t, string(page), "```yaml\n# pbipgen configuration")
}

func TestDedent(t *testing.T) {
	assert.Equal(t, "# a\npbipgen x\n\n  nested", dedent("  # a\n  pbipgen x\n\n    nested\n"))
}

func TestTableEscapesPipes(t *testing.T) {
	w := NewMarkdownWriter()
	w.Table([]string{"A"}, [][]string{{"a|b"}})
	assert.Equal(t, "| A |\n| --- |\n| a\\|b |\n\n", string(w.Bytes()))
}
