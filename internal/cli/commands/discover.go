package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pbipgen/internal/cli/config"
	"github.com/leapstack-labs/pbipgen/internal/cli/output"
	"github.com/leapstack-labs/pbipgen/internal/project"
)

// NewDiscoverCommand creates the discover command.
func NewDiscoverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List templates, configs and data files of the project",
		Long: `Scan the project folder for generation inputs:

  - templates/<name>/   folders holding a valid PBIP project
  - configs/*.yaml      alternative configuration files
  - data/*.csv          row files

Output adapts to environment:
  - Terminal: Styled summary
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Discover inputs of the current project
  pbipgen discover

  # Output as JSON
  pbipgen discover --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiscover(cmd)
		},
	}

	return cmd
}

func runDiscover(cmd *cobra.Command) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	out, err := discover(cc.Cfg.ProjectRoot)
	if err != nil {
		return err
	}
	cc.Logger.Debug("discovered project inputs",
		"templates", len(out.Templates),
		"configs", len(out.Configs),
		"data_files", len(out.DataFiles))

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		return discoverMarkdown(r, out)
	default:
		return discoverText(r, out)
	}
}

// discover lists the inputs found under root. Missing folders are skipped.
func discover(root string) (*output.DiscoverOutput, error) {
	out := &output.DiscoverOutput{
		ProjectRoot: root,
		Templates:   []output.TemplateInfo{},
		Configs:     []string{},
		DataFiles:   []string{},
	}

	templatesDir := filepath.Join(root, config.TemplatesDir)
	entries, err := readDir(templatesDir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(templatesDir, e.Name())
		info := output.TemplateInfo{Name: e.Name(), Path: path}

		tmpl, err := project.LoadTemplate(path)
		if err != nil {
			info.Error = firstLine(err.Error())
		} else {
			info.Name = tmpl.BaseName
			info.Format = string(tmpl.Format)
			if catalog, err := tmpl.Catalog(); err != nil {
				info.Error = firstLine(err.Error())
			} else {
				info.Parameters = catalog.Len()
			}
		}
		out.Templates = append(out.Templates, info)
	}

	if out.Configs, err = listFiles(filepath.Join(root, config.ConfigsDir), ".yaml", ".yml"); err != nil {
		return nil, err
	}
	if out.DataFiles, err = listFiles(filepath.Join(root, config.DataDir), ".csv"); err != nil {
		return nil, err
	}
	return out, nil
}

func readDir(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	return entries, nil
}

func listFiles(dir string, exts ...string) ([]string, error) {
	entries, err := readDir(dir)
	if err != nil {
		return nil, err
	}
	files := []string{}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range exts {
			if ext == want {
				files = append(files, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func discoverText(r *output.Renderer, out *output.DiscoverOutput) error {
	styles := r.Styles()
	r.Printf("%s %s\n\n", styles.Bold.Render("Project:"), styles.Path.Render(out.ProjectRoot))

	r.Header(2, "Templates")
	if len(out.Templates) == 0 {
		r.Println(styles.Muted.Render("  none (copy a PBIP project into templates/)"))
	}
	for _, t := range out.Templates {
		if t.Error != "" {
			r.Printf("  %s %s  %s\n", styles.StatusFailed.String(), t.Name, styles.Muted.Render(t.Error))
			continue
		}
		r.Printf("  %s %s  %s\n", styles.StatusSuccess.String(), t.Name,
			styles.Muted.Render(fmt.Sprintf("%s, %d parameter(s)", t.Format, t.Parameters)))
	}

	r.Println("")
	r.Header(2, "Configs")
	printPaths(r, out.ProjectRoot, out.Configs)

	r.Println("")
	r.Header(2, "Data files")
	printPaths(r, out.ProjectRoot, out.DataFiles)
	return nil
}

func printPaths(r *output.Renderer, root string, paths []string) {
	if len(paths) == 0 {
		r.Println(r.Styles().Muted.Render("  none"))
		return
	}
	for _, p := range paths {
		if rel, err := filepath.Rel(root, p); err == nil {
			p = rel
		}
		r.Printf("  - %s\n", p)
	}
}

func discoverMarkdown(r *output.Renderer, out *output.DiscoverOutput) error {
	r.Println(output.FormatHeader(1, "Discovery Results"))
	r.Println("")
	r.Println(output.FormatKeyValue("Project", out.ProjectRoot))
	r.Println(output.FormatKeyValue("Templates", strconv.Itoa(len(out.Templates))))
	r.Println(output.FormatKeyValue("Configs", strconv.Itoa(len(out.Configs))))
	r.Println(output.FormatKeyValue("Data Files", strconv.Itoa(len(out.DataFiles))))
	r.Println("")

	if len(out.Templates) > 0 {
		r.Println(output.FormatHeader(2, "Templates"))
		r.Println("")
		rows := make([][]string, len(out.Templates))
		for i, t := range out.Templates {
			status := t.Format
			if t.Error != "" {
				status = "invalid: " + t.Error
			}
			rows[i] = []string{t.Name, status, strconv.Itoa(t.Parameters)}
		}
		r.Table([]string{"Name", "Format", "Parameters"}, rows)
		r.Println("")
	}

	for _, section := range []struct {
		title string
		paths []string
	}{{"Configs", out.Configs}, {"Data Files", out.DataFiles}} {
		if len(section.paths) == 0 {
			continue
		}
		r.Println(output.FormatHeader(2, section.title))
		for _, p := range section.paths {
			r.Printf("- %s\n", p)
		}
		r.Println("")
	}
	return nil
}
