package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/pbipgen/internal/cli/output"
	"github.com/leapstack-labs/pbipgen/internal/project"
)

// NewParamsCommand creates the params command.
func NewParamsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params [template]",
		Short: "List the parameters a template declares",
		Long: `Detect the semantic model format of a template and list every parameter
declaration carrying the IsParameterQuery marker, with its current value.`,
		Example: `  # Parameters of the configured template
  pbipgen params

  # Parameters of another template
  pbipgen params templates/Sales_PBIP`,
		Args: cobra.MaximumNArgs(1),
		RunE: runParams,
	}

	cmd.Flags().StringP("template", "t", "", "Path to the template project folder")

	return cmd
}

func runParams(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	root := cc.Cfg.Template
	if len(args) == 1 {
		root = args[0]
	} else if err := cc.Cfg.RequireTemplate(); err != nil {
		return err
	}

	tmpl, err := project.LoadTemplate(root)
	if err != nil {
		return err
	}
	catalog, err := tmpl.Catalog()
	if err != nil {
		return err
	}

	out := output.ParamsOutput{
		Template:   tmpl.Root,
		BaseName:   tmpl.BaseName,
		Format:     string(catalog.Format),
		Parameters: []output.ParameterInfo{},
	}
	for _, p := range catalog.Parameters() {
		out.Parameters = append(out.Parameters, output.ParameterInfo{
			Name:     p.Name,
			Value:    p.Value.String(),
			Type:     p.TypeHint(),
			Location: p.Location.String(),
		})
	}

	r := cc.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Parameters: "+out.BaseName))
		r.Println("")
		r.Println(output.FormatKeyValue("Template", out.Template))
		r.Println(output.FormatKeyValue("Format", out.Format))
		r.Println("")
	default:
		styles := r.Styles()
		r.Println(styles.Header1.Render(out.BaseName))
		r.Printf("%s %s (%s)\n\n", styles.Bold.Render("Template:"), styles.Path.Render(out.Template), out.Format)
	}

	if len(out.Parameters) == 0 {
		r.Warning("No parameters declared (looking for IsParameterQuery=true)")
		return nil
	}

	rows := make([][]string, len(out.Parameters))
	for i, p := range out.Parameters {
		rows[i] = []string{p.Name, p.Value, p.Type, p.Location}
	}
	r.Table([]string{"Name", "Value", "Type", "Location"}, rows)
	return nil
}
