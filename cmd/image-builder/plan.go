// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/openchami/image-builder/internal/layer"
	"github.com/openchami/image-builder/pkg/layerdef"
)

func newPlanCommand(app *App) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "plan [LAYER_FILE]",
		Short: "Show the steps a build would run",
		Long: `Show the steps a build would run for a layer definition without
invoking buildah. Accepts the same override flags as build.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, _, err := app.loadSpec(cmd, args)
			if err != nil {
				return app.fail(err)
			}
			steps, err := layer.Plan(spec)
			if err != nil {
				return app.fail(err)
			}

			md := PlanMarkdown(spec, steps)
			if raw {
				fmt.Fprint(app.stdout, md)
				return nil
			}
			out, err := glamour.Render(md, app.flags.style)
			if err != nil {
				return app.fail(fmt.Errorf("render plan: %w", err))
			}
			fmt.Fprint(app.stdout, out)
			return nil
		},
	}
	addLayerFlags(cmd.Flags())
	cmd.Flags().BoolVar(&raw, "raw", false, "print the plan as Markdown without rendering")
	return cmd
}

// PlanMarkdown renders steps as a Markdown table.
func PlanMarkdown(spec *layerdef.BuildSpec, steps []layer.PlannedStep) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Plan for `%s`\n\n", spec.Name)
	fmt.Fprintf(&b, "Layer type **%s**, parent `%s`", spec.LayerType, spec.Parent)
	if spec.LayerType == layerdef.LayerTypeBase {
		fmt.Fprintf(&b, ", package manager **%s**", spec.PackageManager)
	}
	b.WriteString(".\n\n")

	b.WriteString("| # | Step | Details |\n")
	b.WriteString("|---|------|---------|\n")
	for i, s := range steps {
		fmt.Fprintf(&b, "| %d | %s | %s |\n", i+1, s.Step, stepDetails(s))
	}
	return b.String()
}

func stepDetails(s layer.PlannedStep) string {
	if s.Skipped != "" {
		return "_skipped: " + escapeCell(s.Skipped) + "_"
	}
	if len(s.Items) == 0 {
		return "-"
	}
	items := make([]string, len(s.Items))
	for i, item := range s.Items {
		items[i] = "`" + escapeCell(item) + "`"
	}
	return strings.Join(items, ", ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
