// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openchami/image-builder/internal/buildah"
)

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the image-builder and buildah versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(app.stdout, TitleStyle.Render("image-builder ")+getVersionString())

			logger, err := app.logger()
			if err != nil {
				return err
			}
			v, err := app.engine(logger).CheckVersion(cmd.Context())
			switch {
			case v == nil:
				fmt.Fprintln(app.stdout, WarningStyle.Render("buildah      unavailable: ")+err.Error())
			case err != nil:
				fmt.Fprintln(app.stdout, WarningStyle.Render(fmt.Sprintf("buildah      %s (need >= %s)", v, buildah.MinimumVersion)))
			default:
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("buildah      ")+v.String())
			}
			return nil
		},
	}
}
