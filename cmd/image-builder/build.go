// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/openchami/image-builder/internal/config"
	"github.com/openchami/image-builder/internal/layer"
	"github.com/openchami/image-builder/pkg/layerdef"
)

func newBuildCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build [LAYER_FILE]",
		Short: "Build and publish one image layer",
		Long: `Build one image layer from a layer definition.

Flags override the matching layer file keys, which in turn override
IMAGE_BUILDER_* environment variables and the built-in defaults.`,
		Example: `  image-builder build base.yaml
  image-builder build compute.yaml --parent demo.local/base:latest --publish-local
  image-builder build --config ansible.yaml --pb site.yml --groups compute`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runBuild(cmd, args)
		},
	}
	addLayerFlags(cmd.Flags())
	return cmd
}

func (a *App) runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	spec, resolved, err := a.loadSpec(cmd, args)
	if err != nil {
		return a.fail(err)
	}
	logger, err := a.logger()
	if err != nil {
		return err
	}
	logger = logger.With("layer", spec.Name)
	logger.Info("loaded layer definition", "file", resolved.Path, "type", spec.LayerType)

	engine := a.engine(logger)
	version, err := engine.CheckVersion(ctx)
	if err != nil {
		return a.fail(err)
	}
	logger.Debug("buildah", "version", version)

	result, err := layer.New(spec, engine,
		layer.WithLogger(logger),
		layer.WithAnsiblePlaybook(a.flags.playbook),
		layer.WithPublisher(a.publisher(engine, logger)),
	).Build(ctx)
	if err != nil {
		return a.fail(err)
	}

	renderResult(a.stdout, spec, result)
	return nil
}

// loadSpec loads the layer file named by args with the command's flag
// overrides applied and converts it to a build spec.
func (a *App) loadSpec(cmd *cobra.Command, args []string) (*layerdef.BuildSpec, *config.Resolved, error) {
	resolved, err := a.loadLayer(cmd, args)
	if err != nil {
		return nil, nil, err
	}
	spec, err := resolved.Layer.BuildSpec()
	if err != nil {
		return nil, nil, err
	}
	return spec, resolved, nil
}

func (a *App) loadLayer(cmd *cobra.Command, args []string) (*config.Resolved, error) {
	overrides, err := layerOverrides(cmd.Flags())
	if err != nil {
		return nil, err
	}
	return a.Config.Load(cmd.Context(), config.LoadOptions{
		LayerFilePath: a.layerPath(args),
		Overrides:     overrides,
	})
}

func renderResult(w io.Writer, spec *layerdef.BuildSpec, result *layer.Result) {
	fmt.Fprintln(w, SuccessStyle.Render("✓ Built layer ")+TitleStyle.Render(spec.Name))
	fmt.Fprintln(w, SubtitleStyle.Render("  container: ")+RefStyle.Render(result.String()))

	pub := result.Publish
	if pub == nil || (len(pub.Images) == 0 && len(pub.Objects) == 0 && len(pub.Pushed) == 0) {
		fmt.Fprintln(w, WarningStyle.Render("  nothing was published"))
		return
	}
	for _, image := range pub.Images {
		fmt.Fprintln(w, SubtitleStyle.Render("  image:     ")+RefStyle.Render(image))
	}
	for _, obj := range pub.Objects {
		fmt.Fprintln(w, SubtitleStyle.Render("  object:    ")+RefStyle.Render(fmt.Sprintf("s3://%s/%s", obj.Bucket, obj.Key)))
	}
	for _, ref := range pub.Pushed {
		fmt.Fprintln(w, SubtitleStyle.Render("  pushed:    ")+RefStyle.Render(ref))
	}
}
