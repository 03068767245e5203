// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openchami/image-builder/internal/config"
	"github.com/openchami/image-builder/internal/layer"
	"github.com/openchami/image-builder/pkg/layerdef"
)

type scanFlags struct {
	pkgManager string
	install    bool
	benchmark  bool
	ovalEval   bool
	vars       []string
	pullOpts   []string
	proxy      string
}

func newScanCommand(app *App) *cobra.Command {
	var flags scanFlags
	cmd := &cobra.Command{
		Use:   "scan IMAGE",
		Short: "Run an OpenSCAP scan against an existing image",
		Long: `Create a temporary working container from IMAGE, run the selected
OpenSCAP checks inside it and remove the container again.

At least one of --install, --oval-eval or --benchmark must be set.`,
		Example: `  image-builder scan demo.local/compute:latest --install --oval-eval
  image-builder scan demo.local/compute:latest --benchmark --scap-var profile=xccdf_org.ssgproject.content_profile_cis`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runScan(cmd, args[0], flags)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&flags.pkgManager, "pkg-manager", string(layerdef.PackageManagerDnf), "package manager inside the image (dnf, yum, zypper)")
	fs.BoolVar(&flags.install, "install", false, "install the OpenSCAP packages first")
	fs.BoolVar(&flags.benchmark, "benchmark", false, "run the XCCDF benchmark")
	fs.BoolVar(&flags.ovalEval, "oval-eval", false, "run the OVAL evaluation")
	fs.StringSliceVar(&flags.vars, "scap-var", nil, "scanner setting (key=value)")
	fs.StringSliceVar(&flags.pullOpts, "registry-opts-pull", nil, "extra buildah from options")
	fs.StringVar(&flags.proxy, "proxy", "", "HTTP proxy for package installs")
	return cmd
}

func (a *App) runScan(cmd *cobra.Command, image string, flags scanFlags) error {
	ctx := cmd.Context()

	vars, err := config.ParseVars(flags.vars)
	if err != nil {
		return a.fail(err)
	}
	logger, err := a.logger()
	if err != nil {
		return err
	}
	logger = logger.With("image", image)

	engine := a.engine(logger)
	if _, err := engine.CheckVersion(ctx); err != nil {
		return a.fail(err)
	}

	req := layer.ScanRequest{
		Image:          image,
		PackageManager: layerdef.PackageManagerKind(flags.pkgManager),
		Scap: layerdef.ScapSpec{
			Install:   flags.install,
			Benchmark: flags.benchmark,
			OvalEval:  flags.ovalEval,
			Vars:      vars,
		},
		PullOpts: flags.pullOpts,
		Proxy:    flags.proxy,
	}
	if err := layer.Scan(ctx, engine, req, logger); err != nil {
		return a.fail(err)
	}

	fmt.Fprintln(a.stdout, SuccessStyle.Render("✓ Scanned ")+RefStyle.Render(image))
	return nil
}
