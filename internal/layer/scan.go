// SPDX-License-Identifier: MPL-2.0

package layer

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/openchami/image-builder/internal/buildah"
	"github.com/openchami/image-builder/internal/installer"
	"github.com/openchami/image-builder/internal/oscap"
	"github.com/openchami/image-builder/internal/pkgmgr"
	"github.com/openchami/image-builder/pkg/layerdef"
)

// ScanRequest describes a compliance scan of an existing image.
type ScanRequest struct {
	Image          string
	PackageManager layerdef.PackageManagerKind
	Scap           layerdef.ScapSpec
	PullOpts       []string
	Proxy          string
}

// Scan runs the compliance scan in a temporary working container created
// from req.Image. The container is removed on every path.
func Scan(ctx context.Context, engine *buildah.Engine, req ScanRequest, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	manager, err := pkgmgr.For(req.PackageManager)
	if err != nil {
		return &ConfigurationError{Reason: "unsupported package manager", Err: err}
	}
	if !scanEnabled(req.Scap) {
		return &ConfigurationError{Reason: "no scan selected (install, oval eval or benchmark)"}
	}
	if err := checkScanConfig(req.Scap); err != nil {
		return err
	}

	c, err := engine.From(ctx, buildah.FromOptions{Parent: req.Image, PullOpts: req.PullOpts})
	if err != nil {
		return classify(StepCreate, err)
	}
	defer func() { _ = c.Remove(ctx) }()

	inst := installer.New(engine, c, manager,
		installer.WithLogger(logger.WithPrefix("installer")),
		installer.WithPackageOptions(pkgmgr.Options{Proxy: req.Proxy}),
	)
	if err := oscap.New(inst, logger.WithPrefix("oscap")).Run(ctx, req.Scap); err != nil {
		return classify(StepScan, err)
	}
	return nil
}
