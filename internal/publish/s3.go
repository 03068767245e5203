// SPDX-License-Identifier: MPL-2.0

package publish

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/openchami/image-builder/internal/buildah"
	"github.com/openchami/image-builder/internal/objectstore"
	"github.com/openchami/image-builder/internal/rootfs"
	"github.com/openchami/image-builder/internal/runner"
	"github.com/openchami/image-builder/pkg/layerdef"
)

const (
	// BootArtifactPrefix is prepended to the keys of kernel and initramfs objects.
	BootArtifactPrefix = "efi-images/"

	// DefaultMksquashfs is the squashfs packer looked up on PATH.
	DefaultMksquashfs = "mksquashfs"

	bundleFileName = "rootfs"
)

// BootArtifactKey returns the object key of a boot artifact.
func BootArtifactKey(prefix, fileName string) string {
	return BootArtifactPrefix + prefix + fileName
}

// RootfsKey returns the object key of a root filesystem bundle.
func RootfsKey(prefix, osID, layer, tag string) string {
	return prefix + osID + "-" + layer + "-" + tag
}

// WithMksquashfs overrides the squashfs packer executable.
func WithMksquashfs(path string) Option {
	return func(p *Publisher) {
		if path != "" {
			p.mksquashfs = path
		}
	}
}

func (p *Publisher) publishS3(ctx context.Context, req Request, tags []string) ([]objectstore.Object, error) {
	target := *req.Spec.S3
	uploader, err := p.newUploader(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("create S3 client: %w", err)
	}

	mount, unmount, err := p.ensureMounted(ctx, req.Container)
	if err != nil {
		return nil, err
	}
	defer unmount()

	osID, err := rootfs.OSIdentifier(p.fs, mount)
	if err != nil {
		p.logger.Warn("could not identify OS, using fallback name", "os", osID, "err", err)
	}

	staging, err := afero.TempDir(p.fs, p.tempDir, "image-builder-s3-")
	if err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	defer func() {
		if err := p.fs.RemoveAll(staging); err != nil {
			p.logger.Warn("failed to remove staging directory", "path", staging, "err", err)
		}
	}()

	bundle := filepath.Join(staging, bundleFileName)
	if err := p.bundle(ctx, mount, bundle, target.Format.OrDefault()); err != nil {
		return nil, err
	}

	var objects []objectstore.Object
	upload := func(path, key string) error {
		obj, err := uploader.UploadFile(ctx, path, key)
		if err != nil {
			return err
		}
		objects = append(objects, obj)
		return nil
	}

	boot, err := rootfs.FindBootFiles(p.fs, mount)
	switch {
	case errors.Is(err, rootfs.ErrNoKernel):
		p.logger.Warn("no kernel found, skipping boot artifacts", "err", err)
	case err != nil:
		return nil, err
	default:
		p.logger.Info("found boot artifacts", "kernel", boot.Kernel, "initrd", boot.Initrd)
		for _, name := range []string{boot.Kernel, boot.Initrd} {
			if err := upload(filepath.Join(mount, "boot", name), BootArtifactKey(target.Prefix, name)); err != nil {
				return objects, err
			}
		}
	}

	for _, tag := range tags {
		if err := upload(bundle, RootfsKey(target.Prefix, osID, req.Layer, tag)); err != nil {
			return objects, err
		}
	}
	return objects, nil
}

// ensureMounted returns the container mount path, mounting it when the
// builder has not. The returned func undoes only a mount made here.
func (p *Publisher) ensureMounted(ctx context.Context, c *buildah.Container) (string, func(), error) {
	if c.MountPath != "" {
		return c.MountPath, func() {}, nil
	}
	mount, err := p.engine.Mount(ctx, c)
	if err != nil {
		return "", nil, err
	}
	return mount, func() {
		if err := p.engine.Unmount(context.WithoutCancel(ctx), c); err != nil {
			p.logger.Warn("failed to unmount container", "id", c.ID, "err", err)
		}
	}, nil
}

// bundle packs the root filesystem at mount into out.
func (p *Publisher) bundle(ctx context.Context, mount, out string, format layerdef.BundleFormat) error {
	p.logger.Info("packing root filesystem", "mount", mount, "format", format)
	if format == layerdef.BundleSquashFS {
		if _, err := runner.Output(ctx, p.engine.Runner(), []string{p.mksquashfs, mount, out, "-noappend"}); err != nil {
			return fmt.Errorf("squash root filesystem: %w", err)
		}
		return nil
	}

	f, err := p.fs.Create(out)
	if err != nil {
		return fmt.Errorf("create bundle: %w", err)
	}
	if err := rootfs.WriteTarball(ctx, p.fs, mount, f, format); err != nil {
		f.Close()
		return fmt.Errorf("write %s bundle: %w", format, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s bundle: %w", format, err)
	}
	return nil
}
