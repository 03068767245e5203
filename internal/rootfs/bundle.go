// SPDX-License-Identifier: MPL-2.0

package rootfs

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"

	"github.com/openchami/image-builder/pkg/layerdef"
)

// ErrUnsupportedBundle is returned by WriteTarball for formats it cannot produce.
var ErrUnsupportedBundle = errors.New("unsupported tarball format")

// WriteTarball writes the tree under root to w as a tar stream compressed
// with format (tar.zst or tar.xz). Entry names are relative to root. Symbolic
// links are stored as links, never followed.
func WriteTarball(ctx context.Context, fsys afero.Fs, root string, w io.Writer, format layerdef.BundleFormat) (err error) {
	var cw io.WriteCloser
	switch format {
	case layerdef.BundleTarZstd:
		cw, err = zstd.NewWriter(w)
	case layerdef.BundleTarXz:
		cw, err = xz.NewWriter(w)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedBundle, format)
	}
	if err != nil {
		return fmt.Errorf("create %s compressor: %w", format, err)
	}
	defer func() {
		if closeErr := cw.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("finish %s stream: %w", format, closeErr)
		}
	}()

	tw := tar.NewWriter(cw)
	defer func() {
		if closeErr := tw.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("finish tar stream: %w", closeErr)
		}
	}()

	return afero.Walk(fsys, root, func(p string, _ fs.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		return addEntry(fsys, tw, p, filepath.ToSlash(rel))
	})
}

func addEntry(fsys afero.Fs, tw *tar.Writer, p, name string) error {
	fi, err := lstat(fsys, p)
	if err != nil {
		return err
	}

	var link string
	if fi.Mode()&fs.ModeSymlink != 0 {
		reader, ok := fsys.(afero.LinkReader)
		if !ok {
			return fmt.Errorf("%s: filesystem cannot read symbolic links", p)
		}
		if link, err = reader.ReadlinkIfPossible(p); err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(fi, link)
	if err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}
	hdr.Name = name
	if fi.IsDir() && !strings.HasSuffix(hdr.Name, "/") {
		hdr.Name += "/"
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}
	if !fi.Mode().IsRegular() {
		return nil
	}

	f, err := fsys.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("%s: %w", p, err)
	}
	return nil
}

func lstat(fsys afero.Fs, p string) (fs.FileInfo, error) {
	if lst, ok := fsys.(afero.Lstater); ok {
		fi, _, err := lst.LstatIfPossible(p)
		return fi, err
	}
	return fsys.Stat(path.Clean(p))
}
