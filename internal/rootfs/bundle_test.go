// SPDX-License-Identifier: MPL-2.0

package rootfs

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"

	"github.com/openchami/image-builder/pkg/layerdef"
)

func readTar(t *testing.T, r io.Reader) map[string]*tar.Header {
	t.Helper()
	out := make(map[string]*tar.Header)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("read tar: %v", err)
		}
		out[hdr.Name] = hdr
	}
}

func makeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFiles(t, afero.NewOsFs(), map[string]string{
		filepath.Join(dir, "etc", "hostname"):  "node01\n",
		filepath.Join(dir, "usr", "bin", "sh"): "#!binary",
	})
	if err := os.Symlink("/usr/bin/sh", filepath.Join(dir, "bin-sh")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	return dir
}

func TestWriteTarball(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format     layerdef.BundleFormat
		decompress func(io.Reader) (io.Reader, error)
	}{
		{
			format: layerdef.BundleTarZstd,
			decompress: func(r io.Reader) (io.Reader, error) {
				return zstd.NewReader(r)
			},
		},
		{
			format: layerdef.BundleTarXz,
			decompress: func(r io.Reader) (io.Reader, error) {
				return xz.NewReader(r)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			t.Parallel()

			dir := makeTree(t)
			var buf bytes.Buffer
			if err := WriteTarball(context.Background(), afero.NewOsFs(), dir, &buf, tt.format); err != nil {
				t.Fatalf("WriteTarball() error = %v", err)
			}

			r, err := tt.decompress(&buf)
			if err != nil {
				t.Fatal(err)
			}
			entries := readTar(t, r)

			for _, name := range []string{"etc/", "etc/hostname", "usr/bin/sh"} {
				if _, ok := entries[name]; !ok {
					t.Errorf("missing entry %q in %v", name, entries)
				}
			}
			if hdr := entries["etc/hostname"]; hdr != nil && hdr.Size != int64(len("node01\n")) {
				t.Errorf("etc/hostname size = %d", hdr.Size)
			}
			link := entries["bin-sh"]
			if link == nil || link.Typeflag != tar.TypeSymlink || link.Linkname != "/usr/bin/sh" {
				t.Errorf("bin-sh entry = %+v, want symlink to /usr/bin/sh", link)
			}
		})
	}
}

func TestWriteTarballRejectsSquashFS(t *testing.T) {
	t.Parallel()

	err := WriteTarball(context.Background(), afero.NewMemMapFs(), "/", io.Discard, layerdef.BundleSquashFS)
	if !errors.Is(err, ErrUnsupportedBundle) {
		t.Fatalf("WriteTarball() error = %v, want ErrUnsupportedBundle", err)
	}
}

func TestWriteTarballCancelled(t *testing.T) {
	t.Parallel()

	dir := makeTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WriteTarball(ctx, afero.NewOsFs(), dir, io.Discard, layerdef.BundleTarZstd)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("WriteTarball() error = %v, want context.Canceled", err)
	}
}
