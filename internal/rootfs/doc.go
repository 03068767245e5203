// SPDX-License-Identifier: MPL-2.0

// Package rootfs inspects and packs the mounted root filesystem of a working
// container: kernel and initramfs discovery, OS identification, the
// resolv.conf link cleanup and compressed tarball bundles.
//
// All access goes through afero so tests can use an in-memory or
// base-path filesystem.
package rootfs
