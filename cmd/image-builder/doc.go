// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the image-builder command tree.
package cmd
