// SPDX-License-Identifier: MPL-2.0

// Package config loads layer definitions using Viper with YAML as the file format.
//
// A layer file is validated against an embedded CUE schema (layer_schema.cue)
// before it is merged into Viper, so type and enum errors are reported with
// the offending key path. Keys may appear at the top level or, for older
// files, under an options section; top-level keys take precedence.
// IMAGE_BUILDER_* environment variables override file values and explicit
// overrides (command-line flags) override both.
package config
