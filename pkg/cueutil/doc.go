// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates configuration documents against embedded CUE schemas.
//
// Documents are compiled (CUE) or decoded (YAML), unified with a schema
// definition, validated and decoded into a Go value:
//
//	//go:embed layer_schema.cue
//	var layerSchema []byte
//
//	result, err := cueutil.ParseAndDecode[map[string]any](
//	    layerSchema,
//	    fileBytes,
//	    "#Layer",
//	    cueutil.WithFilename("layer.yaml"),
//	    cueutil.WithFormat(cueutil.FormatYAML),
//	)
//
// Validation failures are reported as *ValidationError, whose issues carry
// JSON-path style locations such as "cmds[2].cmd".
package cueutil
