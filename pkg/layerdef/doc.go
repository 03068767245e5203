// SPDX-License-Identifier: MPL-2.0

// Package layerdef defines the typed records that describe one layer build:
// repositories, packages, module commands, shell commands, copied files and
// publish destinations.
//
// Records are validated when a BuildSpec is constructed through NewBuildSpec,
// never at the point of use. Every value type follows the same shape: a
// string-backed type with an IsValid method and a typed error that unwraps to
// a package sentinel for errors.Is() checks.
package layerdef
