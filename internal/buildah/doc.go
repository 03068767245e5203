// SPDX-License-Identifier: MPL-2.0

// Package buildah drives the buildah CLI through a runner.Runner.
//
// Every subcommand the layer build needs has one method on Engine that owns
// its argument layout: from, mount, umount, run, copy, commit, push, rm, rmi
// and version. Working containers are returned as *Container handles whose
// Remove is guarded so a container is removed at most once no matter how many
// exit paths try.
//
// Image pulls (from) and pushes are retried with exponential backoff when
// buildah reports a transient registry or network failure.
package buildah
