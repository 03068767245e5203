// SPDX-License-Identifier: MPL-2.0

// Package layer builds one image layer from a validated layerdef.BuildSpec.
//
// A build owns exactly one working container. Every exit path, the first
// failing step included, removes that container once: either the publisher
// removes it as part of its cleanup or the builder does so on failure. Build
// never terminates the process; failures are returned as typed errors that
// match ErrConfiguration, ErrStepFailure, ErrToolInvocation or ErrInterrupted
// with errors.Is.
package layer
