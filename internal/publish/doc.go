// SPDX-License-Identifier: MPL-2.0

// Package publish hands a finished working container to its destinations.
//
// Destinations run in a fixed order: local image store, S3-compatible object
// storage, then a remote registry. The first failing destination stops the
// remaining ones. Cleanup always follows and never fails the publish: the
// working container is removed, tagged images committed only for a registry
// push are removed, and the parent image is dropped from the local store
// unless the layer was built from scratch.
package publish
