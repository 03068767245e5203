// SPDX-License-Identifier: MPL-2.0

package layerdef

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// DefaultTag is used when a PublishSpec names no tags.
const DefaultTag = "latest"

// ErrInvalidPublishSpec is the sentinel error wrapped by InvalidPublishSpecError.
var ErrInvalidPublishSpec = errors.New("invalid publish spec")

type (
	// S3Target describes an S3-compatible object storage destination.
	S3Target struct {
		Bucket    string
		Prefix    string
		Endpoint  string
		Region    string
		AccessKey string
		SecretKey string
		Format    BundleFormat
	}

	// RegistryTarget describes a remote registry destination.
	RegistryTarget struct {
		Endpoint string
		PushOpts []string
	}

	// PublishSpec lists the destinations for a finished layer. Destinations
	// are handled in a fixed order: local, S3, registry.
	PublishSpec struct {
		Local    bool
		S3       *S3Target
		Registry *RegistryTarget
		Tags     []string
		// ParentRef is removed from the local store after publishing unless it
		// is ScratchParent.
		ParentRef string
	}

	// InvalidPublishSpecError is returned when a publish destination is incomplete.
	InvalidPublishSpecError struct {
		Field  string
		Reason string
	}
)

// EffectiveTags returns the configured tags, or DefaultTag when none are set.
func (p PublishSpec) EffectiveTags() []string {
	if len(p.Tags) == 0 {
		return []string{DefaultTag}
	}
	return slices.Clone(p.Tags)
}

// HasDestination reports whether any publish destination is configured.
func (p PublishSpec) HasDestination() bool {
	return p.Local || p.S3 != nil || p.Registry != nil
}

// Validate checks that every configured destination is complete.
func (p PublishSpec) Validate() error {
	for _, tag := range p.Tags {
		if tag == "" || strings.ContainsAny(tag, ":/ \t\n") {
			return &InvalidPublishSpecError{Field: "tags", Reason: fmt.Sprintf("tag %q must be non-empty without ':', '/' or whitespace", tag)}
		}
	}
	if p.S3 != nil {
		if p.S3.Bucket == "" {
			return &InvalidPublishSpecError{Field: "s3.bucket", Reason: "bucket is required"}
		}
		if isValid, errs := p.S3.Format.IsValid(); !isValid {
			return &InvalidPublishSpecError{Field: "s3.format", Reason: errs[0].Error()}
		}
	}
	if p.Registry != nil && strings.TrimSpace(p.Registry.Endpoint) == "" {
		return &InvalidPublishSpecError{Field: "registry.endpoint", Reason: "endpoint is required"}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidPublishSpecError) Error() string {
	return fmt.Sprintf("invalid publish %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalidPublishSpec for errors.Is() compatibility.
func (e *InvalidPublishSpecError) Unwrap() error { return ErrInvalidPublishSpec }
