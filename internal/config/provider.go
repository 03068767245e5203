// SPDX-License-Identifier: MPL-2.0

package config

import "context"

type (
	// LoadOptions defines explicit layer loading inputs.
	LoadOptions struct {
		// LayerFilePath names the layer definition. DefaultLayerFile is used
		// when empty.
		LayerFilePath string
		// Overrides are applied last, keyed by layer file key (e.g. "parent").
		Overrides map[string]any
	}

	// Resolved is a loaded layer together with the file it came from.
	Resolved struct {
		Layer *Layer
		Path  string
	}

	// Provider loads layer definitions from explicit options.
	Provider interface {
		Load(ctx context.Context, opts LoadOptions) (*Resolved, error)
	}

	fileProvider struct{}
)

// NewProvider creates a layer definition provider backed by the filesystem.
func NewProvider() Provider {
	return &fileProvider{}
}

// Load reads the layer definition named by opts.
func (p *fileProvider) Load(ctx context.Context, opts LoadOptions) (*Resolved, error) {
	return loadWithOptions(ctx, opts)
}
