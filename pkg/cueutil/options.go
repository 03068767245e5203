// SPDX-License-Identifier: MPL-2.0

package cueutil

const (
	// DefaultMaxFileSize is the default maximum document size (5MB).
	DefaultMaxFileSize int64 = 5 * 1024 * 1024

	// FormatCUE compiles the document as CUE source.
	FormatCUE Format = "cue"
	// FormatYAML decodes the document as YAML before unification.
	FormatYAML Format = "yaml"
)

type (
	// Format selects how a document is read before it is unified with the schema.
	Format string

	parseOptions struct {
		maxFileSize int64
		concrete    bool
		filename    string
		format      Format
	}

	// Option configures parsing behavior.
	Option func(*parseOptions)
)

func defaultOptions() parseOptions {
	return parseOptions{
		maxFileSize: DefaultMaxFileSize,
		concrete:    true,
		format:      FormatCUE,
	}
}

// WithMaxFileSize sets the maximum allowed document size.
func WithMaxFileSize(size int64) Option {
	return func(o *parseOptions) {
		o.maxFileSize = size
	}
}

// WithConcrete sets whether all values must be concrete after unification.
// Default is true. Schemas made of optional fields validate with false.
func WithConcrete(concrete bool) Option {
	return func(o *parseOptions) {
		o.concrete = concrete
	}
}

// WithFilename sets the filename used in error messages.
func WithFilename(name string) Option {
	return func(o *parseOptions) {
		o.filename = name
	}
}

// WithFormat sets the document format. Default is FormatCUE.
func WithFormat(format Format) Option {
	return func(o *parseOptions) {
		o.format = format
	}
}
