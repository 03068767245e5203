// SPDX-License-Identifier: MPL-2.0

package layerdef

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// PackageManagerDnf selects dnf.
	PackageManagerDnf PackageManagerKind = "dnf"
	// PackageManagerYum selects yum. It shares the dnf repo layout.
	PackageManagerYum PackageManagerKind = "yum"
	// PackageManagerZypper selects zypper. Groups and modules are unsupported.
	PackageManagerZypper PackageManagerKind = "zypper"

	// LayerTypeBase builds a layer by driving the package manager.
	LayerTypeBase LayerType = "base"
	// LayerTypeAnsible builds a layer by running playbooks against the container.
	LayerTypeAnsible LayerType = "ansible"

	// LogLevelDebug routes command stderr to the debug level.
	LogLevelDebug LogLevel = "DEBUG"
	// LogLevelInfo routes command stderr to the info level.
	LogLevelInfo LogLevel = "INFO"
	// LogLevelWarn routes command stderr to the warn level.
	LogLevelWarn LogLevel = "WARN"
	// LogLevelError routes command stderr to the error level. It is the default.
	LogLevelError LogLevel = "ERROR"

	// BundleSquashFS packs the root filesystem with mksquashfs.
	BundleSquashFS BundleFormat = "squashfs"
	// BundleTarZstd packs the root filesystem as a zstd-compressed tarball.
	BundleTarZstd BundleFormat = "tar.zst"
	// BundleTarXz packs the root filesystem as an xz-compressed tarball.
	BundleTarXz BundleFormat = "tar.xz"

	// ScratchParent is the parent reference that starts from an empty image.
	ScratchParent = "scratch"
)

var (
	// ErrInvalidPackageManager is the sentinel error wrapped by InvalidPackageManagerError.
	ErrInvalidPackageManager = errors.New("invalid package manager")

	// ErrInvalidLayerType is the sentinel error wrapped by InvalidLayerTypeError.
	ErrInvalidLayerType = errors.New("invalid layer type")

	// ErrInvalidBundleFormat is the sentinel error wrapped by InvalidBundleFormatError.
	ErrInvalidBundleFormat = errors.New("invalid bundle format")
)

type (
	// PackageManagerKind names the package manager used inside the working container.
	PackageManagerKind string

	// InvalidPackageManagerError is returned when a PackageManagerKind is not recognized.
	InvalidPackageManagerError struct {
		Value PackageManagerKind
	}

	// LayerType selects the build strategy for a layer.
	LayerType string

	// InvalidLayerTypeError is returned when a LayerType is not recognized.
	InvalidLayerTypeError struct {
		Value LayerType
	}

	// LogLevel selects the log severity for the stderr of a shell command.
	// The zero value ("") is valid and means ERROR.
	LogLevel string

	// BundleFormat selects how the root filesystem is packed for object storage.
	// The zero value ("") is valid and means squashfs.
	BundleFormat string

	// InvalidBundleFormatError is returned when a BundleFormat is not recognized.
	InvalidBundleFormatError struct {
		Value BundleFormat
	}
)

// PackageManagerKinds returns all recognized package manager kinds.
func PackageManagerKinds() []PackageManagerKind {
	return []PackageManagerKind{PackageManagerDnf, PackageManagerYum, PackageManagerZypper}
}

// String returns the string representation of the PackageManagerKind.
func (k PackageManagerKind) String() string { return string(k) }

// IsValid returns whether the PackageManagerKind is one of the recognized kinds.
func (k PackageManagerKind) IsValid() (bool, []error) {
	switch k {
	case PackageManagerDnf, PackageManagerYum, PackageManagerZypper:
		return true, nil
	default:
		return false, []error{&InvalidPackageManagerError{Value: k}}
	}
}

// Error implements the error interface.
func (e *InvalidPackageManagerError) Error() string {
	return fmt.Sprintf("unsupported package manager %q (valid: dnf, yum, zypper)", e.Value)
}

// Unwrap returns ErrInvalidPackageManager for errors.Is() compatibility.
func (e *InvalidPackageManagerError) Unwrap() error { return ErrInvalidPackageManager }

// String returns the string representation of the LayerType.
func (t LayerType) String() string { return string(t) }

// IsValid returns whether the LayerType is one of the recognized build kinds.
func (t LayerType) IsValid() (bool, []error) {
	switch t {
	case LayerTypeBase, LayerTypeAnsible:
		return true, nil
	default:
		return false, []error{&InvalidLayerTypeError{Value: t}}
	}
}

// Error implements the error interface.
func (e *InvalidLayerTypeError) Error() string {
	return fmt.Sprintf("unrecognized layer type %q (valid: base, ansible)", e.Value)
}

// Unwrap returns ErrInvalidLayerType for errors.Is() compatibility.
func (e *InvalidLayerTypeError) Unwrap() error { return ErrInvalidLayerType }

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// Normalized returns the upper-cased level, mapping empty and unrecognized
// values to LogLevelError.
func (l LogLevel) Normalized() LogLevel {
	switch up := LogLevel(strings.ToUpper(strings.TrimSpace(string(l)))); up {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return up
	case "WARNING":
		return LogLevelWarn
	default:
		return LogLevelError
	}
}

// String returns the string representation of the BundleFormat.
func (f BundleFormat) String() string { return string(f) }

// OrDefault returns BundleSquashFS for the zero value.
func (f BundleFormat) OrDefault() BundleFormat {
	if f == "" {
		return BundleSquashFS
	}
	return f
}

// IsValid returns whether the BundleFormat is empty or a recognized format.
func (f BundleFormat) IsValid() (bool, []error) {
	switch f {
	case "", BundleSquashFS, BundleTarZstd, BundleTarXz:
		return true, nil
	default:
		return false, []error{&InvalidBundleFormatError{Value: f}}
	}
}

// Error implements the error interface.
func (e *InvalidBundleFormatError) Error() string {
	return fmt.Sprintf("invalid bundle format %q (valid: squashfs, tar.zst, tar.xz)", e.Value)
}

// Unwrap returns ErrInvalidBundleFormat for errors.Is() compatibility.
func (e *InvalidBundleFormatError) Unwrap() error { return ErrInvalidBundleFormat }
