// SPDX-License-Identifier: MPL-2.0

package buildah

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// MinimumVersion is the oldest buildah release with the flags this tool passes.
const MinimumVersion = "1.20.0"

var (
	// ErrUnsupportedVersion is returned when buildah is older than MinimumVersion.
	ErrUnsupportedVersion = errors.New("unsupported buildah version")

	// ErrUnparsableVersion is returned when the version output has no version line.
	ErrUnparsableVersion = errors.New("cannot parse buildah version")

	minimumConstraint = semver.MustParse(MinimumVersion)
)

// Version returns the buildah version reported by "buildah version".
func (e *Engine) Version(ctx context.Context) (*semver.Version, error) {
	out, err := e.output(ctx, "version", e.argv("version"))
	if err != nil {
		return nil, fmt.Errorf("query buildah version: %w", err)
	}
	return ParseVersion(out)
}

// CheckVersion fails with ErrUnsupportedVersion when buildah is too old.
func (e *Engine) CheckVersion(ctx context.Context) (*semver.Version, error) {
	v, err := e.Version(ctx)
	if err != nil {
		return nil, err
	}
	if v.LessThan(minimumConstraint) {
		return v, fmt.Errorf("%w: found %s, need >= %s", ErrUnsupportedVersion, v, MinimumVersion)
	}
	return v, nil
}

// ParseVersion extracts the version from "buildah version" output, which
// looks like "Version:         1.33.7". The one-line "buildah version 1.33.7
// (image-spec ...)" form printed by --version is accepted too.
func ParseVersion(lines []string) (*semver.Version, error) {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		var raw string
		switch {
		case strings.HasPrefix(line, "Version:"):
			raw = strings.TrimSpace(strings.TrimPrefix(line, "Version:"))
		case strings.HasPrefix(line, "buildah version "):
			raw, _, _ = strings.Cut(strings.TrimPrefix(line, "buildah version "), " ")
		default:
			continue
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrUnparsableVersion, raw, err)
		}
		return v, nil
	}
	return nil, ErrUnparsableVersion
}
