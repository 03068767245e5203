// SPDX-License-Identifier: MPL-2.0

package layerdef

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRepo is the sentinel error wrapped by InvalidRepoError.
var ErrInvalidRepo = errors.New("invalid repo")

type (
	// Repo is one package repository definition installed into the container
	// as <alias>.repo.
	Repo struct {
		Alias string
		// Config is the repo file body. A missing [alias] header is prepended.
		Config string
		// URL synthesizes a minimal Config when Config is empty.
		URL string
		// GPG is a key location imported with rpm --import when gpgcheck is on.
		GPG string
		// Priority is written into synthesized configs; zero leaves the
		// package manager default.
		Priority int
	}

	// InvalidRepoError is returned when a Repo cannot be persisted.
	InvalidRepoError struct {
		Alias  string
		Reason string
	}
)

// Header returns the section header that must open the repo file.
func (r Repo) Header() string { return "[" + r.Alias + "]" }

// FileName returns the repo file name inside the repo directory.
func (r Repo) FileName() string { return r.Alias + ".repo" }

// FileContent returns the normalized repo file body. Leading whitespace of the
// configured text is dropped, and the [alias] header is prepended when the
// text does not already start with it. The rest of the text is kept verbatim.
func (r Repo) FileContent(gpgCheck bool) string {
	config := strings.TrimLeft(r.Config, " \t\r\n")
	if config == "" && r.URL != "" {
		check := 0
		if gpgCheck {
			check = 1
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "name=%s\nbaseurl=%s\nenabled=1\ngpgcheck=%d\n", r.Alias, r.URL, check)
		if r.GPG != "" {
			fmt.Fprintf(&sb, "gpgkey=%s\n", r.GPG)
		}
		if r.Priority > 0 {
			fmt.Fprintf(&sb, "priority=%d\n", r.Priority)
		}
		config = sb.String()
	}
	if !strings.HasPrefix(config, r.Header()) {
		config = r.Header() + "\n" + config
	}
	return config
}

// Validate checks the alias and that some repo content is available.
func (r Repo) Validate() error {
	alias := strings.TrimSpace(r.Alias)
	switch {
	case alias == "":
		return &InvalidRepoError{Alias: r.Alias, Reason: "alias must not be empty"}
	case alias != r.Alias:
		return &InvalidRepoError{Alias: r.Alias, Reason: "alias must not have surrounding whitespace"}
	case strings.ContainsAny(r.Alias, "/\\[]\n\x00"):
		return &InvalidRepoError{Alias: r.Alias, Reason: "alias must not contain path separators, brackets or newlines"}
	case strings.TrimSpace(r.Config) == "" && r.URL == "":
		return &InvalidRepoError{Alias: r.Alias, Reason: "either config or url is required"}
	case r.Priority < 0:
		return &InvalidRepoError{Alias: r.Alias, Reason: "priority must not be negative"}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidRepoError) Error() string {
	return fmt.Sprintf("invalid repo %q: %s", e.Alias, e.Reason)
}

// Unwrap returns ErrInvalidRepo for errors.Is() compatibility.
func (e *InvalidRepoError) Unwrap() error { return ErrInvalidRepo }
