// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

const testSchema = `
#Image: {
	name:     string
	tags?:    [...string]
	kind?:    "base" | "ansible"
	replicas?: int
}
`

type testImage struct {
	Name     string   `json:"name"`
	Tags     []string `json:"tags,omitempty"`
	Kind     string   `json:"kind,omitempty"`
	Replicas int      `json:"replicas,omitempty"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	t.Run("valid CUE document", func(t *testing.T) {
		t.Parallel()

		data := []byte(`
name: "compute"
tags: ["latest", "v1"]
kind: "base"
`)
		result, err := ParseAndDecode[testImage]([]byte(testSchema), data, "#Image")
		if err != nil {
			t.Fatalf("ParseAndDecode() error = %v", err)
		}
		if result.Value.Name != "compute" || result.Value.Kind != "base" {
			t.Errorf("unexpected value: %+v", result.Value)
		}
		if result.Value.Replicas != 0 {
			t.Errorf("expected unset replicas, got %d", result.Value.Replicas)
		}
		if result.Unified.Err() != nil {
			t.Errorf("unified value has error: %v", result.Unified.Err())
		}
	})

	t.Run("valid YAML document", func(t *testing.T) {
		t.Parallel()

		data := []byte("name: compute\ntags:\n  - latest\nreplicas: 3\n")
		result, err := ParseAndDecode[testImage]([]byte(testSchema), data, "#Image", WithFormat(FormatYAML))
		if err != nil {
			t.Fatalf("ParseAndDecode() error = %v", err)
		}
		if result.Value.Name != "compute" || result.Value.Replicas != 3 || len(result.Value.Tags) != 1 {
			t.Errorf("unexpected value: %+v", result.Value)
		}
	})

	t.Run("YAML decodes into a map", func(t *testing.T) {
		t.Parallel()

		data := []byte("name: compute\n")
		result, err := ParseAndDecode[map[string]any]([]byte(testSchema), data, "#Image",
			WithFormat(FormatYAML), WithConcrete(false))
		if err != nil {
			t.Fatalf("ParseAndDecode() error = %v", err)
		}
		if got := (*result.Value)["name"]; got != "compute" {
			t.Errorf("name = %v, want compute", got)
		}
	})

	t.Run("enum violation reports path", func(t *testing.T) {
		t.Parallel()

		data := []byte("name: compute\nkind: windows\n")
		_, err := ParseAndDecode[testImage]([]byte(testSchema), data, "#Image",
			WithFormat(FormatYAML), WithFilename("layer.yaml"))
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected *ValidationError, got %T: %v", err, err)
		}
		if verr.File != "layer.yaml" {
			t.Errorf("File = %q, want layer.yaml", verr.File)
		}
		if !strings.Contains(err.Error(), "kind") {
			t.Errorf("error should name the field, got: %v", err)
		}
	})

	t.Run("closed definition rejects unknown field", func(t *testing.T) {
		t.Parallel()

		data := []byte("name: compute\nunknown: 1\n")
		_, err := ParseAndDecode[testImage]([]byte(testSchema), data, "#Image", WithFormat(FormatYAML))
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("malformed YAML", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[testImage]([]byte(testSchema), []byte("name: [unclosed\n"), "#Image", WithFormat(FormatYAML))
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("unknown schema definition", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[testImage]([]byte(testSchema), []byte(`name: "x"`), "#Missing")
		if err == nil || !strings.Contains(err.Error(), "#Missing") {
			t.Fatalf("expected missing definition error, got %v", err)
		}
	})

	t.Run("unsupported format", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[testImage]([]byte(testSchema), []byte(`name: "x"`), "#Image", WithFormat("json5"))
		if err == nil || !strings.Contains(err.Error(), "json5") {
			t.Fatalf("expected unsupported format error, got %v", err)
		}
	})
}

func TestFileSizeLimit(t *testing.T) {
	t.Parallel()

	data := []byte("name: compute\n")
	if _, err := ParseAndDecode[testImage]([]byte(testSchema), data, "#Image",
		WithFormat(FormatYAML), WithMaxFileSize(1024)); err != nil {
		t.Errorf("expected success within limit, got %v", err)
	}

	big := []byte("name: " + strings.Repeat("a", 200) + "\n")
	_, err := ParseAndDecode[testImage]([]byte(testSchema), big, "#Image",
		WithFormat(FormatYAML), WithMaxFileSize(100))
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Errorf("expected size limit error, got %v", err)
	}
}
