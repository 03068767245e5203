// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/openchami/image-builder/internal/issue"
	"github.com/openchami/image-builder/pkg/cueutil"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes environment overrides (IMAGE_BUILDER_PARENT, ...).
	EnvPrefix = "IMAGE_BUILDER"
	// DefaultLayerFile is loaded when no file is named on the command line.
	DefaultLayerFile = "config.yaml"

	legacyOptionsKey = "options"
)

//go:embed layer_schema.cue
var layerSchema []byte

// Schema returns the CUE schema layer files are validated against.
func Schema() []byte {
	return slices.Clone(layerSchema)
}

// legacyKeyRenames maps keys of the legacy options section whose top-level
// name differs.
var legacyKeyRenames = map[string]string{
	"pkg_manager": "package_manager",
}

// loadWithOptions resolves a layer in increasing precedence: defaults, the
// layer file, IMAGE_BUILDER_* environment variables, explicit overrides.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Resolved, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	path := opts.LayerFilePath
	if path == "" {
		path = DefaultLayerFile
	}
	if !fileExists(path) {
		return nil, issue.NewErrorContext().
			WithOperation("load layer definition").
			WithResource(path).
			WithSuggestion("Verify the file path is correct").
			WithSuggestion("Pass the layer file with --config or as the first argument").
			WithIssue(issue.LayerFileNotFoundId).
			Wrap(&InvalidConfigError{Err: os.ErrNotExist}).
			BuildError()
	}
	if err := loadLayerIntoViper(v, path); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("load layer definition").
			WithResource(path).
			WithSuggestion("Check that the file contains valid YAML").
			WithSuggestion("Verify the keys and values match the layer schema").
			WithSuggestion("Run 'image-builder config show' to inspect the resolved values").
			WithIssue(issue.LayerFileInvalidId).
			Wrap(&InvalidConfigError{Err: err}).
			BuildError()
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	layer := DefaultLayer()
	if err := v.Unmarshal(layer); err != nil {
		return nil, &InvalidConfigError{Err: fmt.Errorf("failed to decode layer definition: %w", err)}
	}

	return &Resolved{Layer: layer, Path: path}, nil
}

// setDefaults registers every scalar key so environment overrides apply even
// when the layer file leaves the key out.
func setDefaults(v *viper.Viper) {
	d := DefaultLayer()
	v.SetDefault("name", d.Name)
	v.SetDefault("parent", d.Parent)
	v.SetDefault("layer_type", d.LayerType)
	v.SetDefault("package_manager", d.PackageManager)
	v.SetDefault("proxy", d.Proxy)
	v.SetDefault("gpgcheck", d.GPGCheck)
	v.SetDefault("registry_opts_pull", []string{})
	v.SetDefault("registry_opts_push", []string{})
	v.SetDefault("publish_local", d.PublishLocal)
	v.SetDefault("publish_s3", d.PublishS3)
	v.SetDefault("publish_registry", d.PublishRegistry)
	v.SetDefault("publish_tags", []string{})
	v.SetDefault("s3_bucket", d.S3Bucket)
	v.SetDefault("s3_prefix", d.S3Prefix)
	v.SetDefault("s3_region", d.S3Region)
	v.SetDefault("s3_format", d.S3Format)
	v.SetDefault("s3_access_key", d.S3AccessKey)
	v.SetDefault("s3_secret_key", d.S3SecretKey)
	v.SetDefault("groups", []string{})
	v.SetDefault("playbooks", []string{})
	v.SetDefault("inventory", []string{})
	v.SetDefault("ansible_verbosity", d.AnsibleVerbosity)
	v.SetDefault("scap_benchmark", d.ScapBenchmark)
	v.SetDefault("oval_eval", d.OvalEval)
	v.SetDefault("install_scap", d.InstallScap)
}

// loadLayerIntoViper validates a YAML layer file against the #Layer schema,
// lifts the legacy options section and merges the result into v.
func loadLayerIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read layer file: %w", err)
	}

	result, err := cueutil.ParseAndDecode[map[string]any](
		layerSchema,
		data,
		"#Layer",
		cueutil.WithFilename(path),
		cueutil.WithFormat(cueutil.FormatYAML),
	)
	if err != nil {
		return err
	}

	settings := liftLegacyOptions(*result.Value)
	if err := v.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("failed to merge layer file: %w", err)
	}
	return nil
}

// liftLegacyOptions copies keys of the options section to the top level.
// Keys already present at the top level win.
func liftLegacyOptions(settings map[string]any) map[string]any {
	opts, ok := settings[legacyOptionsKey].(map[string]any)
	delete(settings, legacyOptionsKey)
	if !ok {
		return settings
	}
	for key, value := range opts {
		if renamed, found := legacyKeyRenames[key]; found {
			key = renamed
		}
		if _, exists := settings[key]; !exists {
			settings[key] = value
		}
	}
	return settings
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
