// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openchami/image-builder/internal/config"
)

func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect layer definitions",
	}
	cfgCmd.AddCommand(
		newConfigShowCommand(app),
		newConfigValidateCommand(app),
		newConfigSchemaCommand(app),
	)
	return cfgCmd
}

func newConfigShowCommand(app *App) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show [LAYER_FILE]",
		Short: "Print the effective layer definition",
		Long: `Print the layer definition after defaults, the layer file,
IMAGE_BUILDER_* environment variables and flag overrides are merged.
Secrets are masked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := app.loadLayer(cmd, args)
			if err != nil {
				return app.fail(err)
			}
			if err := writeLayer(app.stdout, resolved.Layer.Redacted(), format); err != nil {
				return app.fail(err)
			}
			return nil
		},
	}
	addLayerFlags(cmd.Flags())
	cmd.Flags().StringVarP(&format, "format", "o", "yaml", "output format (yaml, toml)")
	return cmd
}

func newConfigValidateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [LAYER_FILE]",
		Short: "Check a layer definition without building it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, resolved, err := app.loadSpec(cmd, args)
			if err != nil {
				return app.fail(err)
			}
			fmt.Fprintln(app.stdout, SuccessStyle.Render("✓ ")+RefStyle.Render(resolved.Path)+
				SubtitleStyle.Render(fmt.Sprintf(" is a valid %s layer", spec.LayerType)))
			return nil
		},
	}
}

func newConfigSchemaCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the CUE schema layer files are validated against",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			_, err := app.stdout.Write(config.Schema())
			return err
		},
	}
}

// writeLayer encodes layer using its layer file key names.
func writeLayer(w io.Writer, layer *config.Layer, format string) error {
	// The json tags carry the layer file key names; go through a generic map
	// so the YAML and TOML encoders use them too.
	data, err := json.Marshal(layer)
	if err != nil {
		return fmt.Errorf("encode layer: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("encode layer: %w", err)
	}
	normalize(doc)

	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode layer: %w", err)
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(doc)
	default:
		return &ExitError{Code: ExitConfiguration, Err: fmt.Errorf("unknown format %q (valid: yaml, toml)", format)}
	}
}

// normalize removes unset lists and maps, which TOML cannot represent, and
// turns JSON numbers back into integers where they have no fraction.
func normalize(doc map[string]any) {
	for k, v := range doc {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = normalizeValue(v)
	}
}

func normalizeValue(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		normalize(v)
	case []any:
		for i, item := range v {
			v[i] = normalizeValue(item)
		}
	}
	return v
}
