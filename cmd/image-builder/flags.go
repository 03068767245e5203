// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/openchami/image-builder/internal/config"
)

// layerFlagKeys maps override flags to the layer file key they replace.
var layerFlagKeys = map[string]string{
	"name":               "name",
	"parent":             "parent",
	"layer-type":         "layer_type",
	"pkg-manager":        "package_manager",
	"proxy":              "proxy",
	"gpgcheck":           "gpgcheck",
	"groups":             "groups",
	"pb":                 "playbooks",
	"inventory":          "inventory",
	"vars":               "vars",
	"ansible-verbosity":  "ansible_verbosity",
	"registry-opts-pull": "registry_opts_pull",
	"registry-opts-push": "registry_opts_push",
	"publish-local":      "publish_local",
	"publish-s3":         "publish_s3",
	"publish-registry":   "publish_registry",
	"publish-tags":       "publish_tags",
	"s3-bucket":          "s3_bucket",
	"s3-prefix":          "s3_prefix",
	"s3-region":          "s3_region",
	"s3-format":          "s3_format",
	"scap-benchmark":     "scap_benchmark",
	"oval-eval":          "oval_eval",
	"install-scap":       "install_scap",
	"scap-var":           "scap_vars",
}

// addLayerFlags registers the flags that override layer file keys.
func addLayerFlags(fs *pflag.FlagSet) {
	fs.String("name", "", "layer name")
	fs.String("parent", "", "parent image (scratch for an empty root)")
	fs.String("layer-type", "", "layer type (base, ansible)")
	fs.String("pkg-manager", "", "package manager (dnf, yum, zypper)")
	fs.String("proxy", "", "HTTP proxy for package installs")
	fs.Bool("gpgcheck", true, "verify package signatures")

	fs.StringSlice("groups", nil, "Ansible inventory groups for the working container")
	fs.StringSlice("pb", nil, "Ansible playbooks to run")
	fs.String("inventory", "", "Ansible inventory file or directory")
	fs.StringSlice("vars", nil, "Ansible extra vars (key=value)")
	fs.Int("ansible-verbosity", 0, "Ansible verbosity (0-4)")

	fs.StringSlice("registry-opts-pull", nil, "extra buildah from options")
	fs.StringSlice("registry-opts-push", nil, "extra buildah push options")

	fs.Bool("publish-local", false, "commit tagged images into local storage")
	fs.String("publish-s3", "", "S3 endpoint URL to upload the root filesystem to")
	fs.String("publish-registry", "", "registry repository to push tagged images to")
	fs.StringSlice("publish-tags", nil, "image tags")
	fs.String("s3-bucket", "", "S3 bucket")
	fs.String("s3-prefix", "", "S3 key prefix")
	fs.String("s3-region", "", "S3 region")
	fs.String("s3-format", "", "S3 root filesystem format (squashfs, tar.zst, tar.xz)")

	fs.Bool("scap-benchmark", false, "run the OpenSCAP benchmark after the build")
	fs.Bool("oval-eval", false, "run the OVAL evaluation after the build")
	fs.Bool("install-scap", false, "install the OpenSCAP packages")
	fs.StringSlice("scap-var", nil, "scanner setting (key=value)")
}

// layerOverrides returns overrides for the layer flags set on the command
// line. Flags left at their defaults never shadow the layer file.
func layerOverrides(fs *pflag.FlagSet) (map[string]any, error) {
	overrides := make(map[string]any)
	var err error
	fs.Visit(func(f *pflag.Flag) {
		key, ok := layerFlagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		var value any
		value, err = flagValue(fs, f)
		if err != nil {
			err = fmt.Errorf("--%s: %w", f.Name, err)
			return
		}
		overrides[key] = value
	})
	if err != nil {
		return nil, &ExitError{Code: ExitConfiguration, Err: err}
	}
	return overrides, nil
}

func flagValue(fs *pflag.FlagSet, f *pflag.Flag) (any, error) {
	switch f.Name {
	case "vars", "scap-var":
		pairs, err := fs.GetStringSlice(f.Name)
		if err != nil {
			return nil, err
		}
		return config.ParseVars(pairs)
	}

	switch f.Value.Type() {
	case "bool":
		return fs.GetBool(f.Name)
	case "int":
		return fs.GetInt(f.Name)
	case "stringSlice":
		return fs.GetStringSlice(f.Name)
	default:
		return f.Value.String(), nil
	}
}
