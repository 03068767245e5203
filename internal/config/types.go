// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/openchami/image-builder/pkg/layerdef"
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// RepoEntry is one element of the repos list.
	RepoEntry struct {
		Alias    string `json:"alias" mapstructure:"alias"`
		URL      string `json:"url,omitempty" mapstructure:"url"`
		Config   string `json:"config,omitempty" mapstructure:"config"`
		GPG      string `json:"gpg,omitempty" mapstructure:"gpg"`
		Priority int    `json:"priority,omitempty" mapstructure:"priority"`
	}

	// CommandEntry is one element of the cmds list.
	CommandEntry struct {
		Cmd              string   `json:"cmd" mapstructure:"cmd"`
		LogLevel         string   `json:"loglevel,omitempty" mapstructure:"loglevel"`
		BuildahExtraArgs []string `json:"buildah_extra_args,omitempty" mapstructure:"buildah_extra_args"`
	}

	// CopyFileEntry is one element of the copyfiles list.
	CopyFileEntry struct {
		Src  string   `json:"src" mapstructure:"src"`
		Dest string   `json:"dest" mapstructure:"dest"`
		Opts []string `json:"opts,omitempty" mapstructure:"opts"`
	}

	// Layer is the resolved layer definition: file values merged with
	// environment and command-line overrides.
	Layer struct {
		Name           string `json:"name" mapstructure:"name"`
		Parent         string `json:"parent" mapstructure:"parent"`
		LayerType      string `json:"layer_type" mapstructure:"layer_type"`
		PackageManager string `json:"package_manager" mapstructure:"package_manager"`
		Proxy          string `json:"proxy" mapstructure:"proxy"`
		GPGCheck       bool   `json:"gpgcheck" mapstructure:"gpgcheck"`

		Repos          []RepoEntry         `json:"repos" mapstructure:"repos"`
		Packages       []string            `json:"packages" mapstructure:"packages"`
		PackageGroups  []string            `json:"package_groups" mapstructure:"package_groups"`
		RemovePackages []string            `json:"remove_packages" mapstructure:"remove_packages"`
		Modules        map[string][]string `json:"modules" mapstructure:"modules"`
		Commands       []CommandEntry      `json:"cmds" mapstructure:"cmds"`
		CopyFiles      []CopyFileEntry     `json:"copyfiles" mapstructure:"copyfiles"`

		RegistryOptsPull []string `json:"registry_opts_pull" mapstructure:"registry_opts_pull"`
		RegistryOptsPush []string `json:"registry_opts_push" mapstructure:"registry_opts_push"`

		PublishLocal    bool     `json:"publish_local" mapstructure:"publish_local"`
		PublishS3       string   `json:"publish_s3" mapstructure:"publish_s3"`
		PublishRegistry string   `json:"publish_registry" mapstructure:"publish_registry"`
		PublishTags     []string `json:"publish_tags" mapstructure:"publish_tags"`
		S3Bucket        string   `json:"s3_bucket" mapstructure:"s3_bucket"`
		S3Prefix        string   `json:"s3_prefix" mapstructure:"s3_prefix"`
		S3Region        string   `json:"s3_region" mapstructure:"s3_region"`
		S3Format        string   `json:"s3_format" mapstructure:"s3_format"`
		S3AccessKey     string   `json:"s3_access_key" mapstructure:"s3_access_key"`
		S3SecretKey     string   `json:"s3_secret_key" mapstructure:"s3_secret_key"`

		Groups           []string          `json:"groups" mapstructure:"groups"`
		Playbooks        []string          `json:"playbooks" mapstructure:"playbooks"`
		Inventory        []string          `json:"inventory" mapstructure:"inventory"`
		Vars             map[string]string `json:"vars" mapstructure:"vars"`
		AnsibleVerbosity int               `json:"ansible_verbosity" mapstructure:"ansible_verbosity"`

		ScapBenchmark bool              `json:"scap_benchmark" mapstructure:"scap_benchmark"`
		OvalEval      bool              `json:"oval_eval" mapstructure:"oval_eval"`
		InstallScap   bool              `json:"install_scap" mapstructure:"install_scap"`
		ScapVars      map[string]string `json:"scap_vars" mapstructure:"scap_vars"`
	}

	// InvalidConfigError is returned when a resolved Layer cannot be turned
	// into a build spec.
	InvalidConfigError struct {
		Path string
		Err  error
	}
)

// DefaultLayer returns the values used for keys absent from every source.
func DefaultLayer() *Layer {
	return &Layer{
		LayerType: string(layerdef.LayerTypeBase),
		GPGCheck:  true,
	}
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid config: %v", e.Err)
	}
	return fmt.Sprintf("invalid config %s: %v", e.Path, e.Err)
}

// Unwrap returns ErrInvalidConfig and the underlying cause.
func (e *InvalidConfigError) Unwrap() []error {
	return []error{ErrInvalidConfig, e.Err}
}

// BuildSpec converts the layer into a validated build spec.
func (l *Layer) BuildSpec() (*layerdef.BuildSpec, error) {
	spec := layerdef.BuildSpec{
		Name:           strings.TrimSpace(l.Name),
		Parent:         strings.TrimSpace(l.Parent),
		LayerType:      layerdef.LayerType(l.LayerType),
		PackageManager: layerdef.PackageManagerKind(l.PackageManager),
		Packages:       l.Packages,
		PackageGroups:  l.PackageGroups,
		RemovePackages: l.RemovePackages,
		Modules:        layerdef.ModuleCommandsFromMap(l.Modules),
		Proxy:          l.Proxy,
		GPGCheck:       l.GPGCheck,
		PullOpts:       splitList(l.RegistryOptsPull),
		Ansible: layerdef.AnsibleSpec{
			Groups:    splitList(l.Groups),
			Playbooks: splitList(l.Playbooks),
			Inventory: splitList(l.Inventory),
			Vars:      l.Vars,
			Verbosity: l.AnsibleVerbosity,
		},
		Scap: layerdef.ScapSpec{
			Install:   l.InstallScap,
			Benchmark: l.ScapBenchmark,
			OvalEval:  l.OvalEval,
			Vars:      l.ScapVars,
		},
		Publish: l.publishSpec(),
	}

	for _, r := range l.Repos {
		spec.Repos = append(spec.Repos, layerdef.Repo{
			Alias:    r.Alias,
			Config:   r.Config,
			URL:      r.URL,
			GPG:      r.GPG,
			Priority: r.Priority,
		})
	}
	for _, c := range l.Commands {
		spec.Commands = append(spec.Commands, layerdef.Command{
			Cmd:       c.Cmd,
			LogLevel:  layerdef.LogLevel(c.LogLevel),
			ExtraArgs: slices.Clone(c.BuildahExtraArgs),
		})
	}
	for _, f := range l.CopyFiles {
		spec.CopyFiles = append(spec.CopyFiles, layerdef.CopyFile{
			Src:  f.Src,
			Dest: f.Dest,
			Opts: slices.Clone(f.Opts),
		})
	}

	built, err := layerdef.NewBuildSpec(spec)
	if err != nil {
		return nil, &InvalidConfigError{Err: err}
	}
	return built, nil
}

func (l *Layer) publishSpec() layerdef.PublishSpec {
	p := layerdef.PublishSpec{
		Local: l.PublishLocal,
		Tags:  splitList(l.PublishTags),
	}
	if l.PublishS3 != "" || l.S3Bucket != "" {
		p.S3 = &layerdef.S3Target{
			Bucket:    l.S3Bucket,
			Prefix:    l.S3Prefix,
			Endpoint:  l.PublishS3,
			Region:    l.S3Region,
			AccessKey: l.S3AccessKey,
			SecretKey: l.S3SecretKey,
			Format:    layerdef.BundleFormat(l.S3Format),
		}
	}
	if l.PublishRegistry != "" {
		p.Registry = &layerdef.RegistryTarget{
			Endpoint: l.PublishRegistry,
			PushOpts: splitList(l.RegistryOptsPush),
		}
	}
	return p
}

// Redacted returns a copy of the layer with credentials masked, for display.
func (l *Layer) Redacted() *Layer {
	c := *l
	if c.S3SecretKey != "" {
		c.S3SecretKey = "********"
	}
	return &c
}

// splitList flattens comma-separated entries, trims whitespace and drops
// empty items. Lists arrive from YAML sequences, comma-separated strings and
// repeated command-line flags alike.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for part := range strings.SplitSeq(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ParseVars parses "key=value" pairs. Each argument may hold several
// comma-separated pairs.
func ParseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string)
	for _, pair := range splitList(pairs) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, &InvalidConfigError{Path: "vars", Err: fmt.Errorf("expected key=value, got %s", strconv.Quote(pair))}
		}
		vars[strings.TrimSpace(k)] = v
	}
	return vars, nil
}
