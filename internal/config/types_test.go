// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"slices"
	"testing"

	"github.com/openchami/image-builder/pkg/layerdef"
)

func TestLayer_BuildSpec(t *testing.T) {
	t.Parallel()

	layer := DefaultLayer()
	layer.Name = "compute-base"
	layer.Parent = "scratch"
	layer.PackageManager = "dnf"
	layer.Repos = []RepoEntry{{Alias: "baseos", URL: "https://mirror/baseos", Priority: 10}}
	layer.Modules = map[string][]string{"install": {"python39"}, "enable": {"nodejs:18"}}
	layer.Commands = []CommandEntry{{Cmd: "echo hi", LogLevel: "warn", BuildahExtraArgs: []string{"--network=host"}}}
	layer.CopyFiles = []CopyFileEntry{{Src: "a", Dest: "/b", Opts: []string{"--chown 0:0"}}}
	layer.RegistryOptsPull = []string{"--tls-verify=false"}
	layer.PublishLocal = true
	layer.PublishTags = []string{"latest, v1"}
	layer.PublishS3 = "http://minio:9000"
	layer.S3Bucket = "boot-images"
	layer.S3Prefix = "compute/"
	layer.S3Format = "tar.zst"
	layer.PublishRegistry = "registry.local/images"
	layer.RegistryOptsPush = []string{"--tls-verify=false,--retry=2"}
	layer.ScapBenchmark = true
	layer.ScapVars = map[string]string{"profile": "cis"}

	spec, err := layer.BuildSpec()
	if err != nil {
		t.Fatalf("BuildSpec() error = %v", err)
	}

	if !spec.IsScratch() || spec.LayerType != layerdef.LayerTypeBase || spec.PackageManager != layerdef.PackageManagerDnf {
		t.Errorf("unexpected identity: %+v", spec)
	}
	if !spec.GPGCheck {
		t.Error("GPGCheck should carry the default")
	}
	if len(spec.Repos) != 1 || spec.Repos[0].Priority != 10 {
		t.Errorf("repos = %+v", spec.Repos)
	}
	if len(spec.Modules) != 2 || spec.Modules[0].Action != "enable" || spec.Modules[1].Action != "install" {
		t.Errorf("modules should be sorted by action: %+v", spec.Modules)
	}
	if spec.Commands[0].LogLevel.Normalized() != layerdef.LogLevelWarn || spec.Commands[0].ExtraArgs[0] != "--network=host" {
		t.Errorf("commands = %+v", spec.Commands)
	}
	if !slices.Equal(spec.PullOpts, []string{"--tls-verify=false"}) {
		t.Errorf("pull opts = %v", spec.PullOpts)
	}

	p := spec.Publish
	if !p.Local || !slices.Equal(p.EffectiveTags(), []string{"latest", "v1"}) {
		t.Errorf("publish = %+v", p)
	}
	if p.ParentRef != "scratch" {
		t.Errorf("parent ref = %q, want scratch", p.ParentRef)
	}
	if p.S3 == nil || p.S3.Bucket != "boot-images" || p.S3.Endpoint != "http://minio:9000" || p.S3.Format != layerdef.BundleTarZstd {
		t.Errorf("s3 target = %+v", p.S3)
	}
	if p.Registry == nil || !slices.Equal(p.Registry.PushOpts, []string{"--tls-verify=false", "--retry=2"}) {
		t.Errorf("registry target = %+v", p.Registry)
	}
	if !spec.Scap.Benchmark || spec.Scap.Vars["profile"] != "cis" {
		t.Errorf("scap = %+v", spec.Scap)
	}
}

func TestLayer_BuildSpec_NoDestinations(t *testing.T) {
	t.Parallel()

	layer := DefaultLayer()
	layer.Name = "bare"
	layer.Parent = "docker.io/library/rockylinux:9"
	layer.PackageManager = "dnf"

	spec, err := layer.BuildSpec()
	if err != nil {
		t.Fatalf("BuildSpec() error = %v", err)
	}
	if spec.Publish.S3 != nil || spec.Publish.Registry != nil || spec.Publish.HasDestination() {
		t.Errorf("expected no destinations, got %+v", spec.Publish)
	}
}

func TestLayer_BuildSpec_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Layer)
		target error
	}{
		{"missing name", func(l *Layer) { l.Name = "" }, layerdef.ErrInvalidBuildSpec},
		{"base layer without package manager", func(l *Layer) { l.PackageManager = "" }, layerdef.ErrInvalidPackageManager},
		{"ansible layer without playbooks", func(l *Layer) { l.LayerType = "ansible" }, layerdef.ErrInvalidBuildSpec},
		{"bucket without name", func(l *Layer) { l.PublishS3 = "http://minio:9000" }, layerdef.ErrInvalidPublishSpec},
		{"unparsable command", func(l *Layer) { l.Commands = []CommandEntry{{Cmd: "echo 'unterminated"}} }, layerdef.ErrInvalidCommand},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			layer := DefaultLayer()
			layer.Name = "compute"
			layer.Parent = "scratch"
			layer.PackageManager = "dnf"
			tt.mutate(layer)

			_, err := layer.BuildSpec()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !errors.Is(err, tt.target) {
				t.Errorf("expected %v in chain, got %v", tt.target, err)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, nil},
		{"sequence", []string{"a", "b"}, []string{"a", "b"}},
		{"comma separated", []string{"a, b,c"}, []string{"a", "b", "c"}},
		{"drops blanks", []string{" ", "a,,b", ""}, []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := splitList(tt.in); !slices.Equal(got, tt.want) {
				t.Errorf("splitList(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseVars(t *testing.T) {
	t.Parallel()

	vars, err := ParseVars([]string{"cluster=demo,role=compute", "motd=a=b"})
	if err != nil {
		t.Fatalf("ParseVars() error = %v", err)
	}
	want := map[string]string{"cluster": "demo", "role": "compute", "motd": "a=b"}
	for k, v := range want {
		if vars[k] != v {
			t.Errorf("vars[%q] = %q, want %q", k, vars[k], v)
		}
	}

	if _, err := ParseVars([]string{"novalue"}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for a pair without '=', got %v", err)
	}
}

func TestLayer_Redacted(t *testing.T) {
	t.Parallel()

	layer := DefaultLayer()
	layer.S3AccessKey = "AKIA"
	layer.S3SecretKey = "secret"

	red := layer.Redacted()
	if red.S3SecretKey == "secret" || red.S3AccessKey != "AKIA" {
		t.Errorf("unexpected redaction: %+v", red)
	}
	if layer.S3SecretKey != "secret" {
		t.Error("Redacted must not modify the receiver")
	}
}
