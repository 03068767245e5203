// SPDX-License-Identifier: MPL-2.0

package oscap

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/openchami/image-builder/pkg/layerdef"
)

// recordingSteps captures everything submitted to the installer.
type recordingSteps struct {
	packages [][]string
	commands []layerdef.Command
	failOn   string
}

func (r *recordingSteps) InstallPackages(_ context.Context, packages []string) error {
	r.packages = append(r.packages, packages)
	return nil
}

func (r *recordingSteps) RunCommands(_ context.Context, commands []layerdef.Command) error {
	for _, c := range commands {
		r.commands = append(r.commands, c)
		if r.failOn != "" && strings.Contains(c.Cmd, r.failOn) {
			return errors.New("command failed")
		}
	}
	return nil
}

func (r *recordingSteps) cmds() []string {
	out := make([]string, len(r.commands))
	for i, c := range r.commands {
		out[i] = c.Cmd
	}
	return out
}

func TestConfigFrom(t *testing.T) {
	t.Parallel()

	cfg, err := ConfigFrom(map[string]string{
		"profile":        "xccdf_org.ssgproject.content_profile_cis",
		"benchmark_path": "/usr/share/xml/scap/ssg/content/ssg-rl9-ds.xml",
		"results_path":   "/tmp/results.xml",
	})
	if err != nil {
		t.Fatalf("ConfigFrom() unexpected error: %v", err)
	}
	if cfg.ResultsPath != "/tmp/results.xml" {
		t.Errorf("override not applied: %+v", cfg)
	}
	if cfg.RemediatePath != "/root/remediate.sh" || cfg.OvalXML != "/root/oval.xml" || cfg.OvalPath != "/root/vulnerabilities.xml" {
		t.Errorf("defaults lost: %+v", cfg)
	}

	if _, err := ConfigFrom(map[string]string{"profiel": "x"}); !errors.Is(err, ErrUnknownSetting) {
		t.Errorf("typo key error = %v, want ErrUnknownSetting", err)
	}
}

func TestBenchmarkCommands(t *testing.T) {
	t.Parallel()

	cfg, _ := ConfigFrom(map[string]string{
		"profile":        "xccdf_org.ssgproject.content_profile_cis",
		"benchmark_path": "/usr/share/xml/scap/ssg/content/ssg-rl9-ds.xml",
	})
	cmds, err := BenchmarkCommands(cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"oscap xccdf eval --fetch-remote-resources --profile xccdf_org.ssgproject.content_profile_cis --results /root/scan.xml /usr/share/xml/scap/ssg/content/ssg-rl9-ds.xml || true",
		"oscap xccdf generate fix --output /root/remediate.sh --profile xccdf_org.ssgproject.content_profile_cis /root/scan.xml",
	}
	for i, c := range cmds {
		if c.Cmd != want[i] {
			t.Errorf("cmd %d = %q, want %q", i, c.Cmd, want[i])
		}
		if c.LogLevel != layerdef.LogLevelDebug {
			t.Errorf("cmd %d loglevel = %q, want DEBUG", i, c.LogLevel)
		}
		if err := c.Validate(); err != nil {
			t.Errorf("cmd %d is not valid shell: %v", i, err)
		}
	}

	if _, err := BenchmarkCommands(DefaultConfig()); !errors.Is(err, ErrMissingSetting) {
		t.Errorf("missing profile error = %v, want ErrMissingSetting", err)
	}
}

func TestOvalCommands(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if _, err := OvalCommands(cfg); !errors.Is(err, ErrMissingSetting) {
		t.Fatalf("missing oval_url error = %v, want ErrMissingSetting", err)
	}
	cfg.OvalURL = "https://security.access.redhat.com/data/oval/v2/RHEL9/rhel-9.oval.xml.bz2"
	cmds, err := OvalCommands(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 2 {
		t.Fatalf("len = %d, want 2", len(cmds))
	}
	if !strings.HasPrefix(cmds[0].Cmd, "curl -L -o - ") || !strings.HasSuffix(cmds[0].Cmd, "| bzip2 --decompress > /root/oval.xml") {
		t.Errorf("fetch cmd = %q", cmds[0].Cmd)
	}
	if cmds[1].Cmd != "oscap oval eval --report /root/vulnerabilities.xml /root/oval.xml || true" {
		t.Errorf("eval cmd = %q", cmds[1].Cmd)
	}
}

func TestCommandsQuoteUnsafeValues(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Profile = "cis; rm -rf /"
	cfg.BenchmarkPath = "/usr/share/ssg/content with space.xml"
	cmds, err := BenchmarkCommands(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(cmds[0].Cmd, "--profile cis; rm") {
		t.Errorf("profile was not quoted: %q", cmds[0].Cmd)
	}
	if !strings.Contains(cmds[0].Cmd, "'/usr/share/ssg/content with space.xml'") {
		t.Errorf("benchmark path was not quoted: %q", cmds[0].Cmd)
	}
}

func TestScanner_Run(t *testing.T) {
	t.Parallel()

	steps := &recordingSteps{}
	s := New(steps, log.New(io.Discard))
	err := s.Run(context.Background(), layerdef.ScapSpec{
		Install:   true,
		Benchmark: true,
		OvalEval:  true,
		Vars: map[string]string{
			"profile":        "cis",
			"benchmark_path": "/ssg.xml",
			"oval_url":       "http://oval/rhel-9.oval.xml.bz2",
		},
	})
	if err != nil {
		t.Fatalf("Run() unexpected error: %v", err)
	}
	if len(steps.packages) != 1 || !slices.Equal(steps.packages[0], Packages) {
		t.Errorf("packages = %v", steps.packages)
	}
	cmds := steps.cmds()
	if len(cmds) != 5 || cmds[0] != "oscap --help" {
		t.Fatalf("commands = %q", cmds)
	}
	if !strings.HasPrefix(cmds[1], "curl") || !strings.HasPrefix(cmds[3], "oscap xccdf eval") {
		t.Errorf("order: %q", cmds)
	}
}

func TestScanner_RunNothingSelected(t *testing.T) {
	t.Parallel()

	steps := &recordingSteps{}
	if err := New(steps, nil).Run(context.Background(), layerdef.ScapSpec{}); err != nil {
		t.Fatal(err)
	}
	if len(steps.packages)+len(steps.commands) != 0 {
		t.Errorf("nothing selected should submit nothing, got %v %v", steps.packages, steps.commands)
	}
}

func TestScanner_CheckInstallFailure(t *testing.T) {
	t.Parallel()

	steps := &recordingSteps{failOn: "oscap --help"}
	err := New(steps, log.New(io.Discard)).Run(context.Background(), layerdef.ScapSpec{
		Benchmark: true,
		Vars:      map[string]string{"profile": "cis", "benchmark_path": "/ssg.xml"},
	})
	if err == nil || !strings.Contains(err.Error(), "openscap not found") {
		t.Fatalf("Run() error = %v", err)
	}
	if len(steps.commands) != 1 {
		t.Errorf("later scans ran after failed presence check: %v", steps.cmds())
	}
}
