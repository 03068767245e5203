// SPDX-License-Identifier: MPL-2.0

// Package oscap runs OpenSCAP compliance scans inside a working container.
//
// The scanner only builds shell commands and submits them through the
// installer's package and command steps; it has no control flow of its own.
package oscap

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"mvdan.cc/sh/v3/syntax"

	"github.com/openchami/image-builder/pkg/layerdef"
)

const (
	keyProfile       = "profile"
	keyBenchmarkPath = "benchmark_path"
	keyOvalURL       = "oval_url"
	keyResultsPath   = "results_path"
	keyRemediatePath = "remediate_path"
	keyOvalXML       = "oval_xml"
	keyOvalPath      = "oval_path"
)

var (
	// ErrMissingSetting is returned when a scan needs a setting nobody provided.
	ErrMissingSetting = errors.New("missing scan setting")

	// ErrUnknownSetting is returned for override keys the scanner does not know.
	ErrUnknownSetting = errors.New("unknown scan setting")

	// Packages are the scan tools installed by InstallTools.
	Packages = []string{"openscap-utils", "scap-security-guide", "bzip2"}
)

type (
	// Steps is the subset of the installer the scanner submits work through.
	Steps interface {
		InstallPackages(ctx context.Context, packages []string) error
		RunCommands(ctx context.Context, commands []layerdef.Command) error
	}

	// Config holds every scan setting. Paths are inside the container.
	Config struct {
		Profile       string
		BenchmarkPath string
		OvalURL       string
		ResultsPath   string
		RemediatePath string
		OvalXML       string
		OvalPath      string
	}

	// Scanner runs scans through Steps.
	Scanner struct {
		steps  Steps
		logger *log.Logger
	}
)

// DefaultConfig returns the fixed defaults under /root.
func DefaultConfig() Config {
	return Config{
		ResultsPath:   "/root/scan.xml",
		RemediatePath: "/root/remediate.sh",
		OvalXML:       "/root/oval.xml",
		OvalPath:      "/root/vulnerabilities.xml",
	}
}

// ConfigFrom merges overrides over DefaultConfig. Keys are the snake_case
// setting names used in layer files (profile, benchmark_path, oval_url,
// results_path, remediate_path, oval_xml, oval_path).
func ConfigFrom(overrides map[string]string) (Config, error) {
	cfg := DefaultConfig()
	fields := map[string]*string{
		keyProfile:       &cfg.Profile,
		keyBenchmarkPath: &cfg.BenchmarkPath,
		keyOvalURL:       &cfg.OvalURL,
		keyResultsPath:   &cfg.ResultsPath,
		keyRemediatePath: &cfg.RemediatePath,
		keyOvalXML:       &cfg.OvalXML,
		keyOvalPath:      &cfg.OvalPath,
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		field, ok := fields[k]
		if !ok {
			return Config{}, fmt.Errorf("%w: %q", ErrUnknownSetting, k)
		}
		*field = overrides[k]
	}
	return cfg, nil
}

// New creates a Scanner.
func New(steps Steps, logger *log.Logger) *Scanner {
	if logger == nil {
		logger = log.Default()
	}
	return &Scanner{steps: steps, logger: logger}
}

// Run performs the scans selected by spec in a fixed order: tool install,
// presence check, OVAL evaluation, XCCDF benchmark.
func (s *Scanner) Run(ctx context.Context, spec layerdef.ScapSpec) error {
	cfg, err := ConfigFrom(spec.Vars)
	if err != nil {
		return err
	}
	if spec.Install {
		if err := s.InstallTools(ctx); err != nil {
			return err
		}
	}
	if !spec.OvalEval && !spec.Benchmark {
		return nil
	}
	if err := s.CheckInstall(ctx); err != nil {
		return err
	}
	if spec.OvalEval {
		if err := s.RunOvalEval(ctx, cfg); err != nil {
			return err
		}
	}
	if spec.Benchmark {
		if err := s.RunBenchmark(ctx, cfg); err != nil {
			return err
		}
	}
	return nil
}

// CheckInstall verifies oscap is runnable inside the container.
func (s *Scanner) CheckInstall(ctx context.Context) error {
	if err := s.steps.RunCommands(ctx, []layerdef.Command{{Cmd: "oscap --help", LogLevel: layerdef.LogLevelDebug}}); err != nil {
		return fmt.Errorf("openscap not found, try installing %s: %w", strings.Join(Packages[:2], " "), err)
	}
	return nil
}

// InstallTools installs the scan packages with the build's package manager.
func (s *Scanner) InstallTools(ctx context.Context) error {
	s.logger.Info("installing openscap tooling", "packages", strings.Join(Packages, " "))
	if err := s.steps.InstallPackages(ctx, slices.Clone(Packages)); err != nil {
		return fmt.Errorf("install openscap (typically available from the distro appstream repo): %w", err)
	}
	return nil
}

// RunOvalEval fetches the OVAL definitions and evaluates them.
func (s *Scanner) RunOvalEval(ctx context.Context, cfg Config) error {
	cmds, err := OvalCommands(cfg)
	if err != nil {
		return err
	}
	s.logger.Info("running OVAL evaluation", "url", cfg.OvalURL, "report", cfg.OvalPath)
	if err := s.steps.RunCommands(ctx, cmds); err != nil {
		return fmt.Errorf("oval evaluation: %w", err)
	}
	return nil
}

// RunBenchmark evaluates the XCCDF profile and generates a remediation script.
func (s *Scanner) RunBenchmark(ctx context.Context, cfg Config) error {
	cmds, err := BenchmarkCommands(cfg)
	if err != nil {
		return err
	}
	s.logger.Info("running XCCDF benchmark", "profile", cfg.Profile, "results", cfg.ResultsPath)
	if err := s.steps.RunCommands(ctx, cmds); err != nil {
		return fmt.Errorf("xccdf benchmark and remediation: %w", err)
	}
	return nil
}

// OvalCommands returns the fetch and evaluate commands for cfg.
func OvalCommands(cfg Config) ([]layerdef.Command, error) {
	if err := require(keyOvalURL, cfg.OvalURL); err != nil {
		return nil, err
	}
	q, err := quoteAll(cfg.OvalURL, cfg.OvalXML, cfg.OvalPath)
	if err != nil {
		return nil, err
	}
	url, xml, report := q[0], q[1], q[2]
	return []layerdef.Command{
		{Cmd: fmt.Sprintf("curl -L -o - %s | bzip2 --decompress > %s", url, xml), LogLevel: layerdef.LogLevelDebug},
		{Cmd: fmt.Sprintf("oscap oval eval --report %s %s || true", report, xml), LogLevel: layerdef.LogLevelDebug},
	}, nil
}

// BenchmarkCommands returns the evaluate and remediate commands for cfg.
func BenchmarkCommands(cfg Config) ([]layerdef.Command, error) {
	if err := require(keyProfile, cfg.Profile); err != nil {
		return nil, err
	}
	if err := require(keyBenchmarkPath, cfg.BenchmarkPath); err != nil {
		return nil, err
	}
	q, err := quoteAll(cfg.Profile, cfg.ResultsPath, cfg.BenchmarkPath, cfg.RemediatePath)
	if err != nil {
		return nil, err
	}
	profile, results, benchmark, remediate := q[0], q[1], q[2], q[3]
	return []layerdef.Command{
		{Cmd: fmt.Sprintf("oscap xccdf eval --fetch-remote-resources --profile %s --results %s %s || true", profile, results, benchmark), LogLevel: layerdef.LogLevelDebug},
		{Cmd: fmt.Sprintf("oscap xccdf generate fix --output %s --profile %s %s", remediate, profile, results), LogLevel: layerdef.LogLevelDebug},
	}, nil
}

func require(key, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s", ErrMissingSetting, key)
	}
	return nil
}

// quoteAll shell-quotes values that need it and leaves plain words alone.
func quoteAll(values ...string) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		q, err := syntax.Quote(v, syntax.LangBash)
		if err != nil {
			return nil, fmt.Errorf("cannot quote %q: %w", v, err)
		}
		out[i] = q
	}
	return out, nil
}
