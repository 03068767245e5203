// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/openchami/image-builder/internal/testutil"
)

type testApp struct {
	app    *App
	runner *testutil.FakeRunner
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestApp(t *testing.T, deps Dependencies) *testApp {
	t.Helper()
	ta := &testApp{
		runner: testutil.NewFakeRunner(),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
	if deps.Runner == nil {
		deps.Runner = ta.runner
	}
	deps.Stdout, deps.Stderr = ta.stdout, ta.stderr
	ta.app = NewApp(deps)
	return ta
}

// run executes the command tree with args, disabling styled Markdown so
// output is stable.
func (ta *testApp) run(args ...string) error {
	root := NewRootCommand(ta.app)
	root.SetArgs(append([]string{"--style", "notty"}, args...))
	root.SetOut(ta.stdout)
	root.SetErr(ta.stderr)
	return root.ExecuteContext(context.Background())
}

func writeLayerFile(t *testing.T, content string) string {
	t.Helper()
	return testutil.MustWriteFile(t, t.TempDir(), "layer.yaml", content)
}

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version takes priority", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v0.4.0"
		Commit = "abc1234"
		BuildDate = "2026-03-01T10:00:00Z"

		got := getVersionString()
		want := "v0.4.0 (commit: abc1234, built: 2026-03-01T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got, want := getVersionString(), "dev (built from source)"; got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})
}

func TestNewRootCommand_Subcommands(t *testing.T) {
	t.Parallel()

	root := NewRootCommand(NewApp(Dependencies{}))
	for _, name := range []string{"build", "plan", "scan", "config", "version"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("Find(%q) = %v, %v", name, c, err)
		}
	}
	if f := root.PersistentFlags().Lookup("config"); f == nil || f.Shorthand != "c" || f.DefValue != "config.yaml" {
		t.Errorf("--config flag = %+v", f)
	}
}

func TestLayerPath(t *testing.T) {
	t.Parallel()

	app := NewApp(Dependencies{})
	app.flags.layerFile = "from-flag.yaml"

	if got := app.layerPath(nil); got != "from-flag.yaml" {
		t.Errorf("layerPath(nil) = %q", got)
	}
	if got := app.layerPath([]string{"positional.yaml"}); got != "positional.yaml" {
		t.Errorf("layerPath(positional) = %q", got)
	}
}

func TestLogger_InvalidLevel(t *testing.T) {
	t.Parallel()

	ta := newTestApp(t, Dependencies{})
	ta.app.flags.logLevel = "chatty"

	_, err := ta.app.logger()
	if got := exitCodeFor(err); got != ExitConfiguration {
		t.Errorf("exitCodeFor(%v) = %d, want %d", err, got, ExitConfiguration)
	}
}
