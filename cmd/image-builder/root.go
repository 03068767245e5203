// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/openchami/image-builder/internal/buildah"
	"github.com/openchami/image-builder/internal/config"
	"github.com/openchami/image-builder/internal/issue"
	"github.com/openchami/image-builder/internal/layer"
	"github.com/openchami/image-builder/internal/logging"
	"github.com/openchami/image-builder/internal/publish"
	"github.com/openchami/image-builder/internal/runner"
)

var (
	// Version is set via -ldflags at build time.
	Version = "dev"
	// Commit is set via -ldflags at build time.
	Commit = "unknown"
	// BuildDate is set via -ldflags at build time.
	BuildDate = "unknown"
)

type (
	// Dependencies are the collaborators a command tree is built from.
	// Zero values fall back to the production implementations.
	Dependencies struct {
		Config    config.Provider
		Runner    runner.Runner
		Publisher layer.Publisher
		Stdout    io.Writer
		Stderr    io.Writer
	}

	// App wires the command tree to its dependencies.
	App struct {
		Config    config.Provider
		Runner    runner.Runner
		Publisher layer.Publisher

		stdout io.Writer
		stderr io.Writer
		flags  rootFlags
	}

	rootFlags struct {
		layerFile string
		logLevel  string
		logJSON   bool
		logTime   bool
		buildah   string
		playbook  string
		squashfs  string
		style     string
		verbose   bool
	}
)

// NewApp creates an App from deps.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:    deps.Config,
		Runner:    deps.Runner,
		Publisher: deps.Publisher,
		stdout:    deps.Stdout,
		stderr:    deps.Stderr,
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

// NewRootCommand creates the image-builder command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "image-builder",
		Short: "Build container base layers with buildah",
		Long: TitleStyle.Render("image-builder") + SubtitleStyle.Render(" - layered OS images for diskless nodes") + `

Builds one image layer from a YAML layer definition: creates a working
container from a parent image, installs repositories, packages and files or
runs Ansible playbooks against it, optionally scans it with OpenSCAP, and
publishes the result to local storage, S3 and/or an OCI registry.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&app.flags.layerFile, "config", "c", config.DefaultLayerFile, "layer definition file")
	pf.StringVar(&app.flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.BoolVar(&app.flags.logJSON, "log-json", false, "emit logs as JSON")
	pf.BoolVar(&app.flags.logTime, "log-timestamps", false, "prefix log entries with the time")
	pf.StringVar(&app.flags.buildah, "buildah", buildah.DefaultBinary, "buildah executable")
	pf.StringVar(&app.flags.playbook, "ansible-playbook", layer.DefaultAnsiblePlaybook, "ansible-playbook executable")
	pf.StringVar(&app.flags.squashfs, "mksquashfs", publish.DefaultMksquashfs, "mksquashfs executable")
	pf.StringVar(&app.flags.style, "style", "auto", "markdown style for plans and troubleshooting guides (auto, dark, light, notty, ascii)")
	pf.BoolVarP(&app.flags.verbose, "verbose", "v", false, "show the full error chain on failure")

	rootCmd.AddCommand(
		newBuildCommand(app),
		newPlanCommand(app),
		newScanCommand(app),
		newConfigCommand(app),
		newVersionCommand(app),
	)
	return rootCmd
}

// Execute runs the CLI and exits with the code derived from the error.
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd := NewRootCommand(app)

	err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
	)
	if err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// layerPath returns the layer file named by args, falling back to --config.
func (a *App) layerPath(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return a.flags.layerFile
}

func (a *App) logger() (*log.Logger, error) {
	logger, err := logging.New(a.stderr, logging.Options{
		Level:      a.flags.logLevel,
		Timestamps: a.flags.logTime,
		JSON:       a.flags.logJSON,
	})
	if err != nil {
		return nil, &ExitError{Code: ExitConfiguration, Err: err}
	}
	return logger, nil
}

// engine returns a buildah engine running through the injected runner, or
// through the process runner when none was injected.
func (a *App) engine(logger *log.Logger) *buildah.Engine {
	r := a.Runner
	if r == nil {
		r = runner.New(runner.WithLogger(logger.WithPrefix("runner")))
	}
	return buildah.New(r, buildah.WithBinary(a.flags.buildah), buildah.WithLogger(logger.WithPrefix("buildah")))
}

// publisher returns the injected publisher, or one sharing engine that packs
// squashfs bundles with the --mksquashfs executable.
func (a *App) publisher(engine *buildah.Engine, logger *log.Logger) layer.Publisher {
	if a.Publisher != nil {
		return a.Publisher
	}
	return publish.New(engine, publish.WithLogger(logger), publish.WithMksquashfs(a.flags.squashfs))
}

// fail prints the details fang does not show for err (suggestions, the
// error chain in verbose mode and the troubleshooting guide) and converts it
// to an ExitError. fang prints the error message itself.
func (a *App) fail(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	var ae *issue.ActionableError
	if errors.As(err, &ae) && (ae.HasSuggestions() || a.flags.verbose) {
		fmt.Fprintln(a.stderr, formatErrorForDisplay(err, a.flags.verbose))
	}
	if is := issueFor(err); is != nil {
		if rendered, renderErr := is.Render(a.flags.style); renderErr == nil {
			fmt.Fprint(a.stderr, rendered)
		}
	}
	return &ExitError{Code: exitCodeFor(err), Err: err}
}

// formatErrorForDisplay formats an error for user display, using the
// ActionableError layout when available.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
