// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/openchami/image-builder/internal/buildah"
	"github.com/openchami/image-builder/internal/logging"
	"github.com/openchami/image-builder/internal/pkgmgr"
	"github.com/openchami/image-builder/pkg/layerdef"
)

type (
	// Option configures an Installer.
	Option func(*Installer)

	// Installer applies layer steps to one working container.
	Installer struct {
		engine    *buildah.Engine
		container *buildah.Container
		manager   *pkgmgr.Manager
		opts      pkgmgr.Options
		logger    *log.Logger
		fs        afero.Fs
		tempDir   string
	}
)

// New creates an Installer for container, using manager for package steps.
func New(engine *buildah.Engine, container *buildah.Container, manager *pkgmgr.Manager, opts ...Option) *Installer {
	i := &Installer{
		engine:    engine,
		container: container,
		manager:   manager,
		logger:    log.Default(),
		fs:        afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// WithLogger sets the installer logger.
func WithLogger(logger *log.Logger) Option {
	return func(i *Installer) {
		i.logger = logger
	}
}

// WithPackageOptions sets gpgcheck, proxy and install root for package steps.
func WithPackageOptions(opts pkgmgr.Options) Option {
	return func(i *Installer) {
		i.opts = opts
	}
}

// WithFs sets the host filesystem used for repo files.
func WithFs(fs afero.Fs) Option {
	return func(i *Installer) {
		i.fs = fs
	}
}

// WithTempDir sets the host directory for temporary repo files.
func WithTempDir(dir string) Option {
	return func(i *Installer) {
		i.tempDir = dir
	}
}

// InstallRepos writes one <alias>.repo file per repo into destDir inside the
// container. When an install root is configured the files are written
// straight into the mounted root filesystem. With gpgcheck enabled, repo GPG
// keys are imported once every file is in place.
func (i *Installer) InstallRepos(ctx context.Context, repos []layerdef.Repo, destDir string) error {
	if len(repos) == 0 {
		i.logger.Info("no repos to install")
		return nil
	}

	for _, r := range repos {
		content := r.FileContent(i.opts.GPGCheck)
		var err error
		if i.opts.InstallRoot != "" {
			err = i.writeRepoToRoot(r, content, destDir)
		} else {
			err = i.copyRepoIntoContainer(ctx, r, content, destDir)
		}
		if err != nil {
			return err
		}
		i.logger.Info("installed repo", "alias", r.Alias, "path", path.Join(destDir, r.FileName()))
	}

	if !i.opts.GPGCheck {
		return nil
	}
	for _, r := range repos {
		if r.GPG == "" {
			continue
		}
		code, err := i.runPackageTool(ctx, i.manager.ImportKeyArgs(r.GPG, i.opts))
		if err != nil {
			return fmt.Errorf("%s: import key for %s: %w", StepRepos, r.Alias, err)
		}
		if code != 0 {
			return &StepError{Step: StepRepos, Target: r.Alias, ExitCode: code, Reason: "gpg key import failed"}
		}
	}
	return nil
}

func (i *Installer) writeRepoToRoot(r layerdef.Repo, content, destDir string) error {
	dir := path.Join(i.opts.InstallRoot, destDir)
	if err := i.fs.MkdirAll(dir, 0o755); err != nil {
		return &StepError{Step: StepRepos, Target: r.Alias, Reason: "create repo directory", Err: err}
	}
	if err := afero.WriteFile(i.fs, path.Join(dir, r.FileName()), []byte(content), 0o644); err != nil {
		return &StepError{Step: StepRepos, Target: r.Alias, Reason: "write repo file", Err: err}
	}
	return nil
}

func (i *Installer) copyRepoIntoContainer(ctx context.Context, r layerdef.Repo, content, destDir string) error {
	tmp, err := afero.TempFile(i.fs, i.tempDir, "image-builder-"+r.Alias+"-*.repo")
	if err != nil {
		return &StepError{Step: StepRepos, Target: r.Alias, Reason: "create temporary repo file", Err: err}
	}
	tmpPath := tmp.Name()
	defer func() {
		if rmErr := i.fs.Remove(tmpPath); rmErr != nil {
			i.logger.Warn("failed to remove temporary repo file", "path", tmpPath, "err", rmErr)
		}
	}()
	_, err = tmp.WriteString(content)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return &StepError{Step: StepRepos, Target: r.Alias, Reason: "write temporary repo file", Err: err}
	}

	warn := logging.HandlerFor(i.logger, layerdef.LogLevelWarn, "step", StepRepos)
	code, err := i.engine.Run(ctx, i.container, []string{"mkdir", "-p", destDir}, buildah.RunOptions{}, nil, warn)
	if err != nil {
		return fmt.Errorf("%s: create %s: %w", StepRepos, destDir, err)
	}
	if code != 0 {
		return &StepError{Step: StepRepos, Target: r.Alias, ExitCode: code, Reason: "failed to create parent dir " + destDir}
	}

	dest := path.Join(destDir, r.FileName())
	code, err = i.engine.Copy(ctx, i.container, tmpPath, dest, nil, warn)
	if err != nil {
		return fmt.Errorf("%s: copy %s: %w", StepRepos, dest, err)
	}
	if code != 0 {
		return &StepError{Step: StepRepos, Target: r.Alias, ExitCode: code, Reason: "failed to copy repo config to " + dest}
	}
	return nil
}

// InstallPackageGroups installs package groups. Managers without group
// support log a warning and do nothing.
func (i *Installer) InstallPackageGroups(ctx context.Context, groups []string) error {
	if len(groups) == 0 {
		i.logger.Info("no package groups to install")
		return nil
	}
	if !i.manager.SupportsGroups {
		i.logger.Warn("package groups are not supported, skipping", "manager", i.manager.Kind, "groups", groups)
		return nil
	}
	i.logger.Info("installing package groups", "groups", strings.Join(groups, ", "))
	return i.installStep(ctx, StepPackageGroups, "", i.manager.GroupInstallArgs(groups, i.opts))
}

// InstallPackages installs packages.
func (i *Installer) InstallPackages(ctx context.Context, packages []string) error {
	if len(packages) == 0 {
		i.logger.Info("no packages to install")
		return nil
	}
	i.logger.Info("installing packages", "count", len(packages), "packages", strings.Join(packages, " "))
	return i.installStep(ctx, StepPackages, "", i.manager.InstallArgs(packages, i.opts))
}

// InstallModules runs each module action in order. Managers without module
// support log a warning and do nothing.
func (i *Installer) InstallModules(ctx context.Context, modules []layerdef.ModuleCommand) error {
	if len(modules) == 0 {
		i.logger.Info("no module commands to run")
		return nil
	}
	if !i.manager.SupportsModules {
		i.logger.Warn("modules are not supported, skipping", "manager", i.manager.Kind)
		return nil
	}
	for _, m := range modules {
		i.logger.Info("running module command", "action", m.Action, "modules", strings.Join(m.Modules, " "))
		if err := i.installStep(ctx, StepModules, m.Action, i.manager.ModuleArgs(m.Action, m.Modules, i.opts)); err != nil {
			return err
		}
	}
	return nil
}

// RemovePackages erases packages one at a time without dependency checks.
func (i *Installer) RemovePackages(ctx context.Context, packages []string) error {
	if len(packages) == 0 {
		i.logger.Info("no packages to remove")
		return nil
	}
	for _, p := range packages {
		i.logger.Info("removing package", "package", p)
		if err := i.installStep(ctx, StepRemovePackages, p, i.manager.RemoveArgs(p, i.opts)); err != nil {
			return err
		}
	}
	return nil
}

// CopyFiles copies each host file into the container.
func (i *Installer) CopyFiles(ctx context.Context, files []layerdef.CopyFile) error {
	if len(files) == 0 {
		i.logger.Info("no files to copy")
		return nil
	}
	for _, f := range files {
		i.logger.Info("copying file", "src", f.Src, "dest", f.Dest)
		stderr := logging.HandlerFor(i.logger, layerdef.LogLevelWarn, "step", StepCopyFiles)
		code, err := i.engine.Copy(ctx, i.container, f.Src, f.Dest, f.Args(), stderr)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", StepCopyFiles, f.Src, err)
		}
		if code != 0 {
			return &StepError{Step: StepCopyFiles, Target: f.Src + " -> " + f.Dest, ExitCode: code, Reason: "copy failed"}
		}
	}
	return nil
}

// RunCommands runs each command with bash -c inside the container. Stderr is
// logged at the command's log level.
func (i *Installer) RunCommands(ctx context.Context, commands []layerdef.Command) error {
	if len(commands) == 0 {
		i.logger.Info("no commands to run")
		return nil
	}
	for _, c := range commands {
		i.logger.Info("running command", "cmd", c.Cmd)
		stdout := logging.HandlerFor(i.logger, layerdef.LogLevelInfo, "step", StepCommands)
		stderr := logging.HandlerFor(i.logger, c.LogLevel, "step", StepCommands)
		code, err := i.engine.Run(ctx, i.container, []string{"bash", "-c", c.Cmd}, buildah.RunOptions{Args: c.ExtraArgs}, stdout, stderr)
		if err != nil {
			return fmt.Errorf("%s: %q: %w", StepCommands, c.Cmd, err)
		}
		if code != 0 {
			return &StepError{Step: StepCommands, Target: c.Cmd, ExitCode: code, Reason: "command failed"}
		}
	}
	return nil
}

// installStep runs a package manager argv and applies the exit code policy.
func (i *Installer) installStep(ctx context.Context, step Step, target string, argv []string) error {
	code, err := i.runPackageTool(ctx, argv)
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	switch code {
	case 0:
		return nil
	case pkgmgr.ExitPostscriptFailed:
		i.logger.Warn("one or more RPM postscripts failed to run", "step", step, "exit_code", code)
		return nil
	case pkgmgr.ExitBaseInstallFailed:
		return &StepError{Step: step, Target: target, ExitCode: code, Reason: "base install failed"}
	default:
		return &StepError{Step: step, Target: target, ExitCode: code, Reason: "package manager failed"}
	}
}

// runPackageTool runs argv inside the container, or on the host against the
// install root when one is configured.
func (i *Installer) runPackageTool(ctx context.Context, argv []string) (int, error) {
	stdout := logging.HandlerFor(i.logger, layerdef.LogLevelInfo, "tool", argv[0])
	stderr := logging.HandlerFor(i.logger, layerdef.LogLevelWarn, "tool", argv[0])
	env := i.manager.Env(i.opts)

	if i.opts.InstallRoot != "" {
		if len(env) > 0 {
			argv = append(append([]string{"env"}, env...), argv...)
		}
		return i.engine.Runner().Run(ctx, argv, stdout, stderr)
	}
	return i.engine.Run(ctx, i.container, argv, buildah.RunOptions{Env: env}, stdout, stderr)
}
