// SPDX-License-Identifier: MPL-2.0

// Package pkgmgr describes what each supported package manager can do and
// how its command lines are laid out.
//
// A Manager is resolved once per build with For. Callers ask it for argument
// vectors instead of branching on the package manager kind themselves.
package pkgmgr

import (
	"fmt"
	"path"

	"github.com/openchami/image-builder/pkg/layerdef"
)

const (
	// ExitBaseInstallFailed is the package manager exit code that aborts the build.
	ExitBaseInstallFailed = 104
	// ExitPostscriptFailed is the exit code for a failed RPM post-install
	// script. It is reported as a warning only.
	ExitPostscriptFailed = 107

	yumRepoDir    = "/etc/yum.repos.d"
	zypperRepoDir = "/etc/zypp/repos.d"
)

type (
	// Options carries the per-build settings every argument vector depends on.
	Options struct {
		GPGCheck bool
		Proxy    string
		// InstallRoot, when set, targets a mounted root filesystem from the
		// host instead of running inside the container. Used for scratch parents.
		InstallRoot string
	}

	// Manager is the capability descriptor of one package manager kind.
	Manager struct {
		Kind layerdef.PackageManagerKind
		// Binary is the executable name.
		Binary string
		// RepoDir is the absolute repo directory inside the image.
		RepoDir string
		// SupportsGroups reports whether package groups can be installed.
		SupportsGroups bool
		// SupportsModules reports whether module streams can be managed.
		SupportsModules bool

		layout layout
	}

	// layout holds the argument templates of one family of package managers.
	layout interface {
		install(m *Manager, pkgs []string, opts Options) []string
		groupInstall(m *Manager, groups []string, opts Options) []string
		module(m *Manager, action string, modules []string, opts Options) []string
		env(opts Options) []string
	}

	// UnsupportedError is returned by For for unknown kinds.
	UnsupportedError struct {
		Kind layerdef.PackageManagerKind
	}
)

// For returns the Manager for kind.
func For(kind layerdef.PackageManagerKind) (*Manager, error) {
	switch kind {
	case layerdef.PackageManagerDnf, layerdef.PackageManagerYum:
		return &Manager{
			Kind:            kind,
			Binary:          string(kind),
			RepoDir:         yumRepoDir,
			SupportsGroups:  true,
			SupportsModules: true,
			layout:          rpmLayout{},
		}, nil
	case layerdef.PackageManagerZypper:
		return &Manager{
			Kind:    kind,
			Binary:  string(kind),
			RepoDir: zypperRepoDir,
			layout:  zypperLayout{},
		}, nil
	default:
		return nil, &UnsupportedError{Kind: kind}
	}
}

// InstallArgs returns the argv installing pkgs.
func (m *Manager) InstallArgs(pkgs []string, opts Options) []string {
	return m.layout.install(m, pkgs, opts)
}

// GroupInstallArgs returns the argv installing package groups. It returns nil
// when the manager does not support groups.
func (m *Manager) GroupInstallArgs(groups []string, opts Options) []string {
	if !m.SupportsGroups {
		return nil
	}
	return m.layout.groupInstall(m, groups, opts)
}

// ModuleArgs returns the argv running one module action. It returns nil when
// the manager does not support modules.
func (m *Manager) ModuleArgs(action string, modules []string, opts Options) []string {
	if !m.SupportsModules {
		return nil
	}
	return m.layout.module(m, action, modules, opts)
}

// RemoveArgs returns the argv erasing one package without resolving dependents.
func (m *Manager) RemoveArgs(pkg string, opts Options) []string {
	argv := []string{"rpm"}
	if opts.InstallRoot != "" {
		argv = append(argv, "--root", opts.InstallRoot)
	}
	return append(argv, "-e", "--nodeps", pkg)
}

// ImportKeyArgs returns the argv importing a GPG key into the rpm database.
func (m *Manager) ImportKeyArgs(key string, opts Options) []string {
	argv := []string{"rpm", "--import", key}
	if opts.InstallRoot != "" {
		argv = append(argv, "--root", opts.InstallRoot)
	}
	return argv
}

// Env returns environment entries the package manager needs, such as proxies
// for managers without a proxy flag.
func (m *Manager) Env(opts Options) []string {
	return m.layout.env(opts)
}

// RepoPath returns the path of the repo file for alias, under root when set.
func (m *Manager) RepoPath(root, alias string) string {
	return path.Join("/", root, m.RepoDir, alias+".repo")
}

// Error implements the error interface.
func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported package manager %q", e.Kind)
}

// Unwrap returns layerdef.ErrInvalidPackageManager for errors.Is() compatibility.
func (e *UnsupportedError) Unwrap() error { return layerdef.ErrInvalidPackageManager }

// rpmLayout covers dnf and yum.
type rpmLayout struct{}

func (rpmLayout) prefix(m *Manager, opts Options) []string {
	argv := []string{m.Binary, "-y"}
	if opts.Proxy != "" {
		argv = append(argv, "--setopt=proxy="+opts.Proxy)
	}
	return argv
}

func (rpmLayout) suffix(m *Manager, opts Options) []string {
	if opts.InstallRoot == "" {
		return nil
	}
	return []string{
		"--installroot=" + opts.InstallRoot,
		"--setopt=reposdir=" + path.Join(opts.InstallRoot, m.RepoDir),
	}
}

func (l rpmLayout) build(m *Manager, verb []string, targets []string, opts Options) []string {
	argv := append(l.prefix(m, opts), verb...)
	if !opts.GPGCheck {
		argv = append(argv, "--nogpgcheck")
	}
	argv = append(argv, targets...)
	return append(argv, l.suffix(m, opts)...)
}

func (l rpmLayout) install(m *Manager, pkgs []string, opts Options) []string {
	return l.build(m, []string{"install"}, pkgs, opts)
}

func (l rpmLayout) groupInstall(m *Manager, groups []string, opts Options) []string {
	return l.build(m, []string{"groupinstall"}, groups, opts)
}

func (l rpmLayout) module(m *Manager, action string, modules []string, opts Options) []string {
	return l.build(m, []string{"module", action}, modules, opts)
}

func (rpmLayout) env(Options) []string { return nil }

// zypperLayout covers zypper. Global options must precede the command.
type zypperLayout struct{}

func (zypperLayout) install(m *Manager, pkgs []string, opts Options) []string {
	argv := []string{m.Binary, "-n"}
	if !opts.GPGCheck {
		argv = append(argv, "--no-gpg-checks")
	}
	if opts.InstallRoot != "" {
		argv = append(argv,
			"-D", path.Join(opts.InstallRoot, m.RepoDir),
			"-C", path.Join(opts.InstallRoot, "tmp"),
			"--installroot", opts.InstallRoot,
		)
	}
	argv = append(argv, "install", "--no-recommends", "-l")
	return append(argv, pkgs...)
}

func (zypperLayout) groupInstall(*Manager, []string, Options) []string { return nil }

func (zypperLayout) module(*Manager, string, []string, Options) []string { return nil }

func (zypperLayout) env(opts Options) []string {
	if opts.Proxy == "" {
		return nil
	}
	return []string{"http_proxy=" + opts.Proxy, "https_proxy=" + opts.Proxy}
}
