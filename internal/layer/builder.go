// SPDX-License-Identifier: MPL-2.0

package layer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/openchami/image-builder/internal/buildah"
	"github.com/openchami/image-builder/internal/installer"
	"github.com/openchami/image-builder/internal/oscap"
	"github.com/openchami/image-builder/internal/pkgmgr"
	"github.com/openchami/image-builder/internal/publish"
	"github.com/openchami/image-builder/internal/rootfs"
	"github.com/openchami/image-builder/pkg/layerdef"
)

// Steps the builder runs itself, in addition to the installer steps.
const (
	StepCreate    installer.Step = "create"
	StepMount     installer.Step = "mount"
	StepScan      installer.Step = "scan"
	StepPlaybooks installer.Step = "playbooks"
	StepPublish   installer.Step = "publish"
)

// containerTimeFormat suffixes the working container name (YYYYmmddHHMMSS).
const containerTimeFormat = "20060102150405"

type (
	// Publisher hands a finished container to its destinations and removes
	// transient state.
	Publisher interface {
		Publish(ctx context.Context, req publish.Request) (*publish.Result, error)
	}

	// Result describes a finished build.
	Result struct {
		ContainerID   string
		ContainerName string
		Publish       *publish.Result
	}

	// Option configures a Builder.
	Option func(*Builder)

	// Builder runs one layer build. A Builder is single-use.
	Builder struct {
		spec      *layerdef.BuildSpec
		engine    *buildah.Engine
		publisher Publisher
		fs        afero.Fs
		logger    *log.Logger
		now       func() time.Time
		tempDir   string
		playbook  string

		mu    sync.Mutex
		state State
	}

	// step is one named group of installer operations.
	step struct {
		name installer.Step
		run  func(context.Context) error
	}
)

// New creates a Builder for spec. Without WithPublisher the builder uses a
// publish.Publisher sharing its engine, filesystem and logger.
func New(spec *layerdef.BuildSpec, engine *buildah.Engine, opts ...Option) *Builder {
	b := &Builder{
		spec:     spec,
		engine:   engine,
		fs:       afero.NewOsFs(),
		logger:   log.Default(),
		now:      time.Now,
		playbook: DefaultAnsiblePlaybook,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.publisher == nil {
		b.publisher = publish.New(engine, publish.WithLogger(b.logger), publish.WithFs(b.fs), publish.WithTempDir(b.tempDir))
	}
	return b
}

// WithLogger sets the builder logger.
func WithLogger(logger *log.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithPublisher replaces the publisher.
func WithPublisher(p Publisher) Option {
	return func(b *Builder) {
		b.publisher = p
	}
}

// WithFs sets the host filesystem used for mounted root filesystems and
// temporary files.
func WithFs(fsys afero.Fs) Option {
	return func(b *Builder) {
		b.fs = fsys
	}
}

// WithClock sets the time source for container names.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		b.now = now
	}
}

// WithTempDir sets the host directory for temporary files.
func WithTempDir(dir string) Option {
	return func(b *Builder) {
		b.tempDir = dir
	}
}

// State returns the current build state.
func (b *Builder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Builder) setState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
}

// ContainerName returns the working container name for a build started now.
func (b *Builder) ContainerName() string {
	return b.spec.Name + b.now().Format(containerTimeFormat)
}

// Build runs the build for the spec's layer type and publishes the result.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	b.logger.Info("starting layer build", "name", b.spec.Name, "type", b.spec.LayerType, "parent", b.spec.Parent)
	if !b.spec.Publish.HasDestination() {
		b.logger.Warn("no publish destination configured, the layer will be discarded", "name", b.spec.Name)
	}

	var (
		res *Result
		err error
	)
	switch b.spec.LayerType {
	case layerdef.LayerTypeBase:
		res, err = b.buildBase(ctx)
	case layerdef.LayerTypeAnsible:
		res, err = b.buildAnsible(ctx)
	default:
		b.setState(StateFailed)
		return nil, &ConfigurationError{Reason: "unsupported layer type", Err: &layerdef.InvalidLayerTypeError{Value: b.spec.LayerType}}
	}
	if err != nil {
		b.logger.Error("layer build failed", "name", b.spec.Name, "state", b.State(), "err", err)
		return nil, err
	}
	b.logger.Info("layer build completed", "name", b.spec.Name, "container", res.ContainerName)
	return res, nil
}

func (b *Builder) buildBase(ctx context.Context) (*Result, error) {
	manager, err := pkgmgr.For(b.spec.PackageManager)
	if err != nil {
		b.setState(StateFailed)
		return nil, &ConfigurationError{Reason: "unsupported package manager", Err: err}
	}
	if err := checkScanConfig(b.spec.Scap); err != nil {
		b.setState(StateFailed)
		return nil, err
	}

	c, err := b.create(ctx)
	if err != nil {
		return nil, err
	}

	mount, err := b.engine.Mount(ctx, c)
	if err != nil {
		return nil, b.fail(ctx, c, StepMount, err)
	}

	pkgOpts := pkgmgr.Options{GPGCheck: b.spec.GPGCheck, Proxy: b.spec.Proxy}
	if b.spec.IsScratch() {
		// Nothing is installed in an empty image yet, so the package manager
		// runs on the host against the mounted root.
		pkgOpts.InstallRoot = mount
	}
	inst := installer.New(b.engine, c, manager,
		installer.WithLogger(b.logger.WithPrefix("installer")),
		installer.WithPackageOptions(pkgOpts),
		installer.WithFs(b.fs),
		installer.WithTempDir(b.tempDir),
	)

	groups := []struct {
		done  State
		steps []step
	}{
		{StateReposInstalled, []step{
			{installer.StepRepos, func(ctx context.Context) error { return inst.InstallRepos(ctx, b.spec.Repos, manager.RepoDir) }},
		}},
		{StatePackagesInstalled, []step{
			{installer.StepPackageGroups, func(ctx context.Context) error { return inst.InstallPackageGroups(ctx, b.spec.PackageGroups) }},
			{installer.StepPackages, func(ctx context.Context) error { return inst.InstallPackages(ctx, b.spec.Packages) }},
			{installer.StepModules, func(ctx context.Context) error { return inst.InstallModules(ctx, b.spec.Modules) }},
			{installer.StepRemovePackages, func(ctx context.Context) error { return inst.RemovePackages(ctx, b.spec.RemovePackages) }},
		}},
		{StateFilesCopied, []step{
			{installer.StepCopyFiles, func(ctx context.Context) error { return inst.CopyFiles(ctx, b.spec.CopyFiles) }},
		}},
		{StateCommandsRun, []step{
			{installer.StepCommands, func(ctx context.Context) error { return inst.RunCommands(ctx, b.spec.Commands) }},
		}},
	}
	for _, g := range groups {
		for _, s := range g.steps {
			if err := b.runStep(ctx, c, s); err != nil {
				return nil, err
			}
		}
		b.setState(g.done)
	}

	b.removeResolvConfLink(mount)

	if scanEnabled(b.spec.Scap) {
		scanner := oscap.New(inst, b.logger.WithPrefix("oscap"))
		if err := b.runStep(ctx, c, step{StepScan, func(ctx context.Context) error { return scanner.Run(ctx, b.spec.Scap) }}); err != nil {
			return nil, err
		}
	}

	return b.publish(ctx, c)
}

// create starts the working container. Nothing exists to remove when it fails.
func (b *Builder) create(ctx context.Context) (*buildah.Container, error) {
	if err := ctx.Err(); err != nil {
		b.setState(StateFailed)
		return nil, classify(StepCreate, err)
	}
	c, err := b.engine.From(ctx, buildah.FromOptions{
		Parent:   b.spec.Parent,
		Name:     b.ContainerName(),
		PullOpts: b.spec.PullOpts,
	})
	if err != nil {
		b.setState(StateFailed)
		return nil, classify(StepCreate, err)
	}
	b.setState(StateCreated)
	return c, nil
}

// runStep runs s unless ctx is already done. A failure removes c.
func (b *Builder) runStep(ctx context.Context, c *buildah.Container, s step) error {
	if err := ctx.Err(); err != nil {
		return b.fail(ctx, c, s.name, err)
	}
	b.logger.Debug("running step", "step", s.name)
	if err := s.run(ctx); err != nil {
		return b.fail(ctx, c, s.name, err)
	}
	return nil
}

// fail marks the build failed and removes the working container.
func (b *Builder) fail(ctx context.Context, c *buildah.Container, name installer.Step, err error) error {
	b.setState(StateFailed)
	b.logger.Error("step failed, removing working container", "step", name, "container", c.ID, "err", err)
	_ = c.Remove(ctx)
	return classify(name, err)
}

// removeResolvConfLink drops a symlinked /etc/resolv.conf from the image.
// Problems are logged, never returned.
func (b *Builder) removeResolvConfLink(mount string) {
	removed, err := rootfs.RemoveResolvConfLink(b.fs, mount)
	switch {
	case err != nil:
		b.logger.Warn("failed to remove resolv.conf link", "mount", mount, "err", err)
	case removed:
		b.logger.Info("removed resolv.conf link, it breaks name resolution in running containers")
	}
}

func (b *Builder) publish(ctx context.Context, c *buildah.Container) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, b.fail(ctx, c, StepPublish, err)
	}
	pres, err := b.publisher.Publish(ctx, publish.Request{Container: c, Layer: b.spec.Name, Spec: b.spec.Publish})
	if err != nil {
		return nil, b.fail(ctx, c, StepPublish, err)
	}
	// The publisher removes the container as part of its cleanup; this only
	// reaches buildah when a custom publisher did not.
	_ = c.Remove(ctx)
	b.setState(StatePublished)
	return &Result{ContainerID: c.ID, ContainerName: c.Name, Publish: pres}, nil
}

func scanEnabled(s layerdef.ScapSpec) bool {
	return s.Install || s.Benchmark || s.OvalEval
}

// checkScanConfig rejects scan settings that would only fail after the
// packages are installed.
func checkScanConfig(s layerdef.ScapSpec) error {
	if !scanEnabled(s) {
		return nil
	}
	cfg, err := oscap.ConfigFrom(s.Vars)
	if err != nil {
		return &ConfigurationError{Reason: "invalid scan settings", Err: err}
	}
	if s.OvalEval {
		if _, err := oscap.OvalCommands(cfg); err != nil {
			return &ConfigurationError{Reason: "invalid scan settings", Err: err}
		}
	}
	if s.Benchmark {
		if _, err := oscap.BenchmarkCommands(cfg); err != nil {
			return &ConfigurationError{Reason: "invalid scan settings", Err: err}
		}
	}
	return nil
}

// String implements fmt.Stringer for log output.
func (r *Result) String() string {
	return fmt.Sprintf("%s (%s)", r.ContainerName, r.ContainerID)
}
