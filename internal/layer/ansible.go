// SPDX-License-Identifier: MPL-2.0

package layer

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/afero"

	"github.com/openchami/image-builder/internal/logging"
	"github.com/openchami/image-builder/pkg/layerdef"
)

// DefaultAnsiblePlaybook is the playbook runner looked up on PATH.
const DefaultAnsiblePlaybook = "ansible-playbook"

// ansibleConnection is the connection plugin that drives a buildah working
// container without an SSH daemon.
const ansibleConnection = "buildah"

// WithAnsiblePlaybook overrides the ansible-playbook executable.
func WithAnsiblePlaybook(path string) Option {
	return func(b *Builder) {
		if path != "" {
			b.playbook = path
		}
	}
}

// Inventory renders an INI inventory placing host in every group, or
// ungrouped when groups is empty.
func Inventory(host string, groups []string) string {
	hostLine := host + " ansible_connection=" + ansibleConnection + "\n"
	if len(groups) == 0 {
		return hostLine
	}
	var sb strings.Builder
	for _, g := range groups {
		fmt.Fprintf(&sb, "[%s]\n%s\n", g, hostLine)
	}
	return sb.String()
}

// PlaybookArgs returns the ansible-playbook argv for one playbook against
// host. Extra inventories follow the generated one so their group_vars apply.
func PlaybookArgs(bin, generatedInventory, host, playbook string, spec layerdef.AnsibleSpec) []string {
	argv := []string{bin, "-i", generatedInventory}
	for _, inv := range spec.Inventory {
		argv = append(argv, "-i", strings.TrimSuffix(inv, "/"))
	}
	argv = append(argv, "--limit", host)

	keys := make([]string, 0, len(spec.Vars))
	for k := range spec.Vars {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		argv = append(argv, "-e", k+"="+spec.Vars[k])
	}
	if spec.Verbosity > 0 {
		argv = append(argv, "-"+strings.Repeat("v", spec.Verbosity))
	}
	return append(argv, playbook)
}

func (b *Builder) buildAnsible(ctx context.Context) (*Result, error) {
	c, err := b.create(ctx)
	if err != nil {
		return nil, err
	}

	err = b.runStep(ctx, c, step{StepPlaybooks, func(ctx context.Context) error {
		return b.runPlaybooks(ctx, c.ID)
	}})
	if err != nil {
		return nil, err
	}
	b.setState(StateCommandsRun)

	return b.publish(ctx, c)
}

func (b *Builder) runPlaybooks(ctx context.Context, host string) error {
	spec := b.spec.Ansible
	f, err := afero.TempFile(b.fs, b.tempDir, "image-builder-inventory-*.ini")
	if err != nil {
		return fmt.Errorf("create inventory: %w", err)
	}
	inventory := f.Name()
	defer func() {
		if err := b.fs.Remove(inventory); err != nil {
			b.logger.Warn("failed to remove temporary inventory", "path", inventory, "err", err)
		}
	}()
	_, err = f.WriteString(Inventory(host, spec.Groups))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write inventory: %w", err)
	}

	logger := b.logger.WithPrefix("ansible")
	for _, pb := range spec.Playbooks {
		logger.Info("running playbook", "playbook", pb, "container", host)
		argv := PlaybookArgs(b.playbook, inventory, host, pb, spec)
		code, err := b.engine.Runner().Run(ctx, argv,
			logging.HandlerFor(logger, layerdef.LogLevelInfo, "playbook", pb),
			logging.HandlerFor(logger, layerdef.LogLevelWarn, "playbook", pb),
		)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", StepPlaybooks, pb, err)
		}
		if code != 0 {
			return &StepError{Step: StepPlaybooks, Target: pb, ExitCode: code, Reason: "playbook failed"}
		}
	}
	return nil
}
