// SPDX-License-Identifier: MPL-2.0

package layer

import (
	"fmt"
	"strings"

	"github.com/openchami/image-builder/internal/installer"
	"github.com/openchami/image-builder/internal/pkgmgr"
	"github.com/openchami/image-builder/pkg/layerdef"
)

// PlannedStep is one step a build would run, without running it.
type PlannedStep struct {
	Step  installer.Step
	Items []string
	// Skipped explains why the step does nothing for this spec.
	Skipped string
}

// Plan lists the steps Build would run for spec, in order.
func Plan(spec *layerdef.BuildSpec) ([]PlannedStep, error) {
	create := PlannedStep{Step: StepCreate, Items: []string{fmt.Sprintf("from %s", spec.Parent)}}

	var steps []PlannedStep
	switch spec.LayerType {
	case layerdef.LayerTypeAnsible:
		steps = []PlannedStep{create, planned(StepPlaybooks, spec.Ansible.Playbooks)}
	case layerdef.LayerTypeBase:
		manager, err := pkgmgr.For(spec.PackageManager)
		if err != nil {
			return nil, &ConfigurationError{Reason: "unsupported package manager", Err: err}
		}
		repos := make([]string, len(spec.Repos))
		for i, r := range spec.Repos {
			repos[i] = manager.RepoDir + "/" + r.FileName()
		}
		modules := make([]string, len(spec.Modules))
		for i, m := range spec.Modules {
			modules[i] = m.Action + " " + strings.Join(m.Modules, " ")
		}
		copies := make([]string, len(spec.CopyFiles))
		for i, f := range spec.CopyFiles {
			copies[i] = f.Src + " -> " + f.Dest
		}
		commands := make([]string, len(spec.Commands))
		for i, c := range spec.Commands {
			commands[i] = c.Cmd
		}

		groups := planned(installer.StepPackageGroups, spec.PackageGroups)
		mods := planned(installer.StepModules, modules)
		if !manager.SupportsGroups && len(spec.PackageGroups) > 0 {
			groups.Skipped = fmt.Sprintf("%s does not support package groups", manager.Kind)
		}
		if !manager.SupportsModules && len(spec.Modules) > 0 {
			mods.Skipped = fmt.Sprintf("%s does not support modules", manager.Kind)
		}

		steps = []PlannedStep{
			create,
			{Step: StepMount},
			planned(installer.StepRepos, repos),
			groups,
			planned(installer.StepPackages, spec.Packages),
			mods,
			planned(installer.StepRemovePackages, spec.RemovePackages),
			planned(installer.StepCopyFiles, copies),
			planned(installer.StepCommands, commands),
		}
		if scanEnabled(spec.Scap) {
			steps = append(steps, planned(StepScan, scanItems(spec.Scap)))
		}
	default:
		return nil, &ConfigurationError{Reason: "unsupported layer type", Err: &layerdef.InvalidLayerTypeError{Value: spec.LayerType}}
	}

	return append(steps, planned(StepPublish, publishItems(spec.Name, spec.Publish))), nil
}

func planned(s installer.Step, items []string) PlannedStep {
	p := PlannedStep{Step: s, Items: items}
	if len(items) == 0 {
		p.Skipped = "nothing to do"
	}
	return p
}

func scanItems(s layerdef.ScapSpec) []string {
	var items []string
	if s.Install {
		items = append(items, "install scan tools")
	}
	if s.OvalEval {
		items = append(items, "oval eval")
	}
	if s.Benchmark {
		items = append(items, "xccdf benchmark")
	}
	return items
}

func publishItems(layer string, p layerdef.PublishSpec) []string {
	var items []string
	tags := p.EffectiveTags()
	if p.Local {
		items = append(items, "local: "+refs(layer, tags))
	}
	if p.S3 != nil {
		items = append(items, fmt.Sprintf("s3://%s/%s (%s)", p.S3.Bucket, p.S3.Prefix, p.S3.Format.OrDefault()))
	}
	if p.Registry != nil {
		items = append(items, "registry: "+strings.TrimSuffix(p.Registry.Endpoint, "/")+"/"+refs(layer, tags))
	}
	return items
}

func refs(layer string, tags []string) string {
	return layer + ":" + strings.Join(tags, ",")
}
