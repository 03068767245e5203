// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

type Id int

const (
	LayerFileNotFoundId Id = iota + 1
	LayerFileInvalidId
	BuildahNotFoundId
	BuildahTooOldId
	PackageInstallFailedId
	CommandFailedId
	PlaybookFailedId
	ScanConfigInvalidId
	PublishFailedId
	BuildInterruptedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue through glamour with the named style ("dark",
// "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range append(i.DocLinks(), i.extLinks...) {
			md += "- <" + string(link) + ">\n"
		}
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	layerFileNotFoundIssue = &Issue{
		id: LayerFileNotFoundId,
		mdMsg: `
# Layer definition not found!

image-builder needs a YAML layer definition describing the image to build.

## Things you can try:
- Pass the file explicitly:
~~~
$ image-builder build --config compute-base.yaml
~~~
- Or run from the directory holding ` + "`config.yaml`" + `.`,
	}

	layerFileInvalidIssue = &Issue{
		id: LayerFileInvalidId,
		mdMsg: `
# The layer definition is invalid!

The file was read, but at least one key has an unexpected type or value.
The error above names the offending key, for example ` + "`cmds[2].cmd`" + `.

## Things you can try:
- Check the spelling of every key; unknown keys are rejected
- ` + "`package_manager`" + ` must be one of dnf, yum or zypper
- Every entry of ` + "`cmds`" + ` needs a ` + "`cmd`" + `
- Inspect the resolved values:
~~~
$ image-builder config show --config compute-base.yaml
~~~`,
		extLinks: []HttpLink{"https://github.com/OpenCHAMI/image-builder"},
	}

	buildahNotFoundIssue = &Issue{
		id: BuildahNotFoundId,
		mdMsg: `
# buildah is not available!

Every layer is built by driving ` + "`buildah`" + `, but it could not be executed.

## Things you can try:
- Install buildah with your distribution's package manager
- Make sure it is on your PATH:
~~~
$ buildah version
~~~`,
		extLinks: []HttpLink{"https://buildah.io"},
	}

	buildahTooOldIssue = &Issue{
		id: BuildahTooOldId,
		mdMsg: `
# buildah is too old!

The installed buildah does not support the options image-builder relies on.

## Things you can try:
- Upgrade buildah to 1.20.0 or newer`,
		extLinks: []HttpLink{"https://github.com/containers/buildah/releases"},
	}

	packageInstallFailedIssue = &Issue{
		id: PackageInstallFailedId,
		mdMsg: `
# Package installation failed!

The package manager inside the working container exited with an error.
The working container has been removed.

## Things you can try:
- Verify each repo URL is reachable from the build host
- Set ` + "`proxy`" + ` when the build host needs one
- Check package and group names against the configured repos
- Disable ` + "`gpgcheck`" + ` only for repos you trust`,
	}

	commandFailedIssue = &Issue{
		id: CommandFailedId,
		mdMsg: `
# A build command failed!

One of the ` + "`cmds`" + ` or ` + "`copyfiles`" + ` entries returned a non-zero exit code.
The working container has been removed.

## Things you can try:
- Raise the entry's ` + "`loglevel`" + ` to INFO to see its output
- Run the command in a throwaway container from the same parent image`,
	}

	playbookFailedIssue = &Issue{
		id: PlaybookFailedId,
		mdMsg: `
# The ansible playbook failed!

## Things you can try:
- Increase ` + "`ansible_verbosity`" + ` (up to 4)
- Check that the playbook targets the configured groups
- Make sure the buildah connection plugin is installed:
~~~
$ ansible-doc -t connection containers.podman.buildah
~~~`,
	}

	scanConfigInvalidIssue = &Issue{
		id: ScanConfigInvalidId,
		mdMsg: `
# Compliance scan settings are incomplete!

## Things you can try:
- Set ` + "`scap_vars.profile`" + ` and ` + "`scap_vars.benchmark_path`" + ` for benchmark scans
- Set ` + "`scap_vars.oval_url`" + ` for OVAL evaluations`,
	}

	publishFailedIssue = &Issue{
		id: PublishFailedId,
		mdMsg: `
# Publishing failed!

The image was built but could not be delivered to every destination.
Destinations after the failing one were skipped.

## Things you can try:
- For S3, check the endpoint, bucket and the IMAGE_BUILDER_S3_ACCESS_KEY / IMAGE_BUILDER_S3_SECRET_KEY variables
- For registries, check credentials and pass push options with --registry-opts-push
- Image names and tags must be lower case for registries`,
	}

	buildInterruptedIssue = &Issue{
		id: BuildInterruptedId,
		mdMsg: `
# Build interrupted!

The build was cancelled before it completed. The working container has been
removed; nothing was published.`,
	}

	issues = map[Id]*Issue{
		layerFileNotFoundIssue.Id():    layerFileNotFoundIssue,
		layerFileInvalidIssue.Id():     layerFileInvalidIssue,
		buildahNotFoundIssue.Id():      buildahNotFoundIssue,
		buildahTooOldIssue.Id():        buildahTooOldIssue,
		packageInstallFailedIssue.Id(): packageInstallFailedIssue,
		commandFailedIssue.Id():        commandFailedIssue,
		playbookFailedIssue.Id():       playbookFailedIssue,
		scanConfigInvalidIssue.Id():    scanConfigInvalidIssue,
		publishFailedIssue.Id():        publishFailedIssue,
		buildInterruptedIssue.Id():     buildInterruptedIssue,
	}
)

// Values returns every catalogue issue ordered by id.
func Values() []*Issue {
	values := slices.Collect(maps.Values(issues))
	slices.SortFunc(values, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return values
}

func Get(id Id) *Issue {
	return issues[id]
}
