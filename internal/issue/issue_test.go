// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestId_Constants(t *testing.T) {
	t.Parallel()

	if LayerFileNotFoundId != 1 {
		t.Errorf("LayerFileNotFoundId = %d, want 1", LayerFileNotFoundId)
	}
	if len(issues) != int(BuildInterruptedId) {
		t.Errorf("catalogue has %d issues, want one per id (%d)", len(issues), BuildInterruptedId)
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	for id := LayerFileNotFoundId; id <= BuildInterruptedId; id++ {
		is := Get(id)
		if is == nil {
			t.Errorf("Get(%d) returned nil", id)
			continue
		}
		if is.Id() != id {
			t.Errorf("Get(%d).Id() = %d", id, is.Id())
		}
	}

	if Get(0) != nil || Get(BuildInterruptedId+1) != nil {
		t.Error("Get() should return nil for unknown ids")
	}
}

func TestValues(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != len(issues) {
		t.Fatalf("Values() returned %d issues, want %d", len(values), len(issues))
	}
	for i := 1; i < len(values); i++ {
		if values[i-1].Id() >= values[i].Id() {
			t.Errorf("Values() not ordered by id at %d", i)
		}
	}
}

func TestAllIssuesHaveTitle(t *testing.T) {
	t.Parallel()

	for _, is := range Values() {
		msg := strings.TrimSpace(string(is.MarkdownMsg()))
		if !strings.HasPrefix(msg, "# ") {
			t.Errorf("issue %d should start with a Markdown title, got %q", is.Id(), msg)
		}
	}
}

func TestIssue_LinksAreCloned(t *testing.T) {
	t.Parallel()

	is := Get(BuildahNotFoundId)
	links := is.ExtLinks()
	if len(links) == 0 {
		t.Fatal("expected external links")
	}
	links[0] = "modified"
	if is.ExtLinks()[0] == "modified" {
		t.Error("ExtLinks() should return a clone")
	}
}

//nolint:paralleltest // replaces the package-level renderer
func TestIssue_Render(t *testing.T) {
	originalRender := render
	defer func() { render = originalRender }()

	var gotStyle string
	render = func(in, stylePath string) (string, error) {
		gotStyle = stylePath
		return in, nil
	}

	rendered, err := Get(BuildahNotFoundId).Render("notty")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if gotStyle != "notty" {
		t.Errorf("style = %q, want notty", gotStyle)
	}
	if !strings.Contains(rendered, "buildah is not available") {
		t.Error("rendered output should contain the title")
	}
	if !strings.Contains(rendered, "## See also") || !strings.Contains(rendered, "<https://buildah.io>") {
		t.Errorf("rendered output should list links, got:\n%s", rendered)
	}

	rendered, err = Get(CommandFailedId).Render("notty")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(rendered, "See also") {
		t.Error("issues without links should not render a See also section")
	}
}

//nolint:paralleltest // uses the real glamour renderer
func TestAllIssuesAreRenderable(t *testing.T) {
	for _, is := range Values() {
		out, err := is.Render("notty")
		if err != nil {
			t.Errorf("issue %d: Render() error = %v", is.Id(), err)
			continue
		}
		if strings.TrimSpace(out) == "" {
			t.Errorf("issue %d rendered empty output", is.Id())
		}
	}
}
