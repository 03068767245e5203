// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/openchami/image-builder/internal/runner"
)

func TestFakeRunner_Script(t *testing.T) {
	t.Parallel()

	f := NewFakeRunner().
		On(Subcommand("buildah", "from"), FakeResponse{Stdout: []string{"cid-1"}, Times: 1}).
		On(Subcommand("buildah", "from"), FakeResponse{ExitCode: 125}).
		On(ArgsContain("install", "kernel"), FakeResponse{ExitCode: 107, Stderr: []string{"scriptlet failed"}})

	ctx := context.Background()
	var out []string
	code, err := f.Run(ctx, []string{"buildah", "from", "scratch"}, func(l string) { out = append(out, l) }, nil)
	if err != nil || code != 0 || !slices.Equal(out, []string{"cid-1"}) {
		t.Fatalf("first from: code=%d err=%v out=%v", code, err, out)
	}
	if code, _ := f.Run(ctx, []string{"buildah", "from", "scratch"}, nil, nil); code != 125 {
		t.Errorf("second from: code = %d, want 125", code)
	}

	var errOut []string
	code, _ = f.Run(ctx, []string{"dnf", "install", "-y", "kernel"}, nil, func(l string) { errOut = append(errOut, l) })
	if code != 107 || !slices.Equal(errOut, []string{"scriptlet failed"}) {
		t.Errorf("install: code=%d stderr=%v", code, errOut)
	}

	if code, err := f.Run(ctx, []string{"buildah", "rm", "cid-1"}, nil, nil); code != 0 || err != nil {
		t.Errorf("unmatched call: code=%d err=%v", code, err)
	}
	if got := f.Count(Subcommand("buildah", "from")); got != 2 {
		t.Errorf("Count(from) = %d, want 2", got)
	}
	if got := len(f.Calls()); got != 4 {
		t.Errorf("len(Calls()) = %d, want 4", got)
	}
}

func TestFakeRunner_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFakeRunner().Run(ctx, []string{"buildah", "run"}, nil, nil)
	if !errors.Is(err, runner.ErrInterrupted) {
		t.Errorf("err = %v, want ErrInterrupted", err)
	}
}
