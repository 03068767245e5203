// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/openchami/image-builder/internal/runner"
)

type (
	// Matcher selects the invocations a FakeResponse applies to.
	Matcher func(argv []string) bool

	// FakeResponse is the scripted outcome of a matched invocation.
	FakeResponse struct {
		Stdout   []string
		Stderr   []string
		ExitCode int
		Err      error
		// Times limits how often the response is used. Zero means unlimited.
		Times int
		// Do is called with the argv before the response is delivered, for
		// tests that inspect files referenced by the invocation.
		Do func(argv []string)
	}

	// FakeRunner is a runner.Runner that records every argv and answers from a
	// script instead of spawning processes. Unmatched invocations succeed
	// silently.
	FakeRunner struct {
		mu     sync.Mutex
		calls  [][]string
		script []scripted
	}

	scripted struct {
		match Matcher
		resp  FakeResponse
		used  int
	}
)

// NewFakeRunner creates an empty FakeRunner.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{}
}

// On registers resp for invocations accepted by match. Earlier registrations
// win over later ones while they have uses left.
func (f *FakeRunner) On(match Matcher, resp FakeResponse) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = append(f.script, scripted{match: match, resp: resp})
	return f
}

// Run implements runner.Runner.
func (f *FakeRunner) Run(ctx context.Context, argv []string, stdout, stderr runner.LineHandler) (int, error) {
	f.mu.Lock()
	f.calls = append(f.calls, slices.Clone(argv))
	resp := f.lookup(argv)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return -1, fmt.Errorf("%s: %w: %w", argv[0], runner.ErrInterrupted, err)
	}
	if resp.Do != nil {
		resp.Do(argv)
	}
	if resp.Err != nil {
		return -1, resp.Err
	}
	for _, line := range resp.Stdout {
		if stdout != nil {
			stdout(line)
		}
	}
	for _, line := range resp.Stderr {
		if stderr != nil {
			stderr(line)
		}
	}
	return resp.ExitCode, nil
}

// lookup must be called with mu held.
func (f *FakeRunner) lookup(argv []string) FakeResponse {
	for i := range f.script {
		s := &f.script[i]
		if s.resp.Times > 0 && s.used >= s.resp.Times {
			continue
		}
		if s.match(argv) {
			s.used++
			return s.resp
		}
	}
	return FakeResponse{}
}

// Calls returns a copy of every recorded argv in call order.
func (f *FakeRunner) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = slices.Clone(c)
	}
	return out
}

// CallsMatching returns the recorded argv accepted by match.
func (f *FakeRunner) CallsMatching(match Matcher) [][]string {
	var out [][]string
	for _, c := range f.Calls() {
		if match(c) {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many recorded invocations match.
func (f *FakeRunner) Count(match Matcher) int {
	return len(f.CallsMatching(match))
}

// Commands renders every recorded argv as a space-joined string.
func (f *FakeRunner) Commands() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = strings.Join(c, " ")
	}
	return out
}

// Subcommand matches "<tool> <sub> ...", e.g. Subcommand("buildah", "rm").
func Subcommand(tool, sub string) Matcher {
	return func(argv []string) bool {
		return len(argv) > 1 && argv[0] == tool && argv[1] == sub
	}
}

// ArgsContain matches invocations whose argv contains every given argument.
func ArgsContain(args ...string) Matcher {
	return func(argv []string) bool {
		for _, a := range args {
			if !slices.Contains(argv, a) {
				return false
			}
		}
		return true
	}
}

// CommandContains matches invocations whose space-joined argv contains s.
func CommandContains(s string) Matcher {
	return func(argv []string) bool {
		return strings.Contains(strings.Join(argv, " "), s)
	}
}

// All matches when every matcher does.
func All(matchers ...Matcher) Matcher {
	return func(argv []string) bool {
		for _, m := range matchers {
			if !m(argv) {
				return false
			}
		}
		return true
	}
}

// Any matches every invocation.
func Any() Matcher {
	return func([]string) bool { return true }
}
