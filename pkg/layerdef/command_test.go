// SPDX-License-Identifier: MPL-2.0

package layerdef

import (
	"errors"
	"slices"
	"testing"
)

func TestCommand_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cmd     Command
		wantErr bool
	}{
		{"simple", Command{Cmd: "echo hello"}, false},
		{"pipeline", Command{Cmd: "curl -s http://x | tar -xz -C /opt"}, false},
		{"with loglevel", Command{Cmd: "dracut -f", LogLevel: "info"}, false},
		{"empty", Command{Cmd: ""}, true},
		{"blank", Command{Cmd: "  \n"}, true},
		{"unterminated quote", Command{Cmd: `echo "oops`}, true},
		{"unrecognized loglevel", Command{Cmd: "true", LogLevel: "NOTICE"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cmd.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidCommand) {
					t.Errorf("error should wrap ErrInvalidCommand, got: %v", err)
				}
				var cmdErr *InvalidCommandError
				if !errors.As(err, &cmdErr) {
					t.Errorf("error should be *InvalidCommandError, got: %T", err)
				}
			}
		})
	}
}

func TestLogLevel_Normalized(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   LogLevel
		want LogLevel
	}{
		{"", LogLevelError},
		{"info", LogLevelInfo},
		{"WARN", LogLevelWarn},
		{"warning", LogLevelWarn},
		{"debug", LogLevelDebug},
		{"ERROR", LogLevelError},
		{"nonsense", LogLevelError},
	}
	for _, tt := range tests {
		if got := tt.in.Normalized(); got != tt.want {
			t.Errorf("LogLevel(%q).Normalized() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCopyFile_Args(t *testing.T) {
	t.Parallel()

	f := CopyFile{Src: "a", Dest: "/b", Opts: []string{"--chown root:root", "--chmod=0644"}}
	want := []string{"--chown", "root:root", "--chmod=0644"}
	if got := f.Args(); !slices.Equal(got, want) {
		t.Errorf("Args() = %v, want %v", got, want)
	}
	if got := (CopyFile{Src: "a", Dest: "b"}).Args(); len(got) != 0 {
		t.Errorf("Args() with no opts = %v, want empty", got)
	}
}

func TestCopyFile_Validate(t *testing.T) {
	t.Parallel()

	if err := (CopyFile{Src: "a", Dest: "/b"}).Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
	if err := (CopyFile{Dest: "/b"}).Validate(); !errors.Is(err, ErrInvalidCopyFile) {
		t.Errorf("missing src: got %v, want ErrInvalidCopyFile", err)
	}
	if err := (CopyFile{Src: "a"}).Validate(); !errors.Is(err, ErrInvalidCopyFile) {
		t.Errorf("missing dest: got %v, want ErrInvalidCopyFile", err)
	}
}

func TestModuleCommandsFromMap(t *testing.T) {
	t.Parallel()

	got := ModuleCommandsFromMap(map[string][]string{
		"install": {"nodejs:18"},
		"enable":  {"nodejs:18", "ruby:3.1"},
	})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Action != "enable" || got[1].Action != "install" {
		t.Errorf("actions = %q, %q; want enable, install", got[0].Action, got[1].Action)
	}
	if !slices.Equal(got[0].Modules, []string{"nodejs:18", "ruby:3.1"}) {
		t.Errorf("enable modules = %v", got[0].Modules)
	}
	if ModuleCommandsFromMap(nil) != nil {
		t.Error("nil map should produce nil")
	}
}

func TestModuleCommand_Validate(t *testing.T) {
	t.Parallel()

	if err := (ModuleCommand{Action: "enable", Modules: []string{"x"}}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (ModuleCommand{Action: "en able", Modules: []string{"x"}}).Validate(); !errors.Is(err, ErrInvalidModuleCommand) {
		t.Errorf("got %v, want ErrInvalidModuleCommand", err)
	}
	if err := (ModuleCommand{Action: "enable"}).Validate(); !errors.Is(err, ErrInvalidModuleCommand) {
		t.Errorf("got %v, want ErrInvalidModuleCommand", err)
	}
}
