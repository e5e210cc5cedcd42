package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"gitlab.com/tinyland/lab/pulsebar/pkg/ipc"
)

// execute runs the CLI with args against a fresh command tree and
// returns its combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// startStubServer serves a canned command set on a throwaway socket.
func startStubServer(t *testing.T) string {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "bar.sock")
	mux := ipc.NewMux()
	mux.HandleFunc("ping", func(ctx context.Context, req ipc.Request) ipc.Response {
		return ipc.OK("pong")
	})
	mux.HandleFunc("var.get", func(ctx context.Context, req ipc.Request) ipc.Response {
		if req.Arg("name") == "answer" {
			return ipc.OK("42")
		}
		return ipc.OK(nil)
	})
	mux.HandleFunc("var.set", func(ctx context.Context, req ipc.Request) ipc.Response {
		if req.Arg("name") == "" {
			return ipc.Errorf("missing name")
		}
		return ipc.OK(nil)
	})
	mux.HandleFunc("bar.status", func(ctx context.Context, req ipc.Request) ipc.Response {
		return ipc.OK(map[string]any{"hidden": false})
	})
	srv := ipc.NewServer(sock, mux, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := srv.Start(); err != nil {
		t.Fatalf("server: %v", err)
	}
	t.Cleanup(srv.Stop)
	return sock
}

func TestCommandTree(t *testing.T) {
	root := NewRootCmd()
	want := []string{"run", "ping", "var", "bar", "popup", "themes", "version"}
	have := make(map[string]bool)
	for _, c := range root.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("missing command %q", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "pulsebar ") {
		t.Errorf("output = %q", out)
	}
}

func TestThemesCommand(t *testing.T) {
	out, err := execute(t, "themes")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"default", "nord", "gruvbox"} {
		if !strings.Contains(out, name) {
			t.Errorf("themes output missing %q:\n%s", name, out)
		}
	}
}

func TestPingAgainstServer(t *testing.T) {
	sock := startStubServer(t)
	out, err := execute(t, "--socket", sock, "ping")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "pong" {
		t.Errorf("ping output = %q", out)
	}
}

func TestVarGetPrintsValue(t *testing.T) {
	sock := startStubServer(t)
	out, err := execute(t, "--socket", sock, "var", "get", "answer")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "42" {
		t.Errorf("var get output = %q", out)
	}
}

func TestVarGetUnsetPrintsNothing(t *testing.T) {
	sock := startStubServer(t)
	out, err := execute(t, "--socket", sock, "var", "get", "missing")
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("unset var printed %q", out)
	}
}

func TestErrorResponseFailsCommand(t *testing.T) {
	sock := startStubServer(t)
	_, err := execute(t, "--socket", sock, "var", "set", "", "x")
	if err == nil {
		t.Fatal("error response did not fail the command")
	}
	if !strings.Contains(err.Error(), "missing name") {
		t.Errorf("err = %v", err)
	}
}

func TestStatusPrintsJSON(t *testing.T) {
	sock := startStubServer(t)
	out, err := execute(t, "--socket", sock, "bar", "status")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"hidden": false`) {
		t.Errorf("status output = %q", out)
	}
}

func TestNoServerFails(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "nothing.sock")
	_, err := execute(t, "--socket", sock, "ping")
	if err == nil {
		t.Fatal("expected connection error")
	}
}

func TestUnknownCommandFails(t *testing.T) {
	_, err := execute(t, "frobnicate")
	if err == nil {
		t.Fatal("unknown command accepted")
	}
}

func TestPrintData(t *testing.T) {
	cases := []struct {
		name string
		data any
		want string
	}{
		{"null", nil, ""},
		{"string", "hi", "hi\n"},
		{"object", map[string]int{"n": 1}, "{\n  \"n\": 1\n}\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := printData(&buf, tc.data); err != nil {
				t.Fatal(err)
			}
			if buf.String() != tc.want {
				t.Errorf("printData(%v) = %q, want %q", tc.data, buf.String(), tc.want)
			}
		})
	}
}
