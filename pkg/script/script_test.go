package script

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunOnceCapturesTrimmedStdout(t *testing.T) {
	r := NewRunner(nil)
	out, err := r.RunOnce(context.Background(), New("echo '  hello  '"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Stdout != "hello" {
		t.Errorf("stdout = %q, want trimmed hello", out.Stdout)
	}
	if out.ExitCode != 0 {
		t.Errorf("exit code = %d", out.ExitCode)
	}
}

func TestRunOncePipesWork(t *testing.T) {
	r := NewRunner(nil)
	out, err := r.RunOnce(context.Background(), New("printf 'a\nb\nc\n' | wc -l"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Stdout != "3" {
		t.Errorf("pipeline output = %q, want 3", out.Stdout)
	}
}

func TestRunOnceNonZeroExit(t *testing.T) {
	r := NewRunner(nil)
	out, err := r.RunOnce(context.Background(), New("echo oops >&2; exit 3"))
	if err == nil {
		t.Fatal("expected error for exit 3")
	}
	if out.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", out.ExitCode)
	}
	if out.Stderr != "oops" {
		t.Errorf("stderr = %q", out.Stderr)
	}
}

func TestRunOnceCancelKillsProcess(t *testing.T) {
	r := NewRunner(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.RunOnce(ctx, New("sleep 30"))
	if err == nil {
		t.Fatal("expected context error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation took %v", elapsed)
	}
}

func TestArgvMode(t *testing.T) {
	r := NewRunner(nil)
	out, err := r.RunOnce(context.Background(), Command{Cmd: `printf %s "a b"`})
	if err != nil {
		t.Fatal(err)
	}
	if out.Stdout != "a b" {
		t.Errorf("quoted argv output = %q, want \"a b\"", out.Stdout)
	}
}

func TestArgvModeRejectsEmpty(t *testing.T) {
	r := NewRunner(nil)
	if _, err := r.RunOnce(context.Background(), Command{Cmd: "   "}); err == nil {
		t.Error("expected error for empty argv command")
	}
	if _, err := r.Watch(context.Background(), Command{Cmd: ""}); err == nil {
		t.Error("expected error for empty watch command")
	}
}

func TestWatchStreamsLines(t *testing.T) {
	r := NewRunner(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lines, err := r.Watch(ctx, New("echo one; echo two; sleep 30"))
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	timeout := time.After(10 * time.Second)
	for len(got) < 2 {
		select {
		case l := <-lines:
			got = append(got, l)
		case <-timeout:
			t.Fatalf("got %v before timeout", got)
		}
	}
	if got[0] != "one" || got[1] != "two" {
		t.Errorf("lines = %v", got)
	}
}

// A short-lived watch command must be restarted, observable as repeated
// emissions.
func TestWatchRespawnsAfterExit(t *testing.T) {
	r := NewRunner(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lines, err := r.Watch(ctx, New("echo tick"))
	if err != nil {
		t.Fatal(err)
	}
	seen := 0
	timeout := time.After(15 * time.Second)
	for seen < 3 {
		select {
		case l := <-lines:
			if l != "tick" {
				t.Fatalf("unexpected line %q", l)
			}
			seen++
		case <-timeout:
			t.Fatalf("only %d emissions before timeout", seen)
		}
	}
}

func TestWatchCancelClosesChannel(t *testing.T) {
	r := NewRunner(nil)
	ctx, cancel := context.WithCancel(context.Background())

	lines, err := r.Watch(ctx, New("sleep 30"))
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.After(10 * time.Second)
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}

func TestExecDetaches(t *testing.T) {
	r := NewRunner(nil)
	if err := r.Exec(New("true")); err != nil {
		t.Fatal(err)
	}
	if err := r.Exec(Command{Cmd: "/nonexistent/binary"}); err == nil {
		t.Error("expected start error for missing binary")
	}
}

func TestCommandArgvSplit(t *testing.T) {
	c := Command{Cmd: `swaymsg -t get_tree`}
	argv, err := c.argv()
	if err != nil {
		t.Fatal(err)
	}
	if len(argv) != 3 || argv[0] != "swaymsg" {
		t.Errorf("argv = %v", argv)
	}

	sh := New("echo hi")
	argv, err = sh.argv()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(strings.Join(argv, " "), "sh -c") {
		t.Errorf("shell argv = %v", argv)
	}
}
