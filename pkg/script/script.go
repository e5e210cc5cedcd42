// Package script runs the external commands behind script modules,
// dynamic-string placeholders and click handlers. Poll commands run to
// completion through RunOnce; watch commands stream stdout lines
// through Watch and are respawned when they exit. Every child gets its
// own process group so cancellation takes the whole pipeline down, not
// just the shell.
package script

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/shlex"
)

const (
	// respawnBase is the first delay before restarting an exited watch
	// command; it doubles per silent restart up to respawnCap and
	// resets once a process emits a line.
	respawnBase = 500 * time.Millisecond
	respawnCap  = 30 * time.Second

	// killGrace is how long a process group gets between SIGTERM and
	// SIGKILL.
	killGrace = 2 * time.Second
)

// Command is one external command.
type Command struct {
	Cmd string
	// Shell runs the command through `sh -c`, which is the default for
	// everything written in config files. When false the command is
	// split into argv words instead.
	Shell bool
}

// New returns a shell-mode command.
func New(cmd string) Command {
	return Command{Cmd: cmd, Shell: true}
}

func (c Command) argv() ([]string, error) {
	if c.Shell {
		return []string{"sh", "-c", c.Cmd}, nil
	}
	words, err := shlex.Split(c.Cmd)
	if err != nil {
		return nil, fmt.Errorf("split %q: %w", c.Cmd, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return words, nil
}

// Output is what a completed poll command produced.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes commands. It holds no per-command state; one runner
// is shared by every module.
type Runner struct {
	logger *slog.Logger
}

// NewRunner builds a runner. A nil logger discards diagnostics.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{logger: logger}
}

// RunOnce runs a command to completion and returns its trimmed output.
// A non-zero exit is an error; the Output still carries stderr and the
// exit code for diagnostics. Cancelling the context kills the process
// group.
func (r *Runner) RunOnce(ctx context.Context, c Command) (Output, error) {
	argv, err := c.argv()
	if err != nil {
		return Output{}, err
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return Output{}, fmt.Errorf("start %q: %w", c.Cmd, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		t := killGroup(cmd.Process.Pid)
		<-done
		t.Stop()
		return Output{ExitCode: -1}, ctx.Err()
	case err := <-done:
		out := Output{
			Stdout:   strings.TrimSpace(stdout.String()),
			Stderr:   strings.TrimSpace(stderr.String()),
			ExitCode: exitCode(err),
		}
		if err != nil {
			return out, fmt.Errorf("run %q: %w", c.Cmd, err)
		}
		return out, nil
	}
}

// Watch starts a long-lived command and streams its stdout lines. When
// the process exits it is respawned after a backoff; the channel closes
// only when the context is cancelled. The command must at least be
// parseable or Watch fails up front.
func (r *Runner) Watch(ctx context.Context, c Command) (<-chan string, error) {
	if _, err := c.argv(); err != nil {
		return nil, err
	}
	lines := make(chan string, 8)
	go r.watchLoop(ctx, c, lines)
	return lines, nil
}

func (r *Runner) watchLoop(ctx context.Context, c Command, lines chan<- string) {
	defer close(lines)
	delay := respawnBase
	failStreak := 0
	for {
		emitted, err := r.runStream(ctx, c, lines)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failStreak++
			if failStreak == 1 {
				r.logger.Error("watch command failed", "cmd", c.Cmd, "error", err)
			} else {
				r.logger.Debug("watch command still failing", "cmd", c.Cmd, "error", err)
			}
		} else {
			failStreak = 0
			r.logger.Debug("watch command exited, respawning", "cmd", c.Cmd, "delay", delay)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		if emitted {
			delay = respawnBase
		} else {
			delay *= 2
			if delay > respawnCap {
				delay = respawnCap
			}
		}
	}
}

// runStream runs one incarnation of a watch command, forwarding stdout
// lines and logging stderr. Returns whether any line was emitted.
func (r *Runner) runStream(ctx context.Context, c Command, lines chan<- string) (bool, error) {
	argv, err := c.argv()
	if err != nil {
		return false, err
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return false, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return false, err
	}
	if err := cmd.Start(); err != nil {
		return false, fmt.Errorf("start %q: %w", c.Cmd, err)
	}

	exited := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			t := killGroup(cmd.Process.Pid)
			<-exited
			t.Stop()
		case <-exited:
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			r.logger.Debug("script stderr", "cmd", c.Cmd, "line", sc.Text())
		}
	}()

	emitted := false
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		select {
		case lines <- sc.Text():
			emitted = true
		case <-ctx.Done():
		}
	}

	wg.Wait()
	werr := cmd.Wait()
	close(exited)
	if werr != nil && ctx.Err() == nil {
		r.logger.Debug("watch command exit status", "cmd", c.Cmd, "code", exitCode(werr))
	}
	return emitted, nil
}

// Exec starts a command without waiting for it, for click handlers. The
// child is reaped in the background and its output discarded.
func (r *Runner) Exec(c Command) error {
	argv, err := c.argv()
	if err != nil {
		return err
	}
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %q: %w", c.Cmd, err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			r.logger.Debug("spawned command exited", "cmd", c.Cmd, "error", err)
		}
	}()
	return nil
}

// killGroup terminates a process group, escalating to SIGKILL after the
// grace period. The returned timer should be stopped once the process
// is known to be gone.
func killGroup(pid int) *time.Timer {
	_ = syscall.Kill(-pid, syscall.SIGTERM)
	return time.AfterFunc(killGrace, func() {
		_ = syscall.Kill(-pid, syscall.SIGKILL)
	})
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}
