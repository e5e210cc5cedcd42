package modules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
	"gitlab.com/tinyland/lab/pulsebar/pkg/script"
)

// ScriptConfig holds the script module's options.
type ScriptConfig struct {
	Cmd string `mapstructure:"cmd"`
	// Mode is "poll" (run on an interval, show stdout) or "watch"
	// (keep the process running, show its latest line).
	Mode string `mapstructure:"mode"`
}

const defaultScriptInterval = 5 * time.Second

type scriptModule struct {
	cmd      script.Command
	mode     string
	interval time.Duration
	deps     Deps
}

func newScript(def config.ModuleDef, deps Deps) (Instance, error) {
	var cfg ScriptConfig
	if err := def.DecodeOptions(&cfg); err != nil {
		return Instance{}, err
	}
	if cfg.Cmd == "" {
		return Instance{}, errors.New("script: cmd option is required")
	}
	switch cfg.Mode {
	case "":
		cfg.Mode = "poll"
	case "poll", "watch":
	default:
		return Instance{}, fmt.Errorf("script: unknown mode %q", cfg.Mode)
	}
	if deps.Runner == nil {
		return Instance{}, errors.New("script: no runner wired")
	}
	interval := def.Interval.Duration
	if interval <= 0 {
		interval = defaultScriptInterval
	}
	m := &scriptModule{
		cmd:      script.New(cfg.Cmd),
		mode:     cfg.Mode,
		interval: interval,
		deps:     deps,
	}
	return Instance{Controller: m}, nil
}

func (m *scriptModule) Kind() string { return "script" }

func (m *scriptModule) Run(ctx context.Context, emit func(Update)) error {
	if m.mode == "watch" {
		return m.watch(ctx, emit)
	}
	return m.poll(ctx, emit)
}

// poll runs the command on the interval. A failing run keeps the
// previous output on screen.
func (m *scriptModule) poll(ctx context.Context, emit func(Update)) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		out, err := m.deps.Runner.RunOnce(ctx, m.cmd)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			m.deps.logger().Warn("script poll failed",
				"cmd", m.cmd.Cmd, "err", err)
		} else {
			emit(Update{Kind: "script", State: StateUpdating, Payload: out.Stdout})
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (m *scriptModule) watch(ctx context.Context, emit func(Update)) error {
	lines, err := m.deps.Runner.Watch(ctx, m.cmd)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			emit(Update{Kind: "script", State: StateUpdating, Payload: line})
		}
	}
}
