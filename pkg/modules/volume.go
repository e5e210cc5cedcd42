package modules

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
	"gitlab.com/tinyland/lab/pulsebar/pkg/script"
)

// VolumeConfig holds the volume module's options.
type VolumeConfig struct {
	// Sink is a PulseAudio/PipeWire sink name.
	Sink string `mapstructure:"sink"`
	// Step is the scroll step in percent.
	Step int `mapstructure:"step"`
	// MaxVolume caps scroll-up, in percent.
	MaxVolume int `mapstructure:"max_volume"`
}

func DefaultVolumeConfig() VolumeConfig {
	return VolumeConfig{Sink: "@DEFAULT_SINK@", Step: 5, MaxVolume: 100}
}

// VolumePayload is the volume module's update payload.
type VolumePayload struct {
	Percent int
	Muted   bool
	Sink    string
}

type volume struct {
	cfg  VolumeConfig
	deps Deps
}

func newVolume(def config.ModuleDef, deps Deps) (Instance, error) {
	cfg := DefaultVolumeConfig()
	if err := def.DecodeOptions(&cfg); err != nil {
		return Instance{}, err
	}
	if cfg.Step <= 0 {
		cfg.Step = 5
	}
	if deps.Runner == nil {
		return Instance{}, errors.New("volume: no runner wired")
	}
	v := &volume{cfg: cfg, deps: deps}
	return Instance{Controller: v, Widget: WidgetFunc(renderVolume)}, nil
}

func (v *volume) Kind() string { return "volume" }

// Run queries the sink once, then tracks changes through pactl
// subscribe. A failed first query means no sound server is reachable
// and the module goes unavailable for good.
func (v *volume) Run(ctx context.Context, emit func(Update)) error {
	if err := v.query(ctx, emit); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		v.deps.logger().Error("volume module unavailable", "err", err)
		emit(Update{Kind: "volume", State: StateUnavailable, Err: err})
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	lines, err := v.deps.Runner.Watch(ctx, script.Command{Cmd: "pactl subscribe"})
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
			if !strings.Contains(line, "sink") && !strings.Contains(line, "server") {
				continue
			}
			if err := v.query(ctx, emit); err != nil && ctx.Err() == nil {
				v.deps.logger().Warn("volume query failed", "err", err)
			}
		}
	}
}

func (v *volume) query(ctx context.Context, emit func(Update)) error {
	out, err := v.deps.Runner.RunOnce(ctx, script.Command{Cmd: "pactl get-sink-volume " + v.cfg.Sink})
	if err != nil {
		return err
	}
	percent, err := parseVolume(out.Stdout)
	if err != nil {
		return err
	}
	out, err = v.deps.Runner.RunOnce(ctx, script.Command{Cmd: "pactl get-sink-mute " + v.cfg.Sink})
	if err != nil {
		return err
	}
	emit(Update{Kind: "volume", State: StateUpdating, Payload: VolumePayload{
		Percent: percent,
		Muted:   parseMute(out.Stdout),
		Sink:    v.cfg.Sink,
	}})
	return nil
}

// Click toggles mute; scrolling nudges the level by the configured
// step, clamped at max_volume.
func (v *volume) Click(ctx context.Context, btn Button) error {
	var cmd string
	switch btn {
	case ButtonLeft:
		cmd = fmt.Sprintf("pactl set-sink-mute %s toggle", v.cfg.Sink)
	case ScrollUp:
		cmd = fmt.Sprintf("pactl set-sink-volume -l %d%% %s +%d%%",
			v.cfg.MaxVolume, v.cfg.Sink, v.cfg.Step)
	case ScrollDown:
		cmd = fmt.Sprintf("pactl set-sink-volume %s -%d%%", v.cfg.Sink, v.cfg.Step)
	default:
		return nil
	}
	_, err := v.deps.Runner.RunOnce(ctx, script.Command{Cmd: cmd})
	return err
}

// parseVolume pulls the first percentage out of pactl get-sink-volume
// output, e.g. "Volume: front-left: 39321 /  60% / -13.31 dB, ...".
func parseVolume(out string) (int, error) {
	for _, field := range strings.Fields(out) {
		if !strings.HasSuffix(field, "%") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(field, "%"))
		if err != nil {
			continue
		}
		return n, nil
	}
	return 0, fmt.Errorf("no percentage in %q", out)
}

// parseMute reads pactl get-sink-mute output ("Mute: yes").
func parseMute(out string) bool {
	_, after, found := strings.Cut(out, "Mute:")
	return found && strings.TrimSpace(after) == "yes"
}

func renderVolume(u Update) Cell {
	p, ok := u.Payload.(VolumePayload)
	if !ok {
		return defaultRender(u)
	}
	if p.Muted {
		return Cell{Text: "vol muted", Class: "muted"}
	}
	return Cell{Text: fmt.Sprintf("vol %d%%", p.Percent)}
}
