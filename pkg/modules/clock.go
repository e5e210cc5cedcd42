package modules

import (
	"context"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
)

// ClockConfig holds the clock module's options.
type ClockConfig struct {
	// Format is a Go time layout.
	Format string `mapstructure:"format"`
	// TooltipFormat renders the hover tooltip, empty for none.
	TooltipFormat string `mapstructure:"format_tooltip"`
}

func DefaultClockConfig() ClockConfig {
	return ClockConfig{Format: "Mon 2 Jan 15:04"}
}

// ClockPayload is the clock's update payload.
type ClockPayload struct {
	Time    time.Time
	Text    string
	Tooltip string
}

type clock struct {
	cfg      ClockConfig
	interval time.Duration
}

func newClock(def config.ModuleDef, deps Deps) (Instance, error) {
	cfg := DefaultClockConfig()
	if err := def.DecodeOptions(&cfg); err != nil {
		return Instance{}, err
	}
	interval := def.Interval.Duration
	if interval <= 0 {
		interval = time.Second
	}
	c := &clock{cfg: cfg, interval: interval}
	return Instance{Controller: c, Widget: WidgetFunc(renderClock)}, nil
}

func (c *clock) Kind() string { return "clock" }

// Run emits on interval boundaries so a 1s clock flips exactly on the
// second and a 60s clock exactly on the minute.
func (c *clock) Run(ctx context.Context, emit func(Update)) error {
	for {
		now := time.Now()
		p := ClockPayload{Time: now, Text: now.Format(c.cfg.Format)}
		if c.cfg.TooltipFormat != "" {
			p.Tooltip = now.Format(c.cfg.TooltipFormat)
		}
		emit(Update{Kind: "clock", State: StateUpdating, Payload: p})

		next := now.Truncate(c.interval).Add(c.interval)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Until(next)):
		}
	}
}

func renderClock(u Update) Cell {
	if p, ok := u.Payload.(ClockPayload); ok {
		return Cell{Text: p.Text}
	}
	return defaultRender(u)
}
