// Package config loads and validates the bar configuration. Three
// serialization syntaxes (TOML, YAML, JSON) decode through a pluggable
// decoder registry into one normalized tree; everything downstream of
// this package consumes only the normalized form.
package config

import (
	"errors"
	"fmt"
	"os"
)

// Root is the normalized bar configuration.
type Root struct {
	// Position is the screen edge the bar docks to: "top" or "bottom".
	Position string `mapstructure:"position"`
	// Height is a sizing hint in pixels; 0 lets the surface decide.
	Height int `mapstructure:"height"`
	// Margin is the gap between the bar and the screen edge.
	Margin int `mapstructure:"margin"`
	// Separator is drawn between widgets on surfaces without per-widget
	// borders.
	Separator string `mapstructure:"separator"`
	// IconTheme names the icon set modules may reference.
	IconTheme string `mapstructure:"icon_theme"`
	// Autohide starts the bar hidden; visibility is driven over IPC.
	Autohide bool `mapstructure:"autohide"`
	// PopupGap is the distance in cells between bar and popup.
	PopupGap int `mapstructure:"popup_gap"`
	// Theme names the stylesheet loaded from theme.toml.
	Theme string `mapstructure:"theme"`

	Start  []ModuleDef `mapstructure:"start"`
	Center []ModuleDef `mapstructure:"center"`
	End    []ModuleDef `mapstructure:"end"`

	// Monitors holds per-output overrides keyed by output name.
	Monitors map[string]MonitorConfig `mapstructure:"monitors"`
}

// MonitorConfig overrides parts of the root configuration for one
// output. Nil fields inherit; a present-but-empty module list replaces
// the region with nothing.
type MonitorConfig struct {
	Position *string      `mapstructure:"position"`
	Height   *int         `mapstructure:"height"`
	Margin   *int         `mapstructure:"margin"`
	Autohide *bool        `mapstructure:"autohide"`
	Start    *[]ModuleDef `mapstructure:"start"`
	Center   *[]ModuleDef `mapstructure:"center"`
	End      *[]ModuleDef `mapstructure:"end"`
}

// DefaultRoot returns the configuration used when no config file
// exists: a top bar with a clock on the right.
func DefaultRoot() *Root {
	return &Root{
		Position:  "top",
		Separator: " | ",
		PopupGap:  1,
		Theme:     "default",
		End: []ModuleDef{
			{Type: "clock"},
		},
	}
}

// Validate checks structural constraints that must hold before any
// module is instantiated. It reports every problem it finds, not just
// the first.
func (r *Root) Validate() error {
	var errs []error
	switch r.Position {
	case "top", "bottom":
	case "":
		r.Position = "top"
	default:
		errs = append(errs, fmt.Errorf("position: %q is not top or bottom", r.Position))
	}
	if r.Height < 0 {
		errs = append(errs, fmt.Errorf("height: %d is negative", r.Height))
	}
	if r.Margin < 0 {
		errs = append(errs, fmt.Errorf("margin: %d is negative", r.Margin))
	}
	for region, defs := range map[string][]ModuleDef{
		"start": r.Start, "center": r.Center, "end": r.End,
	} {
		for i, def := range defs {
			if def.Type == "" {
				errs = append(errs, fmt.Errorf("%s[%d]: module has no type", region, i))
			}
		}
	}
	for name, mon := range r.Monitors {
		if mon.Position != nil {
			switch *mon.Position {
			case "top", "bottom":
			default:
				errs = append(errs, fmt.Errorf("monitors.%s.position: %q is not top or bottom", name, *mon.Position))
			}
		}
	}
	return errors.Join(errs...)
}

// ForMonitor resolves the configuration for one output: per-monitor
// overrides are applied, then modules constrained to other outputs are
// filtered from each region. An empty monitor name keeps only
// unconstrained modules.
func (r *Root) ForMonitor(monitor string) *Root {
	out := *r
	if mon, ok := r.Monitors[monitor]; ok && monitor != "" {
		if mon.Position != nil {
			out.Position = *mon.Position
		}
		if mon.Height != nil {
			out.Height = *mon.Height
		}
		if mon.Margin != nil {
			out.Margin = *mon.Margin
		}
		if mon.Autohide != nil {
			out.Autohide = *mon.Autohide
		}
		if mon.Start != nil {
			out.Start = *mon.Start
		}
		if mon.Center != nil {
			out.Center = *mon.Center
		}
		if mon.End != nil {
			out.End = *mon.End
		}
	}
	out.Start = filterMonitor(out.Start, monitor)
	out.Center = filterMonitor(out.Center, monitor)
	out.End = filterMonitor(out.End, monitor)
	out.Monitors = nil
	return &out
}

func filterMonitor(defs []ModuleDef, monitor string) []ModuleDef {
	var kept []ModuleDef
	for _, def := range defs {
		if def.visibleOn(monitor) {
			kept = append(kept, def)
		}
	}
	return kept
}

// applyEnvOverrides checks environment variables and overrides config
// values.
func applyEnvOverrides(r *Root) {
	if v := os.Getenv("PULSEBAR_THEME"); v != "" {
		r.Theme = v
	}
	if v := os.Getenv("PULSEBAR_POSITION"); v != "" {
		r.Position = v
	}
}
