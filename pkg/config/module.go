package config

// ModuleDef describes one module occurrence in a bar region. The common
// options below are shared by every kind; everything else the config
// file carries for the module lands in Options and is decoded by the
// module itself.
type ModuleDef struct {
	// Type selects the module implementation: clock, label, script,
	// custom, focused, workspaces, sysinfo, volume, music, upower,
	// tray, network.
	Type string `mapstructure:"type"`
	// Name addresses this instance from IPC and popups. Optional; an
	// unnamed instance gets a generated ID.
	Name string `mapstructure:"name"`
	// Class is a free-form styling hook passed through to the surface.
	Class string `mapstructure:"class"`
	// ShowIf is a dynamic-string predicate; the widget is hidden while
	// it renders to "", "0" or "false".
	ShowIf string `mapstructure:"show_if"`
	// Tooltip is a dynamic string rendered on hover where the surface
	// supports it.
	Tooltip string `mapstructure:"tooltip"`
	// Interval overrides the kind's default refresh interval.
	Interval Duration `mapstructure:"interval"`

	OnClick       string `mapstructure:"on_click"`
	OnClickMiddle string `mapstructure:"on_click_middle"`
	OnClickRight  string `mapstructure:"on_click_right"`
	OnScrollUp    string `mapstructure:"on_scroll_up"`
	OnScrollDown  string `mapstructure:"on_scroll_down"`

	// Monitors restricts the module to the named outputs. Empty means
	// every output.
	Monitors []string `mapstructure:"monitors"`
	// Disabled skips the module without removing it from the file.
	Disabled bool `mapstructure:"disabled"`

	// Options collects the kind-specific keys.
	Options map[string]any `mapstructure:",remain"`
}

func (d ModuleDef) visibleOn(monitor string) bool {
	if d.Disabled {
		return false
	}
	if len(d.Monitors) == 0 {
		return true
	}
	for _, m := range d.Monitors {
		if m == monitor {
			return true
		}
	}
	return false
}

// DecodeOptions decodes the kind-specific option keys into out, which
// must be a pointer to the kind's option struct. Unknown keys are
// ignored; type mismatches are reported.
func (d ModuleDef) DecodeOptions(out any) error {
	return decodeMap(d.Options, out)
}
