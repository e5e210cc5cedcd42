package theme

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/BurntSushi/toml"
)

// tomlTheme is the on-disk layout of a theme file.
type tomlTheme struct {
	Name    string            `toml:"name"`
	Bar     tomlBar           `toml:"bar"`
	Popup   tomlPopup         `toml:"popup"`
	Classes map[string]string `toml:"classes"`
}

type tomlBar struct {
	Background string `toml:"background"`
	Foreground string `toml:"foreground"`
	Dim        string `toml:"dim"`
	Accent     string `toml:"accent"`
	Urgent     string `toml:"urgent"`
	Separator  string `toml:"separator"`
}

type tomlPopup struct {
	Background string `toml:"background"`
	Foreground string `toml:"foreground"`
	Border     string `toml:"border"`
}

var hexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Parse decodes and validates a TOML theme definition. Popup colors
// default to their bar counterparts when omitted.
func Parse(data []byte) (Theme, error) {
	var tt tomlTheme
	if err := toml.Unmarshal(data, &tt); err != nil {
		return Theme{}, fmt.Errorf("parse TOML: %w", err)
	}

	t := Theme{
		Name:       tt.Name,
		Background: tt.Bar.Background,
		Foreground: tt.Bar.Foreground,
		Dim:        tt.Bar.Dim,
		Accent:     tt.Bar.Accent,
		Urgent:     tt.Bar.Urgent,
		Separator:  tt.Bar.Separator,

		PopupBackground: tt.Popup.Background,
		PopupForeground: tt.Popup.Foreground,
		PopupBorder:     tt.Popup.Border,

		Classes: tt.Classes,
	}
	if t.PopupBackground == "" {
		t.PopupBackground = t.Background
	}
	if t.PopupForeground == "" {
		t.PopupForeground = t.Foreground
	}
	if t.PopupBorder == "" {
		t.PopupBorder = t.Accent
	}

	if err := validate(t); err != nil {
		return Theme{}, err
	}
	return t, nil
}

// Encode serializes a theme back to TOML.
func Encode(t Theme) ([]byte, error) {
	tt := tomlTheme{
		Name: t.Name,
		Bar: tomlBar{
			Background: t.Background,
			Foreground: t.Foreground,
			Dim:        t.Dim,
			Accent:     t.Accent,
			Urgent:     t.Urgent,
			Separator:  t.Separator,
		},
		Popup: tomlPopup{
			Background: t.PopupBackground,
			Foreground: t.PopupForeground,
			Border:     t.PopupBorder,
		},
		Classes: t.Classes,
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(tt); err != nil {
		return nil, fmt.Errorf("encode TOML: %w", err)
	}
	return buf.Bytes(), nil
}

func validate(t Theme) error {
	if t.Name == "" {
		return fmt.Errorf("missing required field %q", "name")
	}
	required := map[string]string{
		"bar.background":   t.Background,
		"bar.foreground":   t.Foreground,
		"bar.dim":          t.Dim,
		"bar.accent":       t.Accent,
		"bar.urgent":       t.Urgent,
		"bar.separator":    t.Separator,
		"popup.background": t.PopupBackground,
		"popup.foreground": t.PopupForeground,
		"popup.border":     t.PopupBorder,
	}
	for field, value := range required {
		if value == "" {
			return fmt.Errorf("missing required field %q", field)
		}
		if !hexColorRegex.MatchString(value) {
			return fmt.Errorf("invalid hex color %q for field %q (expected #RRGGBB)", value, field)
		}
	}
	for class, value := range t.Classes {
		if !hexColorRegex.MatchString(value) {
			return fmt.Errorf("invalid hex color %q for class %q (expected #RRGGBB)", value, class)
		}
	}
	return nil
}
