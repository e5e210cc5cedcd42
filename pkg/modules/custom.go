package modules

import (
	"context"
	"errors"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
)

// CustomConfig holds the custom module's options. A custom module is
// a label with an optional popup body, both dynamic strings.
type CustomConfig struct {
	Label string `mapstructure:"label"`
	Popup string `mapstructure:"popup"`
}

// Popper is implemented by controllers that supply popup content as a
// dynamic string template.
type Popper interface {
	PopupTemplate() string
}

type custom struct {
	tmpl  *templateSource
	popup string
}

func newCustom(def config.ModuleDef, deps Deps) (Instance, error) {
	var cfg CustomConfig
	if err := def.DecodeOptions(&cfg); err != nil {
		return Instance{}, err
	}
	if cfg.Label == "" {
		return Instance{}, errors.New("custom: label option is required")
	}
	tmpl, err := newTemplateSource(cfg.Label, deps)
	if err != nil {
		return Instance{}, err
	}
	return Instance{Controller: &custom{tmpl: tmpl, popup: cfg.Popup}}, nil
}

func (c *custom) Kind() string { return "custom" }

func (c *custom) PopupTemplate() string { return c.popup }

func (c *custom) Run(ctx context.Context, emit func(Update)) error {
	return c.tmpl.run(ctx, "custom", emit)
}
