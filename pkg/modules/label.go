package modules

import (
	"context"
	"errors"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
)

// LabelConfig holds the label module's options.
type LabelConfig struct {
	// Label is the text to show. It may embed {{script}} and #var
	// placeholders.
	Label string `mapstructure:"label"`
}

type label struct {
	tmpl *templateSource
}

func newLabel(def config.ModuleDef, deps Deps) (Instance, error) {
	var cfg LabelConfig
	if err := def.DecodeOptions(&cfg); err != nil {
		return Instance{}, err
	}
	if cfg.Label == "" {
		return Instance{}, errors.New("label: label option is required")
	}
	tmpl, err := newTemplateSource(cfg.Label, deps)
	if err != nil {
		return Instance{}, err
	}
	return Instance{Controller: &label{tmpl: tmpl}}, nil
}

func (l *label) Kind() string { return "label" }

func (l *label) Run(ctx context.Context, emit func(Update)) error {
	return l.tmpl.run(ctx, "label", emit)
}
