package modules

import (
	"context"
	"errors"

	"gitlab.com/tinyland/lab/pulsebar/pkg/dynamic"
)

// templateSource wraps a compiled dynamic string for the kinds whose
// whole output is one template.
type templateSource struct {
	tmpl     *dynamic.Template
	renderer *dynamic.Renderer
}

func newTemplateSource(src string, deps Deps) (*templateSource, error) {
	if deps.Renderer == nil {
		return nil, errors.New("no renderer wired")
	}
	tmpl, err := dynamic.Compile(src)
	if err != nil {
		return nil, err
	}
	return &templateSource{tmpl: tmpl, renderer: deps.Renderer}, nil
}

func (t *templateSource) run(ctx context.Context, kind string, emit func(Update)) error {
	out := t.renderer.Render(ctx, t.tmpl)
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-out:
			if !ok {
				return nil
			}
			emit(Update{Kind: kind, State: StateUpdating, Payload: s})
		}
	}
}
