package modules

import (
	"context"
	"encoding/json"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
	"gitlab.com/tinyland/lab/pulsebar/pkg/swayipc"
)

// FocusedConfig holds the focused module's options.
type FocusedConfig struct {
	// MaxLength truncates the window title, 0 for no limit.
	MaxLength int `mapstructure:"max_length"`
}

func DefaultFocusedConfig() FocusedConfig {
	return FocusedConfig{MaxLength: 60}
}

// FocusedPayload describes the focused window. A zero payload means
// nothing has focus.
type FocusedPayload struct {
	Title string
	AppID string
}

type focused struct {
	cfg  FocusedConfig
	deps Deps
}

func newFocused(def config.ModuleDef, deps Deps) (Instance, error) {
	cfg := DefaultFocusedConfig()
	if err := def.DecodeOptions(&cfg); err != nil {
		return Instance{}, err
	}
	f := &focused{cfg: cfg, deps: deps}
	return Instance{Controller: f, Widget: WidgetFunc(f.render)}, nil
}

func (f *focused) Kind() string { return "focused" }

func (f *focused) Run(ctx context.Context, emit func(Update)) error {
	sup := &Supervisor{Kind: "focused", Logger: f.deps.Logger, Emit: emit}
	return sup.Run(ctx, f.session(emit))
}

func (f *focused) session(emit func(Update)) Session {
	return func(ctx context.Context, ready func()) error {
		req, err := swayipc.Connect(ctx)
		if err != nil {
			return err
		}
		defer req.Close()

		sub, err := swayipc.Connect(ctx)
		if err != nil {
			return err
		}
		defer sub.Close()
		events, err := sub.Subscribe(ctx, "window", "workspace")
		if err != nil {
			return err
		}
		ready()

		if err := f.query(ctx, req, emit); err != nil {
			return err
		}
		for ev := range events {
			switch ev.Type {
			case "window":
				var we swayipc.WindowEvent
				if err := decodeEvent(ev, &we); err != nil {
					continue
				}
				switch we.Change {
				case "focus":
					f.emitNode(&we.Container, emit)
				case "title":
					if we.Container.Focused {
						f.emitNode(&we.Container, emit)
					}
				case "close":
					if err := f.query(ctx, req, emit); err != nil {
						return err
					}
				}
			case "workspace":
				// Focus may have landed on another workspace's window
				// or on an empty workspace.
				if err := f.query(ctx, req, emit); err != nil {
					return err
				}
			}
		}
		return ctx.Err()
	}
}

// query reads the layout tree and emits whatever holds focus now.
func (f *focused) query(ctx context.Context, c *swayipc.Client, emit func(Update)) error {
	root, err := c.Tree(ctx)
	if err != nil {
		return err
	}
	node := root.FindFocused()
	if node == nil || node.Type == "workspace" || node.Type == "output" {
		emit(Update{Kind: "focused", State: StateUpdating, Payload: FocusedPayload{}})
		return nil
	}
	f.emitNode(node, emit)
	return nil
}

func (f *focused) emitNode(n *swayipc.Node, emit func(Update)) {
	p := FocusedPayload{Title: n.Name, AppID: n.AppID}
	if p.AppID == "" {
		p.AppID = n.WindowProps.Class
	}
	emit(Update{Kind: "focused", State: StateUpdating, Payload: p})
}

func (f *focused) render(u Update) Cell {
	p, ok := u.Payload.(FocusedPayload)
	if !ok {
		return defaultRender(u)
	}
	if p.Title == "" {
		return Cell{Hidden: true}
	}
	return Cell{Text: truncate(p.Title, f.cfg.MaxLength)}
}

func decodeEvent(ev swayipc.Event, out any) error {
	return json.Unmarshal(ev.Payload, out)
}

// truncate cuts s to at most n runes, marking the cut with an
// ellipsis.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(runes[:n-1]) + "…"
}
