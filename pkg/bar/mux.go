package bar

import (
	"context"

	"gitlab.com/tinyland/lab/pulsebar/pkg/ironvar"
	"gitlab.com/tinyland/lab/pulsebar/pkg/ipc"
)

// MuxOptions wires the IPC command set to a running bar.
type MuxOptions struct {
	Bar  *Bar
	Vars *ironvar.Store
	// Reload rebuilds the bar from the config file. Nil leaves the
	// bar.reload command unregistered.
	Reload func() error
}

type varEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewMux builds the command router served on the control socket:
// ping, the var group, the bar group and the popup group.
func NewMux(opts MuxOptions) *ipc.Mux {
	b := opts.Bar
	vars := opts.Vars
	m := ipc.NewMux()

	m.HandleFunc("ping", func(ctx context.Context, req ipc.Request) ipc.Response {
		return ipc.OK("pong")
	})

	m.HandleFunc("var.get", func(ctx context.Context, req ipc.Request) ipc.Response {
		name := req.Arg("name")
		if !ironvar.ValidName(name) {
			return ipc.Errorf("invalid variable name %q", name)
		}
		v, ok := vars.Get(name)
		if !ok {
			// Reading an unset variable is not an error; the value is
			// null so callers can tell unset from empty.
			return ipc.OK(nil)
		}
		return ipc.OK(v)
	})
	m.HandleFunc("var.set", func(ctx context.Context, req ipc.Request) ipc.Response {
		if err := vars.Set(req.Arg("name"), req.Arg("value")); err != nil {
			return ipc.Errorf("%v", err)
		}
		return ipc.OK(nil)
	})
	m.HandleFunc("var.unset", func(ctx context.Context, req ipc.Request) ipc.Response {
		if err := vars.Unset(req.Arg("name")); err != nil {
			return ipc.Errorf("%v", err)
		}
		return ipc.OK(nil)
	})
	m.HandleFunc("var.list", func(ctx context.Context, req ipc.Request) ipc.Response {
		list := vars.List(req.Arg("prefix"))
		out := make([]varEntry, 0, len(list))
		for _, v := range list {
			out = append(out, varEntry{Name: v.Name, Value: v.Value})
		}
		return ipc.OK(out)
	})

	m.HandleFunc("bar.show", func(ctx context.Context, req ipc.Request) ipc.Response {
		b.Show()
		return ipc.OK(map[string]bool{"hidden": false})
	})
	m.HandleFunc("bar.hide", func(ctx context.Context, req ipc.Request) ipc.Response {
		b.Hide()
		return ipc.OK(map[string]bool{"hidden": true})
	})
	m.HandleFunc("bar.toggle", func(ctx context.Context, req ipc.Request) ipc.Response {
		return ipc.OK(map[string]bool{"hidden": b.Toggle()})
	})
	m.HandleFunc("bar.status", func(ctx context.Context, req ipc.Request) ipc.Response {
		return ipc.OK(b.Snapshot())
	})
	if opts.Reload != nil {
		m.HandleFunc("bar.reload", func(ctx context.Context, req ipc.Request) ipc.Response {
			if err := opts.Reload(); err != nil {
				return ipc.Errorf("reload: %v", err)
			}
			return ipc.OK(nil)
		})
	}

	m.HandleFunc("popup.open", func(ctx context.Context, req ipc.Request) ipc.Response {
		id, ok := b.popups.IDFor(req.Arg("module"))
		if !ok {
			return ipc.Errorf("module %q has no popup", req.Arg("module"))
		}
		if err := b.popups.Open(id); err != nil {
			return ipc.Errorf("%v", err)
		}
		return ipc.OK(nil)
	})
	m.HandleFunc("popup.close", func(ctx context.Context, req ipc.Request) ipc.Response {
		b.popups.Close()
		return ipc.OK(nil)
	})
	m.HandleFunc("popup.toggle", func(ctx context.Context, req ipc.Request) ipc.Response {
		id, ok := b.popups.IDFor(req.Arg("module"))
		if !ok {
			return ipc.Errorf("module %q has no popup", req.Arg("module"))
		}
		open, err := b.popups.Toggle(id)
		if err != nil {
			return ipc.Errorf("%v", err)
		}
		return ipc.OK(map[string]bool{"open": open})
	})

	return m
}
