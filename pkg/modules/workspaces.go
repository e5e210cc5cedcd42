package modules

import (
	"context"
	"strings"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
	"gitlab.com/tinyland/lab/pulsebar/pkg/swayipc"
)

// WorkspacesConfig holds the workspaces module's options.
type WorkspacesConfig struct {
	// AllMonitors lists every output's workspaces instead of only the
	// bar's own.
	AllMonitors bool `mapstructure:"all_monitors"`
	// NameMap substitutes display labels for workspace names.
	NameMap map[string]string `mapstructure:"name_map"`
}

// WorkspaceInfo is one workspace as the widget sees it.
type WorkspaceInfo struct {
	ID      int64
	Num     int
	Name    string
	Label   string
	Focused bool
	Visible bool
	Urgent  bool
	Output  string
}

// WorkspacesPayload is the workspaces module's update payload.
type WorkspacesPayload struct {
	Workspaces []WorkspaceInfo
}

type workspaces struct {
	cfg  WorkspacesConfig
	deps Deps
}

func newWorkspaces(def config.ModuleDef, deps Deps) (Instance, error) {
	var cfg WorkspacesConfig
	if err := def.DecodeOptions(&cfg); err != nil {
		return Instance{}, err
	}
	w := &workspaces{cfg: cfg, deps: deps}
	return Instance{Controller: w, Widget: WidgetFunc(renderWorkspaces)}, nil
}

func (w *workspaces) Kind() string { return "workspaces" }

func (w *workspaces) Run(ctx context.Context, emit func(Update)) error {
	sup := &Supervisor{Kind: "workspaces", Logger: w.deps.Logger, Emit: emit}
	return sup.Run(ctx, w.session(emit))
}

func (w *workspaces) session(emit func(Update)) Session {
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
		events, err := sub.Subscribe(ctx, "workspace")
		if err != nil {
			return err
		}
		ready()

		if err := w.query(ctx, req, emit); err != nil {
			return err
		}
		for range events {
			// Create, focus, move, rename, urgent: the fresh list is
			// authoritative for all of them.
			if err := w.query(ctx, req, emit); err != nil {
				return err
			}
		}
		return ctx.Err()
	}
}

func (w *workspaces) query(ctx context.Context, c *swayipc.Client, emit func(Update)) error {
	list, err := c.Workspaces(ctx)
	if err != nil {
		return err
	}
	infos := make([]WorkspaceInfo, 0, len(list))
	for _, ws := range list {
		if !w.cfg.AllMonitors && w.deps.Monitor != "" && ws.Output != w.deps.Monitor {
			continue
		}
		infos = append(infos, WorkspaceInfo{
			ID:      ws.ID,
			Num:     ws.Num,
			Name:    ws.Name,
			Label:   w.labelFor(ws.Name),
			Focused: ws.Focused,
			Visible: ws.Visible,
			Urgent:  ws.Urgent,
			Output:  ws.Output,
		})
	}
	emit(Update{Kind: "workspaces", State: StateUpdating, Payload: WorkspacesPayload{Workspaces: infos}})
	return nil
}

func (w *workspaces) labelFor(name string) string {
	if mapped, ok := w.cfg.NameMap[name]; ok {
		return mapped
	}
	return name
}

// Click switches workspaces: scrolling cycles, a left click jumps
// back and forth.
func (w *workspaces) Click(ctx context.Context, btn Button) error {
	var cmd string
	switch btn {
	case ScrollUp:
		cmd = "workspace prev_on_output"
	case ScrollDown:
		cmd = "workspace next_on_output"
	case ButtonLeft:
		cmd = "workspace back_and_forth"
	default:
		return nil
	}
	c, err := swayipc.Connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Command(ctx, cmd)
}

func renderWorkspaces(u Update) Cell {
	p, ok := u.Payload.(WorkspacesPayload)
	if !ok {
		return defaultRender(u)
	}
	if len(p.Workspaces) == 0 {
		return Cell{Hidden: true}
	}
	parts := make([]string, 0, len(p.Workspaces))
	urgent := false
	for _, ws := range p.Workspaces {
		label := ws.Label
		switch {
		case ws.Focused:
			label = "[" + label + "]"
		case ws.Urgent:
			label = "!" + label
			urgent = true
		}
		parts = append(parts, label)
	}
	return Cell{Text: strings.Join(parts, " "), Urgent: urgent}
}
