package modules

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
	"gitlab.com/tinyland/lab/pulsebar/pkg/tray"
)

// TrayPayload is the tray module's update payload.
type TrayPayload struct {
	Items []tray.Item
}

type trayModule struct {
	deps Deps
}

func newTray(def config.ModuleDef, deps Deps) (Instance, error) {
	t := &trayModule{deps: deps}
	return Instance{Controller: t, Widget: WidgetFunc(renderTray)}, nil
}

func (t *trayModule) Kind() string { return "tray" }

func (t *trayModule) Run(ctx context.Context, emit func(Update)) error {
	sup := &Supervisor{Kind: "tray", Logger: t.deps.Logger, Emit: emit}
	return sup.Run(ctx, t.session(emit))
}

func (t *trayModule) session(emit func(Update)) Session {
	return func(ctx context.Context, ready func()) error {
		host, err := tray.Connect(ctx, t.deps.Logger)
		if err != nil {
			if errors.Is(err, tray.ErrWatcherAbsent) {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			return err
		}
		defer host.Close()

		events, err := host.Run(ctx)
		if err != nil {
			return err
		}
		ready()

		emit(Update{Kind: "tray", State: StateUpdating, Payload: TrayPayload{Items: host.Items()}})
		for range events {
			emit(Update{Kind: "tray", State: StateUpdating, Payload: TrayPayload{Items: host.Items()}})
		}
		return ctx.Err()
	}
}

// renderTray lists active items by their short names. Passive items
// stay off the bar per the StatusNotifier convention.
func renderTray(u Update) Cell {
	p, ok := u.Payload.(TrayPayload)
	if !ok {
		return defaultRender(u)
	}
	names := make([]string, 0, len(p.Items))
	urgent := false
	for _, it := range p.Items {
		if it.Status == "Passive" {
			continue
		}
		name := it.ID
		if name == "" {
			name = it.Title
		}
		if name == "" {
			continue
		}
		if it.Status == "NeedsAttention" {
			name = "!" + name
			urgent = true
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return Cell{Hidden: true}
	}
	sort.Strings(names)
	return Cell{Text: strings.Join(names, " "), Urgent: urgent}
}
