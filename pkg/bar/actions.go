package bar

import (
	"context"
	"fmt"
	"strings"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
	"gitlab.com/tinyland/lab/pulsebar/pkg/modules"
	"gitlab.com/tinyland/lab/pulsebar/pkg/script"
)

// clickAction picks the configured command for a button, empty when
// the definition has none.
func clickAction(def config.ModuleDef, btn modules.Button) string {
	switch btn {
	case modules.ButtonLeft:
		return def.OnClick
	case modules.ButtonMiddle:
		return def.OnClickMiddle
	case modules.ButtonRight:
		return def.OnClickRight
	case modules.ScrollUp:
		return def.OnScrollUp
	case modules.ScrollDown:
		return def.OnScrollDown
	default:
		return ""
	}
}

// Click dispatches a pointer action on the named module. A configured
// on_click command wins; otherwise the controller's own Clicker
// handler runs, if it has one.
func (b *Bar) Click(ctx context.Context, name string, btn modules.Button) error {
	b.mu.Lock()
	ms, ok := b.byName[name]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("no module named %q", name)
	}
	if action := clickAction(ms.def, btn); action != "" {
		return b.runAction(ms, action)
	}
	if c, ok := ms.inst.Controller.(modules.Clicker); ok {
		return c.Click(ctx, btn)
	}
	return nil
}

// runAction executes one on_click command. Recognized forms:
//
//	popup:open, popup:close, popup:toggle
//	var:set NAME VALUE, var:unset NAME
//	exec:COMMAND or !COMMAND
//
// Anything else is run as a command line.
func (b *Bar) runAction(ms *moduleState, action string) error {
	switch {
	case strings.HasPrefix(action, "popup:"):
		op := strings.TrimPrefix(action, "popup:")
		b.mu.Lock()
		id := ms.popupID
		b.mu.Unlock()
		if id == "" {
			return fmt.Errorf("module %s has no popup", ms.name)
		}
		switch op {
		case "open":
			return b.popups.Open(id)
		case "close":
			b.popups.Close()
			return nil
		case "toggle":
			_, err := b.popups.Toggle(id)
			return err
		default:
			return fmt.Errorf("unknown popup action %q", op)
		}

	case strings.HasPrefix(action, "var:"):
		if b.deps.Vars == nil {
			return fmt.Errorf("no variable store")
		}
		verb, rest, _ := strings.Cut(strings.TrimPrefix(action, "var:"), " ")
		switch verb {
		case "set":
			name, value, _ := strings.Cut(rest, " ")
			return b.deps.Vars.Set(name, value)
		case "unset":
			return b.deps.Vars.Unset(strings.TrimSpace(rest))
		default:
			return fmt.Errorf("unknown var action %q", verb)
		}

	case strings.HasPrefix(action, "exec:"):
		return b.exec(strings.TrimPrefix(action, "exec:"))
	case strings.HasPrefix(action, "!"):
		return b.exec(strings.TrimPrefix(action, "!"))
	default:
		return b.exec(action)
	}
}

func (b *Bar) exec(cmd string) error {
	if b.deps.Runner == nil {
		return fmt.Errorf("no script runner")
	}
	return b.deps.Runner.Exec(script.New(cmd))
}
