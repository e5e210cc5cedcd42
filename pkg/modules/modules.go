// Package modules defines the controller/widget pairs that populate
// the bar. A controller owns one module instance's data source and
// emits typed updates; a widget turns those updates into renderable
// cells. Kinds register factories with a Registry so the bar can
// assemble instances straight from configuration.
package modules

import (
	"context"
	"io"
	"log/slog"

	"gitlab.com/tinyland/lab/pulsebar/pkg/dynamic"
	"gitlab.com/tinyland/lab/pulsebar/pkg/ironvar"
	"gitlab.com/tinyland/lab/pulsebar/pkg/script"
)

// State tracks a controller's connection lifecycle.
type State int

const (
	StateStarting State = iota
	StateConnected
	StateUpdating
	StateDisconnected
	StateReconnecting
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateConnected:
		return "connected"
	case StateUpdating:
		return "updating"
	case StateDisconnected:
		return "disconnected"
	case StateReconnecting:
		return "reconnecting"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Update is one message from a controller. Module is stamped by the
// bar when it wires the controller to its bridge; controllers leave
// it empty.
type Update struct {
	Module  string
	Kind    string
	State   State
	Payload any
	Err     error
}

// Controller drives one module instance. Run blocks until ctx is
// cancelled, emitting updates as the underlying source changes. A
// returned error means the controller gave up for good.
type Controller interface {
	Kind() string
	Run(ctx context.Context, emit func(Update)) error
}

// Button identifies a pointer action on a module's cell.
type Button int

const (
	ButtonLeft Button = iota
	ButtonMiddle
	ButtonRight
	ScrollUp
	ScrollDown
)

func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonMiddle:
		return "middle"
	case ButtonRight:
		return "right"
	case ScrollUp:
		return "scroll-up"
	case ScrollDown:
		return "scroll-down"
	default:
		return "unknown"
	}
}

// Clicker is implemented by controllers that react to pointer actions
// beyond the on_click commands handled by the bar.
type Clicker interface {
	Click(ctx context.Context, btn Button) error
}

// Cell is the rendered form of one module instance.
type Cell struct {
	Text   string
	Class  string
	Urgent bool
	Hidden bool
}

// Widget renders controller updates into cells.
type Widget interface {
	Render(u Update) Cell
}

// WidgetFunc adapts a function to the Widget interface.
type WidgetFunc func(u Update) Cell

func (f WidgetFunc) Render(u Update) Cell { return f(u) }

// Deps carries the shared services a factory may hand its controller.
type Deps struct {
	Logger   *slog.Logger
	Vars     *ironvar.Store
	Runner   *script.Runner
	Renderer *dynamic.Renderer

	// Monitor is the output this bar instance sits on, empty when
	// the bar is not tied to one.
	Monitor string
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d.Logger
}
