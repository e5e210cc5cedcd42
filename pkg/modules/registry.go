package modules

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
)

// ErrUnknownKind means a module definition named a kind no factory
// claims.
var ErrUnknownKind = errors.New("unknown module kind")

// Instance pairs a built controller with the widget that renders it.
type Instance struct {
	Controller Controller
	Widget     Widget
}

// Factory builds a controller and widget from one module definition.
type Factory func(def config.ModuleDef, deps Deps) (Instance, error)

// Registry maps kind names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register claims a kind name. Claiming a name twice is a programming
// error and is rejected.
func (r *Registry) Register(kind string, f Factory) error {
	if kind == "" {
		return errors.New("register: empty kind")
	}
	if f == nil {
		return fmt.Errorf("register %s: nil factory", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.factories[kind]; dup {
		return fmt.Errorf("register %s: kind already registered", kind)
	}
	r.factories[kind] = f
	return nil
}

// Kinds lists the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New builds the controller and widget for one definition.
func (r *Registry) New(def config.ModuleDef, deps Deps) (Instance, error) {
	r.mu.RLock()
	f, ok := r.factories[def.Type]
	r.mu.RUnlock()
	if !ok {
		return Instance{}, fmt.Errorf("%w: %q", ErrUnknownKind, def.Type)
	}
	inst, err := f(def, deps)
	if err != nil {
		return Instance{}, fmt.Errorf("build %s: %w", def.Type, err)
	}
	if inst.Widget == nil {
		inst.Widget = WidgetFunc(defaultRender)
	}
	return inst, nil
}

// Default returns a registry with every built-in kind registered.
func Default() *Registry {
	r := NewRegistry()
	for kind, f := range builtins {
		// Built-in kinds are distinct by construction.
		_ = r.Register(kind, f)
	}
	return r
}

var builtins = map[string]Factory{
	"clock":      newClock,
	"label":      newLabel,
	"script":     newScript,
	"custom":     newCustom,
	"focused":    newFocused,
	"workspaces": newWorkspaces,
	"sysinfo":    newSysinfo,
	"volume":     newVolume,
	"music":      newMusic,
	"upower":     newUpower,
	"tray":       newTray,
	"network":    newNetwork,
}

// defaultRender covers controllers without a dedicated widget: string
// payloads pass through, errors show the kind name.
func defaultRender(u Update) Cell {
	switch p := u.Payload.(type) {
	case string:
		return Cell{Text: p}
	case nil:
		if u.State == StateUnavailable {
			return Cell{Text: u.Kind + ": unavailable", Class: "error", Urgent: true}
		}
		return Cell{Hidden: true}
	default:
		return Cell{Text: fmt.Sprint(p)}
	}
}
