// Package bar assembles module instances into a running bar: regions
// resolved from the configuration, controllers feeding the update
// bridge, click dispatch, per-module visibility, and the state the
// surfaces draw from. The bar owns no drawing; the terminal and
// swaybar surfaces read Slots and Snapshot and render however they
// like.
package bar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bridge"
	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
	"gitlab.com/tinyland/lab/pulsebar/pkg/dynamic"
	"gitlab.com/tinyland/lab/pulsebar/pkg/modules"
	"gitlab.com/tinyland/lab/pulsebar/pkg/popup"
	"gitlab.com/tinyland/lab/pulsebar/pkg/theme"
)

// Region names for module placement.
const (
	RegionStart  = "start"
	RegionCenter = "center"
	RegionEnd    = "end"
)

// Options carries everything New needs. Config should already be
// resolved for the target monitor; nil falls back to the default
// configuration.
type Options struct {
	Config   *config.Root
	Monitor  string
	Registry *modules.Registry
	Deps     modules.Deps
	Bridge   *bridge.Bridge
	Popups   *popup.Manager
	Theme    theme.Theme
}

// Bar is one assembled bar instance. Construction builds every module
// up front so a bad configuration fails before anything is drawn;
// Start launches the controllers.
type Bar struct {
	monitor string
	cfg     *config.Root
	logger  *slog.Logger
	deps    modules.Deps
	bridge  *bridge.Bridge
	popups  *popup.Manager

	mods   []*moduleState
	byName map[string]*moduleState

	mu      sync.Mutex
	hidden  bool
	theme   theme.Theme
	styles  theme.Styles
	started time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// moduleState is one placed module instance. The live fields are
// guarded by Bar.mu and mutated only from apply.
type moduleState struct {
	name   string
	region string
	def    config.ModuleDef
	inst   modules.Instance

	last    modules.Update
	cell    modules.Cell
	shown   bool
	tooltip string
	popupID string
}

// Internal bridge payloads. Controllers send modules.Update; the
// show_if and tooltip renderers send these so every mutation flows
// through the same drain path.
type showIfMsg struct{ shown bool }

type tooltipMsg struct{ text string }

// New resolves the configured regions into module instances. Any
// unknown kind or factory failure aborts assembly; a bar never starts
// half built.
func New(opts Options) (*Bar, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultRoot()
	}
	if opts.Registry == nil {
		opts.Registry = modules.Default()
	}
	logger := opts.Deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Bridge == nil {
		opts.Bridge = bridge.New(0, logger)
	}
	if opts.Popups == nil {
		opts.Popups = popup.NewManager(logger)
	}
	deps := opts.Deps
	deps.Monitor = opts.Monitor

	b := &Bar{
		monitor: opts.Monitor,
		cfg:     cfg,
		logger:  logger,
		deps:    deps,
		bridge:  opts.Bridge,
		popups:  opts.Popups,
		byName:  make(map[string]*moduleState),
		hidden:  cfg.Autohide,
		theme:   opts.Theme,
		styles:  opts.Theme.Styles(),
	}

	for _, region := range []struct {
		name string
		defs []config.ModuleDef
	}{
		{RegionStart, cfg.Start},
		{RegionCenter, cfg.Center},
		{RegionEnd, cfg.End},
	} {
		for i, def := range region.defs {
			inst, err := opts.Registry.New(def, deps)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", region.name, i, err)
			}
			ms := &moduleState{
				name:   b.instanceName(def),
				region: region.name,
				def:    def,
				inst:   inst,
				shown:  def.ShowIf == "",
			}
			b.mods = append(b.mods, ms)
			b.byName[ms.name] = ms
		}
	}
	return b, nil
}

// instanceName picks the IPC-addressable name for a module: the
// configured name, else the kind, with an ordinal suffix when taken.
func (b *Bar) instanceName(def config.ModuleDef) string {
	base := def.Name
	if base == "" {
		base = def.Type
	}
	name := base
	for n := 2; ; n++ {
		if _, taken := b.byName[name]; !taken {
			return name
		}
		name = fmt.Sprintf("%s-%d", base, n)
	}
}

// Start launches every controller plus the show_if, tooltip and popup
// template renderers. It returns immediately; updates arrive through
// the bridge.
func (b *Bar) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	b.mu.Lock()
	b.started = time.Now()
	b.mu.Unlock()

	for _, ms := range b.mods {
		b.startModule(ctx, ms)
	}
}

func (b *Bar) startModule(ctx context.Context, ms *moduleState) {
	name := ms.name

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		emit := func(u modules.Update) {
			u.Module = name
			if u.Kind == "" {
				u.Kind = ms.def.Type
			}
			b.bridge.Send(bridge.Event{Widget: name, Payload: u})
		}
		err := ms.inst.Controller.Run(ctx, emit)
		if err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Error("controller stopped", "module", name, "error", err)
		}
	}()

	if ms.def.ShowIf != "" {
		tmpl := dynamic.CompileLenient(ms.def.ShowIf)
		b.renderInto(ctx, tmpl, func(v string) {
			v = strings.TrimSpace(v)
			shown := v != "" && v != "0" && v != "false"
			b.bridge.Send(bridge.Event{Widget: name, Payload: showIfMsg{shown: shown}})
		})
	}

	if ms.def.Tooltip != "" {
		tmpl := dynamic.CompileLenient(ms.def.Tooltip)
		b.renderInto(ctx, tmpl, func(v string) {
			b.bridge.Send(bridge.Event{Widget: name, Payload: tooltipMsg{text: v}})
		})
	}

	if p, ok := ms.inst.Controller.(modules.Popper); ok {
		if src := p.PopupTemplate(); src != "" {
			id := b.popups.Register(name, "")
			b.mu.Lock()
			ms.popupID = id
			b.mu.Unlock()
			tmpl := dynamic.CompileLenient(src)
			b.renderInto(ctx, tmpl, func(v string) {
				if err := b.popups.SetContent(id, v); err != nil {
					b.logger.Debug("popup content dropped", "module", name, "error", err)
				}
			})
		}
	}
}

// renderInto feeds every value a dynamic template produces to fn until
// ctx is cancelled.
func (b *Bar) renderInto(ctx context.Context, tmpl *dynamic.Template, fn func(string)) {
	if b.deps.Renderer == nil {
		return
	}
	out := b.deps.Renderer.Render(ctx, tmpl)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for v := range out {
			fn(v)
		}
	}()
}

// Stop cancels every controller and waits for them to finish.
func (b *Bar) Stop() {
	if b.cancel != nil {
		b.cancel()
	}
	b.wg.Wait()
}

// Drain applies queued bridge events to module state. It returns how
// many events were applied and whether more remain, so the UI loop can
// reschedule a continuation instead of starving input handling.
func (b *Bar) Drain() (applied int, more bool) {
	evs := b.bridge.Drain(bridge.DefaultDrain)
	if len(evs) == 0 {
		return 0, false
	}
	b.mu.Lock()
	for _, ev := range evs {
		b.applyLocked(ev)
	}
	b.mu.Unlock()
	return len(evs), b.bridge.Len() > 0
}

func (b *Bar) applyLocked(ev bridge.Event) {
	ms, ok := b.byName[ev.Widget]
	if !ok {
		return
	}
	switch p := ev.Payload.(type) {
	case modules.Update:
		ms.last = p
		ms.cell = ms.inst.Widget.Render(p)
	case showIfMsg:
		ms.shown = p.shown
	case tooltipMsg:
		ms.tooltip = p.text
	}
}

// Invalidate nudges the surfaces to redraw without changing module
// state. Used after IPC visibility or theme changes.
func (b *Bar) Invalidate() {
	b.bridge.Send(bridge.Event{})
}

// Notify exposes the bridge's wakeup channel to the surfaces.
func (b *Bar) Notify() <-chan struct{} {
	return b.bridge.Notify()
}

// Popups exposes the popup arena shared with this bar.
func (b *Bar) Popups() *popup.Manager {
	return b.popups
}

// Slot is one visible cell in bar order, ready for a surface to draw.
type Slot struct {
	Name   string
	Region string
	Text   string
	Class  string
	Urgent bool
}

// Slots returns the currently visible cells in bar order. A hidden bar
// has none.
func (b *Bar) Slots() []Slot {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hidden {
		return nil
	}
	out := make([]Slot, 0, len(b.mods))
	for _, ms := range b.mods {
		if !ms.shown || ms.cell.Hidden {
			continue
		}
		class := ms.cell.Class
		if class == "" {
			class = ms.def.Class
		}
		out = append(out, Slot{
			Name:   ms.name,
			Region: ms.region,
			Text:   ms.cell.Text,
			Class:  class,
			Urgent: ms.cell.Urgent,
		})
	}
	return out
}

// Show makes the bar visible.
func (b *Bar) Show() { b.setHidden(false) }

// Hide blanks the bar; controllers keep running.
func (b *Bar) Hide() { b.setHidden(true) }

// Toggle flips visibility and reports whether the bar is now hidden.
func (b *Bar) Toggle() bool {
	b.mu.Lock()
	b.hidden = !b.hidden
	h := b.hidden
	b.mu.Unlock()
	b.Invalidate()
	return h
}

func (b *Bar) setHidden(h bool) {
	b.mu.Lock()
	changed := b.hidden != h
	b.hidden = h
	b.mu.Unlock()
	if changed {
		b.Invalidate()
	}
}

// Hidden reports bar-level visibility.
func (b *Bar) Hidden() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hidden
}

// Position is the configured bar edge, "top" or "bottom".
func (b *Bar) Position() string { return b.cfg.Position }

// Separator is the configured inter-cell separator text.
func (b *Bar) Separator() string { return b.cfg.Separator }

// PopupGap is the configured gap between bar and popup, in cells.
func (b *Bar) PopupGap() int { return b.cfg.PopupGap }

// SetTheme swaps the active theme and recompiled styles, then nudges
// the surfaces. Used by the stylesheet watcher.
func (b *Bar) SetTheme(t theme.Theme) {
	b.mu.Lock()
	b.theme = t
	b.styles = t.Styles()
	b.mu.Unlock()
	b.Invalidate()
}

// Theme returns the active theme.
func (b *Bar) Theme() theme.Theme {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.theme
}

// Styles returns the compiled styles for the active theme.
func (b *Bar) Styles() theme.Styles {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.styles
}
