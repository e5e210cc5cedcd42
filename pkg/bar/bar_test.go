package bar

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/bridge"
	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
	"gitlab.com/tinyland/lab/pulsebar/pkg/dynamic"
	"gitlab.com/tinyland/lab/pulsebar/pkg/ironvar"
	"gitlab.com/tinyland/lab/pulsebar/pkg/modules"
	"gitlab.com/tinyland/lab/pulsebar/pkg/script"
	"gitlab.com/tinyland/lab/pulsebar/pkg/theme"
)

func testDeps() modules.Deps {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	vars := ironvar.NewStore(logger)
	runner := script.NewRunner(logger)
	return modules.Deps{
		Logger:   logger,
		Vars:     vars,
		Runner:   runner,
		Renderer: dynamic.NewRenderer(runner, vars, logger),
	}
}

func testBar(t *testing.T, cfg *config.Root) *Bar {
	t.Helper()
	b, err := New(Options{
		Config: cfg,
		Deps:   testDeps(),
		Theme:  theme.GetOrDefault("default"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

// sendUpdate pushes a controller update straight into the bridge, the
// way a started controller would.
func sendUpdate(b *Bar, module string, u modules.Update) {
	u.Module = module
	b.bridge.Send(bridge.Event{Widget: module, Payload: u})
	b.Drain()
}

func labelDef(text string) config.ModuleDef {
	return config.ModuleDef{Type: "label", Options: map[string]any{"label": text}}
}

func TestNewResolvesRegions(t *testing.T) {
	b := testBar(t, &config.Root{
		Position: "top",
		Start:    []config.ModuleDef{labelDef("a")},
		Center:   []config.ModuleDef{{Type: "clock"}},
		End: []config.ModuleDef{func() config.ModuleDef {
			d := labelDef("b")
			d.Name = "right"
			return d
		}()},
	})

	want := []struct{ name, region string }{
		{"label", RegionStart},
		{"clock", RegionCenter},
		{"right", RegionEnd},
	}
	if len(b.mods) != len(want) {
		t.Fatalf("got %d modules, want %d", len(b.mods), len(want))
	}
	for i, w := range want {
		if b.mods[i].name != w.name || b.mods[i].region != w.region {
			t.Errorf("mods[%d] = %s/%s, want %s/%s",
				i, b.mods[i].name, b.mods[i].region, w.name, w.region)
		}
	}
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(Options{
		Config: &config.Root{Start: []config.ModuleDef{{Type: "teleport"}}},
		Deps:   testDeps(),
	})
	if !errors.Is(err, modules.ErrUnknownKind) {
		t.Fatalf("err = %v, want ErrUnknownKind", err)
	}
	if !strings.Contains(err.Error(), "start[0]") {
		t.Errorf("error %q does not locate the bad definition", err)
	}
}

func TestInstanceNamesAreUnique(t *testing.T) {
	named := labelDef("c")
	named.Name = "info"
	b := testBar(t, &config.Root{
		Start: []config.ModuleDef{labelDef("a"), labelDef("b"), named},
	})

	got := []string{b.mods[0].name, b.mods[1].name, b.mods[2].name}
	want := []string{"label", "label-2", "info"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("name[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDrainAppliesUpdates(t *testing.T) {
	b := testBar(t, &config.Root{Start: []config.ModuleDef{labelDef("x")}})

	sendUpdate(b, "label", modules.Update{
		Kind: "label", State: modules.StateUpdating, Payload: "hello",
	})

	slots := b.Slots()
	if len(slots) != 1 {
		t.Fatalf("got %d slots, want 1", len(slots))
	}
	if slots[0].Text != "hello" || slots[0].Name != "label" {
		t.Errorf("slot = %+v", slots[0])
	}
}

func TestShowIfGatesSlot(t *testing.T) {
	def := labelDef("x")
	def.ShowIf = "#flag"
	b := testBar(t, &config.Root{Start: []config.ModuleDef{def}})

	sendUpdate(b, "label", modules.Update{State: modules.StateUpdating, Payload: "x"})
	if got := b.Slots(); len(got) != 0 {
		t.Fatalf("slot visible before show_if produced a value: %+v", got)
	}

	b.bridge.Send(bridge.Event{Widget: "label", Payload: showIfMsg{shown: true}})
	b.Drain()
	if got := b.Slots(); len(got) != 1 {
		t.Fatalf("slot hidden after show_if turned true")
	}

	b.bridge.Send(bridge.Event{Widget: "label", Payload: showIfMsg{shown: false}})
	b.Drain()
	if got := b.Slots(); len(got) != 0 {
		t.Fatalf("slot visible after show_if turned false: %+v", got)
	}
}

func TestHiddenBarHasNoSlots(t *testing.T) {
	b := testBar(t, &config.Root{Start: []config.ModuleDef{labelDef("x")}})
	sendUpdate(b, "label", modules.Update{State: modules.StateUpdating, Payload: "x"})

	if len(b.Slots()) != 1 {
		t.Fatal("expected one slot while visible")
	}
	b.Hide()
	if len(b.Slots()) != 0 {
		t.Error("hidden bar still has slots")
	}
	if hidden := b.Toggle(); hidden {
		t.Error("Toggle did not unhide")
	}
	if len(b.Slots()) != 1 {
		t.Error("slot missing after unhide")
	}
}

func TestAutohideStartsHidden(t *testing.T) {
	b := testBar(t, &config.Root{
		Autohide: true,
		Start:    []config.ModuleDef{labelDef("x")},
	})
	if !b.Hidden() {
		t.Error("autohide bar started visible")
	}
}

func TestSnapshot(t *testing.T) {
	def := labelDef("x")
	def.Tooltip = "tip"
	b := testBar(t, &config.Root{
		Position: "bottom",
		Start:    []config.ModuleDef{def},
		End:      []config.ModuleDef{{Type: "clock"}},
	})

	sendUpdate(b, "label", modules.Update{
		Kind: "label", State: modules.StateUpdating, Payload: "hi",
	})
	b.bridge.Send(bridge.Event{Widget: "label", Payload: tooltipMsg{text: "rendered tip"}})
	b.Drain()

	st := b.Snapshot()
	if st.Position != "bottom" {
		t.Errorf("position = %q", st.Position)
	}
	if st.Theme != "default" {
		t.Errorf("theme = %q", st.Theme)
	}
	if len(st.Modules) != 2 {
		t.Fatalf("got %d modules", len(st.Modules))
	}
	lbl := st.Modules[0]
	if lbl.State != "updating" || lbl.Text != "hi" || !lbl.Visible {
		t.Errorf("label status = %+v", lbl)
	}
	if lbl.Tooltip != "rendered tip" {
		t.Errorf("tooltip = %q", lbl.Tooltip)
	}
	if st.Modules[1].State != "starting" {
		t.Errorf("clock state = %q, want starting", st.Modules[1].State)
	}
}

func TestClickRunsConfiguredAction(t *testing.T) {
	def := labelDef("x")
	def.OnClick = "var:set clicked yes"
	def.OnScrollUp = "var:set dir up"
	b := testBar(t, &config.Root{Start: []config.ModuleDef{def}})

	if err := b.Click(context.Background(), "label", modules.ButtonLeft); err != nil {
		t.Fatalf("Click: %v", err)
	}
	if v, _ := b.deps.Vars.Get("clicked"); v != "yes" {
		t.Errorf("clicked = %q, want yes", v)
	}
	if err := b.Click(context.Background(), "label", modules.ScrollUp); err != nil {
		t.Fatalf("Click scroll: %v", err)
	}
	if v, _ := b.deps.Vars.Get("dir"); v != "up" {
		t.Errorf("dir = %q, want up", v)
	}
}

func TestClickVarUnsetAction(t *testing.T) {
	def := labelDef("x")
	def.OnClickRight = "var:unset clicked"
	b := testBar(t, &config.Root{Start: []config.ModuleDef{def}})
	if err := b.deps.Vars.Set("clicked", "yes"); err != nil {
		t.Fatal(err)
	}

	if err := b.Click(context.Background(), "label", modules.ButtonRight); err != nil {
		t.Fatalf("Click: %v", err)
	}
	if _, ok := b.deps.Vars.Get("clicked"); ok {
		t.Error("variable still set after var:unset action")
	}
}

func TestClickUnknownModule(t *testing.T) {
	b := testBar(t, &config.Root{Start: []config.ModuleDef{labelDef("x")}})
	if err := b.Click(context.Background(), "ghost", modules.ButtonLeft); err == nil {
		t.Fatal("expected error for unknown module")
	}
}

func TestClickPopupActionWithoutPopup(t *testing.T) {
	def := labelDef("x")
	def.OnClick = "popup:toggle"
	b := testBar(t, &config.Root{Start: []config.ModuleDef{def}})
	if err := b.Click(context.Background(), "label", modules.ButtonLeft); err == nil {
		t.Fatal("expected error: label has no popup")
	}
}

// probe is a controller that records clicks and otherwise idles.
type probe struct {
	got modules.Button
}

func (p *probe) Kind() string { return "probe" }

func (p *probe) Run(ctx context.Context, emit func(modules.Update)) error {
	<-ctx.Done()
	return nil
}

func (p *probe) Click(ctx context.Context, btn modules.Button) error {
	p.got = btn
	return nil
}

func TestClickFallsBackToController(t *testing.T) {
	p := &probe{}
	reg := modules.NewRegistry()
	err := reg.Register("probe", func(def config.ModuleDef, deps modules.Deps) (modules.Instance, error) {
		return modules.Instance{Controller: p}, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	b, err := New(Options{
		Config:   &config.Root{Start: []config.ModuleDef{{Type: "probe"}}},
		Registry: reg,
		Deps:     testDeps(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Click(context.Background(), "probe", modules.ButtonMiddle); err != nil {
		t.Fatalf("Click: %v", err)
	}
	if p.got != modules.ButtonMiddle {
		t.Errorf("controller saw %v, want middle", p.got)
	}
}

func TestStartStampsModuleNames(t *testing.T) {
	b := testBar(t, &config.Root{End: []config.ModuleDef{{Type: "clock", Name: "when"}}})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-b.Notify():
		case <-deadline:
			t.Fatal("no clock update arrived")
		}
		b.Drain()
		if slots := b.Slots(); len(slots) == 1 {
			if slots[0].Name != "when" || slots[0].Text == "" {
				t.Fatalf("slot = %+v", slots[0])
			}
			return
		}
	}
}

func TestStartRegistersPopup(t *testing.T) {
	b := testBar(t, &config.Root{
		Start: []config.ModuleDef{{
			Type:    "custom",
			Name:    "menu",
			Options: map[string]any{"label": "x", "popup": "popup body"},
		}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	id, ok := b.popups.IDFor("menu")
	if !ok {
		t.Fatal("custom module registered no popup")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := b.popups.Open(id); err != nil {
			t.Fatalf("Open: %v", err)
		}
		if p, ok := b.popups.Current(); ok && len(p.Lines) == 1 && p.Lines[0] == "popup body" {
			return
		}
		if time.Now().After(deadline) {
			p, _ := b.popups.Current()
			t.Fatalf("popup content never rendered, have %+v", p)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSetThemeInvalidates(t *testing.T) {
	b := testBar(t, &config.Root{Start: []config.ModuleDef{labelDef("x")}})

	nord := theme.GetOrDefault("nord")
	b.SetTheme(nord)
	if b.Theme().Name != "nord" {
		t.Errorf("theme = %q, want nord", b.Theme().Name)
	}
	select {
	case <-b.Notify():
	default:
		t.Error("SetTheme did not nudge the surfaces")
	}
}

func TestClickActionTable(t *testing.T) {
	def := config.ModuleDef{
		OnClick:       "a",
		OnClickMiddle: "b",
		OnClickRight:  "c",
		OnScrollUp:    "d",
		OnScrollDown:  "e",
	}
	cases := []struct {
		btn  modules.Button
		want string
	}{
		{modules.ButtonLeft, "a"},
		{modules.ButtonMiddle, "b"},
		{modules.ButtonRight, "c"},
		{modules.ScrollUp, "d"},
		{modules.ScrollDown, "e"},
	}
	for _, tc := range cases {
		if got := clickAction(def, tc.btn); got != tc.want {
			t.Errorf("clickAction(%v) = %q, want %q", tc.btn, got, tc.want)
		}
	}
}
