package popup

import (
	"errors"
	"testing"
)

func TestRegisterOpenClose(t *testing.T) {
	m := NewManager(nil)
	id := m.Register("clock", "line one\nlonger line two")

	if _, open := m.Current(); open {
		t.Fatal("popup open before Open")
	}
	if err := m.Open(id); err != nil {
		t.Fatalf("Open: %v", err)
	}
	p, open := m.Current()
	if !open {
		t.Fatal("popup not open after Open")
	}
	if p.Owner != "clock" || p.H != 2 || p.W != len("longer line two") {
		t.Errorf("popup = %+v", p)
	}
	m.Close()
	if _, open := m.Current(); open {
		t.Error("popup open after Close")
	}
}

func TestOpenUnknownID(t *testing.T) {
	m := NewManager(nil)
	if err := m.Open("nope"); !errors.Is(err, ErrUnknownPopup) {
		t.Fatalf("err = %v, want ErrUnknownPopup", err)
	}
	if _, err := m.Toggle("nope"); !errors.Is(err, ErrUnknownPopup) {
		t.Fatalf("Toggle err = %v, want ErrUnknownPopup", err)
	}
}

func TestOnlyOneOpenAtATime(t *testing.T) {
	m := NewManager(nil)
	a := m.Register("clock", "a")
	b := m.Register("music", "b")

	if err := m.Open(a); err != nil {
		t.Fatal(err)
	}
	if err := m.Open(b); err != nil {
		t.Fatal(err)
	}
	p, open := m.Current()
	if !open || p.ID != b {
		t.Errorf("open popup = %+v, want %s", p, b)
	}
}

func TestToggle(t *testing.T) {
	m := NewManager(nil)
	id := m.Register("clock", "cal")

	opened, err := m.Toggle(id)
	if err != nil || !opened {
		t.Fatalf("first Toggle = %v, %v", opened, err)
	}
	opened, err = m.Toggle(id)
	if err != nil || opened {
		t.Fatalf("second Toggle = %v, %v", opened, err)
	}
	if _, open := m.Current(); open {
		t.Error("popup open after toggle off")
	}
}

func TestReRegisterReplacesOwner(t *testing.T) {
	m := NewManager(nil)
	old := m.Register("clock", "v1")
	if err := m.Open(old); err != nil {
		t.Fatal(err)
	}
	fresh := m.Register("clock", "v2")
	if old == fresh {
		t.Fatal("re-register reused the arena ID")
	}
	if _, open := m.Current(); open {
		t.Error("stale popup stayed open across re-register")
	}
	if err := m.Open(old); !errors.Is(err, ErrUnknownPopup) {
		t.Errorf("stale ID still opens: %v", err)
	}
	id, ok := m.IDFor("clock")
	if !ok || id != fresh {
		t.Errorf("IDFor = %q, %v", id, ok)
	}
}

func TestSetContentSignalsWhenOpen(t *testing.T) {
	m := NewManager(nil)
	id := m.Register("music", "old")
	if err := m.Open(id); err != nil {
		t.Fatal(err)
	}
	drain(m)
	if err := m.SetContent(id, "new\nbody"); err != nil {
		t.Fatal(err)
	}
	select {
	case <-m.Changed():
	default:
		t.Error("no change signal after SetContent on open popup")
	}
	p, _ := m.Current()
	if p.H != 2 || p.Lines[0] != "new" {
		t.Errorf("content = %+v", p)
	}
	if err := m.SetContent("nope", "x"); !errors.Is(err, ErrUnknownPopup) {
		t.Errorf("SetContent unknown = %v", err)
	}
}

func TestUnregisterClosesOpenPopup(t *testing.T) {
	m := NewManager(nil)
	id := m.Register("tray", "items")
	if err := m.Open(id); err != nil {
		t.Fatal(err)
	}
	m.Unregister(id)
	if _, open := m.Current(); open {
		t.Error("popup open after Unregister")
	}
}

func TestPlaceX(t *testing.T) {
	tests := []struct {
		name   string
		anchor Anchor
		w      int
		barW   int
		want   int
	}{
		{"centered", Anchor{X: 40, Width: 10}, 20, 100, 35},
		{"left clamp", Anchor{X: 0, Width: 4}, 20, 100, 0},
		{"right clamp", Anchor{X: 90, Width: 10}, 20, 100, 80},
		{"oversized", Anchor{X: 40, Width: 10}, 120, 100, 0},
		{"exact fit", Anchor{X: 0, Width: 100}, 100, 100, 0},
	}
	for _, tt := range tests {
		if got := PlaceX(tt.anchor, tt.w, tt.barW); got != tt.want {
			t.Errorf("%s: PlaceX = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestSideFor(t *testing.T) {
	if SideFor("top") != SideBelow {
		t.Error("top bar should open popups below")
	}
	if SideFor("bottom") != SideAbove {
		t.Error("bottom bar should open popups above")
	}
}

func drain(m *Manager) {
	select {
	case <-m.Changed():
	default:
	}
}
