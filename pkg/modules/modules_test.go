package modules

import (
	"context"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
)

// collectUpdates runs a controller and returns a channel of its
// emissions plus a stop function.
func collectUpdates(t *testing.T, c Controller) (<-chan Update, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan Update, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Run(ctx, func(u Update) {
			select {
			case updates <- u:
			default:
			}
		})
	}()
	return updates, func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("controller did not stop on cancel")
		}
	}
}

// waitPayload waits for the first update whose payload satisfies ok.
func waitPayload(t *testing.T, updates <-chan Update, ok func(any) bool) any {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case u := <-updates:
			if ok(u.Payload) {
				return u.Payload
			}
		case <-deadline:
			t.Fatal("timed out waiting for update")
		}
	}
}

func TestClockEmitsImmediately(t *testing.T) {
	inst, err := Default().New(config.ModuleDef{
		Type:    "clock",
		Options: map[string]any{"format": "2006"},
	}, testDeps())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	updates, stop := collectUpdates(t, inst.Controller)
	defer stop()

	p := waitPayload(t, updates, func(p any) bool {
		_, ok := p.(ClockPayload)
		return ok
	}).(ClockPayload)
	if want := time.Now().Format("2006"); p.Text != want {
		t.Errorf("clock text = %q, want %q", p.Text, want)
	}
}

func TestLabelRendersTemplate(t *testing.T) {
	deps := testDeps()
	if err := deps.Vars.Set("greet", "hi"); err != nil {
		t.Fatal(err)
	}
	inst, err := Default().New(config.ModuleDef{
		Type:    "label",
		Options: map[string]any{"label": "say #greet"},
	}, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	updates, stop := collectUpdates(t, inst.Controller)
	defer stop()

	waitPayload(t, updates, func(p any) bool {
		s, ok := p.(string)
		return ok && s == "say hi"
	})
}

func TestScriptPollEmitsOutput(t *testing.T) {
	inst, err := Default().New(config.ModuleDef{
		Type:     "script",
		Interval: config.Duration{Duration: time.Hour},
		Options:  map[string]any{"cmd": "echo hey"},
	}, testDeps())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	updates, stop := collectUpdates(t, inst.Controller)
	defer stop()

	waitPayload(t, updates, func(p any) bool {
		s, ok := p.(string)
		return ok && s == "hey"
	})
}

func TestScriptWatchStreams(t *testing.T) {
	inst, err := Default().New(config.ModuleDef{
		Type:    "script",
		Options: map[string]any{"cmd": "printf 'a\\nb\\n'; sleep 60", "mode": "watch"},
	}, testDeps())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	updates, stop := collectUpdates(t, inst.Controller)
	defer stop()

	waitPayload(t, updates, func(p any) bool { s, ok := p.(string); return ok && s == "a" })
	waitPayload(t, updates, func(p any) bool { s, ok := p.(string); return ok && s == "b" })
}

func TestScriptConfigValidation(t *testing.T) {
	if _, err := Default().New(config.ModuleDef{Type: "script"}, testDeps()); err == nil {
		t.Error("script without cmd built")
	}
	_, err := Default().New(config.ModuleDef{
		Type:    "script",
		Options: map[string]any{"cmd": "true", "mode": "stream"},
	}, testDeps())
	if err == nil {
		t.Error("script with unknown mode built")
	}
}

func TestCustomExposesPopupTemplate(t *testing.T) {
	inst, err := Default().New(config.ModuleDef{
		Type:    "custom",
		Options: map[string]any{"label": "x", "popup": "#music.details"},
	}, testDeps())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	popper, ok := inst.Controller.(Popper)
	if !ok {
		t.Fatal("custom controller is not a Popper")
	}
	if got := popper.PopupTemplate(); got != "#music.details" {
		t.Errorf("PopupTemplate() = %q", got)
	}
}
