package bar

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
	"gitlab.com/tinyland/lab/pulsebar/pkg/modules"
	"gitlab.com/tinyland/lab/pulsebar/pkg/theme"
)

func TestHeadlessHandshakeAndFrame(t *testing.T) {
	b := testBar(t, &config.Root{Start: []config.ModuleDef{labelDef("x")}})
	sendUpdate(b, "label", modules.Update{State: modules.StateUpdating, Payload: "hello"})

	var buf bytes.Buffer
	h := NewHeadless(b, strings.NewReader(""), &buf)
	if err := h.handshake(); err != nil {
		t.Fatalf("handshake: %v", err)
	}
	if err := h.writeFrame(); err != nil {
		t.Fatalf("writeFrame: %v", err)
	}

	sc := bufio.NewScanner(&buf)
	if !sc.Scan() {
		t.Fatal("no header line")
	}
	var hdr swayHeader
	if err := json.Unmarshal(sc.Bytes(), &hdr); err != nil {
		t.Fatalf("header: %v", err)
	}
	if hdr.Version != 1 || !hdr.ClickEvents {
		t.Errorf("header = %+v", hdr)
	}
	if !sc.Scan() || sc.Text() != "[" {
		t.Fatalf("missing array opener, got %q", sc.Text())
	}
	if !sc.Scan() {
		t.Fatal("no frame line")
	}
	frame := strings.TrimSuffix(sc.Text(), ",")
	var blocks []swayBlock
	if err := json.Unmarshal([]byte(frame), &blocks); err != nil {
		t.Fatalf("frame %q: %v", frame, err)
	}
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	if blocks[0].FullText != "hello" || blocks[0].Name != "label" {
		t.Errorf("block = %+v", blocks[0])
	}
	if blocks[0].Markup != "none" || !blocks[0].Separator {
		t.Errorf("protocol fields = %+v", blocks[0])
	}
}

func TestHeadlessFrameColors(t *testing.T) {
	def := theme.GetOrDefault("default")
	b := testBar(t, &config.Root{
		Start: []config.ModuleDef{labelDef("a"), labelDef("b")},
	})

	sendUpdate(b, "label", modules.Update{State: modules.StateUpdating, Payload: "plain"})
	sendUpdate(b, "label-2", modules.Update{State: modules.StateUpdating, Payload: "loud"})
	// Force class and urgency through the module state the way widgets
	// would set them.
	b.mu.Lock()
	b.byName["label-2"].cell = modules.Cell{Text: "loud", Class: "error", Urgent: true}
	b.mu.Unlock()

	var buf bytes.Buffer
	h := NewHeadless(b, strings.NewReader(""), &buf)
	if err := h.writeFrame(); err != nil {
		t.Fatal(err)
	}
	frame := strings.TrimSuffix(strings.TrimSpace(buf.String()), ",")
	var blocks []swayBlock
	if err := json.Unmarshal([]byte(frame), &blocks); err != nil {
		t.Fatal(err)
	}

	if blocks[0].Color != def.Foreground {
		t.Errorf("plain color = %q, want foreground %q", blocks[0].Color, def.Foreground)
	}
	if blocks[1].Color != def.Urgent || !blocks[1].Urgent {
		t.Errorf("urgent block = %+v, want color %q", blocks[1], def.Urgent)
	}
	if blocks[0].Background != def.Background {
		t.Errorf("background = %q", blocks[0].Background)
	}
}

func TestHeadlessClassColor(t *testing.T) {
	def := theme.GetOrDefault("default")
	b := testBar(t, &config.Root{Start: []config.ModuleDef{labelDef("a")}})
	sendUpdate(b, "label", modules.Update{State: modules.StateUpdating, Payload: "quiet"})
	b.mu.Lock()
	b.byName["label"].cell = modules.Cell{Text: "quiet", Class: "muted"}
	b.mu.Unlock()

	var buf bytes.Buffer
	h := NewHeadless(b, strings.NewReader(""), &buf)
	if err := h.writeFrame(); err != nil {
		t.Fatal(err)
	}
	frame := strings.TrimSuffix(strings.TrimSpace(buf.String()), ",")
	var blocks []swayBlock
	if err := json.Unmarshal([]byte(frame), &blocks); err != nil {
		t.Fatal(err)
	}
	if want := def.ClassColor("muted"); blocks[0].Color != want {
		t.Errorf("muted color = %q, want %q", blocks[0].Color, want)
	}
}

func TestHeadlessDispatchesClicks(t *testing.T) {
	def := labelDef("x")
	def.OnScrollUp = "var:set dir up"
	def.OnClick = "var:set clicked yes"
	b := testBar(t, &config.Root{Start: []config.ModuleDef{def}})

	clicks := `[
{"name":"label","button":1,"x":3,"y":0},
{"name":"label","button":4}
`
	h := NewHeadless(b, strings.NewReader(clicks), io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		c, _ := b.deps.Vars.Get("clicked")
		d, _ := b.deps.Vars.Get("dir")
		if c == "yes" && d == "up" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("clicks not dispatched: clicked=%q dir=%q", c, d)
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestHeadlessHiddenBarEmitsEmptyFrame(t *testing.T) {
	b := testBar(t, &config.Root{Start: []config.ModuleDef{labelDef("x")}})
	sendUpdate(b, "label", modules.Update{State: modules.StateUpdating, Payload: "x"})
	b.Hide()

	var buf bytes.Buffer
	h := NewHeadless(b, strings.NewReader(""), &buf)
	if err := h.writeFrame(); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]," {
		t.Errorf("hidden frame = %q, want empty block array", got)
	}
}

func TestProtoButton(t *testing.T) {
	cases := []struct {
		code int
		want modules.Button
		ok   bool
	}{
		{1, modules.ButtonLeft, true},
		{2, modules.ButtonMiddle, true},
		{3, modules.ButtonRight, true},
		{4, modules.ScrollUp, true},
		{5, modules.ScrollDown, true},
		{8, 0, false},
		{0, 0, false},
	}
	for _, tc := range cases {
		got, ok := protoButton(tc.code)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("protoButton(%d) = %v, %v", tc.code, got, ok)
		}
	}
}
