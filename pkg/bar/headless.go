package bar

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gitlab.com/tinyland/lab/pulsebar/pkg/modules"
)

// Headless drives the bar over the i3bar JSON protocol: a header line,
// then an endless array of block arrays on out, with click events
// arriving as a JSON array stream on in. swaybar and compatible bars
// consume this when stdout is a pipe.
type Headless struct {
	bar *Bar
	in  io.Reader
	out *bufio.Writer
}

// swayHeader is the protocol handshake line.
type swayHeader struct {
	Version     int  `json:"version"`
	ClickEvents bool `json:"click_events"`
}

// swayBlock is one cell in a status line frame.
type swayBlock struct {
	FullText   string `json:"full_text"`
	Name       string `json:"name,omitempty"`
	Color      string `json:"color,omitempty"`
	Background string `json:"background,omitempty"`
	Urgent     bool   `json:"urgent,omitempty"`
	Separator  bool   `json:"separator"`
	Markup     string `json:"markup"`
}

// swayClick is one pointer event from the consuming bar. Only the
// fields the dispatcher needs are decoded.
type swayClick struct {
	Name   string `json:"name"`
	Button int    `json:"button"`
}

// NewHeadless wires a bar to an i3bar-protocol consumer.
func NewHeadless(b *Bar, in io.Reader, out io.Writer) *Headless {
	return &Headless{bar: b, in: in, out: bufio.NewWriter(out)}
}

// Run emits frames until ctx is cancelled or the consumer goes away.
// A write failure means the consuming bar closed the pipe; that ends
// the run without error noise.
func (h *Headless) Run(ctx context.Context) error {
	if err := h.handshake(); err != nil {
		return err
	}
	if err := h.writeFrame(); err != nil {
		return err
	}

	clicks := make(chan swayClick)
	go h.readClicks(ctx, clicks)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-clicks:
			if !ok {
				clicks = nil
				continue
			}
			h.dispatch(ctx, ev)
		case <-h.bar.Notify():
			for {
				if _, more := h.bar.Drain(); !more {
					break
				}
			}
			if err := h.writeFrame(); err != nil {
				return nil
			}
		}
	}
}

// handshake writes the protocol header and opens the frame array.
func (h *Headless) handshake() error {
	hdr, err := json.Marshal(swayHeader{Version: 1, ClickEvents: true})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(h.out, "%s\n[\n", hdr); err != nil {
		return err
	}
	return h.out.Flush()
}

// writeFrame emits one status line: every visible cell as a block.
func (h *Headless) writeFrame() error {
	t := h.bar.Theme()
	slots := h.bar.Slots()
	blocks := make([]swayBlock, 0, len(slots))
	for _, s := range slots {
		color := t.ClassColor(s.Class)
		if s.Urgent {
			color = t.Urgent
		}
		if color == "" {
			color = t.Foreground
		}
		blocks = append(blocks, swayBlock{
			FullText:   s.Text,
			Name:       s.Name,
			Color:      color,
			Background: t.Background,
			Urgent:     s.Urgent,
			Separator:  true,
			Markup:     "none",
		})
	}
	line, err := json.Marshal(blocks)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(h.out, "%s,\n", line); err != nil {
		return err
	}
	return h.out.Flush()
}

// readClicks decodes the endless click event array and forwards each
// event. The stream opens with '[' and then carries one object per
// event, comma separated, which json.Decoder consumes natively.
func (h *Headless) readClicks(ctx context.Context, out chan<- swayClick) {
	defer close(out)
	dec := json.NewDecoder(h.in)
	if _, err := dec.Token(); err != nil {
		return
	}
	for dec.More() {
		var ev swayClick
		if err := dec.Decode(&ev); err != nil {
			h.bar.logger.Debug("click stream ended", "error", err)
			return
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Headless) dispatch(ctx context.Context, ev swayClick) {
	btn, ok := protoButton(ev.Button)
	if !ok {
		return
	}
	if err := h.bar.Click(ctx, ev.Name, btn); err != nil {
		h.bar.logger.Warn("click failed", "module", ev.Name, "button", btn, "error", err)
	}
}

// protoButton maps i3bar pointer button codes.
func protoButton(code int) (modules.Button, bool) {
	switch code {
	case 1:
		return modules.ButtonLeft, true
	case 2:
		return modules.ButtonMiddle, true
	case 3:
		return modules.ButtonRight, true
	case 4:
		return modules.ScrollUp, true
	case 5:
		return modules.ScrollDown, true
	default:
		return 0, false
	}
}
