package dynamic

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/pulsebar/pkg/ironvar"
	"gitlab.com/tinyland/lab/pulsebar/pkg/script"
)

// Renderer evaluates templates against the script runner and variable
// store. One renderer is shared by every widget.
type Renderer struct {
	runner *script.Runner
	vars   *ironvar.Store
	logger *slog.Logger
}

// NewRenderer builds a renderer. logger may be nil.
func NewRenderer(runner *script.Runner, vars *ironvar.Store, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Renderer{runner: runner, vars: vars, logger: logger}
}

type segUpdate struct {
	idx    int
	val    string
	hasVal bool
	// first marks a segment's initial evaluation, completed or not.
	first bool
}

// Render starts live evaluation. The returned channel carries the full
// rendered string: once after every segment has been evaluated, then on
// every change. Delivery is latest-wins, so a slow consumer only ever
// misses intermediate renders. The channel closes when evaluation ends,
// which for a template with live segments means ctx cancellation.
func (r *Renderer) Render(ctx context.Context, t *Template) <-chan string {
	out := make(chan string, 1)

	values := make([]string, len(t.segments))
	var dyn []int
	for i, seg := range t.segments {
		if seg.kind == segLiteral {
			values[i] = seg.text
		} else {
			dyn = append(dyn, i)
		}
	}

	if len(dyn) == 0 {
		out <- join(values)
		close(out)
		return out
	}

	updates := make(chan segUpdate, len(dyn)*4)
	for _, i := range dyn {
		seg := t.segments[i]
		switch seg.kind {
		case segPoll:
			go r.pollSegment(ctx, i, seg, updates)
		case segWatch:
			go r.watchSegment(ctx, i, seg, updates)
		case segVar:
			go r.varSegment(ctx, i, seg, updates)
		}
	}

	go func() {
		defer close(out)
		pending := len(dyn)
		last := ""
		emitted := false
		for {
			var u segUpdate
			select {
			case <-ctx.Done():
				return
			case u = <-updates:
			}
			apply := func(u segUpdate) {
				if u.hasVal {
					values[u.idx] = u.val
				}
				if u.first {
					pending--
				}
			}
			apply(u)
			// Coalesce whatever else already arrived into one render.
			for {
				select {
				case u = <-updates:
					apply(u)
					continue
				default:
				}
				break
			}
			if pending > 0 {
				continue
			}
			s := join(values)
			if emitted && s == last {
				continue
			}
			last = s
			emitted = true
			select {
			case out <- s:
				continue
			default:
			}
			select {
			case <-out:
			default:
			}
			select {
			case out <- s:
			default:
			}
		}
	}()

	return out
}

func join(values []string) string {
	var b strings.Builder
	for _, v := range values {
		b.WriteString(v)
	}
	return b.String()
}

func (r *Renderer) pollSegment(ctx context.Context, idx int, seg segment, updates chan<- segUpdate) {
	first := true
	run := func() {
		out, err := r.runner.RunOnce(ctx, script.New(seg.text))
		if ctx.Err() != nil {
			return
		}
		u := segUpdate{idx: idx, first: first}
		if err != nil {
			// Previous value stays in place.
			r.logger.Warn("poll script failed", "cmd", seg.text, "error", err)
		} else {
			u.val = out.Stdout
			u.hasVal = true
		}
		first = false
		send(ctx, updates, u)
	}
	run()
	ticker := time.NewTicker(seg.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

func (r *Renderer) watchSegment(ctx context.Context, idx int, seg segment, updates chan<- segUpdate) {
	lines, err := r.runner.Watch(ctx, script.New(seg.text))
	if err != nil {
		r.logger.Warn("watch script failed", "cmd", seg.text, "error", err)
		send(ctx, updates, segUpdate{idx: idx, first: true})
		return
	}
	// The spawn counts as the initial evaluation; the first line may be
	// a long time coming and must not hold up the whole render.
	send(ctx, updates, segUpdate{idx: idx, first: true})
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			send(ctx, updates, segUpdate{idx: idx, val: line, hasVal: true})
		}
	}
}

func (r *Renderer) varSegment(ctx context.Context, idx int, seg segment, updates chan<- segUpdate) {
	sub, err := r.vars.Subscribe(seg.text)
	if err != nil {
		// Unreachable for compiled templates; the parser and the store
		// agree on the name charset.
		r.logger.Warn("variable subscribe failed", "name", seg.text, "error", err)
		send(ctx, updates, segUpdate{idx: idx, first: true})
		return
	}
	defer sub.Close()
	first := true
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-sub.C:
			send(ctx, updates, segUpdate{idx: idx, val: v, hasVal: true, first: first})
			first = false
		}
	}
}

func send(ctx context.Context, updates chan<- segUpdate, u segUpdate) {
	select {
	case updates <- u:
	case <-ctx.Done():
	}
}
