// Package ipc is the bar's control socket: newline-delimited JSON
// requests over a unix domain socket, one request per connection.
// The CLI is the main client; anything that can open the socket can
// drive the bar.
package ipc

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"gitlab.com/tinyland/lab/pulsebar/pkg/config"
)

// Request is one command. Cmd names are dotted groups, e.g.
// "var.set", "bar.toggle", "popup.open", "ping".
type Request struct {
	Cmd  string            `json:"cmd"`
	Args map[string]string `json:"args,omitempty"`
}

// Arg returns a named argument, empty when absent.
func (r Request) Arg(name string) string {
	return r.Args[name]
}

// Response is one reply line.
type Response struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// OK builds a success response. data may be nil.
func OK(data any) Response {
	return Response{OK: true, Data: data}
}

// Errorf builds a failure response.
func Errorf(format string, args ...any) Response {
	return Response{Error: fmt.Sprintf(format, args...)}
}

// Handler processes one request.
type Handler interface {
	Handle(ctx context.Context, req Request) Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Mux routes requests by command name.
type Mux struct {
	handlers map[string]Handler
}

func NewMux() *Mux {
	return &Mux{handlers: make(map[string]Handler)}
}

// HandleFunc registers a command. Later registrations win.
func (m *Mux) HandleFunc(cmd string, f func(ctx context.Context, req Request) Response) {
	m.handlers[cmd] = HandlerFunc(f)
}

// Commands lists the registered command names, sorted.
func (m *Mux) Commands() []string {
	out := make([]string, 0, len(m.handlers))
	for cmd := range m.handlers {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// Handle dispatches by req.Cmd.
func (m *Mux) Handle(ctx context.Context, req Request) Response {
	h, ok := m.handlers[req.Cmd]
	if !ok {
		return Errorf("unknown command %q", req.Cmd)
	}
	return h.Handle(ctx, req)
}

// DefaultSocketPath is the per-user control socket location.
func DefaultSocketPath() string {
	return filepath.Join(config.RuntimeDir(), "ipc.sock")
}
