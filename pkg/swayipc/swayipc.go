// Package swayipc is a minimal client for the sway/i3 IPC socket. It
// covers exactly what the bar needs: workspace queries, the focused
// window, run_command for click actions, and the workspace/window event
// stream. Everything else the protocol offers is out of scope.
package swayipc

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// ErrNoSocket means neither SWAYSOCK nor I3SOCK is set.
var ErrNoSocket = errors.New("sway socket not found (SWAYSOCK and I3SOCK unset)")

var magic = []byte("i3-ipc")

// Message types from the i3-ipc protocol.
const (
	msgRunCommand    uint32 = 0
	msgGetWorkspaces uint32 = 1
	msgSubscribe     uint32 = 2
	msgGetOutputs    uint32 = 3
	msgGetTree       uint32 = 4
)

const eventFlag = 1 << 31

// requestTimeout bounds one round trip on the socket.
const requestTimeout = 5 * time.Second

// SocketPath returns the compositor socket from the environment.
func SocketPath() (string, error) {
	if p := os.Getenv("SWAYSOCK"); p != "" {
		return p, nil
	}
	if p := os.Getenv("I3SOCK"); p != "" {
		return p, nil
	}
	return "", ErrNoSocket
}

// Client is one IPC connection. Requests are serialized; a client used
// for Subscribe is dedicated to events and must not issue requests
// afterwards.
type Client struct {
	conn net.Conn
	mu   sync.Mutex
}

// Connect dials the socket from the environment.
func Connect(ctx context.Context) (*Client, error) {
	path, err := SocketPath()
	if err != nil {
		return nil, err
	}
	return ConnectTo(ctx, path)
}

// ConnectTo dials a specific socket path.
func ConnectTo(ctx context.Context, path string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial sway socket: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close shuts the connection down. Pending reads fail.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Workspace is one entry from get_workspaces.
type Workspace struct {
	ID      int64  `json:"id"`
	Num     int    `json:"num"`
	Name    string `json:"name"`
	Visible bool   `json:"visible"`
	Focused bool   `json:"focused"`
	Urgent  bool   `json:"urgent"`
	Output  string `json:"output"`
}

// Output is one entry from get_outputs.
type Output struct {
	Name    string  `json:"name"`
	Active  bool    `json:"active"`
	Focused bool    `json:"focused"`
	Scale   float64 `json:"scale"`
}

// Node is a subtree of the layout tree. Only the fields the bar reads
// are mapped.
type Node struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	AppID         string `json:"app_id"`
	Focused       bool   `json:"focused"`
	Nodes         []Node `json:"nodes"`
	FloatingNodes []Node `json:"floating_nodes"`
	WindowProps   struct {
		Class string `json:"class"`
		Title string `json:"title"`
	} `json:"window_properties"`
}

// FindFocused walks the tree for the focused leaf.
func (n *Node) FindFocused() *Node {
	if n.Focused {
		return n
	}
	for i := range n.Nodes {
		if f := n.Nodes[i].FindFocused(); f != nil {
			return f
		}
	}
	for i := range n.FloatingNodes {
		if f := n.FloatingNodes[i].FindFocused(); f != nil {
			return f
		}
	}
	return nil
}

// Workspaces queries the current workspace list.
func (c *Client) Workspaces(ctx context.Context) ([]Workspace, error) {
	var out []Workspace
	if err := c.roundTrip(ctx, msgGetWorkspaces, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Outputs queries the connected outputs.
func (c *Client) Outputs(ctx context.Context) ([]Output, error) {
	var out []Output
	if err := c.roundTrip(ctx, msgGetOutputs, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Tree queries the full layout tree.
func (c *Client) Tree(ctx context.Context) (*Node, error) {
	var root Node
	if err := c.roundTrip(ctx, msgGetTree, nil, &root); err != nil {
		return nil, err
	}
	return &root, nil
}

// Command runs a sway command, e.g. "workspace number 3".
func (c *Client) Command(ctx context.Context, cmd string) error {
	var results []struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := c.roundTrip(ctx, msgRunCommand, []byte(cmd), &results); err != nil {
		return err
	}
	for _, r := range results {
		if !r.Success {
			return fmt.Errorf("sway command %q: %s", cmd, r.Error)
		}
	}
	return nil
}

// Event is one subscribed event. Payload stays raw; the consumer
// decodes it according to Type.
type Event struct {
	Type    string
	Payload json.RawMessage
}

// WorkspaceEvent is the payload of a "workspace" event.
type WorkspaceEvent struct {
	Change  string     `json:"change"`
	Current *Workspace `json:"current"`
	Old     *Workspace `json:"old"`
}

// WindowEvent is the payload of a "window" event.
type WindowEvent struct {
	Change    string `json:"change"`
	Container Node   `json:"container"`
}

// eventNames maps event message types to their subscription names.
var eventNames = map[uint32]string{
	0: "workspace",
	1: "output",
	2: "mode",
	3: "window",
	6: "shutdown",
	7: "tick",
}

// Subscribe registers for the named events and streams them until ctx
// is cancelled or the connection drops, then closes the channel. The
// client must not be used for requests afterwards.
func (c *Client) Subscribe(ctx context.Context, events ...string) (<-chan Event, error) {
	payload, err := json.Marshal(events)
	if err != nil {
		return nil, err
	}
	var reply struct {
		Success bool `json:"success"`
	}
	if err := c.roundTrip(ctx, msgSubscribe, payload, &reply); err != nil {
		return nil, err
	}
	if !reply.Success {
		return nil, fmt.Errorf("subscribe %v refused", events)
	}

	ch := make(chan Event, 16)
	go func() {
		// Unblock the read loop when the subscriber goes away.
		<-ctx.Done()
		c.conn.Close()
	}()
	go func() {
		defer close(ch)
		for {
			typ, body, err := readMsg(c.conn)
			if err != nil {
				return
			}
			if typ&eventFlag == 0 {
				continue
			}
			name, ok := eventNames[typ&^eventFlag]
			if !ok {
				continue
			}
			select {
			case ch <- Event{Type: name, Payload: body}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// roundTrip sends one request and decodes the reply into out, bounded
// by the context deadline or the default request timeout.
func (c *Client) roundTrip(ctx context.Context, typ uint32, payload []byte, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(requestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return err
	}
	defer c.conn.SetDeadline(time.Time{})

	if err := writeMsg(c.conn, typ, payload); err != nil {
		return fmt.Errorf("sway request: %w", err)
	}
	for {
		replyType, body, err := readMsg(c.conn)
		if err != nil {
			return fmt.Errorf("sway reply: %w", err)
		}
		// Events may interleave with replies on a shared connection.
		if replyType&eventFlag != 0 {
			continue
		}
		if replyType != typ {
			return fmt.Errorf("sway reply type %d for request %d", replyType, typ)
		}
		return json.Unmarshal(body, out)
	}
}

func writeMsg(w io.Writer, typ uint32, payload []byte) error {
	buf := make([]byte, 14+len(payload))
	copy(buf, magic)
	binary.LittleEndian.PutUint32(buf[6:10], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[10:14], typ)
	copy(buf[14:], payload)
	_, err := w.Write(buf)
	return err
}

func readMsg(r io.Reader) (uint32, []byte, error) {
	hdr := make([]byte, 14)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return 0, nil, err
	}
	if !bytes.Equal(hdr[:6], magic) {
		return 0, nil, fmt.Errorf("bad ipc magic %q", hdr[:6])
	}
	size := binary.LittleEndian.Uint32(hdr[6:10])
	typ := binary.LittleEndian.Uint32(hdr[10:14])
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return typ, body, nil
}
