// Package mpd speaks the MPD text protocol, covering what the music
// module needs: status, the current song, idle notifications and basic
// playback control. One client serves one connection; the music
// controller keeps a long-lived one for its status/idle loop and opens
// short-lived ones for click commands.
package mpd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// requestTimeout bounds one command round trip. Idle is exempt; it
// blocks until the server reports a change.
const requestTimeout = 5 * time.Second

// DefaultAddr resolves the server address from MPD_HOST/MPD_PORT with
// the usual localhost:6600 fallback. An absolute MPD_HOST is taken as
// a unix socket path.
func DefaultAddr() string {
	host := os.Getenv("MPD_HOST")
	if strings.HasPrefix(host, "/") {
		return host
	}
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("MPD_PORT")
	if port == "" {
		port = "6600"
	}
	return net.JoinHostPort(host, port)
}

// Client is one MPD connection.
type Client struct {
	conn    net.Conn
	br      *bufio.Reader
	version string
}

// Dial connects and consumes the server greeting. An addr containing a
// path separator dials a unix socket, anything else TCP.
func Dial(ctx context.Context, addr string) (*Client, error) {
	network := "tcp"
	if strings.Contains(addr, "/") {
		network = "unix"
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial mpd: %w", err)
	}
	c := &Client{conn: conn, br: bufio.NewReader(conn)}

	conn.SetReadDeadline(time.Now().Add(requestTimeout))
	greeting, err := c.br.ReadString('\n')
	conn.SetReadDeadline(time.Time{})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mpd greeting: %w", err)
	}
	if !strings.HasPrefix(greeting, "OK MPD ") {
		conn.Close()
		return nil, fmt.Errorf("unexpected mpd greeting %q", strings.TrimSpace(greeting))
	}
	c.version = strings.TrimSpace(strings.TrimPrefix(greeting, "OK MPD "))
	return c, nil
}

// Close shuts the connection down, unblocking a pending Idle.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Version reports the protocol version from the greeting.
func (c *Client) Version() string { return c.version }

// Status is the subset of the status response the bar renders.
type Status struct {
	State    string // play, pause, stop
	Volume   int
	Elapsed  time.Duration
	Duration time.Duration
	Song     int
	Random   bool
	Repeat   bool
}

// Song is the subset of currentsong the bar renders.
type Song struct {
	File   string
	Title  string
	Artist string
	Album  string
}

// Status queries playback state.
func (c *Client) Status(ctx context.Context) (Status, error) {
	kv, err := c.command(ctx, "status")
	if err != nil {
		return Status{}, err
	}
	st := Status{
		State:  kv["state"],
		Volume: atoi(kv["volume"]),
		Song:   atoi(kv["song"]),
		Random: kv["random"] == "1",
		Repeat: kv["repeat"] == "1",
	}
	st.Elapsed = seconds(kv["elapsed"])
	st.Duration = seconds(kv["duration"])
	return st, nil
}

// CurrentSong queries the playing song's tags.
func (c *Client) CurrentSong(ctx context.Context) (Song, error) {
	kv, err := c.command(ctx, "currentsong")
	if err != nil {
		return Song{}, err
	}
	return Song{
		File:   kv["file"],
		Title:  kv["Title"],
		Artist: kv["Artist"],
		Album:  kv["Album"],
	}, nil
}

// Idle blocks until one of the named subsystems changes and returns
// which ones did. Cancel by closing the client or via ctx deadline.
func (c *Client) Idle(ctx context.Context, subsystems ...string) ([]string, error) {
	cmd := "idle"
	if len(subsystems) > 0 {
		cmd += " " + strings.Join(subsystems, " ")
	}
	lines, err := c.exchange(ctx, cmd, false)
	if err != nil {
		return nil, err
	}
	var changed []string
	for _, l := range lines {
		if v, ok := strings.CutPrefix(l, "changed: "); ok {
			changed = append(changed, v)
		}
	}
	return changed, nil
}

// TogglePause flips between play and pause.
func (c *Client) TogglePause(ctx context.Context) error {
	_, err := c.command(ctx, "pause")
	return err
}

// Play starts playback of the current queue position.
func (c *Client) Play(ctx context.Context) error {
	_, err := c.command(ctx, "play")
	return err
}

// Next skips forward.
func (c *Client) Next(ctx context.Context) error {
	_, err := c.command(ctx, "next")
	return err
}

// Previous skips backward.
func (c *Client) Previous(ctx context.Context) error {
	_, err := c.command(ctx, "previous")
	return err
}

// command runs one request with the default timeout and folds the
// response into a key/value map.
func (c *Client) command(ctx context.Context, cmd string) (map[string]string, error) {
	lines, err := c.exchange(ctx, cmd, true)
	if err != nil {
		return nil, err
	}
	kv := make(map[string]string, len(lines))
	for _, l := range lines {
		if k, v, ok := strings.Cut(l, ": "); ok {
			kv[k] = v
		}
	}
	return kv, nil
}

// exchange writes one command and reads lines until OK or ACK.
func (c *Client) exchange(ctx context.Context, cmd string, bounded bool) ([]string, error) {
	deadline := time.Time{}
	if bounded {
		deadline = time.Now().Add(requestTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if _, err := fmt.Fprintf(c.conn, "%s\n", cmd); err != nil {
		return nil, fmt.Errorf("mpd %s: %w", cmd, err)
	}
	var lines []string
	for {
		raw, err := c.br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("mpd %s: %w", cmd, err)
		}
		line := strings.TrimRight(raw, "\n")
		if line == "OK" {
			return lines, nil
		}
		if msg, ok := strings.CutPrefix(line, "ACK "); ok {
			return nil, errors.New("mpd: " + msg)
		}
		lines = append(lines, line)
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func seconds(s string) time.Duration {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}
