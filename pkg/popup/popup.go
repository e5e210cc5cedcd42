// Package popup tracks per-module popups. Popups are registered once
// into an arena keyed by generated IDs and reused across opens; at
// most one popup is open per bar at any time. The manager owns state
// and placement math only, drawing belongs to the surface.
package popup

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ErrUnknownPopup means the arena holds no popup under the given ID.
var ErrUnknownPopup = errors.New("unknown popup")

// Popup is one arena entry.
type Popup struct {
	ID    string
	Owner string
	Lines []string
	W     int
	H     int
}

// Anchor is the owning cell's horizontal extent within the bar row.
type Anchor struct {
	X     int
	Width int
}

// Side says which side of the bar a popup opens on.
type Side int

const (
	SideBelow Side = iota
	SideAbove
)

// SideFor flips the popup away from the screen edge the bar sits on.
func SideFor(position string) Side {
	if position == "bottom" {
		return SideAbove
	}
	return SideBelow
}

// Manager is the popup arena for one bar.
type Manager struct {
	logger *slog.Logger

	mu      sync.Mutex
	popups  map[string]*Popup
	byOwner map[string]string
	open    string

	changed chan struct{}
}

// NewManager builds an empty arena. logger may be nil.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		logger:  logger,
		popups:  make(map[string]*Popup),
		byOwner: make(map[string]string),
		changed: make(chan struct{}, 1),
	}
}

// Changed signals after any open, close or content update. The
// channel holds at most one pending signal.
func (m *Manager) Changed() <-chan struct{} {
	return m.changed
}

func (m *Manager) bump() {
	select {
	case m.changed <- struct{}{}:
	default:
	}
}

// Register adds a popup for owner and returns its arena ID. A second
// registration for the same owner replaces the first.
func (m *Manager) Register(owner, content string) string {
	id := uuid.NewString()
	p := &Popup{ID: id, Owner: owner}
	p.setContent(content)

	m.mu.Lock()
	if old, ok := m.byOwner[owner]; ok {
		delete(m.popups, old)
		if m.open == old {
			m.open = ""
		}
	}
	m.popups[id] = p
	m.byOwner[owner] = id
	m.mu.Unlock()

	m.logger.Debug("popup registered", "owner", owner, "id", id)
	return id
}

// Unregister drops a popup, closing it if open.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	p, ok := m.popups[id]
	if ok {
		delete(m.popups, id)
		delete(m.byOwner, p.Owner)
		if m.open == id {
			m.open = ""
		}
	}
	m.mu.Unlock()
	if ok {
		m.bump()
	}
}

// SetContent replaces a popup's body. An open popup updates in place.
func (m *Manager) SetContent(id, content string) error {
	m.mu.Lock()
	p, ok := m.popups[id]
	if ok {
		p.setContent(content)
	}
	wasOpen := m.open == id
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPopup, id)
	}
	if wasOpen {
		m.bump()
	}
	return nil
}

// Open shows a popup, closing whichever one was open before.
func (m *Manager) Open(id string) error {
	m.mu.Lock()
	_, ok := m.popups[id]
	if ok {
		m.open = id
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPopup, id)
	}
	m.bump()
	return nil
}

// Close hides the open popup, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	was := m.open
	m.open = ""
	m.mu.Unlock()
	if was != "" {
		m.bump()
	}
}

// Toggle opens a closed popup and closes an open one. It reports
// whether the popup ended up open.
func (m *Manager) Toggle(id string) (bool, error) {
	m.mu.Lock()
	_, ok := m.popups[id]
	if !ok {
		m.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrUnknownPopup, id)
	}
	opened := m.open != id
	if opened {
		m.open = id
	} else {
		m.open = ""
	}
	m.mu.Unlock()
	m.bump()
	return opened, nil
}

// IDFor looks an owner's popup up.
func (m *Manager) IDFor(owner string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byOwner[owner]
	return id, ok
}

// Current returns a copy of the open popup.
func (m *Manager) Current() (Popup, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open == "" {
		return Popup{}, false
	}
	p := m.popups[m.open]
	out := *p
	out.Lines = append([]string(nil), p.Lines...)
	return out, true
}

func (p *Popup) setContent(content string) {
	p.Lines = strings.Split(content, "\n")
	p.H = len(p.Lines)
	p.W = 0
	for _, line := range p.Lines {
		if n := utf8.RuneCountInString(line); n > p.W {
			p.W = n
		}
	}
}

// PlaceX centers a popup of width w under its anchor and clamps it to
// the bar. Oversized popups pin to the left edge.
func PlaceX(anchor Anchor, w, barWidth int) int {
	x := anchor.X + anchor.Width/2 - w/2
	if x+w > barWidth {
		x = barWidth - w
	}
	if x < 0 {
		x = 0
	}
	return x
}
