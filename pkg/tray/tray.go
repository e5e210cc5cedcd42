// Package tray hosts StatusNotifier items: it registers with the
// org.kde.StatusNotifierWatcher on the session bus, tracks item
// registration, and streams item state to the tray module. A missing
// watcher is a terminal condition reported once; the desktop either
// runs one or it does not.
package tray

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
)

// ErrWatcherAbsent means no StatusNotifierWatcher owns its well-known
// name on the session bus.
var ErrWatcherAbsent = errors.New("no StatusNotifierWatcher on the session bus")

const (
	watcherName  = "org.kde.StatusNotifierWatcher"
	watcherPath  = "/StatusNotifierWatcher"
	watcherIface = "org.kde.StatusNotifierWatcher"
	itemIface    = "org.kde.StatusNotifierItem"
)

// Item is the rendered state of one tray entry.
type Item struct {
	// Service addresses the item: "busname/objectpath".
	Service string
	ID      string
	Title   string
	Status  string // Active, Passive, NeedsAttention
	Icon    string
}

// EventType classifies tray events.
type EventType int

const (
	ItemAdded EventType = iota
	ItemChanged
	ItemRemoved
)

// Event is one change to the item set.
type Event struct {
	Type EventType
	Item Item
}

// Host is a connected StatusNotifier host.
type Host struct {
	conn   *dbus.Conn
	logger *slog.Logger

	mu    sync.Mutex
	items map[string]Item
}

// Connect joins the session bus and registers with the watcher. It
// fails with ErrWatcherAbsent when no watcher is running.
func Connect(ctx context.Context, logger *slog.Logger) (*Host, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("session bus: %w", err)
	}

	var hasOwner bool
	busObj := conn.Object("org.freedesktop.DBus", "/org/freedesktop/DBus")
	if err := busObj.CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, watcherName).Store(&hasOwner); err != nil {
		conn.Close()
		return nil, fmt.Errorf("query watcher: %w", err)
	}
	if !hasOwner {
		conn.Close()
		return nil, ErrWatcherAbsent
	}

	hostName := fmt.Sprintf("org.kde.StatusNotifierHost-%d", os.Getpid())
	if _, err := conn.RequestName(hostName, dbus.NameFlagDoNotQueue); err != nil {
		conn.Close()
		return nil, fmt.Errorf("request host name: %w", err)
	}

	watcher := conn.Object(watcherName, watcherPath)
	if err := watcher.CallWithContext(ctx, watcherIface+".RegisterStatusNotifierHost", 0, hostName).Err; err != nil {
		conn.Close()
		return nil, fmt.Errorf("register host: %w", err)
	}

	return &Host{conn: conn, logger: logger, items: make(map[string]Item)}, nil
}

// Close drops the bus connection.
func (h *Host) Close() error {
	return h.conn.Close()
}

// Items returns a snapshot of the current item set.
func (h *Host) Items() []Item {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Item, 0, len(h.items))
	for _, it := range h.items {
		out = append(out, it)
	}
	return out
}

// Run streams item events until ctx is cancelled. Existing items are
// reported as ItemAdded first.
func (h *Host) Run(ctx context.Context) (<-chan Event, error) {
	if err := h.conn.AddMatchSignalContext(ctx,
		dbus.WithMatchObjectPath(watcherPath),
		dbus.WithMatchInterface(watcherIface),
	); err != nil {
		return nil, fmt.Errorf("match watcher signals: %w", err)
	}
	if err := h.conn.AddMatchSignalContext(ctx,
		dbus.WithMatchInterface(itemIface),
	); err != nil {
		return nil, fmt.Errorf("match item signals: %w", err)
	}

	signals := make(chan *dbus.Signal, 32)
	h.conn.Signal(signals)

	events := make(chan Event, 16)
	go h.loop(ctx, signals, events)
	return events, nil
}

func (h *Host) loop(ctx context.Context, signals chan *dbus.Signal, events chan<- Event) {
	defer close(events)

	// Seed with the watcher's registered items.
	var registered []string
	watcher := h.conn.Object(watcherName, watcherPath)
	if v, err := watcher.GetProperty(watcherIface + ".RegisteredStatusNotifierItems"); err == nil {
		v.Store(&registered)
	}
	for _, svc := range registered {
		if it, ok := h.addItem(ctx, svc); ok {
			send(ctx, events, Event{Type: ItemAdded, Item: it})
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			h.handleSignal(ctx, sig, events)
		}
	}
}

func (h *Host) handleSignal(ctx context.Context, sig *dbus.Signal, events chan<- Event) {
	switch sig.Name {
	case watcherIface + ".StatusNotifierItemRegistered":
		if len(sig.Body) < 1 {
			return
		}
		svc, _ := sig.Body[0].(string)
		if it, ok := h.addItem(ctx, serviceKey(svc, sig.Sender)); ok {
			send(ctx, events, Event{Type: ItemAdded, Item: it})
		}
	case watcherIface + ".StatusNotifierItemUnregistered":
		if len(sig.Body) < 1 {
			return
		}
		svc, _ := sig.Body[0].(string)
		key := serviceKey(svc, sig.Sender)
		h.mu.Lock()
		it, ok := h.items[key]
		delete(h.items, key)
		h.mu.Unlock()
		if ok {
			send(ctx, events, Event{Type: ItemRemoved, Item: it})
		}
	case itemIface + ".NewTitle", itemIface + ".NewIcon", itemIface + ".NewStatus":
		// Refresh whichever of our items lives at the sender.
		h.mu.Lock()
		var match *Item
		for _, it := range h.items {
			if strings.HasPrefix(it.Service, sig.Sender+"/") {
				m := it
				match = &m
				break
			}
		}
		h.mu.Unlock()
		if match == nil {
			return
		}
		if it, ok := h.addItem(ctx, match.Service); ok {
			send(ctx, events, Event{Type: ItemChanged, Item: it})
		}
	}
}

// addItem fetches an item's properties and stores it. The service must
// carry a bus name; a bare object path cannot be resolved here and is
// skipped.
func (h *Host) addItem(ctx context.Context, svc string) (Item, bool) {
	dest, path := splitService(svc)
	if dest == "" {
		return Item{}, false
	}
	obj := h.conn.Object(dest, dbus.ObjectPath(path))

	it := Item{Service: dest + path}
	it.ID = stringProp(obj, "Id")
	it.Title = stringProp(obj, "Title")
	it.Status = stringProp(obj, "Status")
	it.Icon = stringProp(obj, "IconName")
	if ctx.Err() != nil {
		return Item{}, false
	}

	h.mu.Lock()
	h.items[it.Service] = it
	h.mu.Unlock()
	return it, true
}

// Activate triggers an item's primary action.
func (h *Host) Activate(ctx context.Context, service string) error {
	dest, path := splitService(service)
	obj := h.conn.Object(dest, dbus.ObjectPath(path))
	return obj.CallWithContext(ctx, itemIface+".Activate", 0, 0, 0).Err
}

// SecondaryActivate triggers an item's middle-click action.
func (h *Host) SecondaryActivate(ctx context.Context, service string) error {
	dest, path := splitService(service)
	obj := h.conn.Object(dest, dbus.ObjectPath(path))
	return obj.CallWithContext(ctx, itemIface+".SecondaryActivate", 0, 0, 0).Err
}

func stringProp(obj dbus.BusObject, name string) string {
	v, err := obj.GetProperty(itemIface + "." + name)
	if err != nil {
		return ""
	}
	var s string
	if v.Store(&s) != nil {
		return ""
	}
	return s
}

// splitService separates an item service string into bus name and
// object path.
func splitService(svc string) (dest, path string) {
	if svc == "" {
		return "", ""
	}
	if i := strings.Index(svc, "/"); i >= 0 {
		dest, path = svc[:i], svc[i:]
		if dest == "" {
			return "", ""
		}
		return dest, path
	}
	return svc, "/StatusNotifierItem"
}

// serviceKey resolves a registration string against its signal sender:
// bare object paths belong to the sender, and a missing path means the
// canonical item path.
func serviceKey(svc, sender string) string {
	dest, path := splitService(svc)
	if dest == "" {
		dest = sender
	}
	if path == "" {
		path = "/StatusNotifierItem"
	}
	return dest + path
}

func send(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
