// Package ironvar implements the process-wide named variable store.
// Variables are plain strings set from IPC, scripts or internal feeds,
// and any label-capable field can interpolate them. The store is built
// once at startup and handed to every component that needs it.
package ironvar

import (
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ErrInvalidName is returned for names outside [A-Za-z0-9_.-]+.
var ErrInvalidName = errors.New("invalid variable name")

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidName reports whether name is usable as a variable name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// subBuffer is the per-subscriber channel capacity. A slow consumer
// loses the oldest pending values, never the newest.
const subBuffer = 16

// Var is one stored variable.
type Var struct {
	Name  string
	Value string
}

// Store holds the variables and their subscribers. All operations are
// safe for concurrent use; a single mutex gives per-key atomicity and
// lets Subscribe hand out the current value with no missed-delivery
// window against a concurrent Set.
type Store struct {
	mu     sync.Mutex
	vars   map[string]string
	subs   map[string]map[int]chan string
	nextID int
	logger *slog.Logger
}

// NewStore builds an empty store. logger may be nil.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		vars:   make(map[string]string),
		subs:   make(map[string]map[int]chan string),
		logger: logger,
	}
}

// Set stores a value, replacing any previous one, and notifies
// subscribers of the name.
func (s *Store) Set(name, value string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars[name] = value
	s.notify(name, value)
	return nil
}

// Get returns the value and whether the name is set.
func (s *Store) Get(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vars[name]
	return v, ok
}

// Unset removes a variable. Subscribers receive the empty string.
// Unsetting a name that was never set is a no-op.
func (s *Store) Unset(name string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vars[name]; !ok {
		return nil
	}
	delete(s.vars, name)
	s.notify(name, "")
	return nil
}

// List returns the variables under a namespace prefix, sorted by name.
// The empty prefix lists everything; otherwise a variable matches when
// its name equals the prefix or starts with prefix + ".".
func (s *Store) List(prefix string) []Var {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Var
	for name, value := range s.vars {
		if prefix != "" && name != prefix && !strings.HasPrefix(name, prefix+".") {
			continue
		}
		out = append(out, Var{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Subscription delivers the current value of one variable followed by
// every subsequent change. Close it when done or the store keeps the
// channel alive forever.
type Subscription struct {
	C     <-chan string
	store *Store
	name  string
	id    int
}

// Subscribe registers for updates to name. The current value (or "" if
// unset) is already buffered on C when Subscribe returns, so a consumer
// always sees the state as of subscription time before any delta.
func (s *Store) Subscribe(name string) (*Subscription, error) {
	if !ValidName(name) {
		return nil, ErrInvalidName
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan string, subBuffer)
	if s.subs[name] == nil {
		s.subs[name] = make(map[int]chan string)
	}
	id := s.nextID
	s.nextID++
	s.subs[name][id] = ch
	ch <- s.vars[name]

	return &Subscription{C: ch, store: s, name: name, id: id}, nil
}

// Close removes the subscription. The channel is not closed; pending
// values may still be drained.
func (sub *Subscription) Close() {
	if sub == nil || sub.store == nil {
		return
	}
	sub.store.mu.Lock()
	defer sub.store.mu.Unlock()
	if m := sub.store.subs[sub.name]; m != nil {
		delete(m, sub.id)
		if len(m) == 0 {
			delete(sub.store.subs, sub.name)
		}
	}
	sub.store = nil
}

// notify pushes a value to every subscriber of name. Caller holds the
// lock. Full channels drop their oldest value so the newest always
// lands.
func (s *Store) notify(name, value string) {
	for _, ch := range s.subs[name] {
		select {
		case ch <- value:
			continue
		default:
		}
		select {
		case <-ch:
			s.logger.Debug("variable subscriber lagging, dropped oldest", "name", name)
		default:
		}
		select {
		case ch <- value:
		default:
		}
	}
}
