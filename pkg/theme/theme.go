// Package theme holds the bar's color palettes. Built-in palettes are
// registered at init; a theme.toml next to the bar config can add or
// shadow entries. All colors are #RRGGBB hex, which both the terminal
// styles and the swaybar protocol consume directly.
package theme

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Theme is one named palette.
type Theme struct {
	Name string

	// Bar colors.
	Background string
	Foreground string
	Dim        string
	Accent     string
	Urgent     string
	Separator  string

	// Popup colors.
	PopupBackground string
	PopupForeground string
	PopupBorder     string

	// Classes maps module class names to foreground colors.
	Classes map[string]string
}

var (
	mu       sync.RWMutex
	registry = map[string]Theme{}
)

func init() {
	for _, t := range builtins() {
		Register(t)
	}
}

// Register adds a theme under its lowercased name. Registering an
// existing name replaces it, so user themes can shadow builtins.
func Register(t Theme) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(t.Name)] = t
}

// Get returns a named theme and whether it exists.
func Get(name string) (Theme, bool) {
	mu.RLock()
	defer mu.RUnlock()
	t, ok := registry[strings.ToLower(name)]
	return t, ok
}

// GetOrDefault returns a named theme, falling back to "default".
func GetOrDefault(name string) Theme {
	if t, ok := Get(name); ok {
		return t
	}
	t, _ := Get("default")
	return t
}

// Names lists the registered themes, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFile parses a TOML theme file and registers it.
func LoadFile(path string) (Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Theme{}, fmt.Errorf("theme: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return Theme{}, fmt.Errorf("theme %s: %w", path, err)
	}
	Register(t)
	return t, nil
}

// ClassColor resolves a module class to a color, empty when the theme
// has no entry for it.
func (t Theme) ClassColor(class string) string {
	return t.Classes[class]
}
