package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppDir is the directory name under the XDG bases that holds the
// config file and stylesheet.
const AppDir = "pulsebar"

// Load reads configuration from the standard config path.
// Search order:
//  1. $XDG_CONFIG_HOME/pulsebar/config.<ext>
//  2. ~/.config/pulsebar/config.<ext>
//
// with every registered extension tried per directory, first hit wins.
// If no file exists, returns DefaultRoot().
func Load() (*Root, error) {
	path, ok := FindConfig()
	if !ok {
		root := DefaultRoot()
		applyEnvOverrides(root)
		return root, nil
	}
	return LoadFromFile(path)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Root, error) {
	dec, ok := DecoderFor(path)
	if !ok {
		return nil, fmt.Errorf("config %s: unsupported format %q", path, filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := dec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	root, err := FromMap(raw)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	applyEnvOverrides(root)
	if err := root.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return root, nil
}

// FindConfig returns the first existing config file on the search path.
func FindConfig() (string, bool) {
	for _, dir := range searchDirs() {
		for _, ext := range extensions() {
			p := filepath.Join(dir, "config"+ext)
			if _, err := os.Stat(p); err == nil {
				return p, true
			}
		}
	}
	return "", false
}

// StylePath returns the stylesheet path next to the loaded config, or
// the default location when no config file exists.
func StylePath() string {
	if p, ok := FindConfig(); ok {
		return filepath.Join(filepath.Dir(p), "theme.toml")
	}
	dirs := searchDirs()
	return filepath.Join(dirs[0], "theme.toml")
}

// searchDirs returns the ordered list of config directories to try.
func searchDirs() []string {
	home, _ := os.UserHomeDir()
	var dirs []string

	xdg := xdgConfigHome(home)
	dirs = append(dirs, filepath.Join(xdg, AppDir))

	// If XDG_CONFIG_HOME was explicitly set, also try the fallback default.
	defaultXDG := filepath.Join(home, ".config")
	if xdg != defaultXDG {
		dirs = append(dirs, filepath.Join(defaultXDG, AppDir))
	}

	return dirs
}

// xdgConfigHome returns XDG_CONFIG_HOME or ~/.config as fallback.
func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}

// RuntimeDir returns the per-user runtime directory for sockets,
// falling back to the temp dir when XDG_RUNTIME_DIR is unset.
func RuntimeDir() string {
	if v := os.Getenv("XDG_RUNTIME_DIR"); v != "" {
		return filepath.Join(v, AppDir)
	}
	return filepath.Join(os.TempDir(), AppDir)
}
