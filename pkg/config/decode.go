package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Decoder turns one serialization syntax into the normalized config
// tree. Bar-specific dialects register here and never touch the rest of
// the loader.
type Decoder struct {
	Name       string
	Extensions []string
	Decode     func(data []byte) (map[string]any, error)
}

var (
	decoderMu sync.RWMutex
	decoders  = []Decoder{
		{
			Name:       "toml",
			Extensions: []string{".toml"},
			Decode: func(data []byte) (map[string]any, error) {
				var m map[string]any
				if err := toml.Unmarshal(data, &m); err != nil {
					return nil, err
				}
				return m, nil
			},
		},
		{
			Name:       "yaml",
			Extensions: []string{".yaml", ".yml"},
			Decode: func(data []byte) (map[string]any, error) {
				var m map[string]any
				if err := yaml.Unmarshal(data, &m); err != nil {
					return nil, err
				}
				return m, nil
			},
		},
		{
			Name:       "json",
			Extensions: []string{".json"},
			Decode: func(data []byte) (map[string]any, error) {
				var m map[string]any
				if err := json.Unmarshal(data, &m); err != nil {
					return nil, err
				}
				return m, nil
			},
		},
	}
)

// RegisterDecoder adds a config dialect. Later registrations win when
// extensions collide.
func RegisterDecoder(d Decoder) {
	decoderMu.Lock()
	defer decoderMu.Unlock()
	decoders = append([]Decoder{d}, decoders...)
}

// DecoderFor matches a decoder by file extension.
func DecoderFor(path string) (Decoder, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	decoderMu.RLock()
	defer decoderMu.RUnlock()
	for _, d := range decoders {
		for _, e := range d.Extensions {
			if e == ext {
				return d, true
			}
		}
	}
	return Decoder{}, false
}

// extensions returns every registered extension in priority order.
func extensions() []string {
	decoderMu.RLock()
	defer decoderMu.RUnlock()
	var exts []string
	for _, d := range decoders {
		exts = append(exts, d.Extensions...)
	}
	return exts
}

// FromMap builds a Root from a normalized tree, applying defaults for
// absent fields.
func FromMap(raw map[string]any) (*Root, error) {
	root := DefaultRoot()
	if len(raw) > 0 {
		// The file replaces the default module layout entirely.
		root.End = nil
	}
	if err := decodeMap(raw, root); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return root, nil
}

// decodeMap decodes a normalized tree into a tagged struct, converting
// strings and bare numbers into Duration fields along the way.
func decodeMap(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: durationHook,
		Result:     out,
		TagName:    "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

var durationType = reflect.TypeOf(Duration{})

func durationHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	var d Duration
	switch v := data.(type) {
	case string:
		if err := d.parse(v); err != nil {
			return nil, err
		}
	case int:
		if err := d.fromSeconds(float64(v)); err != nil {
			return nil, err
		}
	case int64:
		if err := d.fromSeconds(float64(v)); err != nil {
			return nil, err
		}
	case uint64:
		if err := d.fromSeconds(float64(v)); err != nil {
			return nil, err
		}
	case float64:
		if err := d.fromSeconds(v); err != nil {
			return nil, err
		}
	default:
		return data, nil
	}
	return d, nil
}
