package params

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// maxStoreFileSize bounds parameter files read from disk.
const maxStoreFileSize = 4 * 1024 * 1024

// DefaultStore returns a fresh copy of the built-in simulation parameters.
func DefaultStore() *MapStore {
	s, err := ParseStore(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("params: embedded defaults are invalid: %v", err))
	}
	return s
}

// ParseStore decodes a YAML (or JSON) document of the form
// {collection: {name: value}}.
func ParseStore(data []byte) (*MapStore, error) {
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse parameter file: %w", err)
	}
	return NewMapStore(raw)
}

// LoadStore reads a parameter file from disk. Accepted extensions are .yaml,
// .yml and .json.
func LoadStore(path string) (*MapStore, error) {
	cleanPath := filepath.Clean(path)
	switch ext := filepath.Ext(cleanPath); ext {
	case ".yaml", ".yml", ".json":
	default:
		return nil, fmt.Errorf("parameter file must be .yaml, .yml or .json, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat parameter file: %w", err)
	}
	if info.Size() > maxStoreFileSize {
		return nil, fmt.Errorf("parameter file too large: %d bytes (max %d)", info.Size(), maxStoreFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameter file: %w", err)
	}
	return ParseStore(data)
}

// Merge copies every parameter of src into dst, overwriting existing values.
func Merge(dst *MapStore, src Store) {
	for _, c := range src.Collections() {
		for _, n := range src.Names(c) {
			k := Key{Collection: c, Name: n}
			if v, ok := src.Get(k); ok {
				dst.Set(k, v)
			}
		}
	}
}

// MarshalYAML renders the store in the same layout ParseStore accepts.
func MarshalYAML(s Store) ([]byte, error) {
	out := make(map[string]map[string]any)
	for _, c := range s.Collections() {
		m := make(map[string]any)
		for _, n := range s.Names(c) {
			if v, ok := s.Get(Key{Collection: c, Name: n}); ok {
				m[n] = v.Any()
			}
		}
		out[c] = m
	}
	return yaml.Marshal(out)
}
