package data

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/l1jgo/resman/internal/resman"
	"gopkg.in/yaml.v3"
)

var ErrUnknownFormat = errors.New("unknown document format")

// YAML returns a typed factory that decodes path into a new T.
// Use it with resman.Register.
func YAML[T any](root string) func(path string) (*T, error) {
	return func(p string) (*T, error) {
		raw, err := ReadFile(root, p)
		if err != nil {
			return nil, err
		}
		v := new(T)
		if err := yaml.Unmarshal(raw, v); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		return v, nil
	}
}

// TOML returns a typed factory that decodes path into a new T. Keys that
// do not map onto T are an error.
func TOML[T any](root string) func(path string) (*T, error) {
	return func(p string) (*T, error) {
		raw, err := ReadFile(root, p)
		if err != nil {
			return nil, err
		}
		v := new(T)
		md, err := toml.Decode(string(raw), v)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parse %s: unknown keys %v", p, undecoded)
		}
		return v, nil
	}
}

// Document is an untyped YAML or TOML document.
type Document struct {
	Path   string
	Format string // "yaml" or "toml"
	Fields map[string]any
}

// Keys returns the top-level keys, sorted.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.Fields))
	for k := range d.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// DocumentFactory decodes .yaml, .yml and .toml files into a Document.
func DocumentFactory(root string) resman.Factory {
	return func(p string) (resman.Resource, error) {
		format, err := formatOf(p)
		if err != nil {
			return nil, err
		}
		raw, err := ReadFile(root, p)
		if err != nil {
			return nil, err
		}

		fields := map[string]any{}
		switch format {
		case "yaml":
			err = yaml.Unmarshal(raw, &fields)
		case "toml":
			err = toml.Unmarshal(raw, &fields)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		return &Document{Path: p, Format: format, Fields: fields}, nil
	}
}

func formatOf(p string) (string, error) {
	switch strings.ToLower(path.Ext(p)) {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".toml":
		return "toml", nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, p)
}
