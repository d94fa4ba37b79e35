// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package fragment parses a single configuration fragment: its ordered
// defaults list and its own body of fields.
package fragment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/trainconf/internal/tree"
)

// ErrMalformed classifies parse-time structural failures.
var ErrMalformed = errors.New("malformed fragment")

const (
	// DefaultsKey is the reserved top-level key holding the composition list.
	DefaultsKey = "defaults"
	// SelfMarker positions the fragment's own fields inside its defaults list.
	SelfMarker = "_self_"
	// TargetKey names the consuming handler of a (sub-)record.
	TargetKey = "_target_"

	optionalPrefix = "optional "
)

// Format is a supported fragment encoding.
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatJSONC Format = "jsonc"
	FormatTOML  Format = "toml"
)

// Extensions lists recognised file extensions in lookup priority order.
var Extensions = []string{".yaml", ".yml", ".json", ".jsonc", ".toml"}

// FormatForPath picks the decoder from a file name's extension.
func FormatForPath(p string) (Format, error) {
	switch strings.ToLower(path.Ext(p)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".jsonc":
		return FormatJSONC, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q", ErrMalformed, path.Ext(p))
	}
}

// Entry is one element of a defaults list.
type Entry struct {
	// Self marks the position where the fragment's own body is applied.
	Self bool
	// Group, when set, mounts the loaded fragment under this key and looks
	// it up as Group/Name.
	Group string
	// Name is the fragment to inherit.
	Name string
	// Optional entries are skipped when the fragment does not exist.
	Optional bool
}

func (e Entry) String() string {
	switch {
	case e.Self:
		return SelfMarker
	case e.Group != "":
		s := e.Group + ": " + e.Name
		if e.Optional {
			s = optionalPrefix + s
		}
		return s
	default:
		return e.Name
	}
}

// Fragment is one parsed configuration document.
type Fragment struct {
	// Name is the logical name, e.g. "actor/dp_actor".
	Name string
	// Origin describes where the bytes came from, for error messages.
	Origin string
	// Defaults is the composition list, in order. Nil when absent.
	Defaults []Entry
	// Body is the fragment's own fields with the defaults key removed.
	Body tree.Map
}

// HasSelf reports whether the defaults list positions _self_ explicitly.
func (f *Fragment) HasSelf() bool {
	for _, e := range f.Defaults {
		if e.Self {
			return true
		}
	}
	return false
}

// Parse decodes data according to format.
func Parse(name, origin string, format Format, data []byte) (*Fragment, error) {
	raw, err := decode(format, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, origin, err)
	}
	body, err := tree.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, origin, err)
	}
	m, ok := body.(tree.Map)
	if !ok {
		return nil, fmt.Errorf("%w: %s: top level must be a mapping, got %T", ErrMalformed, origin, body)
	}
	if err := tree.CheckKeys(m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, origin, err)
	}

	frag := &Fragment{Name: name, Origin: origin, Body: m}
	if rawDefaults, ok := m[DefaultsKey]; ok {
		delete(m, DefaultsKey)
		entries, err := parseDefaults(rawDefaults)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, origin, err)
		}
		frag.Defaults = entries
	}
	return frag, nil
}

// ParseFile is Parse with the format inferred from origin's extension.
func ParseFile(name, origin string, data []byte) (*Fragment, error) {
	format, err := FormatForPath(origin)
	if err != nil {
		return nil, err
	}
	return Parse(name, origin, format, data)
}

func decode(format Format, data []byte) (any, error) {
	switch format {
	case FormatYAML:
		return decodeYAML(data)
	case FormatJSON:
		return decodeJSON(data)
	case FormatJSONC:
		return decodeJSON(jsonc.ToJSON(data))
	case FormatTOML:
		var out map[string]any
		if err := toml.Unmarshal(data, &out); err != nil {
			return nil, err
		}
		if out == nil {
			out = map[string]any{}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func decodeYAML(data []byte) (any, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	// A fragment is exactly one document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, err
		}
		return nil, errors.New("multiple documents in one fragment")
	}
	if len(doc.Content) == 0 {
		return map[string]any{}, nil
	}
	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return map[string]any{}, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: top level must be a mapping", root.Line)
	}
	var out any
	if err := root.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing content after JSON value")
	}
	return fromJSONNumbers(out)
}

func fromJSONNumbers(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	case map[string]any:
		for k, child := range t {
			c, err := fromJSONNumbers(child)
			if err != nil {
				return nil, err
			}
			t[k] = c
		}
		return t, nil
	case []any:
		for i, child := range t {
			c, err := fromJSONNumbers(child)
			if err != nil {
				return nil, err
			}
			t[i] = c
		}
		return t, nil
	default:
		return t, nil
	}
}

func parseDefaults(raw any) ([]Entry, error) {
	list, ok := raw.([]any)
	if !ok {
		if raw == nil {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("%s must be a list, got %T", DefaultsKey, raw)
	}
	entries := make([]Entry, 0, len(list))
	for i, item := range list {
		switch v := item.(type) {
		case string:
			name := strings.TrimSpace(v)
			if name == "" {
				return nil, fmt.Errorf("%s[%d]: empty fragment name", DefaultsKey, i)
			}
			if name == SelfMarker {
				entries = append(entries, Entry{Self: true})
				continue
			}
			entries = append(entries, Entry{Name: name})
		case tree.Map:
			if len(v) != 1 {
				return nil, fmt.Errorf("%s[%d]: group entry must have exactly one key, got %d", DefaultsKey, i, len(v))
			}
			for key, val := range v {
				e := Entry{Group: strings.TrimSpace(key)}
				if rest, ok := strings.CutPrefix(e.Group, optionalPrefix); ok {
					e.Optional = true
					e.Group = strings.TrimSpace(rest)
				}
				if e.Group == "" || e.Group == SelfMarker {
					return nil, fmt.Errorf("%s[%d]: invalid group %q", DefaultsKey, i, key)
				}
				if val == nil {
					// group explicitly disabled
					continue
				}
				name, ok := val.(string)
				if !ok || strings.TrimSpace(name) == "" {
					return nil, fmt.Errorf("%s[%d]: group %q needs a fragment name, got %v", DefaultsKey, i, e.Group, val)
				}
				e.Name = strings.TrimSpace(name)
				entries = append(entries, e)
			}
		default:
			return nil, fmt.Errorf("%s[%d]: unsupported entry %T", DefaultsKey, i, item)
		}
	}
	return entries, nil
}
