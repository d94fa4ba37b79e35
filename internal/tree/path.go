// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package tree

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidPath is returned for syntactically invalid paths.
var ErrInvalidPath = errors.New("invalid path")

// Segment is one step of a parsed path: a mapping key or a list index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

func (s Segment) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

// ParsePath splits a dotted path into segments. The empty path addresses the
// root and yields no segments.
func ParsePath(path string) ([]Segment, error) {
	if path == "" {
		return nil, nil
	}
	var segs []Segment
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, fmt.Errorf("%w %q: empty key", ErrInvalidPath, path)
		}
		key := part
		var idx []int
		if open := strings.IndexByte(part, '['); open >= 0 {
			key = part[:open]
			rest := part[open:]
			for rest != "" {
				if rest[0] != '[' {
					return nil, fmt.Errorf("%w %q: unexpected %q", ErrInvalidPath, path, rest)
				}
				end := strings.IndexByte(rest, ']')
				if end < 0 {
					return nil, fmt.Errorf("%w %q: unterminated index", ErrInvalidPath, path)
				}
				n, err := strconv.Atoi(rest[1:end])
				if err != nil || n < 0 {
					return nil, fmt.Errorf("%w %q: bad index %q", ErrInvalidPath, path, rest[1:end])
				}
				idx = append(idx, n)
				rest = rest[end+1:]
			}
		}
		if key != "" {
			segs = append(segs, Segment{Key: key})
		} else if len(segs) == 0 && len(idx) == 0 {
			return nil, fmt.Errorf("%w %q: empty key", ErrInvalidPath, path)
		}
		for _, n := range idx {
			segs = append(segs, Segment{Index: n, IsIndex: true})
		}
	}
	return segs, nil
}

// FormatPath renders segments back into the dotted form accepted by ParsePath.
func FormatPath(segs []Segment) string {
	var b strings.Builder
	for i, s := range segs {
		if !s.IsIndex && i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.String())
	}
	return b.String()
}

// Join appends a mapping key to a dotted parent path.
func Join(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// CheckKeys reports the first mapping key below root that cannot be addressed
// by a dotted path: an empty key or one containing '.', '[' or ']'.
func CheckKeys(root Map) error {
	return checkKeys("", root)
}

func checkKeys(prefix string, v any) error {
	switch node := v.(type) {
	case Map:
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == "" || strings.ContainsAny(k, ".[]") {
				at := prefix
				if at == "" {
					at = "<root>"
				}
				return fmt.Errorf("%w: key %q under %s: keys may not be empty or contain '.', '[' or ']'", ErrInvalidPath, k, at)
			}
			if err := checkKeys(Join(prefix, k), node[k]); err != nil {
				return err
			}
		}
	case []any:
		for i, child := range node {
			if err := checkKeys(fmt.Sprintf("%s[%d]", prefix, i), child); err != nil {
				return err
			}
		}
	}
	return nil
}

// Parent returns the path of the node containing path, and false for the root.
func Parent(path string) (string, bool) {
	segs, err := ParsePath(path)
	if err != nil || len(segs) == 0 {
		return "", false
	}
	return FormatPath(segs[:len(segs)-1]), true
}
