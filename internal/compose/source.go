// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package compose

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/ManuGH/trainconf/internal/fragment"
)

// Root is one directory of the search path.
type Root struct {
	// Name is shown in provenance and error messages, e.g. "builtin" or a
	// filesystem path.
	Name string
	FS   fs.FS
}

// SearchPath looks fragments up across roots in priority order: the first
// root holding a fragment wins.
type SearchPath struct {
	roots []Root
}

// NewSearchPath returns a search path over roots, highest priority first.
func NewSearchPath(roots ...Root) *SearchPath {
	return &SearchPath{roots: append([]Root(nil), roots...)}
}

// DirRoot returns a search root backed by a directory on disk.
func DirRoot(dir string) Root {
	return Root{Name: dir, FS: os.DirFS(dir)}
}

// Roots returns a copy of the configured roots.
func (s *SearchPath) Roots() []Root {
	return append([]Root(nil), s.roots...)
}

// Load finds and parses the fragment called name. Names are slash-separated
// and may omit the extension.
func (s *SearchPath) Load(name string) (*fragment.Fragment, error) {
	clean := path.Clean(strings.TrimPrefix(name, "/"))
	if clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return nil, fmt.Errorf("%w: invalid fragment name %q", ErrFragmentNotFound, name)
	}

	candidates := []string{clean}
	if path.Ext(clean) == "" || !knownExt(path.Ext(clean)) {
		candidates = candidates[:0]
		for _, ext := range fragment.Extensions {
			candidates = append(candidates, clean+ext)
		}
	}

	for _, root := range s.roots {
		for _, file := range candidates {
			data, err := fs.ReadFile(root.FS, file)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return nil, fmt.Errorf("read %s from %s: %w", file, root.Name, err)
			}
			origin := root.Name + ":" + file
			return fragment.ParseFile(trimExt(clean), origin, data)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrFragmentNotFound, name)
}

// Exists reports whether name can be found without parsing it.
func (s *SearchPath) Exists(name string) bool {
	clean := path.Clean(strings.TrimPrefix(name, "/"))
	for _, root := range s.roots {
		for _, ext := range fragment.Extensions {
			if _, err := fs.Stat(root.FS, clean+ext); err == nil {
				return true
			}
		}
		if knownExt(path.Ext(clean)) {
			if _, err := fs.Stat(root.FS, clean); err == nil {
				return true
			}
		}
	}
	return false
}

func knownExt(ext string) bool {
	for _, e := range fragment.Extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

func trimExt(name string) string {
	if ext := path.Ext(name); knownExt(ext) {
		return strings.TrimSuffix(name, ext)
	}
	return name
}
