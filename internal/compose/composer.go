// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package compose

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/trainconf/internal/fragment"
	tclog "github.com/ManuGH/trainconf/internal/log"
	"github.com/ManuGH/trainconf/internal/tree"
)

// Result is the merged, still unresolved, configuration tree.
type Result struct {
	Tree tree.Map
	// Provenance maps each leaf path to the fragment that last set it.
	Provenance map[string]string
	// Fragments lists every fragment applied, in merge order.
	Fragments []string
}

// Composer merges fragments found on a SearchPath.
type Composer struct {
	source *SearchPath
	logger zerolog.Logger
}

// NewComposer returns a Composer reading from source.
func NewComposer(source *SearchPath) *Composer {
	return &Composer{
		source: source,
		logger: tclog.WithComponent("compose"),
	}
}

// Compose builds the tree for the primary fragment name.
func (c *Composer) Compose(ctx context.Context, name string) (*Result, error) {
	logger := tclog.WithContext(ctx, c.logger)
	res := &Result{Tree: tree.Map{}, Provenance: map[string]string{}}

	frag, err := c.source.Load(name)
	if err != nil {
		return nil, err
	}
	if err := c.apply(ctx, logger, res, frag, "", nil); err != nil {
		return nil, err
	}
	prune(res)

	logger.Debug().
		Str(tclog.FieldEvent, "compose.done").
		Str(tclog.FieldFragment, frag.Name).
		Int(tclog.FieldCount, len(res.Fragments)).
		Msg("composed configuration tree")
	return res, nil
}

// apply merges frag and everything it inherits into res at mount.
func (c *Composer) apply(ctx context.Context, logger zerolog.Logger, res *Result, frag *fragment.Fragment, mount string, chain []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, seen := range chain {
		if seen == frag.Name {
			return fmt.Errorf("%w: %s -> %s", ErrInheritanceCycle, strings.Join(chain, " -> "), frag.Name)
		}
	}
	chain = append(chain, frag.Name)

	entries := frag.Defaults
	if !frag.HasSelf() {
		entries = append(append([]fragment.Entry(nil), entries...), fragment.Entry{Self: true})
	}

	for _, entry := range entries {
		if entry.Self {
			c.merge(res, frag.Body, mount, frag.Name)
			res.Fragments = append(res.Fragments, frag.Name)
			logger.Debug().
				Str(tclog.FieldEvent, "compose.fragment_applied").
				Str(tclog.FieldFragment, frag.Name).
				Str(tclog.FieldSource, frag.Origin).
				Str(tclog.FieldPath, mount).
				Msg("applied fragment body")
			continue
		}

		child, err := c.loadEntry(frag, entry)
		if err != nil {
			if entry.Optional && errors.Is(err, ErrFragmentNotFound) {
				logger.Debug().
					Str(tclog.FieldEvent, "compose.optional_skipped").
					Str(tclog.FieldFragment, entry.String()).
					Str(tclog.FieldParent, frag.Name).
					Msg("optional fragment not found")
				continue
			}
			return fmt.Errorf("%s: defaults entry %q: %w", frag.Name, entry.String(), err)
		}

		childMount := mount
		if entry.Group != "" {
			childMount = tree.Join(mount, groupPackage(entry.Group))
		}
		if err := c.apply(ctx, logger, res, child, childMount, chain); err != nil {
			return err
		}
	}
	return nil
}

// loadEntry looks an entry up relative to the referencing fragment's
// directory first, then from the search root.
func (c *Composer) loadEntry(parent *fragment.Fragment, entry fragment.Entry) (*fragment.Fragment, error) {
	name := entry.Name
	if entry.Group != "" {
		name = entry.Group + "/" + entry.Name
	}
	if strings.HasPrefix(name, "/") {
		return c.source.Load(name)
	}
	if dir := path.Dir(parent.Name); dir != "." && entry.Group == "" {
		if rel := path.Join(dir, name); c.source.Exists(rel) {
			return c.source.Load(rel)
		}
	}
	return c.source.Load(name)
}

func (c *Composer) merge(res *Result, body tree.Map, mount, origin string) {
	src := body
	if mount != "" {
		src = tree.Map{}
		// mount comes from group names; Set cannot fail on a fresh map.
		_ = tree.Set(src, mount, tree.Clone(body))
	}
	tree.Merge(res.Tree, src)
	for _, leaf := range tree.Leaves(src) {
		res.Provenance[leaf.Path] = origin
	}
}

// groupPackage maps a group directory onto the key it is mounted at.
func groupPackage(group string) string {
	return strings.ReplaceAll(strings.Trim(group, "/"), "/", ".")
}

// prune drops provenance for leaves that were later replaced wholesale.
func prune(res *Result) {
	live := make(map[string]struct{})
	for _, leaf := range tree.Leaves(res.Tree) {
		live[leaf.Path] = struct{}{}
	}
	for p := range res.Provenance {
		if _, ok := live[p]; !ok {
			delete(res.Provenance, p)
		}
	}
}
