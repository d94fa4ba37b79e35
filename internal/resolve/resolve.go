// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resolve

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/trainconf/internal/tree"
)

// Func is a named resolver, invoked as ${name:arg,...}. Arguments arrive
// evaluated: literals YAML-typed, interpolations resolved.
type Func func(ctx Context, args []any) (any, error)

// Context gives resolvers access to the tree relative to the leaf being
// resolved.
type Context interface {
	// Leaf is the path of the leaf being resolved.
	Leaf() string
	// Select returns the resolved value at path (absolute or relative). ok is
	// false when the path is absent or holds a mandatory placeholder.
	Select(path string) (v any, ok bool, err error)
	// LookupEnv reads an environment variable.
	LookupEnv(name string) (string, bool)
}

// Options tune a resolution run.
type Options struct {
	// Scope restricts which leaves must resolve; references may still reach
	// outside it. Empty means the whole tree.
	Scope string
	// Resolvers adds or replaces named resolvers.
	Resolvers map[string]Func
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

type state uint8

const (
	pending state = iota
	active
	done
	failed
)

type resolver struct {
	out       tree.Map
	states    map[string]state
	failures  map[string]error
	funcs     map[string]Func
	lookupEnv func(string) (string, bool)
}

// Resolve returns a copy of root in which every leaf under opts.Scope, and
// every node those leaves reference, holds a concrete value. All failures of
// the pass are reported together. root itself is not modified. Keys that a
// dotted path cannot address fail with tree.ErrInvalidPath.
func Resolve(root tree.Map, opts Options) (tree.Map, error) {
	if err := tree.CheckKeys(root); err != nil {
		return nil, err
	}
	r := &resolver{
		out:       tree.CloneMap(root),
		states:    make(map[string]state),
		failures:  make(map[string]error),
		funcs:     Builtins(),
		lookupEnv: opts.LookupEnv,
	}
	for name, fn := range opts.Resolvers {
		r.funcs[name] = fn
	}
	if r.lookupEnv == nil {
		r.lookupEnv = os.LookupEnv
	}

	scope, ok := tree.Lookup(r.out, opts.Scope)
	if !ok {
		return nil, &PathError{Path: opts.Scope, Err: ErrUnresolvedReference}
	}

	var errs []error
	for _, leaf := range leavesUnder(opts.Scope, scope) {
		if _, err := r.resolveLeaf(leaf); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r.out, nil
}

func leavesUnder(prefix string, node any) []string {
	var out []string
	if m, ok := node.(tree.Map); ok {
		for _, l := range tree.Leaves(m) {
			out = append(out, joinPath(prefix, l.Path))
		}
		return out
	}
	if l, ok := node.([]any); ok && len(l) > 0 {
		for _, leaf := range tree.Leaves(tree.Map{"x": l}) {
			out = append(out, prefix+strings.TrimPrefix(leaf.Path, "x"))
		}
		return out
	}
	return []string{prefix}
}

func joinPath(prefix, rel string) string {
	if prefix == "" {
		return rel
	}
	if strings.HasPrefix(rel, "[") {
		return prefix + rel
	}
	return prefix + "." + rel
}

// resolveLeaf resolves the leaf at path in place and returns its value.
func (r *resolver) resolveLeaf(path string) (any, error) {
	switch r.states[path] {
	case done:
		v, _ := tree.Lookup(r.out, path)
		return v, nil
	case failed:
		return nil, r.failures[path]
	case active:
		return nil, &PathError{Path: path, Err: ErrReferenceCycle}
	}

	raw, ok := tree.Lookup(r.out, path)
	if !ok {
		return nil, &PathError{Path: path, Err: ErrUnresolvedReference}
	}
	s, isString := raw.(string)
	if !isString || !needsResolution(s) {
		r.states[path] = done
		return raw, nil
	}
	if s == Mandatory {
		return nil, r.fail(path, &PathError{Path: path, Err: ErrMandatoryValue})
	}
	if s == EscapedMandatory {
		if err := tree.Set(r.out, path, Mandatory); err != nil {
			return nil, r.fail(path, &PathError{Path: path, Expr: s, Err: err})
		}
		r.states[path] = done
		return Mandatory, nil
	}

	r.states[path] = active
	v, err := r.evalString(path, s)
	if err != nil {
		var pe *PathError
		if !errors.As(err, &pe) || pe.Path != path {
			err = &PathError{Path: path, Expr: s, Err: err}
		}
		return nil, r.fail(path, err)
	}
	if err := tree.Set(r.out, path, v); err != nil {
		return nil, r.fail(path, &PathError{Path: path, Expr: s, Err: err})
	}
	r.states[path] = done
	return v, nil
}

func (r *resolver) fail(path string, err error) error {
	r.states[path] = failed
	r.failures[path] = err
	return err
}

// resolveNode makes every leaf below abs concrete and returns a copy of the
// node. ok is false when abs does not exist or holds "???".
func (r *resolver) resolveNode(abs string) (any, bool, error) {
	node, ok := tree.Lookup(r.out, abs)
	if !ok {
		return nil, false, nil
	}
	if s, isString := node.(string); isString && s == Mandatory && r.states[abs] != done {
		return nil, false, nil
	}
	for _, leaf := range leavesUnder(abs, node) {
		if _, err := r.resolveLeaf(leaf); err != nil {
			return nil, false, err
		}
	}
	node, _ = tree.Lookup(r.out, abs)
	return tree.Clone(node), true, nil
}

func (r *resolver) evalString(leaf, s string) (any, error) {
	parts, err := parse(s)
	if err != nil {
		return nil, err
	}
	return r.evalParts(leaf, parts)
}

func (r *resolver) evalParts(leaf string, parts []part) (any, error) {
	if len(parts) == 1 {
		if parts[0].expr == nil {
			return parts[0].lit, nil
		}
		return r.evalExpr(leaf, parts[0].expr)
	}
	var b strings.Builder
	for _, p := range parts {
		if p.expr == nil {
			b.WriteString(p.lit)
			continue
		}
		v, err := r.evalExpr(leaf, p.expr)
		if err != nil {
			return nil, err
		}
		s, err := render(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.expr.raw, err)
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

func (r *resolver) evalExpr(leaf string, e *expr) (any, error) {
	if e.resolver == "" {
		abs, err := absolute(e.path, leaf)
		if err != nil {
			return nil, err
		}
		v, ok, err := r.resolveNode(abs)
		if err != nil {
			return nil, err
		}
		if !ok {
			if raw, exists := tree.Lookup(r.out, abs); exists && raw == Mandatory {
				return nil, fmt.Errorf("%s: %w", abs, ErrMandatoryValue)
			}
			return nil, fmt.Errorf("%s: %w", abs, ErrUnresolvedReference)
		}
		return v, nil
	}

	fn, ok := r.funcs[e.resolver]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownResolver, e.resolver)
	}
	args := make([]any, len(e.args))
	for i, a := range e.args {
		v, err := r.evalArg(leaf, a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return fn(&leafContext{r: r, leaf: leaf}, args)
}

// evalArg types a literal argument as YAML; interpolated arguments keep the
// referenced value or render into text.
func (r *resolver) evalArg(leaf string, parts []part) (any, error) {
	if len(parts) == 1 && parts[0].expr == nil {
		return literal(parts[0].lit), nil
	}
	return r.evalParts(leaf, parts)
}

func literal(s string) any {
	if s == "" {
		return ""
	}
	var v any
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	n, err := tree.Normalize(v)
	if err != nil {
		return s
	}
	switch n.(type) {
	case tree.Map, []any:
		// flow collections are not supported as fallbacks; keep the text
		return s
	}
	return n
}

func render(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "null", nil
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case int:
		return strconv.Itoa(t), nil
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: cannot embed %T in a string", ErrInvalidInterpolation, v)
	}
}

// absolute turns a possibly relative reference into a root-based path.
func absolute(ref, leaf string) (string, error) {
	dots := len(ref) - len(strings.TrimLeft(ref, "."))
	rest := ref[dots:]
	if dots == 0 {
		if _, err := tree.ParsePath(rest); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidInterpolation, err)
		}
		return rest, nil
	}

	segs, err := tree.ParsePath(leaf)
	if err != nil || len(segs) == 0 {
		return "", fmt.Errorf("%w: relative reference %q outside a mapping", ErrInvalidInterpolation, ref)
	}
	base := segs[:len(segs)-1]
	up := dots - 1
	if up > len(base) {
		return "", fmt.Errorf("%s: %w: relative reference climbs above the root", ref, ErrUnresolvedReference)
	}
	base = base[:len(base)-up]
	tail, err := tree.ParsePath(rest)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInterpolation, err)
	}
	full := append(append([]tree.Segment(nil), base...), tail...)
	return tree.FormatPath(full), nil
}

type leafContext struct {
	r    *resolver
	leaf string
}

func (c *leafContext) Leaf() string { return c.leaf }

func (c *leafContext) Select(path string) (any, bool, error) {
	abs, err := absolute(path, c.leaf)
	if err != nil {
		if errors.Is(err, ErrUnresolvedReference) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return c.r.resolveNode(abs)
}

func (c *leafContext) LookupEnv(name string) (string, bool) {
	return c.r.lookupEnv(name)
}
