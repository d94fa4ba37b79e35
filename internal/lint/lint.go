// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package lint checks the comment conventions of YAML fragments: every field
// carries a doc comment above it, documented fields are separated by a blank
// line and nothing hides in trailing comments. The checks never change how a
// fragment composes.
package lint

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/trainconf/internal/fragment"
	"github.com/ManuGH/trainconf/internal/tree"
)

// Rule names one comment convention.
type Rule string

const (
	RuleMissingComment   Rule = "missing-comment"
	RuleMissingBlankLine Rule = "missing-blank-line"
	RuleLineComment      Rule = "line-comment"
)

func (r Rule) describe() string {
	switch r {
	case RuleMissingComment:
		return "field has no doc comment above it"
	case RuleMissingBlankLine:
		return "documented field must be separated from the previous one by a blank line"
	case RuleLineComment:
		return "trailing comments are not allowed; move the text above the field"
	default:
		return string(r)
	}
}

// Issue is one violation.
type Issue struct {
	File string
	Line int
	Key  string
	Rule Rule
}

func (i Issue) String() string {
	loc := fmt.Sprintf("%d", i.Line)
	if i.File != "" {
		loc = i.File + ":" + loc
	}
	return fmt.Sprintf("%s: %s: %s", loc, i.Key, i.Rule.describe())
}

// exempt keys need no doc comment of their own.
var exempt = map[string]bool{
	fragment.TargetKey: true,
}

// Check lints one YAML fragment.
func Check(data []byte) ([]Issue, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse YAML: %v", fragment.ErrMalformed, err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", fragment.ErrMalformed)
	}

	c := &checker{}
	c.mapping(root, "", doc.HeadComment)
	sort.SliceStable(c.issues, func(i, j int) bool { return c.issues[i].Line < c.issues[j].Line })
	return c.issues, nil
}

// CheckFile lints the YAML fragment at p.
func CheckFile(p string) ([]Issue, error) {
	if !isYAML(p) {
		return nil, fmt.Errorf("lint %s: only YAML fragments carry comments", p)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	issues, err := Check(data)
	if err != nil {
		return nil, fmt.Errorf("lint %s: %w", p, err)
	}
	for i := range issues {
		issues[i].File = p
	}
	return issues, nil
}

// CheckFS lints every YAML fragment below the root of fsys. Issues carry the
// slash-separated path of their file.
func CheckFS(fsys fs.FS) ([]Issue, error) {
	var out []Issue
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(p) {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		issues, err := Check(data)
		if err != nil {
			return fmt.Errorf("lint %s: %w", p, err)
		}
		for _, is := range issues {
			is.File = p
			out = append(out, is)
		}
		return nil
	})
	return out, err
}

func isYAML(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

type checker struct {
	issues []Issue
}

func (c *checker) add(line int, key string, rule Rule) {
	c.issues = append(c.issues, Issue{Line: line, Key: key, Rule: rule})
}

// mapping checks the keys of m. yaml.v3 attaches the comment above a first key
// to the enclosing mapping (or document) node, so inherited stands in for it.
func (c *checker) mapping(m *yaml.Node, prefix, inherited string) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, val := m.Content[i], m.Content[i+1]
		at := tree.Join(prefix, key.Value)

		head := key.HeadComment
		if i == 0 && head == "" {
			head = m.HeadComment
			if head == "" {
				head = inherited
			}
		}
		if head == "" && !exempt[key.Value] {
			c.add(key.Line, at, RuleMissingComment)
		}
		if i > 0 && key.HeadComment != "" {
			start := key.Line - lineCount(key.HeadComment)
			if start <= entryEnd(m.Content[i-2], m.Content[i-1])+1 {
				c.add(key.Line, at, RuleMissingBlankLine)
			}
		}
		if key.LineComment != "" {
			c.add(key.Line, at, RuleLineComment)
		}

		if prefix == "" && key.Value == fragment.DefaultsKey {
			c.lineComments(val, at)
			continue
		}
		c.value(val, at)
	}
}

func (c *checker) value(n *yaml.Node, at string) {
	if n.LineComment != "" {
		c.add(n.Line, at, RuleLineComment)
	}
	switch n.Kind {
	case yaml.MappingNode:
		c.mapping(n, at, "")
	case yaml.SequenceNode:
		for i, item := range n.Content {
			c.value(item, fmt.Sprintf("%s[%d]", at, i))
		}
	case yaml.AliasNode:
		// anchors are checked where they are defined
	}
}

// lineComments only flags trailing comments below n. Entries of the defaults
// list are exempt from the doc comment rules.
func (c *checker) lineComments(n *yaml.Node, at string) {
	if n.LineComment != "" {
		c.add(n.Line, at, RuleLineComment)
	}
	for _, child := range n.Content {
		c.lineComments(child, at)
	}
}

// entryEnd returns the last line used by one key/value entry, its foot
// comments included.
func entryEnd(key, val *yaml.Node) int {
	end := nodeEnd(val)
	if key.FootComment != "" {
		end += lineCount(key.FootComment)
	}
	return end
}

func nodeEnd(n *yaml.Node) int {
	end := n.Line
	if n.Kind == yaml.ScalarNode && (n.Style&(yaml.LiteralStyle|yaml.FoldedStyle)) != 0 {
		end += strings.Count(strings.TrimSuffix(n.Value, "\n"), "\n") + 1
	}
	for _, child := range n.Content {
		if e := nodeEnd(child); e > end {
			end = e
		}
	}
	if n.FootComment != "" {
		end += lineCount(n.FootComment)
	}
	return end
}

func lineCount(comment string) int {
	return strings.Count(comment, "\n") + 1
}
