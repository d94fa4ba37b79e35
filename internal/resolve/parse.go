// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resolve

import (
	"fmt"
	"regexp"
	"strings"
)

// Mandatory is the placeholder for a value that must be supplied.
const Mandatory = "???"

// EscapedMandatory is a whole value that resolves to the literal text "???".
const EscapedMandatory = `\???`

var resolverName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// part is a literal run or one interpolation.
type part struct {
	lit  string
	expr *expr
}

type expr struct {
	raw      string
	path     string
	resolver string
	args     [][]part
	argText  []string
}

// needsResolution reports whether s has to go through the resolver.
func needsResolution(s string) bool {
	return s == Mandatory || s == EscapedMandatory || strings.Contains(s, "${")
}

// parse splits s into literal and interpolation parts.
func parse(s string) ([]part, error) {
	var parts []part
	var lit strings.Builder
	for i := 0; i < len(s); {
		if strings.HasPrefix(s[i:], `\${`) {
			lit.WriteString("${")
			i += 3
			continue
		}
		if !strings.HasPrefix(s[i:], "${") {
			lit.WriteByte(s[i])
			i++
			continue
		}
		end, err := matchBrace(s, i+2)
		if err != nil {
			return nil, err
		}
		e, err := parseExpr(s[i+2 : end])
		if err != nil {
			return nil, err
		}
		e.raw = s[i : end+1]
		if lit.Len() > 0 {
			parts = append(parts, part{lit: lit.String()})
			lit.Reset()
		}
		parts = append(parts, part{expr: e})
		i = end + 1
	}
	if lit.Len() > 0 || len(parts) == 0 {
		parts = append(parts, part{lit: lit.String()})
	}
	return parts, nil
}

// matchBrace returns the index of the "}" closing an interpolation whose
// body starts at from.
func matchBrace(s string, from int) (int, error) {
	depth := 1
	var quote byte
	for i := from; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			quote = c
		case c == '$' && i+1 < len(s) && s[i+1] == '{':
			depth++
			i++
		case c == '}':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: unterminated ${ in %q", ErrInvalidInterpolation, s)
}

func parseExpr(body string) (*expr, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("%w: empty ${}", ErrInvalidInterpolation)
	}
	name, rest, isCall := strings.Cut(body, ":")
	if isCall && resolverName.MatchString(strings.TrimSpace(name)) {
		e := &expr{resolver: strings.TrimSpace(name)}
		for _, a := range splitArgs(rest) {
			a = strings.TrimSpace(a)
			parts, err := parse(a)
			if err != nil {
				return nil, err
			}
			e.args = append(e.args, parts)
			e.argText = append(e.argText, a)
		}
		return e, nil
	}
	if strings.Contains(body, "${") || strings.ContainsAny(body, " ,:'\"") {
		return nil, fmt.Errorf("%w: bad reference %q", ErrInvalidInterpolation, body)
	}
	return &expr{path: body}, nil
}

// splitArgs splits resolver arguments on top-level commas.
func splitArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	depth := 0
	var quote byte
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			quote = c
		case c == '$' && i+1 < len(s) && s[i+1] == '{':
			depth++
			i++
		case c == '}':
			depth--
		case c == ',' && depth == 0:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}
