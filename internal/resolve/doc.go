// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package resolve evaluates deferred references in a composed tree.
//
// String leaves may embed interpolations:
//
//	${a.b.c}                    absolute path from the root
//	${.x} ${..x}                relative to the containing node, one dot per level
//	${oc.select:path,default}   path lookup with a literal fallback
//	${oc.env:VAR,default}       environment lookup
//
// A leaf that consists of exactly one interpolation takes the referenced
// value with its type; interpolations embedded in longer strings are
// rendered as text. The literal "???" marks a mandatory value that must be
// supplied by a later fragment or override. "\${" escapes an interpolation.
//
// Resolution runs once, after every fragment has been merged.
package resolve
