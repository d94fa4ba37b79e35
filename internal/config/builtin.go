// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"embed"
	"io/fs"

	"github.com/ManuGH/trainconf/internal/compose"
)

//go:embed builtin
var builtinFS embed.FS

// BuiltinRootName labels fragments shipped with the binary.
const BuiltinRootName = "builtin"

// Builtin returns the search root holding the embedded fragments.
func Builtin() compose.Root {
	sub, err := fs.Sub(builtinFS, "builtin")
	if err != nil {
		panic(err) // embedded layout is fixed at build time
	}
	return compose.Root{Name: BuiltinRootName, FS: sub}
}
