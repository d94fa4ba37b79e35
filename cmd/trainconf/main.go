// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// trainconf composes, resolves and validates the declarative actor
// configuration of FSDP training workers.
//
// Usage:
//
//	trainconf resolve [overrides...]
//	trainconf validate --world-size 8 fsdp_config.fsdp_size=4
//	trainconf explain --prefix optim
//	trainconf lint [files or directories...]
//	trainconf watch --config-dir ./conf
//
// Exit codes:
//   - 0: success
//   - 1: the configuration is invalid or the command failed
//   - 2: usage error
package main

import (
	"os"

	"github.com/ManuGH/trainconf/cmd/trainconf/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
