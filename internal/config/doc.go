// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config builds the typed actor record from composed fragments.
//
// Loading runs parse, compose, overrides, mount, resolve, decode and
// validate in that order. Every stage fails hard; the result is an
// immutable Snapshot. Holder keeps the current Snapshot for long-running
// processes and reloads it when the search path changes on disk.
package config
