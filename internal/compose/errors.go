// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package compose

import "errors"

var (
	// ErrFragmentNotFound is returned when a defaults entry names a fragment
	// that no search root provides.
	ErrFragmentNotFound = errors.New("fragment not found")

	// ErrInheritanceCycle is returned when a fragment transitively inherits itself.
	ErrInheritanceCycle = errors.New("inheritance cycle")

	// ErrOverride classifies invalid or inapplicable command-line overrides.
	ErrOverride = errors.New("invalid override")
)
