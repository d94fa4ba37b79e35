// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resolve

import (
	"errors"
	"fmt"
)

var (
	// ErrUnresolvedReference is returned for a reference to an absent path
	// with no fallback.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrMandatoryValue is returned for a "???" leaf nobody supplied.
	ErrMandatoryValue = errors.New("missing mandatory value")

	// ErrReferenceCycle is returned when references form a loop.
	ErrReferenceCycle = errors.New("reference cycle")

	// ErrInvalidInterpolation is returned for syntactically invalid interpolations.
	ErrInvalidInterpolation = errors.New("invalid interpolation")

	// ErrUnknownResolver is returned for ${name:...} with an unregistered name.
	ErrUnknownResolver = errors.New("unknown resolver")
)

// PathError attaches the offending leaf to a resolution failure.
type PathError struct {
	Path string
	Expr string
	Err  error
}

func (e *PathError) Error() string {
	if e.Expr == "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %q: %v", e.Path, e.Expr, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }
