// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"errors"

	"github.com/ManuGH/trainconf/internal/compose"
	"github.com/ManuGH/trainconf/internal/fragment"
	"github.com/ManuGH/trainconf/internal/resolve"
)

// ErrSchema is returned when the resolved tree does not construct a valid
// record: unknown fields, wrong types, unknown targets or failed validation.
var ErrSchema = errors.New("schema violation")

// Errors of the earlier stages, re-exported so callers need only this package.
var (
	ErrMalformed           = fragment.ErrMalformed
	ErrFragmentNotFound    = compose.ErrFragmentNotFound
	ErrInheritanceCycle    = compose.ErrInheritanceCycle
	ErrOverride            = compose.ErrOverride
	ErrUnresolvedReference = resolve.ErrUnresolvedReference
	ErrMandatoryValue      = resolve.ErrMandatoryValue
	ErrReferenceCycle      = resolve.ErrReferenceCycle
)
