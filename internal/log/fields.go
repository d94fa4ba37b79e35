// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldResolutionID = "resolution_id"
	FieldComponent    = "component"
	FieldEvent        = "event"

	// Composition fields
	FieldFragment = "fragment"
	FieldParent   = "parent"
	FieldSource   = "source"
	FieldPath     = "path"
	FieldOverride = "override"
	FieldTarget   = "target"

	// Outcome fields
	FieldCount    = "count"
	FieldDuration = "duration_ms"
	FieldResult   = "result"
)
