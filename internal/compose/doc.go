// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package compose builds one configuration tree from a primary fragment by
// walking its defaults list.
//
// Each defaults entry is composed depth-first and merged in list order, so
// later entries override earlier ones field by field while nested mappings
// merge recursively. The fragment's own body is applied at the position of
// the _self_ marker, or last when the marker is absent.
//
// For package architecture see DESIGN.md at the repository root.
package compose
