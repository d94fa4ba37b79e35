// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/trainconf/internal/tree"
)

// Decode constructs the typed record from a resolved actor tree. Targets are
// checked against the registry first; the decode itself is strict, so unknown
// fields and type mismatches fail. Decode does not run Validate.
func Decode(record tree.Map) (FSDPActorConfig, error) {
	reg, err := GetRegistry()
	if err != nil {
		return FSDPActorConfig{}, err
	}
	if err := reg.CheckTargets(record); err != nil {
		return FSDPActorConfig{}, err
	}

	data, err := yaml.Marshal(record)
	if err != nil {
		return FSDPActorConfig{}, fmt.Errorf("%w: encode tree: %v", ErrSchema, err)
	}
	var cfg FSDPActorConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return FSDPActorConfig{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return cfg, nil
}

// Build decodes and validates the record in one step.
func Build(record tree.Map) (FSDPActorConfig, error) {
	cfg, err := Decode(record)
	if err != nil {
		return FSDPActorConfig{}, err
	}
	if err := Validate(cfg); err != nil {
		return FSDPActorConfig{}, err
	}
	return cfg, nil
}
