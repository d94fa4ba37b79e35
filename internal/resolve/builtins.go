// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resolve

import (
	"fmt"
)

// Builtins returns a fresh map of the resolvers every run starts with.
func Builtins() map[string]Func {
	return map[string]Func{
		"oc.select": selectFunc,
		"oc.env":    envFunc,
	}
}

// selectFunc implements ${oc.select:path[,default]}. Without a default an
// absent path is an error, exactly like a plain reference.
func selectFunc(ctx Context, args []any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("%w: oc.select takes 1 or 2 arguments, got %d", ErrInvalidInterpolation, len(args))
	}
	path, ok := args[0].(string)
	if !ok || path == "" {
		return nil, fmt.Errorf("%w: oc.select path must be a string, got %v", ErrInvalidInterpolation, args[0])
	}
	v, found, err := ctx.Select(path)
	if err != nil {
		return nil, err
	}
	if found {
		return v, nil
	}
	if len(args) == 2 {
		return args[1], nil
	}
	return nil, fmt.Errorf("%s: %w", path, ErrUnresolvedReference)
}

// envFunc implements ${oc.env:VAR[,default]}. Values are strings; a null
// default stays null.
func envFunc(ctx Context, args []any) (any, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, fmt.Errorf("%w: oc.env takes 1 or 2 arguments, got %d", ErrInvalidInterpolation, len(args))
	}
	name, ok := args[0].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: oc.env variable name must be a string", ErrInvalidInterpolation)
	}
	if v, ok := ctx.LookupEnv(name); ok {
		return v, nil
	}
	if len(args) == 2 {
		if args[1] == nil {
			return nil, nil
		}
		s, err := render(args[1])
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("environment variable %s: %w", name, ErrUnresolvedReference)
}
