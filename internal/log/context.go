// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey string

const resolutionIDKey ctxKey = "resolution_id"

// NewResolutionID returns a fresh identifier for one composition run.
func NewResolutionID() string {
	return uuid.NewString()
}

// ContextWithResolutionID stores the provided resolution ID in the context.
func ContextWithResolutionID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, resolutionIDKey, id)
}

// ResolutionIDFromContext extracts the resolution ID from context if present.
func ResolutionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(resolutionIDKey).(string); ok {
		return v
	}
	return ""
}

// WithContext enriches the supplied logger with correlation fields from context.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return logger
	}
	rid := ResolutionIDFromContext(ctx)
	if rid == "" {
		return logger
	}
	return logger.With().Str(FieldResolutionID, rid).Logger()
}

// WithComponentFromContext returns a logger that is annotated with the component
// name and enriched with correlation fields from ctx.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
