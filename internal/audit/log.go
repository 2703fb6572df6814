// Package audit emits structured audit events for every mutating operation.
// Events go through the shared logger so they end up in the same sink as
// application logs, tagged with type=audit.
package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"bank.com/mop/internal/obs"
	"bank.com/mop/internal/rbac"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry enriched with request and actor context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	zfields := make([]zap.Field, 0, len(fields)+4)
	zfields = append(zfields, zap.String("type", "audit"), zap.String("event", event))
	if rid := RequestIDFromContext(ctx); rid != "" {
		zfields = append(zfields, zap.String("request_id", rid))
	}
	if p, ok := rbac.PrincipalFromContext(ctx); ok {
		zfields = append(zfields, zap.String("actor_id", p.User.ID), zap.String("actor_role", p.Role.ID))
	}
	for k, v := range fields {
		zfields = append(zfields, zap.Any(k, v))
	}
	obs.Logger().Info("audit", zfields...)
	return nil
}
