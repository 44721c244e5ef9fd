package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"arabia.app/internal/auth"
	"arabia.app/internal/obs"
)

// Event names emitted by the service.
const (
	LoginSucceeded    = "auth.login.succeeded"
	LoginFailed       = "auth.login.failed"
	RegisterSucceeded = "auth.register.succeeded"
	RefreshSucceeded  = "auth.refresh.succeeded"
	RefreshFailed     = "auth.refresh.failed"
	Logout            = "auth.logout"
	RequestStatus     = "maintenance.request.status_changed"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry enriched with request and user context.
// Callers must not pass secrets in fields.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	zf := []zap.Field{
		zap.String("type", "audit"),
		zap.String("event", event),
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		zf = append(zf, zap.String("request_id", rid))
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		zf = append(zf, zap.String("user_id", userID))
	}
	copyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		copyFields[k] = v
	}
	zf = append(zf, zap.Any("fields", copyFields))
	obs.Logger().Info("audit", zf...)
	return nil
}
