package logging

import (
	"context"
)

const (
	SessionIDKey = "session_id"
	EventIDKey   = "event_id"
	AppIDKey     = "app_id"
)

type ctxKey string

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ctxKey(SessionIDKey), sessionID)
}

func WithEventID(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, ctxKey(EventIDKey), eventID)
}

func WithAppID(ctx context.Context, appID string) context.Context {
	return context.WithValue(ctx, ctxKey(AppIDKey), appID)
}

func GetSessionID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey(SessionIDKey)).(string); ok {
		return v
	}
	return ""
}

func GetEventID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey(EventIDKey)).(string); ok {
		return v
	}
	return ""
}

func GetAppID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey(AppIDKey)).(string); ok {
		return v
	}
	return ""
}

// GetLogFields returns the context values as zap-style key/value pairs.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 6)

	if v := GetSessionID(ctx); v != "" {
		fields = append(fields, SessionIDKey, v)
	}

	if v := GetEventID(ctx); v != "" {
		fields = append(fields, EventIDKey, v)
	}

	if v := GetAppID(ctx); v != "" {
		fields = append(fields, AppIDKey, v)
	}

	return fields
}
