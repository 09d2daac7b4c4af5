package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	userIDKey    contextKey = "user_id"
	contextIDKey contextKey = "context_id"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithUserID adds the acting user to the context.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the acting user from context.
// The second return value is false when no user is attached.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}

// WithContextID adds the journal/press context id to the context.
func WithContextID(ctx context.Context, contextID int64) context.Context {
	return context.WithValue(ctx, contextIDKey, contextID)
}

// ContextIDFromContext retrieves the journal/press context id.
func ContextIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(contextIDKey).(int64)
	return id, ok
}

// RequestContext bundles the request data carried through a context.
type RequestContext struct {
	RequestID string
	UserID    int64
	ContextID int64
}

// WithRequestContextFull adds every non-zero field of rc to the context.
func WithRequestContextFull(ctx context.Context, rc RequestContext) context.Context {
	if rc.RequestID != "" {
		ctx = WithRequestID(ctx, rc.RequestID)
	}
	if rc.UserID != 0 {
		ctx = WithUserID(ctx, rc.UserID)
	}
	if rc.ContextID != 0 {
		ctx = WithContextID(ctx, rc.ContextID)
	}
	return ctx
}

// RequestContextFrom extracts all request data from the context.
func RequestContextFrom(ctx context.Context) RequestContext {
	userID, _ := UserIDFromContext(ctx)
	contextID, _ := ContextIDFromContext(ctx)
	return RequestContext{
		RequestID: RequestIDFromContext(ctx),
		UserID:    userID,
		ContextID: contextID,
	}
}
