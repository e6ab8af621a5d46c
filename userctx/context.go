package userctx

import "context"

// Context key type
type contextKey string

const (
	userIDKey   contextKey = "user_id"
	userNameKey contextKey = "user_name"
)

// SetUserID adds the authenticated user's id to the request context
func SetUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// GetUserID retrieves the user id from the request context; empty when the
// request is unauthenticated or system-originated.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// SetUserName adds the user's display name to the request context
func SetUserName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, userNameKey, name)
}

// GetUserName retrieves the user's display name from the request context
func GetUserName(ctx context.Context) string {
	if name, ok := ctx.Value(userNameKey).(string); ok {
		return name
	}
	return ""
}
