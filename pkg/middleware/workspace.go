// Package middleware provides shared context helpers usable by both HTTP
// middleware and handlers, independent of the chi router in internal/api.
package middleware

import "context"

type contextKey string

const workspaceKey contextKey = "workspace"

// GetWorkspace extracts the workspace id from the context. Returns
// "default" if none is set.
func GetWorkspace(ctx context.Context) string {
	if v, ok := ctx.Value(workspaceKey).(string); ok && v != "" {
		return v
	}
	return "default"
}

// SetWorkspace stores the workspace id in the context.
func SetWorkspace(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, workspaceKey, workspaceID)
}
