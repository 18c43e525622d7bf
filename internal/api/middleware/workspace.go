package middleware

import (
	"context"
	"net/http"
	"strings"

	pkgmw "github.com/tasteos/cook-session-engine/pkg/middleware"
)

type contextKey string

const (
	// WorkspaceIDKey is the context key for the workspace id.
	WorkspaceIDKey contextKey = "workspace_id"
)

// WorkspaceExtractor extracts the workspace id from the request. It checks
// the X-Workspace-Id header, then the workspace_id query parameter, and
// falls back to "default".
func WorkspaceExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workspace := ""

		if h := r.Header.Get("X-Workspace-Id"); h != "" {
			workspace = strings.TrimSpace(h)
		}

		if workspace == "" {
			if q := r.URL.Query().Get("workspace_id"); q != "" {
				workspace = strings.TrimSpace(q)
			}
		}

		if workspace == "" {
			workspace = "default"
		}

		ctx := pkgmw.SetWorkspace(r.Context(), workspace)
		ctx = context.WithValue(ctx, WorkspaceIDKey, workspace)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetWorkspace retrieves the workspace id from the request context.
func GetWorkspace(ctx context.Context) string {
	return pkgmw.GetWorkspace(ctx)
}
