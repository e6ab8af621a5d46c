package middleware

import (
	"encoding/json"
	"net/http"

	"gitea.com/go-chi/session"

	"github.com/blogem/planning-tools/userctx"
)

// RequireAuth ensures the request carries an authenticated session. The API
// serves a SPA frontend, so unauthenticated requests get a JSON 401 rather
// than a redirect.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := session.GetSession(r)

		userID, ok := sess.Get("user_id").(string)
		if !ok || userID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]any{
					"message": "Authentication required",
					"status":  http.StatusUnauthorized,
				},
			})
			return
		}

		ctx := userctx.SetUserID(r.Context(), userID)
		if name, ok := sess.Get("user_name").(string); ok {
			ctx = userctx.SetUserName(ctx, name)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
