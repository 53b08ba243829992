package auth

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const subjectKey ctxKey = "subject"

func SubjectFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(subjectKey)
	s, ok := v.(string)
	return s, ok
}

// RequireAuth guards mutating endpoints. A nil service means no auth
// secret was configured and the endpoint is switched off entirely.
func RequireAuth(jwtSvc *JWT) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if jwtSvc == nil {
				http.Error(w, "trigger auth not configured", http.StatusServiceUnavailable)
				return
			}

			h := r.Header.Get("Authorization")
			if h == "" || !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			token := strings.TrimPrefix(h, "Bearer ")

			sub, err := jwtSvc.Verify(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
