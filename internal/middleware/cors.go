package middleware

import (
	"net/http"
	"strings"
)

// corsExposedHeaders はダッシュボードから参照するレスポンスヘッダー。
// X-Request-Id は問い合わせ時の照合、Retry-After はレート制限時の再試行に使う。
const corsExposedHeaders = "X-Request-Id, Retry-After"

// NewCORSMiddleware はダッシュボードのオリジンからのAPI呼び出しを許可するCORSミドルウェアを返す。
// allowedOrigins はカンマ区切りで複数指定でき、一致したOriginのみをそのまま返す。
// Cookieを使用しないため credentials は許可しない。
func NewCORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	allowed := make(map[string]struct{})
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			allowed[o] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")

			if origin := r.Header.Get("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := w.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
					h.Set("Access-Control-Allow-Headers", "Content-Type")
					h.Set("Access-Control-Expose-Headers", corsExposedHeaders)
					h.Set("Access-Control-Max-Age", "86400")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
