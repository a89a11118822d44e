package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowedHeaders = "Authorization, Content-Type, X-Request-ID"
	corsAllowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
)

type originSet struct {
	any     bool
	origins map[string]struct{}
}

func newOriginSet(allowed []string) originSet {
	set := originSet{origins: map[string]struct{}{}}
	for _, origin := range allowed {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch origin {
		case "":
		case "*":
			set.any = true
		default:
			set.origins[origin] = struct{}{}
		}
	}
	return set
}

func (s originSet) allows(origin string) bool {
	if s.any {
		return true
	}
	_, ok := s.origins[origin]
	return ok
}

// CORS echoes allowed origins back for the patient app and doctor
// dashboard. "*" allows any origin. Preflights from other origins get 403.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	set := newOriginSet(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			if !set.allows(origin) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
			h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
			h.Set("Access-Control-Max-Age", "600")
			if preflight {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
