package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelength/pavelength/internal/session"
	"github.com/pavelength/pavelength/internal/utils"
)

const (
	// AccessKeyHeader carries the shared access key.
	AccessKeyHeader = "X-Access-Key"
	// AccessKeyParam carries the key on websocket upgrades, where browsers
	// cannot set headers.
	AccessKeyParam = "access_key"
)

type SessionFetcher interface {
	Get(id string) (*session.Session, error)
}

// SessionMiddleware loads the session named by the {id} route parameter
// into the request context.
func SessionMiddleware(fetcher SessionFetcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			if id == "" {
				http.Error(w, "Missing session id", http.StatusBadRequest)
				return
			}

			s, err := fetcher.Get(id)
			if err != nil {
				http.Error(w, "Couldn't find session", http.StatusNotFound)
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.WithSession(r.Context(), s)))
		})
	}
}

// CORSMiddleware echoes the origin back only when it is on the allow-list.
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods",
					"GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers",
					"Content-Type, "+AccessKeyHeader)
			}

			w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, Retry-After")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccessKeyMiddleware requires the X-Access-Key header to match a bcrypt
// hash. Websocket upgrades may pass the key as ?access_key= instead. An
// empty hash lets every request through.
func AccessKeyMiddleware(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if hash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get(AccessKeyHeader)
			if key == "" && websocket.IsWebSocketUpgrade(r) {
				key = r.URL.Query().Get(AccessKeyParam)
			}
			if key == "" {
				http.Error(w, "Unauthorized: missing access key", http.StatusUnauthorized)
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
				http.Error(w, "Forbidden: invalid access key", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
