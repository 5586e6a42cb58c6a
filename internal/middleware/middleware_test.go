package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelength/pavelength/internal/dataset"
	"github.com/pavelength/pavelength/internal/loader"
	"github.com/pavelength/pavelength/internal/middleware"
	"github.com/pavelength/pavelength/internal/schema"
	"github.com/pavelength/pavelength/internal/session"
	"github.com/pavelength/pavelength/internal/utils"
)

// mockFetcher implements middleware.SessionFetcher without a session store.
type mockFetcher struct {
	session *session.Session
	err     error
}

func (m mockFetcher) Get(id string) (*session.Session, error) {
	return m.session, m.err
}

func newSession(t *testing.T) *session.Session {
	t.Helper()
	ds, err := dataset.New([]string{"SEG_ID"}, []dataset.Row{{Values: []dataset.Value{dataset.Text("1")}}}, "")
	if err != nil {
		t.Fatal(err)
	}
	store := session.NewStore(session.Deps{Registry: schema.Default()}, 0)
	return store.Create(&loader.Result{Dataset: ds, Shapefile: "roads.shp"}, "")
}

// serve routes path through a chi router so {id} is populated.
func serve(mw func(http.Handler) http.Handler, inner http.Handler, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.With(mw).Get("/sessions/{id}", inner.ServeHTTP)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// TestSessionMiddleware_FetcherError verifies that an unknown session id
// results in a 404 response.
func TestSessionMiddleware_FetcherError(t *testing.T) {
	mw := middleware.SessionMiddleware(mockFetcher{err: errors.New("session not found")})

	rec := serve(mw, ok, "/sessions/nonexistent")

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Couldn't find session") {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
}

// TestSessionMiddleware_ValidSession verifies that the session is injected
// into the request context.
func TestSessionMiddleware_ValidSession(t *testing.T) {
	want := newSession(t)
	mw := middleware.SessionMiddleware(mockFetcher{session: want})

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found := utils.GetSessionFromContext(r.Context())
		if !found {
			http.Error(w, "session not in context", http.StatusInternalServerError)
			return
		}
		if got.ID != want.ID {
			http.Error(w, "wrong session in context: "+got.ID, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	rec := serve(mw, inner, "/sessions/"+want.ID)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d; body: %s", rec.Code, rec.Body.String())
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := middleware.CORSMiddleware([]string{"https://roads.example"})(ok)

	req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	req.Header.Set("Origin", "https://roads.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://roads.example" {
		t.Errorf("expected origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/sessions", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("expected no allow-origin header, got %q", got)
	}
}

// TestAccessKeyMiddleware covers the missing, wrong and correct key paths.
func TestAccessKeyMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	handler := middleware.AccessKeyMiddleware(string(hash))(ok)

	cases := []struct {
		key  string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"guess", http.StatusForbidden},
		{"s3cret", http.StatusOK},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/schema", nil)
		if c.key != "" {
			req.Header.Set(middleware.AccessKeyHeader, c.key)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != c.want {
			t.Errorf("key %q: expected %d, got %d", c.key, c.want, rec.Code)
		}
	}
}

func TestAccessKeyMiddleware_Disabled(t *testing.T) {
	handler := middleware.AccessKeyMiddleware("")(ok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/schema", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

// TestAccessKeyMiddleware_WebsocketParam accepts the key as a query
// parameter only on websocket upgrades.
func TestAccessKeyMiddleware_WebsocketParam(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	handler := middleware.AccessKeyMiddleware(string(hash))(ok)

	upgrade := httptest.NewRequest(http.MethodGet, "/sessions/abc/events?access_key=s3cret", nil)
	upgrade.Header.Set("Connection", "Upgrade")
	upgrade.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, upgrade)
	if rec.Code != http.StatusOK {
		t.Errorf("upgrade with key param: expected 200, got %d", rec.Code)
	}

	plain := httptest.NewRequest(http.MethodGet, "/schema?access_key=s3cret", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, plain)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("plain request with key param: expected 401, got %d", rec.Code)
	}
}
