package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

// newTestChain は本番と同じ順序でミドルウェアを組み立てたルーターを返す。
func newTestChain(t *testing.T, logBuf *bytes.Buffer) http.Handler {
	t.Helper()
	rl := newTestRateLimiter(t, 10, 1)

	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware())
	r.Use(NewLoggingMiddleware(newJSONLogger(logBuf), nil))
	r.Use(NewSecurityHeadersMiddleware(false))
	r.Use(NewCORSMiddleware("https://app.autosmm.example"))

	r.Group(func(r chi.Router) {
		r.Use(NewSessionMiddleware(sessionRepoFor("sess", "user-1")))
		r.Use(rl.GeneralMiddleware())
		r.Use(NewCSRFMiddleware(CSRFConfig{}))
		r.Get("/api/dashboard", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		r.With(rl.PostCreationMiddleware()).Post("/api/posts", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
		r.Get("/api/panic", func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		})
	})
	return r
}

func authed(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess"})
	return req
}

func TestMiddlewareChain_AuthenticatedGET(t *testing.T) {
	var buf bytes.Buffer
	w := httptest.NewRecorder()
	newTestChain(t, &buf).ServeHTTP(w, authed(httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should be set")
	}
	if findCookie(w, csrfCookieName) == nil {
		t.Error("csrf cookie should be issued on GET")
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"user_id":"user-1"`)) {
		t.Errorf("log should contain user id: %s", buf.String())
	}
}

// TestMiddlewareChain_NoSession_Returns401 はセッション検証がCSRF検証より先に行われることを検証する。
func TestMiddlewareChain_NoSession_Returns401(t *testing.T) {
	var buf bytes.Buffer
	chain := newTestChain(t, &buf)

	w := httptest.NewRecorder()
	chain.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("GET without session: status = %d, want 401", w.Code)
	}

	// CSRFトークンなしでも403ではなく401
	w = httptest.NewRecorder()
	chain.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/posts", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("POST without session: status = %d, want 401", w.Code)
	}
}

// TestMiddlewareChain_POSTRequiresCSRF は認証済みのPOSTでもCSRFトークンが必須であることを検証する。
func TestMiddlewareChain_POSTRequiresCSRF(t *testing.T) {
	var buf bytes.Buffer
	chain := newTestChain(t, &buf)

	w := httptest.NewRecorder()
	chain.ServeHTTP(w, authed(httptest.NewRequest(http.MethodPost, "/api/posts", nil)))
	if w.Code != http.StatusForbidden {
		t.Fatalf("without token: status = %d, want 403", w.Code)
	}

	send := func() int {
		req := authed(httptest.NewRequest(http.MethodPost, "/api/posts", nil))
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "tok"})
		req.Header.Set(csrfHeaderName, "tok")
		w := httptest.NewRecorder()
		chain.ServeHTTP(w, req)
		return w.Code
	}
	if code := send(); code != http.StatusCreated {
		t.Fatalf("with token: status = %d, want 201", code)
	}
	// 投稿作成のバーストは1
	if code := send(); code != http.StatusTooManyRequests {
		t.Errorf("second create: status = %d, want 429", code)
	}
}

func TestMiddlewareChain_PanicRecovered(t *testing.T) {
	var buf bytes.Buffer
	w := httptest.NewRecorder()
	newTestChain(t, &buf).ServeHTTP(w, authed(httptest.NewRequest(http.MethodGet, "/api/panic", nil)))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if body := decodeErrorBody(t, w); body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q", body.Code)
	}
}

func TestRecoveryMiddleware_ReraisesAbortHandler(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recover = %v, want ErrAbortHandler", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		hsts     bool
		wantHSTS string
	}{
		{"http", false, ""},
		{"https", true, hstsValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewSecurityHeadersMiddleware(tt.hsts)(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

			for _, kv := range apiSecurityHeaders {
				if got := w.Header().Get(kv[0]); got != kv[1] {
					t.Errorf("%s = %q, want %q", kv[0], got, kv[1])
				}
			}
			if got := w.Header().Get("Strict-Transport-Security"); got != tt.wantHSTS {
				t.Errorf("Strict-Transport-Security = %q, want %q", got, tt.wantHSTS)
			}
		})
	}
}

