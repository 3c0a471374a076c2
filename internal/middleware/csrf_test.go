package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// TestCSRFMiddleware_SafeMethodIssuesCookie は安全なメソッドで未発行ならトークンCookieが発行されることを検証する。
func TestCSRFMiddleware_SafeMethodIssuesCookie(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{CookieSecure: true})(okHandler)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	c := findCookie(w, csrfCookieName)
	if c == nil {
		t.Fatal("csrf cookie should be issued")
	}
	if len(c.Value) != 64 {
		t.Errorf("token length = %d, want 64", len(c.Value))
	}
	if c.HttpOnly {
		t.Error("csrf cookie must be readable by JavaScript")
	}
	if !c.Secure || c.SameSite != http.SameSiteLaxMode || c.MaxAge != csrfMaxAge {
		t.Errorf("cookie attributes = %+v", c)
	}

	// 既にCookieがある場合は再発行しない
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	handler.ServeHTTP(w, req)
	if findCookie(w, csrfCookieName) != nil {
		t.Error("csrf cookie should not be reissued")
	}
}

func TestCSRFMiddleware_UnsafeMethods(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		cookie     string
		header     string
		wantStatus int
	}{
		{name: "一致", method: http.MethodPost, cookie: "tok", header: "tok", wantStatus: http.StatusOK},
		{name: "DELETEも一致で通過", method: http.MethodDelete, cookie: "tok", header: "tok", wantStatus: http.StatusOK},
		{name: "Cookieなし", method: http.MethodPost, header: "tok", wantStatus: http.StatusForbidden},
		{name: "ヘッダーなし", method: http.MethodPost, cookie: "tok", wantStatus: http.StatusForbidden},
		{name: "不一致", method: http.MethodPost, cookie: "tok", header: "other", wantStatus: http.StatusForbidden},
		{name: "PUTの不一致", method: http.MethodPut, cookie: "tok", header: "tok2", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCSRFMiddleware(CSRFConfig{})(okHandler)

			req := httptest.NewRequest(tt.method, "/api/posts", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden {
				if body := decodeErrorBody(t, w); body.Code != "CSRF_INVALID" {
					t.Errorf("code = %q, want CSRF_INVALID", body.Code)
				}
			}
		})
	}
}

func TestCSRFTokenHandler(t *testing.T) {
	handler := NewCSRFTokenHandler(CSRFConfig{})

	t.Run("新規発行", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

		var resp map[string]string
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		c := findCookie(w, csrfCookieName)
		if c == nil || c.Value != resp["token"] {
			t.Errorf("token %q should match cookie %+v", resp["token"], c)
		}
	})

	t.Run("既存トークンを返す", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		var resp map[string]string
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp["token"] != "existing-token" {
			t.Errorf("token = %q, want existing-token", resp["token"])
		}
		if findCookie(w, csrfCookieName) != nil {
			t.Error("cookie should not be reissued")
		}
	})
}

func TestCSRFTokens_Verify(t *testing.T) {
	tests := []struct {
		name   string
		cookie string
		header string
		want   error
	}{
		{"一致", "tok", "tok", nil},
		{"Cookieなし", "", "tok", errCSRFNoCookie},
		{"ヘッダーなし", "tok", "", errCSRFNoHeader},
		{"不一致", "tok", "TOK", errCSRFMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/posts", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set(csrfHeaderName, tt.header)
			}
			if err := (csrfTokens{}).verify(req); err != tt.want {
				t.Errorf("verify() = %v, want %v", err, tt.want)
			}
		})
	}
}
