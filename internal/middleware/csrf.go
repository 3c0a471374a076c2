package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/autosmm/internal/model"
)

const (
	// csrfCookieName はフロントエンドのJavaScriptが読むためHttpOnlyにしない。
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
	csrfMaxAge     = 86400
	csrfTokenBytes = 32
)

var (
	errCSRFNoCookie = errors.New("missing_cookie")
	errCSRFNoHeader = errors.New("missing_header")
	errCSRFMismatch = errors.New("mismatch")
)

var errCSRFInvalid = &model.APIError{
	Code:     "CSRF_INVALID",
	Message:  "Sigurnosni token nije valjan.",
	Category: "auth",
	Action:   "Osvježite stranicu i pokušajte ponovno.",
}

// CSRFConfig はCSRFトークンCookieの属性。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

// csrfTokens はdouble-submit cookie方式のトークン発行と照合を行う。
type csrfTokens struct {
	config CSRFConfig
}

// current はリクエストのCookieに載っているトークンを返す。
func (c csrfTokens) current(r *http.Request) string {
	if ck, err := r.Cookie(csrfCookieName); err == nil {
		return ck.Value
	}
	return ""
}

// issue は新しいトークンを生成してCookieに書き込む。
func (c csrfTokens) issue(w http.ResponseWriter) (string, error) {
	var b [csrfTokenBytes]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b[:])

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   c.config.CookieDomain,
		MaxAge:   csrfMaxAge,
		Secure:   c.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// verify はCookieとX-CSRF-Tokenヘッダーが一致するかを確かめる。
func (c csrfTokens) verify(r *http.Request) error {
	cookie := c.current(r)
	if cookie == "" {
		return errCSRFNoCookie
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return errCSRFNoHeader
	}
	if subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
		return errCSRFMismatch
	}
	return nil
}

// NewCSRFMiddleware はCSRF検証ミドルウェアを返す。
// GET・HEAD・OPTIONSは検証せず、トークン未発行ならCookieを発行する。
// それ以外のメソッドはCookieとヘッダーの一致が必要。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	tokens := csrfTokens{config: config}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				if tokens.current(r) == "" {
					if _, err := tokens.issue(w); err != nil {
						slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
					}
				}
			default:
				if err := tokens.verify(r); err != nil {
					slog.Warn("CSRF validation failed",
						slog.String("reason", err.Error()),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
					)
					WriteErrorResponse(w, http.StatusForbidden, errCSRFInvalid)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler は GET /api/csrf-token のハンドラーを返す。
// Cookieにトークンがあればそれを、なければ新しく発行して返す。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	tokens := csrfTokens{config: config}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokens.current(r)
		if token == "" {
			var err error
			if token, err = tokens.issue(w); err != nil {
				slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Token string `json:"token"`
		}{token})
	})
}
