package handler

import (
	"net/http"
)

const (
	sessionCookieName = "session_id"
	oauthStateCookie  = "oauth_state"

	// oauthStateMaxAge はGoogleの同意画面から戻るまでの猶予（秒）。
	oauthStateMaxAge = 600
)

// sessionCookies はセッションCookieとOAuth state Cookieの発行・削除を行う。
// 発行時と削除時でPath/Domain/Secureが一致しないとブラウザに残るため、属性をここに集約する。
type sessionCookies struct {
	domain string
	secure bool
	maxAge int
}

func newSessionCookies(cfg AuthHandlerConfig) sessionCookies {
	return sessionCookies{
		domain: cfg.CookieDomain,
		secure: cfg.CookieSecure,
		maxAge: cfg.SessionMaxAge,
	}
}

func (c sessionCookies) write(w http.ResponseWriter, name, value, domain string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c sessionCookies) setSession(w http.ResponseWriter, sessionID string) {
	c.write(w, sessionCookieName, sessionID, c.domain, c.maxAge)
}

func (c sessionCookies) clearSession(w http.ResponseWriter) {
	c.write(w, sessionCookieName, "", c.domain, -1)
}

// stateはログインを開始したホストでのみ使うためDomainを付けない。
func (c sessionCookies) setState(w http.ResponseWriter, state string) {
	c.write(w, oauthStateCookie, state, "", oauthStateMaxAge)
}

func (c sessionCookies) clearState(w http.ResponseWriter) {
	c.write(w, oauthStateCookie, "", "", -1)
}
