package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Googleの公開エンドポイント。テストではGoogleOAuthConfigで差し替える。
const (
	googleAuthEndpoint     = "https://accounts.google.com/o/oauth2/auth"
	googleTokenEndpoint    = "https://oauth2.googleapis.com/token"
	googleUserInfoEndpoint = "https://www.googleapis.com/oauth2/v3/userinfo"
)

const (
	googleProvider       = "google"
	googleScopes         = "openid email profile"
	googleTimeout        = 10 * time.Second
	googleMaxBodyBytes   = 1 << 20
	googleErrorBodyBytes = 512
)

// ErrEmailNotVerified はGoogle側でメールアドレスが未確認のアカウント。
var ErrEmailNotVerified = errors.New("google account email is not verified")

// GoogleOAuthConfig はGoogleログインの設定。
// AuthURL・TokenURL・UserInfoURLが空なら本番のエンドポイントを使う。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	AuthURL     string
	TokenURL    string
	UserInfoURL string

	HTTPClient *http.Client
}

func (c GoogleOAuthConfig) withDefaults() GoogleOAuthConfig {
	if c.AuthURL == "" {
		c.AuthURL = googleAuthEndpoint
	}
	if c.TokenURL == "" {
		c.TokenURL = googleTokenEndpoint
	}
	if c.UserInfoURL == "" {
		c.UserInfoURL = googleUserInfoEndpoint
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: googleTimeout}
	}
	return c
}

// GoogleOAuthProvider はGoogleのOAuth 2.0認可コードフロー。
type GoogleOAuthProvider struct {
	cfg GoogleOAuthConfig
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	return &GoogleOAuthProvider{cfg: config.withDefaults()}
}

// GetLoginURL は認可画面のURLを返す。
// 複数アカウントの切り替えができるよう毎回アカウント選択を出す。
func (p *GoogleOAuthProvider) GetLoginURL(state string) string {
	q := url.Values{}
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", p.cfg.RedirectURL)
	q.Set("response_type", "code")
	q.Set("scope", googleScopes)
	q.Set("state", state)
	q.Set("prompt", "select_account")
	return p.cfg.AuthURL + "?" + q.Encode()
}

// ExchangeCode は認可コードをアクセストークンに替え、プロフィールを取得する。
// email_verifiedがfalseのアカウントは拒否する。項目自体が無い場合は通す。
func (p *GoogleOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	accessToken, err := p.accessToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("トークン交換に失敗しました: %w", err)
	}

	var profile struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
		Name          string `json:"name"`
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if err := p.do(req, &profile); err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if profile.Sub == "" {
		return nil, errors.New("userinfo response has no sub")
	}
	if profile.EmailVerified != nil && !*profile.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	return &OAuthUserInfo{
		ProviderUserID: profile.Sub,
		Email:          profile.Email,
		Name:           profile.Name,
		Provider:       googleProvider,
	}, nil
}

func (p *GoogleOAuthProvider) accessToken(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)
	form.Set("redirect_uri", p.cfg.RedirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := p.do(req, &token); err != nil {
		return "", err
	}
	if token.AccessToken == "" {
		return "", errors.New("token response has no access_token")
	}
	return token.AccessToken, nil
}

// do はreqを送り、200応答のJSONをoutに読み込む。
// エラー応答の本文は先頭だけをエラーメッセージに含める。
func (p *GoogleOAuthProvider) do(req *http.Request, out any) error {
	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, googleErrorBodyBytes))
		return fmt.Errorf("%s responded %d: %s", req.URL.Host, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, googleMaxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("invalid JSON from %s: %w", req.URL.Host, err)
	}
	return nil
}

var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
