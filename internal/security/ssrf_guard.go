package security

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrUnsafeURL は外部へのリクエスト先として許可しないURL。
// ValidateURLが返すエラーはすべてこれをラップする。
var ErrUnsafeURL = errors.New("unsafe URL")

var (
	allowedSchemes      = []string{"http", "https"}
	defaultAllowedPorts = []int{80, 443}
)

// blockedPrefixes は内部ネットワークとクラウドメタデータ（169.254.169.254）を含む範囲。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// blockedHostnames はサブドメインも含めて拒否する。
var blockedHostnames = []string{
	"localhost",
	"metadata.google.internal",
}

// SSRFGuard はユーザーが入力したURL（画像URL・インポート元・配信Webhook）の検査と、
// 接続先IPを検査するHTTPクライアントの生成を行う。
type SSRFGuard struct {
	allowedPorts []int
}

// GuardOption はSSRFGuardの設定を変更する。
type GuardOption func(*SSRFGuard)

// WithAllowedPorts は明示ポートの許可リストを置き換える。空なら既定の80/443のまま。
func WithAllowedPorts(ports ...int) GuardOption {
	return func(g *SSRFGuard) {
		if len(ports) > 0 {
			g.allowedPorts = slices.Clone(ports)
		}
	}
}

// NewSSRFGuard はSSRFGuardを生成する。
func NewSSRFGuard(opts ...GuardOption) *SSRFGuard {
	g := &SSRFGuard{allowedPorts: defaultAllowedPorts}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewSafeClient は接続時に解決後のIPを検査するHTTPクライアントを返す。
// レスポンスサイズの上限は呼び出し側がio.LimitReaderで掛ける。
func (g *SSRFGuard) NewSafeClient(timeout time.Duration, _ int64) *http.Client {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(g.allowedPorts...).
		Build()
	return safeurl.Client(cfg).Client
}

// ValidateURL はDNS解決をせずにURLを検査する。
// DNSリバインディングはNewSafeClientのダイヤル時検査で防ぐ。
func (g *SSRFGuard) ValidateURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return unsafeURL("empty URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafeURL, err)
	}

	if scheme := strings.ToLower(u.Scheme); !slices.Contains(allowedSchemes, scheme) {
		return unsafeURL("scheme %q is not allowed", u.Scheme)
	}
	if u.User != nil {
		return unsafeURL("credentials in URL")
	}

	host := u.Hostname()
	if host == "" {
		return unsafeURL("no host")
	}
	if p := u.Port(); p != "" {
		if port, err := strconv.Atoi(p); err != nil || !slices.Contains(g.allowedPorts, port) {
			return unsafeURL("port %s is not allowed", p)
		}
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if blockedAddr(addr) {
			return unsafeURL("address %s is internal", addr)
		}
		return nil
	}
	if blockedHost(host) {
		return unsafeURL("host %s is internal", host)
	}
	return nil
}

func unsafeURL(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsafeURL, fmt.Sprintf(format, args...))
}

// blockedAddr はIPv4射影アドレス（::ffff:127.0.0.1）をIPv4に戻し、ゾーンを外してから照合する。
func blockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap().WithZone("")
	return slices.ContainsFunc(blockedPrefixes, func(p netip.Prefix) bool {
		return p.Contains(addr)
	})
}

func blockedHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	return slices.ContainsFunc(blockedHostnames, func(b string) bool {
		return host == b || strings.HasSuffix(host, "."+b)
	})
}
