package importer

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// feedLink はHTMLのhead内で見つかった <link rel="alternate"> の候補。
type feedLink struct {
	URL  string
	Atom bool
}

// mediaTypeOf はContent-Typeヘッダからcharset等のパラメータを除いたメディアタイプを返す。
func mediaTypeOf(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mediaType)
}

// looksLikeFeed はレスポンスがRSS/Atomとしてパース可能かを判定する。
// 汎用XMLやContent-Type未設定の場合は先頭4KBのルート要素で判定する。
func looksLikeFeed(contentType string, body []byte) bool {
	switch mediaTypeOf(contentType) {
	case "application/rss+xml", "application/atom+xml", "application/feed+json", "application/json":
		return true
	case "text/html", "application/xhtml+xml":
		return false
	}

	head := body
	if len(head) > 4096 {
		head = head[:4096]
	}
	prefix := strings.ToLower(string(head))
	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// isHTML はContent-TypeがHTMLかを判定する。
func isHTML(contentType string) bool {
	return strings.Contains(mediaTypeOf(contentType), "html")
}

// discoverFeedLinks はHTMLのheadからRSS/Atomへのリンクを抽出する。
// 相対URLはbaseURLを基準に解決される。bodyに到達した時点で打ち切る。
func discoverFeedLinks(htmlBody []byte, baseURL string) []feedLink {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []feedLink
	z := html.NewTokenizer(bytes.NewReader(htmlBody))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return links

		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" {
				return links
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "body":
				return links
			case "link":
			default:
				continue
			}
			if !hasAttr {
				continue
			}

			var rel, typ, href string
			for more := true; more; {
				var key, val []byte
				key, val, more = z.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					typ = strings.ToLower(string(val))
				case "href":
					href = strings.TrimSpace(string(val))
				}
			}
			if !containsToken(rel, "alternate") || href == "" {
				continue
			}
			if typ != "application/rss+xml" && typ != "application/atom+xml" {
				continue
			}
			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			links = append(links, feedLink{
				URL:  base.ResolveReference(ref).String(),
				Atom: typ == "application/atom+xml",
			})
		}
	}
}

// containsToken はスペース区切りのrel属性に指定トークンが含まれるかを判定する。
func containsToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if f == token {
			return true
		}
	}
	return false
}

// selectFeed は候補から1つを選ぶ。
// 優先順位: 同一ホスト > Atom > 出現順
func selectFeed(links []feedLink, pageURL string) (feedLink, bool) {
	if len(links) == 0 {
		return feedLink{}, false
	}
	pageHost := hostOf(pageURL)

	best, bestScore := 0, -1
	for i, l := range links {
		score := 0
		if hostOf(l.URL) == pageHost {
			score += 100
		}
		if l.Atom {
			score += 10
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return links[best], true
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
