package publish

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/autosmm/internal/model"
)

// SignatureHeader はWebhook本文のHMAC-SHA256署名を載せるヘッダ。
const SignatureHeader = "X-AutoSMM-Signature"

// webhookPayload は配信リレーに送るJSON。
type webhookPayload struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Platforms    []string  `json:"platforms"`
	ImageURL     *string   `json:"image_url"`
}

// WebhookPublisher は投稿をJSONで外部の配信リレーにPOSTする。
// 2xx応答を配信成功とみなす。
type WebhookPublisher struct {
	url    string
	secret []byte
	client *http.Client
}

// NewWebhookPublisher はWebhookPublisherを生成する。
// clientにはSSRF防止付きクライアントを渡す。secretが空の場合は署名しない。
func NewWebhookPublisher(url, secret string, client *http.Client) *WebhookPublisher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	return &WebhookPublisher{url: url, secret: key, client: client}
}

// Publish は投稿を配信リレーに送信する。
func (w *WebhookPublisher) Publish(ctx context.Context, post *model.Post) error {
	platforms := make([]string, len(post.Platforms))
	for i, p := range post.Platforms {
		platforms[i] = string(p)
	}
	body, err := json.Marshal(webhookPayload{
		ID:           post.ID,
		UserID:       post.UserID,
		Title:        post.Title,
		Content:      post.Content,
		ScheduledFor: post.ScheduledFor.UTC(),
		Platforms:    platforms,
		ImageURL:     post.ImageURL,
	})
	if err != nil {
		return fmt.Errorf("配信ペイロードの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("配信リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", post.ID)
	if w.secret != nil {
		req.Header.Set(SignatureHeader, Sign(w.secret, body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("配信リレーへの送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("配信リレーがHTTP %dを返しました: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// Sign は本文のHMAC-SHA256署名を "sha256=<hex>" 形式で返す。
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
