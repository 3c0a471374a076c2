package model

import (
	"errors"
	"testing"
	"time"
)

func validPost() *Post {
	return &Post{
		ID:           "post-1",
		Title:        "Promocija",
		Content:      "Nova kolekcija",
		ScheduledFor: time.Date(2024, 12, 20, 10, 0, 0, 0, time.UTC),
		Platforms:    []Platform{PlatformInstagram},
		Status:       PostStatusScheduled,
	}
}

func TestPlatform_IsKnown(t *testing.T) {
	for _, p := range KnownPlatforms() {
		if !p.IsKnown() {
			t.Errorf("%q.IsKnown() = false, want true", p)
		}
	}
	if Platform("xyz").IsKnown() {
		t.Error(`Platform("xyz").IsKnown() = true, want false`)
	}
}

func TestPostStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status PostStatus
		want   bool
	}{
		{PostStatusScheduled, false},
		{PostStatusPublished, true},
		{PostStatusFailed, true},
		{PostStatus("draft"), false},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.want {
			t.Errorf("%q.IsTerminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestPost_Classifiable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Post)
		want   bool
	}{
		{"well formed", func(p *Post) {}, true},
		{"missing id", func(p *Post) { p.ID = "" }, false},
		{"zero scheduled time", func(p *Post) { p.ScheduledFor = time.Time{} }, false},
		{"empty platforms", func(p *Post) { p.Platforms = nil }, false},
		{"only unknown platforms", func(p *Post) { p.Platforms = []Platform{"myspace"} }, false},
		{"mixed platforms", func(p *Post) { p.Platforms = []Platform{"myspace", PlatformTikTok} }, true},
		{"unknown status", func(p *Post) { p.Status = "draft" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPost()
			tt.mutate(p)
			if got := p.Classifiable(); got != tt.want {
				t.Errorf("Classifiable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	statuses := []PostStatus{PostStatusScheduled, PostStatusPublished, PostStatusFailed}
	for _, from := range statuses {
		for _, to := range statuses {
			want := from == PostStatusScheduled && to != PostStatusScheduled
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestPost_Transition_ScheduledToPublished(t *testing.T) {
	p := validPost()
	if err := p.Transition(PostStatusPublished); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != PostStatusPublished {
		t.Errorf("Status = %q, want %q", p.Status, PostStatusPublished)
	}
	if p.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}
}

// 終端状態からは遷移できず、ステータスも変化しないことを検証する。
func TestPost_Transition_FromTerminalIsRejected(t *testing.T) {
	p := validPost()
	p.Status = PostStatusFailed

	err := p.Transition(PostStatusPublished)
	if err == nil {
		t.Fatal("expected error for failed -> published")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Code != ErrCodeInvalidTransition {
		t.Errorf("Code = %q, want %q", apiErr.Code, ErrCodeInvalidTransition)
	}
	if p.Status != PostStatusFailed {
		t.Errorf("Status = %q, want unchanged %q", p.Status, PostStatusFailed)
	}
}
