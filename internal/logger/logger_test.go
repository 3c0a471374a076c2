package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}
	return entry
}

func TestSetup_WritesJSONWithServiceField(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	l.Info("post created", slog.String("post_id", "p-1"))

	entry := decodeEntry(t, &buf)
	for key, want := range map[string]any{
		"msg":     "post created",
		"level":   "INFO",
		"service": ServiceName,
		"post_id": "p-1",
	} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %v", key, entry[key], want)
		}
	}
	if _, ok := entry["time"]; !ok {
		t.Error("time field is missing")
	}
}

func TestSetup_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelWarn)

	l.Info("ignored")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %s", buf.String())
	}
	l.Warn("kept")
	if entry := decodeEntry(t, &buf); entry["msg"] != "kept" {
		t.Errorf("msg = %v, want kept", entry["msg"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{" DEBUG ", slog.LevelDebug},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetupDefault_UsesLogLevelEnv(t *testing.T) {
	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })
	t.Setenv("LOG_LEVEL", "debug")

	var buf bytes.Buffer
	SetupDefault(&buf)
	slog.Debug("global debug")

	entry := decodeEntry(t, &buf)
	if entry["msg"] != "global debug" || entry["service"] != ServiceName {
		t.Errorf("entry = %v", entry)
	}
}
