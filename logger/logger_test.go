package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func jsonLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(buf, &Config{Level: level, Format: "json"}, "test-svc")
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("failed to decode log line %q: %v", line, err)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "debug")
	l.Info("pool created", Fields("origin", "http://example.com:80", "size", 5))

	m := decodeLine(t, &buf)
	if m["message"] != "pool created" {
		t.Errorf("expected message 'pool created', got %v", m["message"])
	}
	if m["origin"] != "http://example.com:80" {
		t.Errorf("expected origin field, got %v", m["origin"])
	}
	if m["service"] != "test-svc" {
		t.Errorf("expected service field, got %v", m["service"])
	}
	if m["level"] != "info" {
		t.Errorf("expected level info, got %v", m["level"])
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "warn")
	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}
	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn output, got %q", buf.String())
	}
}

func TestNewWithWriter_InvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "invalid-level")
	l.Info("still logs")
	if !strings.Contains(buf.String(), "still logs") {
		t.Error("expected info output with fallback level")
	}
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, &Config{Level: "info", Format: "console", NoColor: true}, "emhttp")
	l.Error("request failed")
	out := buf.String()
	if !strings.Contains(out, "[EMH][ERR]") {
		t.Errorf("expected console level tag, got %q", out)
	}
	if !strings.Contains(out, "request failed") {
		t.Errorf("expected message, got %q", out)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("discarded")
	l.WithComponent("x").Info("discarded")
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info").WithComponent("handler")
	if l.service != "test-svc" {
		t.Errorf("service should be preserved, got %q", l.service)
	}
	l.Info("x")
	if m := decodeLine(t, &buf); m[FieldComponent] != "handler" {
		t.Errorf("expected component=handler, got %v", m[FieldComponent])
	}
}

func TestWithContext_RequestID(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info")
	ctx := ContextWithRequestID(context.Background(), "req-1")
	l.WithContext(ctx).Info("x")
	if m := decodeLine(t, &buf); m[FieldRequestID] != "req-1" {
		t.Errorf("expected request_id=req-1, got %v", m[FieldRequestID])
	}

	if got := l.WithContext(context.Background()); got != l {
		t.Error("expected same logger when context carries no request ID")
	}
}

func TestWithFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "info").
		WithFields(map[string]any{"key": "value"}).
		WithError(errors.New("boom"))
	l.Info("x")
	m := decodeLine(t, &buf)
	if m["key"] != "value" {
		t.Errorf("expected key=value, got %v", m["key"])
	}
	if m[FieldError] != "boom" {
		t.Errorf("expected error=boom, got %v", m[FieldError])
	}
}

func TestGlobalLogger(t *testing.T) {
	globalLogger = nil
	if GetGlobalLogger() == nil {
		t.Fatal("expected default global logger to be created")
	}

	l := NewDefault("custom")
	SetGlobalLogger(l)
	if GetGlobalLogger() != l {
		t.Error("expected SetGlobalLogger to replace the global logger")
	}

	Init(Config{Level: "info", Format: "json"})
	if GetGlobalLogger() == l {
		t.Error("expected Init to install a new global logger")
	}
}

func TestRegistry(t *testing.T) {
	l := Nop()
	Register("registered", l)
	if Get("registered") != l {
		t.Error("expected registered logger")
	}
	if Get("unregistered") == nil {
		t.Error("expected fallback logger")
	}
}

func TestInit_ComponentLevels(t *testing.T) {
	Init(Config{Level: "warn", Format: "json", Components: map[string]string{"handler": "debug"}})
	t.Cleanup(func() { Init(Config{}) })

	if lvl := Get("handler").GetLogger().GetLevel(); lvl != zerolog.DebugLevel {
		t.Errorf("handler level = %v, want debug", lvl)
	}
	if lvl := Get("pool").GetLogger().GetLevel(); lvl != zerolog.WarnLevel {
		t.Errorf("pool level = %v, want warn", lvl)
	}

	Init(Config{Level: "info", Format: "json"})
	if lvl := Get("handler").GetLogger().GetLevel(); lvl != zerolog.InfoLevel {
		t.Errorf("Init must drop stale overrides, handler level = %v", lvl)
	}
}

func TestWithLevel(t *testing.T) {
	var buf bytes.Buffer
	l := jsonLogger(&buf, "error")

	l.WithLevel("debug").Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("expected debug message after lowering the level")
	}
	if l.WithLevel("chatty") != l {
		t.Error("unknown level must return the logger unchanged")
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != "console" || cfg.Output != "stderr" || !cfg.Timestamp {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "debug", Format: "json", Output: "stdout"}, false},
		{"pretty", Config{Level: "info", Format: FormatPretty, Output: "stderr"}, false},
		{"bad level", Config{Level: "verbose", Format: "json", Output: "stdout"}, true},
		{"bad format", Config{Level: "info", Format: "xml", Output: "stdout"}, true},
		{"bad output", Config{Level: "info", Format: "json", Output: "file"}, true},
		{
			name:    "bad component level",
			cfg:     Config{Level: "info", Format: "json", Output: "stdout", Components: map[string]string{"handler": "loud"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFields(t *testing.T) {
	m := Fields("a", 1, "b", "two", 3, "skipped", "dangling")
	if len(m) != 2 {
		t.Fatalf("expected 2 fields, got %d: %v", len(m), m)
	}
	if m["a"] != 1 || m["b"] != "two" {
		t.Errorf("unexpected fields: %v", m)
	}
}

func TestErrorFields(t *testing.T) {
	m := ErrorFields("timeout", errors.New("deadline"))
	if m[FieldErrorKind] != "timeout" || m[FieldError] != "deadline" {
		t.Errorf("unexpected fields: %v", m)
	}
}

func TestMergeWithDuration(t *testing.T) {
	m := MergeWithDuration(nil, 1500*time.Millisecond)
	if m[FieldDuration] != int64(1500) {
		t.Errorf("expected 1500ms, got %v", m[FieldDuration])
	}
}
