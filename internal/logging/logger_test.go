package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/formrelay-systems/formrelay/internal/middleware"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNew_Formats(t *testing.T) {
	if l := New(slog.LevelInfo, "json"); l == nil || l.Logger == nil {
		t.Fatal("New(json) returned nil logger")
	}
	if l := New(slog.LevelDebug, "text"); l == nil || l.Logger == nil {
		t.Fatal("New(text) returned nil logger")
	}
}

func TestWithContext_RequestID(t *testing.T) {
	l := New(slog.LevelInfo, "json")

	// Without request ID the base logger comes back unchanged.
	if got := l.WithContext(context.Background()); got != l.Logger {
		t.Error("WithContext without request ID should return base logger")
	}

	// With request ID a derived logger is returned.
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	if got := l.WithContext(ctx); got == l.Logger {
		t.Error("WithContext with request ID should return derived logger")
	}
}

func TestFieldHelpers(t *testing.T) {
	if attr := SubmissionID("sub-1"); attr.Key != FieldSubmissionID {
		t.Errorf("SubmissionID key = %q, want %q", attr.Key, FieldSubmissionID)
	}
	if attr := FormType("newsletter-signup"); attr.Value.String() != "newsletter-signup" {
		t.Errorf("FormType value = %q", attr.Value.String())
	}
	if attr := Attempt(3); attr.Value.Int64() != 3 {
		t.Errorf("Attempt value = %d, want 3", attr.Value.Int64())
	}
}
