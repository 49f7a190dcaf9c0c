package logging

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithUser(ctx, "user-1")
	ctx = WithCategory(ctx, "document_analysis")

	if got := GetRequestID(ctx); got != "req-1" {
		t.Errorf("GetRequestID() = %q, want %q", got, "req-1")
	}
	if got := GetUser(ctx); got != "user-1" {
		t.Errorf("GetUser() = %q, want %q", got, "user-1")
	}
	if got := GetCategory(ctx); got != "document_analysis" {
		t.Errorf("GetCategory() = %q, want %q", got, "document_analysis")
	}
}

func TestContextKeys_Empty(t *testing.T) {
	ctx := context.Background()

	if GetRequestID(ctx) != "" || GetUser(ctx) != "" || GetCategory(ctx) != "" {
		t.Error("expected empty values from empty context")
	}
	if attrs := contextAttrs(ctx); len(attrs) != 0 {
		t.Errorf("expected no attrs, got %v", attrs)
	}
}

func TestContextOverwrite(t *testing.T) {
	ctx := WithUser(context.Background(), "first")
	ctx = WithUser(ctx, "second")

	if got := GetUser(ctx); got != "second" {
		t.Errorf("GetUser() = %q, want %q", got, "second")
	}
}

func TestFromContext(t *testing.T) {
	base := slog.New(slog.NewTextHandler(io.Discard, nil))

	if got := FromContext(context.Background(), base); got != base {
		t.Error("expected same logger for context without fields")
	}
	if got := FromContext(WithRequestID(context.Background(), "r"), base); got == base {
		t.Error("expected derived logger for context with fields")
	}
}
