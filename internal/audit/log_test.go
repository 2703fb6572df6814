package audit

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"bank.com/mop/internal/obs"
	"bank.com/mop/internal/rbac"
)

func TestLogEvent(t *testing.T) {
	core, recorded := observer.New(zap.InfoLevel)
	obs.ReplaceLoggerForTests(zap.New(core))

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = rbac.WithPrincipal(ctx, rbac.NewPrincipal(
		rbac.User{ID: "user-42"},
		rbac.Role{ID: rbac.RoleAdmin},
	))

	if err := LogEvent(ctx, "user.created", map[string]any{"target": "user-7"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["type"] != "audit" {
		t.Fatalf("unexpected type: %v", fields["type"])
	}
	if fields["event"] != "user.created" {
		t.Fatalf("unexpected event: %v", fields["event"])
	}
	if fields["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", fields["request_id"])
	}
	if fields["actor_id"] != "user-42" {
		t.Fatalf("unexpected actor: %v", fields["actor_id"])
	}
	if fields["target"] != "user-7" {
		t.Fatalf("custom field missing: %v", fields["target"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatal("expected an error for an empty event name")
	}
}
