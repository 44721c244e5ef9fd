package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"arabia.app/internal/auth"
	"arabia.app/internal/obs"
)

func TestLogEvent(t *testing.T) {
	var buf bytes.Buffer
	prev := obs.SetLogger(obs.NewLogger("info", "json", &buf))
	defer obs.SetLogger(prev)

	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = auth.ContextWithClaims(ctx, &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-42"}})

	if err := LogEvent(ctx, LoginSucceeded, map[string]any{"email": "a@x.com"}); err != nil {
		t.Fatalf("LogEvent failed: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["event"] != LoginSucceeded {
		t.Fatalf("unexpected event: %v", entry["event"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["user_id"] != "user-42" {
		t.Fatalf("unexpected user id: %v", entry["user_id"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["email"] != "a@x.com" {
		t.Fatalf("fields missing or incorrect: %v", entry["fields"])
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), " ", nil); err == nil {
		t.Fatalf("expected error for empty event")
	}
}
