package proxy

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func mustParse(t *testing.T, s string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(s), v); err != nil {
		t.Fatalf("parse test fixture: %v", err)
	}
}

func TestCompletionID(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	old := completionNow
	completionNow = func() time.Time { return fixed }
	defer func() { completionNow = old }()

	id := completionID()
	if !strings.HasPrefix(id, "chatcmpl-") {
		t.Errorf("id = %q, want chatcmpl- prefix", id)
	}
	if len(id) != len("chatcmpl-")+16 {
		t.Errorf("id = %q, want 16 hex chars after the prefix", id)
	}
	if id != completionID() {
		t.Error("same timestamp must yield the same id")
	}
}

func TestLastUserPrompt(t *testing.T) {
	req := chatRequest{}
	mustParse(t, `{"messages":[
		{"role":"user","content":"first"},
		{"role":"assistant","content":"reply"},
		{"role":"user","content":"second"}
	]}`, &req)
	if got := lastUserPrompt(req.Messages); got != "second" {
		t.Errorf("lastUserPrompt = %q, want the most recent user message", got)
	}
}

func TestLastUserPromptMultimodal(t *testing.T) {
	req := chatRequest{}
	mustParse(t, `{"messages":[
		{"role":"user","content":[
			{"type":"text","text":"describe"},
			{"type":"image_url","image_url":{"url":"http://x/a.png"}},
			{"type":"text","text":"this image"}
		]}
	]}`, &req)
	if got := lastUserPrompt(req.Messages); got != "describe\nthis image" {
		t.Errorf("lastUserPrompt = %q", got)
	}
}

func TestLastUserPromptNoUserMessage(t *testing.T) {
	req := chatRequest{}
	mustParse(t, `{"messages":[{"role":"system","content":"rules"}]}`, &req)
	if got := lastUserPrompt(req.Messages); got != "" {
		t.Errorf("lastUserPrompt = %q, want empty", got)
	}
}
