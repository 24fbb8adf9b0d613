package slack

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/savaki/mailreply-bot/pkg/models"
	"github.com/slack-go/slack"
)

func TestBuildReplyModal(t *testing.T) {
	view := BuildReplyModal("c1", "ai-reply-c1", "Thanks!")

	if view.Type != slack.VTModal {
		t.Errorf("Type = %s, want modal", view.Type)
	}
	if view.CallbackID != CallbackReplyModal {
		t.Errorf("CallbackID = %s, want %s", view.CallbackID, CallbackReplyModal)
	}
	if view.ExternalID != "ai-reply-c1" {
		t.Errorf("ExternalID = %s, want ai-reply-c1", view.ExternalID)
	}

	var ref models.ContextRef
	if err := json.Unmarshal([]byte(view.PrivateMetadata), &ref); err != nil {
		t.Fatalf("PrivateMetadata is not JSON: %v", err)
	}
	if ref.ContextID != "c1" {
		t.Errorf("private metadata context_id = %s, want c1", ref.ContextID)
	}

	if got := ReplyText(view); got != "Thanks!" {
		t.Errorf("ReplyText() = %q, want Thanks!", got)
	}

	data, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("marshal view: %v", err)
	}
	for _, want := range []string{`"block_id":"editable_reply_block"`, `"action_id":"editable_reply_input"`, `"multiline":true`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("view JSON missing %s: %s", want, data)
		}
	}
}

func TestReplyTextWithoutInput(t *testing.T) {
	if got := ReplyText(slack.ModalViewRequest{}); got != "" {
		t.Errorf("ReplyText() = %q, want empty", got)
	}
}

func TestBuildNotification(t *testing.T) {
	blocks := BuildNotification("c1", "customer@example.com", "Test Inquiry", "Hello")
	if len(blocks) != 4 {
		t.Fatalf("blocks = %d, want 4", len(blocks))
	}

	actions, ok := blocks[3].(*slack.ActionBlock)
	if !ok {
		t.Fatalf("last block is %T, want *slack.ActionBlock", blocks[3])
	}
	button, ok := actions.Elements.ElementSet[0].(*slack.ButtonBlockElement)
	if !ok {
		t.Fatalf("action element is %T, want button", actions.Elements.ElementSet[0])
	}
	if button.ActionID != ActionGenerateReply {
		t.Errorf("ActionID = %s, want %s", button.ActionID, ActionGenerateReply)
	}
	if button.Value != `{"context_id":"c1"}` {
		t.Errorf("Value = %s", button.Value)
	}

	data, _ := json.Marshal(blocks)
	for _, want := range []string{"customer@example.com", "Test Inquiry", "Hello"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("blocks missing %q", want)
		}
	}
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("あ", 450)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", EmptyPreview},
		{"whitespace only", " \r\n ", EmptyPreview},
		{"carriage returns removed", "line1\r\nline2", "line1\nline2"},
		{"short unchanged", "Hello, I have a question.", "Hello, I have a question."},
		{"long truncated", long, strings.Repeat("あ", MaxPreviewRunes) + "…"},
		{"exactly at limit", strings.Repeat("a", MaxPreviewRunes), strings.Repeat("a", MaxPreviewRunes)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Preview(tt.in)
			if got != tt.want {
				t.Errorf("Preview() = %q (%d runes), want %d runes", got, utf8.RuneCountInString(got), utf8.RuneCountInString(tt.want))
			}
		})
	}
}
