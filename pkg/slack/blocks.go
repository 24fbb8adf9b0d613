package slack

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/savaki/mailreply-bot/pkg/models"
	"github.com/slack-go/slack"
)

// Block Kit identifiers shared by the notification, the modal and the router
const (
	CallbackReplyModal  = "ai_reply_modal_submission"
	BlockReply          = "editable_reply_block"
	ActionReplyInput    = "editable_reply_input"
	BlockGenerateReply  = "generate_reply_block"
	ActionGenerateReply = "generate_reply_action"
)

// Modal and notification copy
const (
	PlaceholderText = "Generating a reply draft…"
	ApologyText     = "Sorry, a reply draft could not be generated. Please write the reply manually."
	EmptyPreview    = "(no body)"
)

// MaxPreviewRunes caps the body preview in new inquiry notifications
const MaxPreviewRunes = 400

// BuildReplyModal builds the editable reply modal. The context id travels in
// private metadata so the submission can find its record again.
func BuildReplyModal(contextID, externalID, initialText string) slack.ModalViewRequest {
	input := slack.NewPlainTextInputBlockElement(nil, ActionReplyInput)
	input.Multiline = true
	input.InitialValue = initialText

	return slack.ModalViewRequest{
		Type:            slack.VTModal,
		CallbackID:      CallbackReplyModal,
		ExternalID:      externalID,
		PrivateMetadata: contextRef(contextID),
		Title:           plainText("AI Reply Assistant"),
		Submit:          plainText("Send this email"),
		Close:           plainText("Close"),
		Blocks: slack.Blocks{
			BlockSet: []slack.Block{
				slack.NewHeaderBlock(plainText("Review and edit the reply")),
				slack.NewInputBlock(
					BlockReply,
					plainText("Edit the draft below, then send it."),
					nil,
					input,
				),
			},
		},
	}
}

// ReplyText returns the initial value of the reply input in view, or "" when
// the view has no reply input.
func ReplyText(view slack.ModalViewRequest) string {
	for _, block := range view.Blocks.BlockSet {
		input, ok := block.(*slack.InputBlock)
		if !ok || input.BlockID != BlockReply {
			continue
		}
		if element, ok := input.Element.(*slack.PlainTextInputBlockElement); ok {
			return element.InitialValue
		}
	}
	return ""
}

// BuildNotification builds the new inquiry message with a button that
// carries the context id.
func BuildNotification(contextID, sender, subject, preview string) []slack.Block {
	button := slack.NewButtonBlockElement(ActionGenerateReply, contextRef(contextID), plainText("Generate reply"))
	button.Style = slack.StylePrimary

	return []slack.Block{
		slack.NewHeaderBlock(plainText("New inquiry received")),
		slack.NewSectionBlock(nil, []*slack.TextBlockObject{
			markdown(fmt.Sprintf("*From:* %s", sender)),
			markdown(fmt.Sprintf("*Subject:* %s", subject)),
		}, nil),
		slack.NewSectionBlock(markdown(preview), nil, nil),
		slack.NewActionBlock(BlockGenerateReply, button),
	}
}

// NotificationText is the plain-text fallback for a new inquiry message
func NotificationText(subject string) string {
	return "New inquiry: " + subject
}

// CompletionText is posted once a reply has been sent
func CompletionText(recipient, subject string) string {
	return fmt.Sprintf("Reply sent to %s (%s)", recipient, subject)
}

// Preview trims a body for display: carriage returns are dropped, the text is
// capped at MaxPreviewRunes with an ellipsis, and empty text becomes a marker.
func Preview(body string) string {
	text := strings.TrimSpace(strings.ReplaceAll(body, "\r", ""))
	if text == "" {
		return EmptyPreview
	}
	runes := []rune(text)
	if len(runes) > MaxPreviewRunes {
		return string(runes[:MaxPreviewRunes]) + "…"
	}
	return text
}

func contextRef(contextID string) string {
	data, err := json.Marshal(models.ContextRef{ContextID: contextID})
	if err != nil {
		return "{}"
	}
	return string(data)
}

func plainText(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, false, false)
}

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}
