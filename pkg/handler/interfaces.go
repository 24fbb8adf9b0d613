package handler

import (
	"context"

	"github.com/savaki/mailreply-bot/pkg/models"
	"github.com/savaki/mailreply-bot/pkg/secretsmanager"
	"github.com/slack-go/slack"
)

// SlackCredentialSource resolves the Slack signing secret and bot token
type SlackCredentialSource interface {
	SlackCredentials(ctx context.Context) (secretsmanager.SlackCredentials, error)
}

// ContextStore reads and writes context records. Get reports an absent
// record with found == false rather than an error.
type ContextStore interface {
	Get(ctx context.Context, contextID string) (*models.ContextRecord, bool, error)
	Put(ctx context.Context, rec *models.ContextRecord) error
}

// DraftGenerator turns a redacted inquiry into a reply draft, returning ""
// when generation fails.
type DraftGenerator interface {
	GenerateReplyDraft(ctx context.Context, redactedBody string) string
}

// ChatClient is the subset of Slack the handlers drive
type ChatClient interface {
	OpenModal(ctx context.Context, triggerID string, view slack.ModalViewRequest) error
	UpdateModal(ctx context.Context, externalID string, view slack.ModalViewRequest) error
	PostMessage(ctx context.Context, channelID, text string, blocks ...slack.Block) error
}

// ChatClientFactory builds a ChatClient for a bot token
type ChatClientFactory func(botToken string) ChatClient

// EmailSender delivers the final reply
type EmailSender interface {
	SendEmail(ctx context.Context, from string, to []string, subject, body string) error
}

// AsyncTrigger hands a generation job to the out-of-band worker
type AsyncTrigger interface {
	Trigger(ctx context.Context, job models.GenerationJob) error
}

// Redactor replaces PII with placeholders
type Redactor interface {
	Redact(text string) (string, map[string]string)
}

// Deduper reports whether a context id has not been announced yet. Release
// undoes the mark left by IsNew when the announcement failed.
type Deduper interface {
	IsNew(ctx context.Context, contextID string) (bool, error)
	Release(ctx context.Context, contextID string) error
}

// MailSource lists and fetches mailbox messages
type MailSource interface {
	ListMessageIDs(ctx context.Context, query string, maxResults int) ([]string, error)
	GetMessage(ctx context.Context, id string) (models.InboundMail, error)
}

// RawMessageFetcher loads a stored raw MIME message by SES message id
type RawMessageFetcher interface {
	Enabled() bool
	FetchRawMessage(ctx context.Context, messageID string) ([]byte, error)
}
