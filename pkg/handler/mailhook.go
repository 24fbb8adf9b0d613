package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/savaki/mailreply-bot/pkg/mail"
	"github.com/savaki/mailreply-bot/pkg/models"
)

// MailEvent is an SES receipt event
type MailEvent struct {
	Records []MailRecord `json:"Records"`
}

// MailRecord is one SES receipt record. Body holds the message text when the
// delivery inlines it; otherwise the raw message is read from S3.
type MailRecord struct {
	events.SimpleEmailRecord
	Body string `json:"body,omitempty"`
}

// MailHookResult is returned to SES for every event
type MailHookResult struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Ingested   int    `json:"ingested"`
}

// MailHook ingests inbound mail delivered by SES
type MailHook struct {
	ingestor *Ingestor
	fetcher  RawMessageFetcher
	logger   *slog.Logger
}

// NewMailHook creates a MailHook. fetcher may be nil when bodies are always
// delivered inline.
func NewMailHook(ingestor *Ingestor, fetcher RawMessageFetcher, logger *slog.Logger) *MailHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &MailHook{
		ingestor: ingestor,
		fetcher:  fetcher,
		logger:   logger,
	}
}

// HandleEvent ingests every record in the event. Failures are logged and the
// event is always accepted, so SES does not redeliver a partially handled
// message.
func (h *MailHook) HandleEvent(ctx context.Context, event MailEvent) (MailHookResult, error) {
	h.logger.Info("received ses event", "records", len(event.Records))

	ingested := 0
	for _, record := range event.Records {
		msg := h.inboundMail(ctx, record)
		if msg.MessageID == "" {
			h.logger.Warn("ses record without message id, generating one")
		}
		if _, err := h.ingestor.Ingest(ctx, msg); err != nil {
			h.logger.Error("failed to process ses record", "message_id", msg.MessageID, "error", err)
			continue
		}
		ingested++
	}

	return MailHookResult{
		StatusCode: http.StatusOK,
		Message:    "ses event accepted",
		Ingested:   ingested,
	}, nil
}

// inboundMail assembles the inquiry from SES metadata, taking the body from
// the record or from the stored raw message.
func (h *MailHook) inboundMail(ctx context.Context, record MailRecord) models.InboundMail {
	sesMail := record.SES.Mail
	msg := models.InboundMail{
		MessageID: sesMail.MessageID,
		From:      sesMail.Source,
		Subject:   mail.DecodeHeader(sesMail.CommonHeaders.Subject),
		Body:      record.Body,
		Source:    models.SourceSES,
	}
	if msg.Body != "" || h.fetcher == nil || !h.fetcher.Enabled() || msg.MessageID == "" {
		return msg
	}

	raw, err := h.fetcher.FetchRawMessage(ctx, msg.MessageID)
	if err != nil {
		h.logger.Warn("failed to fetch raw message, storing without body", "message_id", msg.MessageID, "error", err)
		return msg
	}
	parsed, err := mail.Parse(raw)
	if err != nil {
		h.logger.Warn("failed to parse raw message, storing without body", "message_id", msg.MessageID, "error", err)
		return msg
	}

	msg.Body = parsed.Body
	if msg.Subject == "" {
		msg.Subject = parsed.Subject
	}
	if msg.From == "" {
		msg.From = parsed.From
	}
	return msg
}
