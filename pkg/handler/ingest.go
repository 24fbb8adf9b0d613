package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	netmail "net/mail"
	"strings"

	"github.com/savaki/mailreply-bot/pkg/models"
	slackclient "github.com/savaki/mailreply-bot/pkg/slack"
)

// ErrNotifyUnavailable is returned when an inquiry was stored but no Slack
// notification could be attempted.
var ErrNotifyUnavailable = errors.New("slack notification unavailable")

// IngestConfig holds the settings the ingestion path needs
type IngestConfig struct {
	ChannelID string
	BotToken  string // used when the resolved credentials carry no bot token
}

// Ingestor stores a redacted inbound inquiry and announces it in Slack
type Ingestor struct {
	cfg      IngestConfig
	redactor Redactor
	store    ContextStore
	creds    SlackCredentialSource
	newChat  ChatClientFactory
	dedup    Deduper
	logger   *slog.Logger
}

// NewIngestor creates an Ingestor
func NewIngestor(cfg IngestConfig, redactor Redactor, store ContextStore, creds SlackCredentialSource, newChat ChatClientFactory, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		cfg:      cfg,
		redactor: redactor,
		store:    store,
		creds:    creds,
		newChat:  newChat,
		logger:   logger,
	}
}

// SetDeduper limits notifications to one per context id. Records are still
// written on every delivery.
func (i *Ingestor) SetDeduper(d Deduper) {
	i.dedup = d
}

// Ingest redacts and persists msg, then posts the notification. The record
// is always written before any message that references it. The returned id
// is the message id, or a generated one when the message had none.
func (i *Ingestor) Ingest(ctx context.Context, msg models.InboundMail) (string, error) {
	redacted, mapping := i.redactor.Redact(msg.Body)

	rec := models.NewContextRecord(msg.MessageID, senderAddress(msg.From), msg.Subject, msg.Body, redacted, mapping)
	rec.Source = msg.Source

	logger := i.logger.With("context_id", rec.ContextID, "source", msg.Source)

	if err := i.store.Put(ctx, rec); err != nil {
		return rec.ContextID, fmt.Errorf("save context: %w", err)
	}
	logger.Info("context saved", "pii_entities", len(mapping))

	marked := false
	if i.dedup != nil {
		isNew, err := i.dedup.IsNew(ctx, rec.ContextID)
		switch {
		case err != nil:
			logger.Warn("dedup check failed, notifying anyway", "error", err)
		case !isNew:
			logger.Info("inquiry already announced")
			return rec.ContextID, nil
		default:
			marked = true
		}
	}

	if err := i.notify(ctx, rec); err != nil {
		if marked {
			// let the next delivery of this message retry the announcement
			if relErr := i.dedup.Release(ctx, rec.ContextID); relErr != nil {
				logger.Warn("dedup release failed", "error", relErr)
			}
		}
		return rec.ContextID, err
	}
	logger.Info("inquiry announced")
	return rec.ContextID, nil
}

func (i *Ingestor) notify(ctx context.Context, rec *models.ContextRecord) error {
	botToken := i.cfg.BotToken
	if creds, err := i.creds.SlackCredentials(ctx); err != nil {
		i.logger.Warn("slack credentials unavailable", "error", err)
	} else if creds.BotToken != "" {
		botToken = creds.BotToken
	}
	if botToken == "" || i.cfg.ChannelID == "" {
		return ErrNotifyUnavailable
	}

	preview := slackclient.Preview(rec.BodyRedacted)
	blocks := slackclient.BuildNotification(rec.ContextID, rec.SenderEmail, rec.Subject, preview)
	if err := i.newChat(botToken).PostMessage(ctx, i.cfg.ChannelID, slackclient.NotificationText(rec.Subject), blocks...); err != nil {
		return fmt.Errorf("slack notify: %w", err)
	}
	return nil
}

// senderAddress reduces a From header to its bare address, keeping the input
// when it does not parse.
func senderAddress(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return ""
	}
	if addr, err := netmail.ParseAddress(from); err == nil {
		return addr.Address
	}
	return from
}
