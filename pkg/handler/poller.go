package handler

import (
	"context"
	"fmt"
	"log/slog"
)

// PollerConfig holds the mailbox query settings
type PollerConfig struct {
	Query      string
	MaxResults int
}

// PollResult is returned by the scheduled poll
type PollResult struct {
	Fetched int `json:"fetched"`
}

// Poller runs the ingestion path over unread mailbox messages
type Poller struct {
	cfg      PollerConfig
	source   MailSource
	ingestor *Ingestor
	logger   *slog.Logger
}

// NewPoller creates a Poller
func NewPoller(cfg PollerConfig, source MailSource, ingestor *Ingestor, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:      cfg,
		source:   source,
		ingestor: ingestor,
		logger:   logger,
	}
}

// Poll lists matching messages and ingests each one. A message that fails
// to load or ingest is logged and skipped; only a failed listing is an error.
func (p *Poller) Poll(ctx context.Context) (PollResult, error) {
	ids, err := p.source.ListMessageIDs(ctx, p.cfg.Query, p.cfg.MaxResults)
	if err != nil {
		return PollResult{}, fmt.Errorf("poll mailbox: %w", err)
	}
	p.logger.Info("polled mailbox", "messages", len(ids))

	fetched := 0
	for _, id := range ids {
		msg, err := p.source.GetMessage(ctx, id)
		if err != nil {
			p.logger.Warn("failed to get message", "message_id", id, "error", err)
			continue
		}
		if _, err := p.ingestor.Ingest(ctx, msg); err != nil {
			p.logger.Warn("failed to ingest message", "message_id", id, "error", err)
			continue
		}
		fetched++
	}

	return PollResult{Fetched: fetched}, nil
}
