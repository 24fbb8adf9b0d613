// Package worker fills an already opened reply modal with a generated draft.
// It runs as a one-shot batch job started by the async trigger endpoint.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/savaki/mailreply-bot/pkg/models"
	"github.com/savaki/mailreply-bot/pkg/pii"
	slackclient "github.com/savaki/mailreply-bot/pkg/slack"
	"github.com/slack-go/slack"
)

var (
	// ErrInvalidJob is returned for a job without the ids needed to proceed
	ErrInvalidJob = errors.New("invalid job")

	// ErrContextNotFound is returned when the job carries no body and the
	// record cannot be found
	ErrContextNotFound = errors.New("context not found")
)

// RecordReader loads a context record
type RecordReader interface {
	Get(ctx context.Context, contextID string) (*models.ContextRecord, bool, error)
}

// DraftGenerator turns a redacted inquiry into a reply draft, "" on failure
type DraftGenerator interface {
	GenerateReplyDraft(ctx context.Context, redactedBody string) string
}

// ModalUpdater replaces the content of an open modal
type ModalUpdater interface {
	UpdateModal(ctx context.Context, externalID string, view slack.ModalViewRequest) error
}

// Worker runs generation jobs
type Worker struct {
	records   RecordReader
	generator DraftGenerator
	modals    ModalUpdater
	logger    *slog.Logger
}

// New creates a Worker
func New(records RecordReader, generator DraftGenerator, modals ModalUpdater, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		records:   records,
		generator: generator,
		modals:    modals,
		logger:    logger,
	}
}

// ParseJob decodes a job payload. A missing external id is derived from the
// context id.
func ParseJob(payload string) (models.GenerationJob, error) {
	var job models.GenerationJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return models.GenerationJob{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if job.ExternalID == "" && job.ContextID != "" {
		job.ExternalID = models.ExternalID(job.ContextID)
	}
	if job.ExternalID == "" {
		return models.GenerationJob{}, fmt.Errorf("%w: external_id or context_id is required", ErrInvalidJob)
	}
	return job, nil
}

// Run generates the draft for job and writes it into the modal. It succeeds
// only when the modal update succeeds. There are no retries here; the job
// platform decides whether to run it again.
func (w *Worker) Run(ctx context.Context, job models.GenerationJob) error {
	if job.ExternalID == "" {
		return fmt.Errorf("%w: missing external_id", ErrInvalidJob)
	}
	logger := w.logger.With("context_id", job.ContextID, "external_id", job.ExternalID)

	body, mapping, err := w.source(ctx, job)
	if err != nil {
		return err
	}

	draft := w.generator.GenerateReplyDraft(ctx, body)
	if strings.TrimSpace(draft) == "" {
		logger.Warn("draft generation failed, using apology text")
		draft = slackclient.ApologyText
	}

	text := pii.Reidentify(draft, mapping)
	view := slackclient.BuildReplyModal(job.ContextID, job.ExternalID, text)
	if err := w.modals.UpdateModal(ctx, job.ExternalID, view); err != nil {
		return fmt.Errorf("update modal: %w", err)
	}

	logger.Info("modal updated", "draft_chars", len([]rune(text)))
	return nil
}

// source returns the redacted body and PII map, from the job when it carries
// them and from the record otherwise.
func (w *Worker) source(ctx context.Context, job models.GenerationJob) (string, map[string]string, error) {
	if job.RedactedBody != "" {
		mapping := job.PIIMap
		if mapping == nil {
			mapping = map[string]string{}
		}
		return job.RedactedBody, mapping, nil
	}

	if job.ContextID == "" {
		return "", nil, fmt.Errorf("%w: missing context_id", ErrInvalidJob)
	}
	rec, found, err := w.records.Get(ctx, job.ContextID)
	if err != nil {
		return "", nil, fmt.Errorf("get context: %w", err)
	}
	if !found {
		return "", nil, fmt.Errorf("%w: %s", ErrContextNotFound, job.ContextID)
	}

	mapping := job.PIIMap
	if len(mapping) == 0 {
		mapping, err = rec.Mapping()
		if err != nil {
			w.logger.Warn("invalid pii map, continuing without it", "context_id", job.ContextID, "error", err)
		}
	}
	return rec.BodyRedacted, mapping, nil
}
