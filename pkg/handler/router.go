package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/savaki/mailreply-bot/pkg/models"
	"github.com/savaki/mailreply-bot/pkg/pii"
	slackclient "github.com/savaki/mailreply-bot/pkg/slack"
)

// DefaultInlineBudget bounds inline generation so the modal opens within
// Slack's three second trigger window.
const DefaultInlineBudget = 2 * time.Second

// RouterConfig holds the settings the router needs
type RouterConfig struct {
	Stage              string
	SenderEmail        string
	ChannelID          string
	BotToken           string // used when the resolved credentials carry no bot token
	InlineBudget       time.Duration
	SignatureTolerance time.Duration
}

// RouterDeps are the collaborators the router drives. Trigger is nil unless
// async generation is configured.
type RouterDeps struct {
	Credentials SlackCredentialSource
	Store       ContextStore
	Generator   DraftGenerator
	Chat        ChatClientFactory
	Email       EmailSender
	Trigger     AsyncTrigger
}

// Router handles Slack webhook deliveries
type Router struct {
	cfg    RouterConfig
	deps   RouterDeps
	logger *slog.Logger
	now    func() time.Time
}

// NewRouter creates a Router
func NewRouter(cfg RouterConfig, deps RouterDeps, logger *slog.Logger) *Router {
	if cfg.InlineBudget <= 0 {
		cfg.InlineBudget = DefaultInlineBudget
	}
	if cfg.SignatureTolerance <= 0 {
		cfg.SignatureTolerance = DefaultSignatureTolerance
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		now:    time.Now,
	}
}

// HandleRequest verifies and dispatches one Slack delivery
func (r *Router) HandleRequest(ctx context.Context, request events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	creds, err := r.deps.Credentials.SlackCredentials(ctx)
	if err != nil {
		r.logger.Error("missing slack secrets", "error", err)
		return errorResponse(http.StatusInternalServerError, "server configuration"), nil
	}

	body := requestBody(request)
	if !VerifySlackSignature(
		creds.SigningSecret,
		header(request.Headers, HeaderSlackTimestamp),
		header(request.Headers, HeaderSlackSignature),
		body,
		r.cfg.SignatureTolerance,
		r.now(),
	) {
		r.logger.Warn("slack signature verification failed")
		return errorResponse(http.StatusUnauthorized, "unauthorized"), nil
	}

	payload := parsePayload(header(request.Headers, "Content-Type"), body)

	botToken := creds.BotToken
	if botToken == "" {
		botToken = r.cfg.BotToken
	}

	switch {
	case payload.Type == models.EventURLVerification && payload.Challenge != "":
		return textResponse(http.StatusOK, payload.Challenge), nil

	case payload.Type == models.EventBlockActions:
		r.logger.Info("received block_actions")
		r.handleBlockActions(ctx, botToken, payload)
		return jsonResponse(http.StatusOK, map[string]bool{"ack": true}), nil

	case payload.Type == models.EventViewSubmission:
		r.logger.Info("received view_submission")
		r.handleViewSubmission(ctx, botToken, payload)
		return jsonResponse(http.StatusOK, map[string]string{"response_action": "clear"}), nil
	}

	r.logger.Warn("unknown slack event type", "event_type", payload.Type)
	return errorResponse(http.StatusBadRequest, "unsupported"), nil
}

// handleBlockActions opens the reply modal. Generation problems never fail
// the delivery: the modal opens with whatever text is ready. In async mode
// the modal opens before any store access so the trigger id stays valid.
func (r *Router) handleBlockActions(ctx context.Context, botToken string, payload models.SlackPayload) {
	contextID := actionContextID(payload.Actions)
	externalID := models.ExternalID(contextID)
	logger := r.logger.With("context_id", contextID)

	if r.deps.Trigger == nil {
		r.openModal(ctx, botToken, payload.TriggerID, contextID, externalID, r.inlineDraft(ctx, contextID, logger), logger)
		return
	}

	r.openModal(ctx, botToken, payload.TriggerID, contextID, externalID, slackclient.PlaceholderText, logger)
	if contextID == "" {
		return
	}

	job := r.prepareJob(ctx, contextID, externalID, logger)
	// the async client applies its own short deadline
	if err := r.deps.Trigger.Trigger(ctx, job); err != nil {
		logger.Warn("async generation trigger failed", "error", err)
	} else {
		logger.Info("async generation triggered", "external_id", externalID)
	}
}

func (r *Router) openModal(ctx context.Context, botToken, triggerID, contextID, externalID, initialText string, logger *slog.Logger) {
	if botToken == "" || triggerID == "" {
		logger.Warn("cannot open modal", "has_bot_token", botToken != "", "has_trigger_id", triggerID != "")
		return
	}
	view := slackclient.BuildReplyModal(contextID, externalID, initialText)
	if err := r.deps.Chat(botToken).OpenModal(ctx, triggerID, view); err != nil {
		logger.Warn("failed to open slack modal", "error", err)
	}
}

// inlineDraft generates a draft within the inline budget, measured from the
// start of the record lookup. Anything short of a finished draft inside the
// budget yields the placeholder.
func (r *Router) inlineDraft(ctx context.Context, contextID string, logger *slog.Logger) string {
	if contextID == "" {
		return slackclient.PlaceholderText
	}

	started := r.now()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.InlineBudget)
	defer cancel()

	rec, mapping, ok := r.lookup(ctx, contextID, logger)
	if !ok || rec.BodyRedacted == "" {
		return slackclient.PlaceholderText
	}
	if r.now().Sub(started) >= r.cfg.InlineBudget {
		logger.Info("inline budget spent before generation")
		return slackclient.PlaceholderText
	}

	draft := r.deps.Generator.GenerateReplyDraft(ctx, rec.BodyRedacted)
	if draft == "" {
		return slackclient.PlaceholderText
	}
	if r.now().Sub(started) > r.cfg.InlineBudget {
		logger.Info("inline draft discarded after budget")
		return slackclient.PlaceholderText
	}
	return pii.Reidentify(draft, mapping)
}

// prepareJob builds the async job, attaching the redacted body and map when
// the record can be read within the inline budget so the worker can skip its
// own lookup.
func (r *Router) prepareJob(ctx context.Context, contextID, externalID string, logger *slog.Logger) models.GenerationJob {
	job := models.GenerationJob{
		ContextID:  contextID,
		ExternalID: externalID,
		Stage:      r.cfg.Stage,
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.InlineBudget)
	defer cancel()

	if rec, mapping, ok := r.lookup(ctx, contextID, logger); ok && rec.BodyRedacted != "" {
		job.RedactedBody = rec.BodyRedacted
		job.PIIMap = mapping
	}
	return job
}

// lookup fetches a record and its decoded map. A read error counts as absent.
func (r *Router) lookup(ctx context.Context, contextID string, logger *slog.Logger) (*models.ContextRecord, map[string]string, bool) {
	rec, found, err := r.deps.Store.Get(ctx, contextID)
	if err != nil {
		logger.Warn("context lookup failed", "error", err)
		return nil, nil, false
	}
	if !found {
		logger.Info("context not found")
		return nil, nil, false
	}
	mapping, err := rec.Mapping()
	if err != nil {
		logger.Warn("invalid pii map, continuing without it", "error", err)
	}
	return rec, mapping, true
}

// handleViewSubmission sends the edited reply. Failures are logged; the
// caller always clears the modal.
func (r *Router) handleViewSubmission(ctx context.Context, botToken string, payload models.SlackPayload) {
	contextID := parseContextRef(payload.View.PrivateMetadata)
	editedText := payload.View.State.InputValue(slackclient.BlockReply, slackclient.ActionReplyInput)
	logger := r.logger.With("context_id", contextID)

	if contextID == "" {
		logger.Warn("submission without context id")
		return
	}
	rec, found, err := r.deps.Store.Get(ctx, contextID)
	if err != nil {
		logger.Warn("context lookup failed", "error", err)
		return
	}
	if !found {
		logger.Warn("context not found, nothing sent")
		return
	}

	if err := r.deps.Email.SendEmail(ctx, r.cfg.SenderEmail, []string{rec.SenderEmail}, rec.Subject, editedText); err != nil {
		logger.Error("ses send email failed", "error", err)
	} else {
		logger.Info("reply sent", "recipient", rec.SenderEmail)
	}

	if botToken == "" || r.cfg.ChannelID == "" {
		logger.Warn("skipping completion notice", "has_bot_token", botToken != "", "has_channel", r.cfg.ChannelID != "")
		return
	}
	text := slackclient.CompletionText(rec.SenderEmail, rec.Subject)
	if err := r.deps.Chat(botToken).PostMessage(ctx, r.cfg.ChannelID, text); err != nil {
		logger.Warn("slack post confirmation failed", "error", err)
	}
}

// requestBody returns the raw body bytes the signature was computed over
func requestBody(request events.APIGatewayV2HTTPRequest) []byte {
	if request.IsBase64Encoded {
		if data, err := base64.StdEncoding.DecodeString(request.Body); err == nil {
			return data
		}
	}
	return []byte(request.Body)
}

// parsePayload decodes either a raw JSON body or an interactivity form body
// with a payload field. Anything malformed decodes to the zero payload.
func parsePayload(contentType string, body []byte) models.SlackPayload {
	raw := body
	if strings.Contains(strings.ToLower(contentType), "application/x-www-form-urlencoded") {
		form, _ := url.ParseQuery(string(body))
		raw = []byte(form.Get("payload"))
	}

	var payload models.SlackPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return models.SlackPayload{}
	}
	return payload
}

// actionContextID reads the context id from the first action's value
func actionContextID(actions []models.SlackAction) string {
	if len(actions) == 0 {
		return ""
	}
	return parseContextRef(actions[0].Value)
}

// parseContextRef extracts context_id from a JSON reference, "" when invalid
func parseContextRef(raw string) string {
	if raw == "" {
		return ""
	}
	var ref models.ContextRef
	if err := json.Unmarshal([]byte(raw), &ref); err != nil {
		return ""
	}
	return ref.ContextID
}
