package async

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/savaki/mailreply-bot/pkg/models"
)

// JobStarter starts an out-of-band generation run for a job
type JobStarter interface {
	StartGeneration(ctx context.Context, job models.GenerationJob) (string, error)
}

// Endpoint is the HTTP receiver for generation triggers
type Endpoint struct {
	starter    JobStarter
	authHeader string
	logger     *slog.Logger
}

// NewEndpoint creates an Endpoint. An empty authHeader disables the
// Authorization check.
func NewEndpoint(starter JobStarter, authHeader string, logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = slog.Default()
	}
	return &Endpoint{
		starter:    starter,
		authHeader: authHeader,
		logger:     logger,
	}
}

// HandleRequest serves GET /health and POST trigger requests
func (e *Endpoint) HandleRequest(ctx context.Context, request events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := request.RequestContext.HTTP.Method
	if method == http.MethodGet && strings.HasSuffix(request.RawPath, "/health") {
		return jsonResponse(http.StatusOK, map[string]string{"status": "healthy"}), nil
	}
	if method != "" && method != http.MethodPost {
		return jsonResponse(http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"}), nil
	}

	if e.authHeader != "" {
		got := headerValue(request.Headers, "Authorization")
		if subtle.ConstantTimeCompare([]byte(got), []byte(e.authHeader)) != 1 {
			e.logger.Warn("trigger authorization failed")
			return jsonResponse(http.StatusUnauthorized, map[string]string{"error": "unauthorized"}), nil
		}
	}

	body := request.Body
	if request.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return jsonResponse(http.StatusBadRequest, map[string]string{"error": "invalid body encoding"}), nil
		}
		body = string(decoded)
	}

	var job models.GenerationJob
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return jsonResponse(http.StatusBadRequest, map[string]string{"error": "no JSON data provided"}), nil
	}
	if job.ContextID == "" || job.ExternalID == "" || job.Stage == "" {
		return jsonResponse(http.StatusBadRequest, map[string]string{"error": "missing required fields"}), nil
	}

	executionArn, err := e.starter.StartGeneration(ctx, job)
	if err != nil {
		e.logger.Error("failed to start generation", "context_id", job.ContextID, "error", err)
		return jsonResponse(http.StatusInternalServerError, map[string]string{"error": "failed to trigger job"}), nil
	}

	e.logger.Info("generation triggered", "context_id", job.ContextID, "execution_arn", executionArn)
	return jsonResponse(http.StatusOK, map[string]string{"status": "job_triggered"}), nil
}

// headerValue looks a header up case-insensitively; API Gateway v2 lowercases
// names but direct invocations may not.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[strings.ToLower(name)]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func jsonResponse(status int, body interface{}) events.APIGatewayV2HTTPResponse {
	data, _ := json.Marshal(body)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       string(data),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
