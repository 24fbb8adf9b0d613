package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	// Default Bedrock model ID for Claude 3.5 Sonnet
	DefaultModelID = "anthropic.claude-3-5-sonnet-20241022-v2:0"

	// DefaultMaxTokens caps the length of a generated draft
	DefaultMaxTokens = 400
)

// InvokeAPI is the subset of the Bedrock Runtime API the client uses
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

var _ InvokeAPI = (*bedrockruntime.Client)(nil)

// Client is a client for AWS Bedrock Runtime (Claude models)
type Client struct {
	client    InvokeAPI
	modelID   string
	maxTokens int
	logger    *slog.Logger
}

// NewClient creates a new Bedrock client
func NewClient(cfg aws.Config) *Client {
	return NewClientWithAPI(bedrockruntime.NewFromConfig(cfg))
}

// NewClientWithAPI creates a Bedrock client over an existing API implementation
func NewClientWithAPI(api InvokeAPI) *Client {
	return &Client{
		client:    api,
		modelID:   DefaultModelID,
		maxTokens: DefaultMaxTokens,
		logger:    slog.Default(),
	}
}

// SetModel allows overriding the default model ID
func (c *Client) SetModel(modelID string) {
	if modelID != "" {
		c.modelID = modelID
	}
}

// SetMaxTokens allows overriding the response token cap
func (c *Client) SetMaxTokens(maxTokens int) {
	if maxTokens > 0 {
		c.maxTokens = maxTokens
	}
}

// SetLogger sets the logger used to report generation failures
func (c *Client) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Message is a single turn in the Claude Messages API format
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BedrockRequest represents a request to Bedrock (Claude Messages API format)
type BedrockRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Messages         []Message `json:"messages"`
	System           string    `json:"system,omitempty"`
}

// BedrockResponse represents a response from Bedrock
type BedrockResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// GenerateReplyDraft drafts a reply to a redacted inquiry. It returns "" on
// any failure, including an empty input or a cancelled context.
func (c *Client) GenerateReplyDraft(ctx context.Context, redactedBody string) string {
	if strings.TrimSpace(redactedBody) == "" {
		return ""
	}

	draft, err := c.Generate(ctx, redactedBody)
	if err != nil {
		c.logger.Warn("draft generation failed", "error", err)
		return ""
	}
	return draft
}

// Generate sends the inquiry to Claude and returns the trimmed draft text
func (c *Client) Generate(ctx context.Context, redactedBody string) (string, error) {
	req := BedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        c.maxTokens,
		Messages: []Message{
			{Role: "user", Content: redactedBody},
		},
		System: GetSystemPrompt(),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	output, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("invoke bedrock model: %w", err)
	}

	var response BedrockResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	var b strings.Builder
	for _, part := range response.Content {
		if part.Type == "text" {
			b.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("empty response from Bedrock")
	}

	return text, nil
}

// GetSystemPrompt returns the system prompt for reply drafting
func GetSystemPrompt() string {
	return `You are a customer support representative. Write a polite, concise reply draft to the customer inquiry you are given.

Guidelines:
- Reply in the language the customer wrote in
- Keep bracketed placeholders such as [EMAIL_1] or [PERSON_1] exactly as written; they stand for details that were removed
- Do not invent order numbers or commitments
- Output only the reply body, without a subject line`
}
