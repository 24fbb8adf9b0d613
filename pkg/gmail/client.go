// Package gmail reads unread messages from a Gmail mailbox through the Gmail
// REST API, authenticating with an OAuth refresh token.
package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/savaki/mailreply-bot/pkg/mail"
	"github.com/savaki/mailreply-bot/pkg/models"
	"github.com/savaki/mailreply-bot/pkg/secretsmanager"
	"golang.org/x/oauth2"
)

const (
	// apiBase is the base URL for the Gmail API
	apiBase = "https://gmail.googleapis.com/gmail/v1"

	// tokenURL is Google's OAuth token endpoint
	tokenURL = "https://oauth2.googleapis.com/token"

	// ReadonlyScope is the only scope the poller needs
	ReadonlyScope = "https://www.googleapis.com/auth/gmail.readonly"

	maxResponseSize = 25 << 20
)

// Client is a read-only Gmail API client
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets the HTTP client, replacing the OAuth transport
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithBaseURL sets a custom API base URL
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// NewClient creates a client whose transport refreshes access tokens from
// the stored refresh token.
func NewClient(ctx context.Context, creds secretsmanager.GmailOAuth, opts ...Option) *Client {
	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
		Scopes:       []string{ReadonlyScope},
	}

	c := &Client{
		httpClient: conf.Client(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken}),
		baseURL:    apiBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listResponse struct {
	Messages []struct {
		ID       string `json:"id"`
		ThreadID string `json:"threadId"`
	} `json:"messages"`
}

// ListMessageIDs returns up to maxResults message ids matching query,
// newest first.
func (c *Client) ListMessageIDs(ctx context.Context, query string, maxResults int) ([]string, error) {
	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	if maxResults > 0 {
		params.Set("maxResults", strconv.Itoa(maxResults))
	}

	var resp listResponse
	if err := c.get(ctx, "/users/me/messages?"+params.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// Part is a node of a Gmail message payload tree
type Part struct {
	MimeType string   `json:"mimeType"`
	Filename string   `json:"filename"`
	Headers  []Header `json:"headers"`
	Body     struct {
		Data string `json:"data"`
		Size int    `json:"size"`
	} `json:"body"`
	Parts []Part `json:"parts"`
}

// Header is a single message header
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type messageResponse struct {
	ID      string `json:"id"`
	Payload Part   `json:"payload"`
}

// GetMessage fetches a message in full format and extracts what ingestion
// needs. The Gmail message id becomes the message id.
func (c *Client) GetMessage(ctx context.Context, id string) (models.InboundMail, error) {
	var resp messageResponse
	if err := c.get(ctx, "/users/me/messages/"+url.PathEscape(id)+"?format=full", &resp); err != nil {
		return models.InboundMail{}, fmt.Errorf("get message %s: %w", id, err)
	}

	messageID := resp.ID
	if messageID == "" {
		messageID = id
	}

	return models.InboundMail{
		MessageID: messageID,
		From:      mail.DecodeHeader(headerValue(resp.Payload.Headers, "From")),
		Subject:   mail.DecodeHeader(headerValue(resp.Payload.Headers, "Subject")),
		Body:      ExtractBody(resp.Payload),
		Source:    models.SourceGmail,
	}, nil
}

// ExtractBody walks the payload tree for a text/plain part, falling back to
// the first text/html part rendered as text.
func ExtractBody(p Part) string {
	if text, ok := findPart(p, "text/plain"); ok {
		return text
	}
	if text, ok := findPart(p, "text/html"); ok {
		return mail.HTMLToText(text)
	}
	return ""
}

func findPart(p Part, mimeType string) (string, bool) {
	if strings.EqualFold(p.MimeType, mimeType) && p.Filename == "" && p.Body.Data != "" {
		data, err := DecodeData(p.Body.Data)
		if err == nil {
			return string(data), true
		}
	}
	for _, child := range p.Parts {
		if text, ok := findPart(child, mimeType); ok {
			return text, true
		}
	}
	return "", false
}

// DecodeData decodes Gmail's base64url body data, padded or not
func DecodeData(data string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}

func headerValue(headers []Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func (c *Client) get(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gmail API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
