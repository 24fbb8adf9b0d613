// Package secretsmanager resolves Slack and Gmail credentials from AWS
// Secrets Manager. Secrets are read fresh on every call.
package secretsmanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// DefaultTimeout bounds a single secret fetch
const DefaultTimeout = 2 * time.Second

// ErrNotConfigured is returned when no secret reference is configured
var ErrNotConfigured = errors.New("secrets are not configured")

// SecretAPI is the subset of the Secrets Manager API the resolver uses
type SecretAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

var _ SecretAPI = (*secretsmanager.Client)(nil)

// Resolver fetches secret strings with a per-call deadline
type Resolver struct {
	client  SecretAPI
	timeout time.Duration
}

// NewResolver creates a resolver from AWS config
func NewResolver(cfg aws.Config, timeout time.Duration) *Resolver {
	return NewResolverWithAPI(secretsmanager.NewFromConfig(cfg), timeout)
}

// NewResolverWithAPI creates a resolver over an existing API implementation
func NewResolverWithAPI(api SecretAPI, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{client: api, timeout: timeout}
}

// SecretString returns the string value of a secret
func (r *Resolver) SecretString(ctx context.Context, secretArn string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretArn),
	})
	if err != nil {
		return "", fmt.Errorf("get secret value: %w", err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", secretArn)
	}
	return *out.SecretString, nil
}

// SecretJSON decodes a JSON secret into v
func (r *Resolver) SecretJSON(ctx context.Context, secretArn string, v interface{}) error {
	raw, err := r.SecretString(ctx, secretArn)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode secret %s: %w", secretArn, err)
	}
	return nil
}

// SlackCredentials holds the Slack app secrets. BotToken is empty when only
// a signing secret is configured.
type SlackCredentials struct {
	SigningSecret string `json:"signing_secret"`
	BotToken      string `json:"bot_token"`
}

// SlackSource resolves Slack credentials from either an app secret (JSON with
// signing_secret and bot_token) or a plain signing secret. The app secret
// wins when both are configured.
type SlackSource struct {
	resolver         *Resolver
	signingSecretArn string
	appSecretArn     string
}

// NewSlackSource creates a SlackSource
func NewSlackSource(resolver *Resolver, signingSecretArn, appSecretArn string) *SlackSource {
	return &SlackSource{
		resolver:         resolver,
		signingSecretArn: signingSecretArn,
		appSecretArn:     appSecretArn,
	}
}

// SlackCredentials resolves the current Slack credentials
func (s *SlackSource) SlackCredentials(ctx context.Context) (SlackCredentials, error) {
	if s.appSecretArn != "" {
		var creds SlackCredentials
		if err := s.resolver.SecretJSON(ctx, s.appSecretArn, &creds); err != nil {
			return SlackCredentials{}, fmt.Errorf("resolve slack app secret: %w", err)
		}
		if creds.SigningSecret == "" || creds.BotToken == "" {
			return SlackCredentials{}, fmt.Errorf("slack app secret must include signing_secret and bot_token")
		}
		return creds, nil
	}

	if s.signingSecretArn != "" {
		signing, err := s.resolver.SecretString(ctx, s.signingSecretArn)
		if err != nil {
			return SlackCredentials{}, fmt.Errorf("resolve slack signing secret: %w", err)
		}
		return SlackCredentials{SigningSecret: signing}, nil
	}

	return SlackCredentials{}, fmt.Errorf("slack: %w", ErrNotConfigured)
}

// GmailOAuth holds the OAuth client and refresh token used by the poller
type GmailOAuth struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// GmailOAuth resolves the Gmail OAuth secret. All three fields are required.
func (r *Resolver) GmailOAuth(ctx context.Context, secretArn string) (GmailOAuth, error) {
	if secretArn == "" {
		return GmailOAuth{}, fmt.Errorf("gmail: %w", ErrNotConfigured)
	}

	var creds GmailOAuth
	if err := r.SecretJSON(ctx, secretArn, &creds); err != nil {
		return GmailOAuth{}, fmt.Errorf("resolve gmail secret: %w", err)
	}
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.RefreshToken == "" {
		return GmailOAuth{}, fmt.Errorf("gmail secret must include client_id, client_secret and refresh_token")
	}
	return creds, nil
}
