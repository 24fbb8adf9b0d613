package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	// AWS
	AWSRegion string

	// Stage tag, included in logs and async generation requests
	Stage    string
	LogLevel string

	// Slack
	SlackSigningSecretArn string
	SlackAppSecretArn     string
	SlackBotToken         string
	SlackChannelID        string

	// DynamoDB
	ContextsTable  string
	ContextTTLDays int

	// SES
	SenderEmailAddress   string
	SESInboundBucketName string
	SESInboundPrefix     string

	// Bedrock
	BedrockModelID         string
	GenerationMaxTokens    int
	InlineGenerationBudget time.Duration

	// Async generation
	AsyncGenerationEndpoint   string
	AsyncGenerationAuthHeader string
	AsyncTriggerTimeout       time.Duration

	// Step Functions (async trigger endpoint)
	StepFunctionArn string

	// Gmail poller
	GmailOAuthSecretArn string
	GmailMaxResults     int
	GmailQuery          string

	// Redis (optional notification dedup)
	RedisURL string

	SecretTimeout time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		AWSRegion:                 getEnv("AWS_REGION", "us-east-1"),
		Stage:                     getEnv("STAGE", "dev"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		SlackSigningSecretArn:     getEnv("SLACK_SIGNING_SECRET_ARN", ""),
		SlackAppSecretArn:         getEnv("SLACK_APP_SECRET_ARN", ""),
		SlackBotToken:             getEnv("SLACK_BOT_TOKEN", ""),
		SlackChannelID:            getEnv("SLACK_CHANNEL_ID", ""),
		ContextsTable:             getEnv("CONTEXTS_TABLE", getEnv("DDB_TABLE_NAME", "")),
		ContextTTLDays:            getEnvInt("CONTEXT_TTL_DAYS", 0),
		SenderEmailAddress:        getEnv("SENDER_EMAIL_ADDRESS", ""),
		SESInboundBucketName:      getEnv("SES_INBOUND_BUCKET_NAME", ""),
		SESInboundPrefix:          getEnv("SES_INBOUND_PREFIX", ""),
		BedrockModelID:            getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-5-sonnet-20241022-v2:0"),
		GenerationMaxTokens:       getEnvInt("GENERATION_MAX_TOKENS", 400),
		InlineGenerationBudget:    getEnvDuration("INLINE_GENERATION_BUDGET", 2*time.Second),
		AsyncGenerationEndpoint:   getEnv("ASYNC_GENERATION_ENDPOINT", ""),
		AsyncGenerationAuthHeader: getEnv("ASYNC_GENERATION_AUTH_HEADER", ""),
		AsyncTriggerTimeout:       getEnvDuration("ASYNC_TRIGGER_TIMEOUT", time.Second),
		StepFunctionArn:           getEnv("STEP_FUNCTION_ARN", ""),
		GmailOAuthSecretArn:       getEnv("GMAIL_OAUTH_SECRET_ARN", ""),
		GmailMaxResults:           getEnvInt("GMAIL_MAX_RESULTS", 5),
		GmailQuery:                getEnv("GMAIL_QUERY", "is:unread"),
		RedisURL:                  getEnv("REDIS_URL", ""),
		SecretTimeout:             getEnvDuration("SECRET_TIMEOUT", 2*time.Second),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings every function needs
func (c *Config) Validate() error {
	if c.ContextsTable == "" {
		return fmt.Errorf("CONTEXTS_TABLE is required")
	}
	return nil
}

// ValidateRouter checks configuration for the Slack webhook function
func (c *Config) ValidateRouter() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if !c.HasSlackSecrets() {
		return fmt.Errorf("SLACK_APP_SECRET_ARN or SLACK_SIGNING_SECRET_ARN is required")
	}
	if c.SenderEmailAddress == "" {
		return fmt.Errorf("SENDER_EMAIL_ADDRESS is required")
	}
	return nil
}

// ValidateIngest checks configuration for the inbound mail function
func (c *Config) ValidateIngest() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.SlackChannelID == "" {
		return fmt.Errorf("SLACK_CHANNEL_ID is required")
	}
	return nil
}

// ValidatePoller checks configuration for the Gmail poller
func (c *Config) ValidatePoller() error {
	if err := c.ValidateIngest(); err != nil {
		return err
	}
	if c.GmailOAuthSecretArn == "" {
		return fmt.Errorf("GMAIL_OAUTH_SECRET_ARN is required")
	}
	return nil
}

// ValidateWorker checks configuration for the async generation worker
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.SlackBotToken == "" && c.SlackAppSecretArn == "" {
		return fmt.Errorf("SLACK_BOT_TOKEN or SLACK_APP_SECRET_ARN is required for the worker")
	}
	return nil
}

// ValidateTrigger checks configuration for the async trigger endpoint.
// It does not touch the record table, so the base checks are skipped.
func (c *Config) ValidateTrigger() error {
	if c.StepFunctionArn == "" {
		return fmt.Errorf("STEP_FUNCTION_ARN is required for the trigger endpoint")
	}
	return nil
}

// HasSlackSecrets reports whether any Slack secret reference is configured
func (c *Config) HasSlackSecrets() bool {
	return c.SlackAppSecretArn != "" || c.SlackSigningSecretArn != ""
}

// AsyncEnabled reports whether block actions should use the async strategy
func (c *Config) AsyncEnabled() bool {
	return c.AsyncGenerationEndpoint != ""
}

// GetContextTTL returns the retention for context records, zero meaning none
func (c *Config) GetContextTTL() time.Duration {
	if c.ContextTTLDays <= 0 {
		return 0
	}
	return time.Duration(c.ContextTTLDays*24) * time.Hour
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
