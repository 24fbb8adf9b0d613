package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	appconfig "github.com/savaki/mailreply-bot/pkg/config"
	"github.com/savaki/mailreply-bot/pkg/dedup"
	"github.com/savaki/mailreply-bot/pkg/dynamodb"
	"github.com/savaki/mailreply-bot/pkg/gmail"
	"github.com/savaki/mailreply-bot/pkg/handler"
	"github.com/savaki/mailreply-bot/pkg/logging"
	"github.com/savaki/mailreply-bot/pkg/pii"
	"github.com/savaki/mailreply-bot/pkg/secretsmanager"
	slackclient "github.com/savaki/mailreply-bot/pkg/slack"
)

// PollResponse is returned to the scheduler
type PollResponse struct {
	StatusCode int    `json:"statusCode"`
	Fetched    int    `json:"fetched"`
	Error      string `json:"error,omitempty"`
}

type app struct {
	cfg      *appconfig.Config
	resolver *secretsmanager.Resolver
	ingestor *handler.Ingestor
	logger   *slog.Logger
}

// Handle resolves the mailbox credentials and runs one poll. The OAuth
// client is built per invocation so a rotated refresh token is picked up.
func (a *app) Handle(ctx context.Context) (PollResponse, error) {
	creds, err := a.resolver.GmailOAuth(ctx, a.cfg.GmailOAuthSecretArn)
	if err != nil {
		a.logger.Error("missing gmail secrets", "error", err)
		return PollResponse{StatusCode: 500, Error: "server configuration"}, nil
	}

	poller := handler.NewPoller(handler.PollerConfig{
		Query:      a.cfg.GmailQuery,
		MaxResults: a.cfg.GmailMaxResults,
	}, gmail.NewClient(ctx, creds), a.ingestor, a.logger)

	result, err := poller.Poll(ctx)
	if err != nil {
		a.logger.Error("gmail poll failed", "error", err)
		return PollResponse{StatusCode: 502, Error: "mailbox unavailable"}, nil
	}
	a.logger.Info("gmail poll complete", "fetched", result.Fetched)
	return PollResponse{StatusCode: 200, Fetched: result.Fetched}, nil
}

func main() {
	ctx := context.Background()

	cfg, err := appconfig.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Stage, cfg.LogLevel)

	if err := cfg.ValidatePoller(); err != nil {
		logger.Error("invalid poller config", "error", err)
		os.Exit(1)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	resolver := secretsmanager.NewResolver(awsCfg, cfg.SecretTimeout)
	store := dynamodb.NewContextRepository(dynamodb.NewClientWithConfig(awsCfg), cfg.ContextsTable, cfg.GetContextTTL(), logger)

	ingestor := handler.NewIngestor(
		handler.IngestConfig{ChannelID: cfg.SlackChannelID, BotToken: cfg.SlackBotToken},
		pii.New(pii.WithLogger(logger)),
		store,
		secretsmanager.NewSlackSource(resolver, cfg.SlackSigningSecretArn, cfg.SlackAppSecretArn),
		func(botToken string) handler.ChatClient { return slackclient.NewClient(botToken) },
		logger,
	)
	if cfg.RedisURL != "" {
		filter, err := dedup.NewFilterFromURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		ingestor.SetDeduper(filter)
	}

	a := &app{cfg: cfg, resolver: resolver, ingestor: ingestor, logger: logger}
	lambda.Start(a.Handle)
}
