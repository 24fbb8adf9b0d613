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
	"github.com/savaki/mailreply-bot/pkg/handler"
	"github.com/savaki/mailreply-bot/pkg/logging"
	"github.com/savaki/mailreply-bot/pkg/pii"
	"github.com/savaki/mailreply-bot/pkg/s3"
	"github.com/savaki/mailreply-bot/pkg/secretsmanager"
	slackclient "github.com/savaki/mailreply-bot/pkg/slack"
)

func main() {
	ctx := context.Background()

	cfg, err := appconfig.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Stage, cfg.LogLevel)

	if err := cfg.ValidateIngest(); err != nil {
		logger.Error("invalid inbound mail config", "error", err)
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

	var fetcher handler.RawMessageFetcher
	if cfg.SESInboundBucketName != "" {
		fetcher = s3.NewFetcher(awsCfg, cfg.SESInboundBucketName, cfg.SESInboundPrefix)
	}

	hook := handler.NewMailHook(ingestor, fetcher, logger)
	lambda.Start(hook.HandleEvent)
}
