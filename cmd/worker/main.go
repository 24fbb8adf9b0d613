package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/savaki/mailreply-bot/pkg/bedrock"
	appconfig "github.com/savaki/mailreply-bot/pkg/config"
	"github.com/savaki/mailreply-bot/pkg/dynamodb"
	"github.com/savaki/mailreply-bot/pkg/logging"
	"github.com/savaki/mailreply-bot/pkg/models"
	"github.com/savaki/mailreply-bot/pkg/secretsmanager"
	slackclient "github.com/savaki/mailreply-bot/pkg/slack"
	"github.com/savaki/mailreply-bot/pkg/worker"
)

// jobFromEnv reads the job passed by Step Functions. JOB_PAYLOAD carries the
// full job; CONTEXT_ID alone is accepted for manual runs.
func jobFromEnv() (models.GenerationJob, error) {
	if payload := os.Getenv("JOB_PAYLOAD"); payload != "" {
		return worker.ParseJob(payload)
	}
	if contextID := os.Getenv("CONTEXT_ID"); contextID != "" {
		return models.GenerationJob{
			ContextID:  contextID,
			ExternalID: models.ExternalID(contextID),
		}, nil
	}
	return models.GenerationJob{}, fmt.Errorf("JOB_PAYLOAD environment variable not set")
}

func run(ctx context.Context) error {
	cfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.Stage, cfg.LogLevel)

	if err := cfg.ValidateWorker(); err != nil {
		return fmt.Errorf("invalid worker config: %w", err)
	}

	job, err := jobFromEnv()
	if err != nil {
		return err
	}
	logger.Info("starting generation job", "context_id", job.ContextID, "external_id", job.ExternalID)

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWSRegion))
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	botToken := cfg.SlackBotToken
	if botToken == "" {
		resolver := secretsmanager.NewResolver(awsCfg, cfg.SecretTimeout)
		creds, err := secretsmanager.NewSlackSource(resolver, "", cfg.SlackAppSecretArn).SlackCredentials(ctx)
		if err != nil {
			return fmt.Errorf("resolve slack bot token: %w", err)
		}
		botToken = creds.BotToken
	}

	generator := bedrock.NewClient(awsCfg)
	generator.SetModel(cfg.BedrockModelID)
	generator.SetMaxTokens(cfg.GenerationMaxTokens)
	generator.SetLogger(logger)

	store := dynamodb.NewContextRepository(dynamodb.NewClientWithConfig(awsCfg), cfg.ContextsTable, cfg.GetContextTTL(), logger)

	w := worker.New(store, generator, slackclient.NewClient(botToken), logger)
	if err := w.Run(ctx, job); err != nil {
		return fmt.Errorf("run job %s: %w", job.ContextID, err)
	}

	logger.Info("generation job completed", "context_id", job.ContextID)
	return nil
}

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("worker failed", "error", err)
		os.Exit(1)
	}
}
