package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/savaki/mailreply-bot/pkg/async"
	"github.com/savaki/mailreply-bot/pkg/bedrock"
	appconfig "github.com/savaki/mailreply-bot/pkg/config"
	"github.com/savaki/mailreply-bot/pkg/dynamodb"
	"github.com/savaki/mailreply-bot/pkg/handler"
	"github.com/savaki/mailreply-bot/pkg/logging"
	"github.com/savaki/mailreply-bot/pkg/secretsmanager"
	"github.com/savaki/mailreply-bot/pkg/ses"
	slackclient "github.com/savaki/mailreply-bot/pkg/slack"
)

// newRouter wires the router's collaborators from configuration
func newRouter(ctx context.Context) (*handler.Router, error) {
	cfg, err := appconfig.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.Setup(cfg.Stage, cfg.LogLevel)

	if err := cfg.ValidateRouter(); err != nil {
		return nil, fmt.Errorf("invalid router config: %w", err)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	resolver := secretsmanager.NewResolver(awsCfg, cfg.SecretTimeout)
	store := dynamodb.NewContextRepository(dynamodb.NewClientWithConfig(awsCfg), cfg.ContextsTable, cfg.GetContextTTL(), logger)

	generator := bedrock.NewClient(awsCfg)
	generator.SetModel(cfg.BedrockModelID)
	generator.SetMaxTokens(cfg.GenerationMaxTokens)
	generator.SetLogger(logger)

	deps := handler.RouterDeps{
		Credentials: secretsmanager.NewSlackSource(resolver, cfg.SlackSigningSecretArn, cfg.SlackAppSecretArn),
		Store:       store,
		Generator:   generator,
		Chat:        newChatClient,
		Email:       ses.NewSender(awsCfg),
	}
	if cfg.AsyncEnabled() {
		deps.Trigger = async.NewClient(cfg.AsyncGenerationEndpoint,
			async.WithTimeout(cfg.AsyncTriggerTimeout),
			async.WithAuthHeader(cfg.AsyncGenerationAuthHeader),
		)
		logger.Info("async generation enabled", "endpoint", cfg.AsyncGenerationEndpoint)
	}

	return handler.NewRouter(handler.RouterConfig{
		Stage:        cfg.Stage,
		SenderEmail:  cfg.SenderEmailAddress,
		ChannelID:    cfg.SlackChannelID,
		BotToken:     cfg.SlackBotToken,
		InlineBudget: cfg.InlineGenerationBudget,
	}, deps, logger), nil
}

func newChatClient(botToken string) handler.ChatClient {
	return slackclient.NewClient(botToken)
}

// configurationError answers every request while the function is misconfigured
func configurationError(ctx context.Context, request events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: 500,
		Body:       `{"error":"server configuration"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}, nil
}

func main() {
	router, err := newRouter(context.Background())
	if err != nil {
		slog.Error("slack handler not configured", "error", err)
		lambda.Start(configurationError)
		return
	}
	lambda.Start(router.HandleRequest)
}
