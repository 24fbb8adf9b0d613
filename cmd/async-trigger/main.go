package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/savaki/mailreply-bot/pkg/async"
	appconfig "github.com/savaki/mailreply-bot/pkg/config"
	"github.com/savaki/mailreply-bot/pkg/logging"
	"github.com/savaki/mailreply-bot/pkg/stepfunctions"
)

func main() {
	ctx := context.Background()

	cfg, err := appconfig.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Stage, cfg.LogLevel)

	if err := cfg.ValidateTrigger(); err != nil {
		logger.Error("invalid trigger config", "error", err)
		os.Exit(1)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	sfClient := stepfunctions.NewClient(awsCfg, cfg.StepFunctionArn)
	endpoint := async.NewEndpoint(sfClient, cfg.AsyncGenerationAuthHeader, logger)

	logger.Info("async trigger ready", "state_machine", cfg.StepFunctionArn)
	lambda.Start(endpoint.HandleRequest)
}
