package stepfunctions

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/savaki/mailreply-bot/pkg/models"
)

// maxExecutionName is the Step Functions limit on execution names
const maxExecutionName = 80

// ExecutionAPI is the subset of the Step Functions API the client uses
type ExecutionAPI interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
}

var _ ExecutionAPI = (*sfn.Client)(nil)

// Client is a wrapper around AWS Step Functions SDK
type Client struct {
	client          ExecutionAPI
	stateMachineArn string
}

// NewClient creates a new Step Functions client for one state machine
func NewClient(cfg aws.Config, stateMachineArn string) *Client {
	return NewClientWithAPI(sfn.NewFromConfig(cfg), stateMachineArn)
}

// NewClientWithAPI creates a client over an existing API implementation
func NewClientWithAPI(api ExecutionAPI, stateMachineArn string) *Client {
	return &Client{
		client:          api,
		stateMachineArn: stateMachineArn,
	}
}

// StartGeneration starts a worker execution for job. The state machine hands
// jobPayload to the worker task unchanged.
func (c *Client) StartGeneration(ctx context.Context, job models.GenerationJob) (string, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}

	input := models.StepFunctionInput{
		ContextID:  job.ContextID,
		ExternalID: job.ExternalID,
		Stage:      job.Stage,
		JobPayload: string(payload),
	}

	inputJSON, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal input: %w", err)
	}

	result, err := c.client.StartExecution(ctx, &sfn.StartExecutionInput{
		StateMachineArn: aws.String(c.stateMachineArn),
		Input:           aws.String(string(inputJSON)),
		Name:            aws.String(executionName(job.ContextID)),
	})
	if err != nil {
		return "", fmt.Errorf("start execution: %w", err)
	}

	return aws.ToString(result.ExecutionArn), nil
}

// executionName builds a unique name per click, so repeated clicks on the
// same inquiry do not collide.
func executionName(contextID string) string {
	suffix := "-" + models.GenerateULID()
	prefix := "reply-" + sanitize(contextID)
	if len(prefix)+len(suffix) > maxExecutionName {
		prefix = prefix[:maxExecutionName-len(suffix)]
	}
	return prefix + suffix
}

// sanitize keeps the characters Step Functions accepts in execution names
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
