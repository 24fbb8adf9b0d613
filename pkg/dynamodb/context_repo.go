package dynamodb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/savaki/mailreply-bot/pkg/models"
)

// ContextRepository handles DynamoDB operations for context records
type ContextRepository struct {
	client    ItemAPI
	tableName string
	ttl       time.Duration
	logger    *slog.Logger
}

// NewContextRepository creates a new context repository. A positive ttl
// stamps an expiry on every record written.
func NewContextRepository(client ItemAPI, tableName string, ttl time.Duration, logger *slog.Logger) *ContextRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextRepository{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		logger:    logger,
	}
}

// Put stores a context record. Writing the same context id again overwrites
// the earlier record.
func (r *ContextRepository) Put(ctx context.Context, rec *models.ContextRecord) error {
	if rec.ContextID == "" {
		return fmt.Errorf("put context: empty context id")
	}
	if r.ttl > 0 && rec.TTL == 0 {
		rec.SetTTL(r.ttl)
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &r.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}

	r.logger.Debug("saved context", "context_id", rec.ContextID)
	return nil
}

// Get retrieves a context record by id. The boolean is false when no record
// exists; that is not an error.
func (r *ContextRepository) Get(ctx context.Context, contextID string) (*models.ContextRecord, bool, error) {
	if contextID == "" {
		return nil, false, nil
	}

	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &r.tableName,
		Key: map[string]types.AttributeValue{
			"context_id": &types.AttributeValueMemberS{Value: contextID},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("get item: %w", err)
	}

	if len(result.Item) == 0 {
		return nil, false, nil
	}

	var rec models.ContextRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, false, fmt.Errorf("unmarshal context: %w", err)
	}

	return &rec, true, nil
}
