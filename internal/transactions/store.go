package transactions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/aws"
)

// ErrMissingID is returned by Put when the transaction has no gu_transaction_id.
var ErrMissingID = errors.New("transaction id is required")

// Store encapsulates operations on the transactions table.
//
// Writes are unconditional upserts: two concurrent stages for the same
// transaction id race and the last writer wins.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new transactions Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Get fetches a transaction by gu_transaction_id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, id string) (*Transaction, error) {
	if id == "" {
		return nil, nil
	}
	key := map[string]types.AttributeValue{
		"gu_transaction_id": &types.AttributeValueMemberS{Value: id},
	}
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            key,
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var t Transaction
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return &t, nil
}

// Put upserts the transaction keyed by its id and returns the stored copy with
// timestamps set.
func (s *Store) Put(ctx context.Context, t *Transaction) (*Transaction, error) {
	if t == nil || t.ID == "" {
		return nil, ErrMissingID
	}
	now := s.nowFunc().UTC()
	stored := *t
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	item, err := attributevalue.MarshalMap(stored)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return nil, fmt.Errorf("put item: %w", err)
	}
	return &stored, nil
}

func awsBool(b bool) *bool { return &b }
