// Package customers keeps one customer record per buyer email.
package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/aws"
)

// ErrMissingEmail is returned by Upsert when no email is given.
var ErrMissingEmail = errors.New("customer email is required")

// Store upserts customers in DynamoDB.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
	newID     func() string
}

func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
	}
}

// Get returns the customer for email, or (nil, nil) when unknown.
func (s *Store) Get(ctx context.Context, email string) (*Customer, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"email": &types.AttributeValueMemberS{Value: normalizeEmail(email)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var c Customer
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, fmt.Errorf("unmarshal customer: %w", err)
	}
	return &c, nil
}

// Upsert creates the customer for d.Email or refreshes the known one with the
// non-empty fields of d. The customer id never changes once assigned.
func (s *Store) Upsert(ctx context.Context, d Data) (*Customer, error) {
	email := normalizeEmail(d.Email)
	if email == "" {
		return nil, ErrMissingEmail
	}

	existing, err := s.Get(ctx, email)
	if err != nil {
		return nil, err
	}

	now := s.nowFunc().UTC()
	if existing == nil {
		c := Customer{Email: email, ID: s.newID(), CreatedAt: now}
		apply(&c, d, now)
		created, err := s.put(ctx, c, "attribute_not_exists(email)")
		if err == nil {
			return created, nil
		}
		var ae smithy.APIError
		if !errors.As(err, &ae) || ae.ErrorCode() != "ConditionalCheckFailedException" {
			return nil, err
		}
		// Another request created it first.
		if existing, err = s.Get(ctx, email); err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("customer %s vanished after conditional failure", email)
		}
	}

	c := *existing
	apply(&c, d, now)
	return s.put(ctx, c, "")
}

func (s *Store) put(ctx context.Context, c Customer, condition string) (*Customer, error) {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return nil, fmt.Errorf("marshal customer: %w", err)
	}
	in := &dyn.PutItemInput{TableName: &s.tableName, Item: item}
	if condition != "" {
		in.ConditionExpression = &condition
	}
	if _, err := s.client.PutItem(ctx, in); err != nil {
		return nil, fmt.Errorf("put item: %w", err)
	}
	return &c, nil
}

func apply(c *Customer, d Data, now time.Time) {
	if d.Name != "" {
		c.Name = d.Name
	}
	if d.ShopifyCustomerID != "" {
		c.ShopifyCustomerID = d.ShopifyCustomerID
	}
	if d.CustomerLocale != "" {
		c.CustomerLocale = d.CustomerLocale
	}
	if d.Phone != "" {
		c.Phone = d.Phone
	}
	c.UpdatedAt = now
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
