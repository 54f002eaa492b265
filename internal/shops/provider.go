// Package shops reads merchant configuration: the shop config table in
// DynamoDB and the Shopify app keys in Secrets Manager.
package shops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/aws"
)

// SecretReader returns the string value of a secret.
type SecretReader interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Provider serves shop configs and app keys. Both lookups return (nil, nil)
// when the shop is unknown.
type Provider struct {
	client       aws.DynamoDBAPI
	tableName    string
	secrets      SecretReader
	secretPrefix string
}

// NewProvider returns a Provider reading configs from tableName and app keys
// from secrets named secretPrefix+shop.
func NewProvider(client aws.DynamoDBAPI, tableName string, secrets SecretReader, secretPrefix string) *Provider {
	return &Provider{
		client:       client,
		tableName:    tableName,
		secrets:      secrets,
		secretPrefix: secretPrefix,
	}
}

// GetShopConfig fetches the config of shop.
func (p *Provider) GetShopConfig(ctx context.Context, shop string) (*Config, error) {
	if shop == "" {
		return nil, nil
	}
	out, err := p.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &p.tableName,
		Key: map[string]types.AttributeValue{
			"shop": &types.AttributeValueMemberS{Value: shop},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get shop config: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var cfg Config
	if err := attributevalue.UnmarshalMap(out.Item, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal shop config: %w", err)
	}
	return &cfg, nil
}

// GetShopifyAppKeys fetches the app keys secret of shop.
func (p *Provider) GetShopifyAppKeys(ctx context.Context, shop string) (*AppKeys, error) {
	if shop == "" {
		return nil, nil
	}
	raw, err := p.secrets.GetSecret(ctx, p.secretPrefix+shop)
	if errors.Is(err, aws.ErrSecretNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get app keys: %w", err)
	}
	var keys AppKeys
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("decode app keys: %w", err)
	}
	return &keys, nil
}
