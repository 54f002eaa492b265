// Package app wires the orchestrator components shared by the api and worker
// binaries.
package app

import (
	"github.com/imrishuroy/go-checkout-orchestrator/internal/aws"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/config"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/customers"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/gateway"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/idempotency"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/lifecycle"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/notify"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/shopify"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/shops"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/transactions"
)

// Components are the long-lived objects of one Lambda container.
type Components struct {
	Service     *lifecycle.Service
	Idempotency *idempotency.Store
	Commands    *aws.Publisher
	Metrics     *aws.Metrics
}

// Build constructs every component from cfg and the AWS clients.
func Build(cfg *config.Config, clients *aws.AWSClients) *Components {
	platforms := shopify.ClientFactory(shopify.Options{
		APIVersion: cfg.ShopifyAPIVersion,
		Timeout:    cfg.ShopifyTimeout,
		Debug:      cfg.Debug,
	})
	reconciler := shopify.NewReconciler(cfg.CompletionAttempts, cfg.CompletionInterval)
	shopifyGateway := shopify.NewGateway(platforms, reconciler)

	dispatcher := gateway.NewDispatcher(shopifyGateway)
	dispatcher.Register(shopifyGateway, gateway.MethodShopify, gateway.MethodShopifyPayments)

	metrics := aws.NewMetrics(clients.CloudWatch, cfg.MetricsNamespace, cfg.MetricsEnabled)

	deps := lifecycle.Deps{
		Transactions: transactions.NewStore(clients.DynamoDB, cfg.TransactionsTable),
		Shops:        shops.NewProvider(clients.DynamoDB, cfg.ShopConfigTable, aws.NewSecretsClient(clients.SecretsManager), cfg.AppKeysSecretPrefix),
		Customers:    customers.NewStore(clients.DynamoDB, cfg.CustomersTable),
		Storefront:   shopify.NewStorefront(platforms),
		Gateways:     dispatcher,
		Metrics:      metrics,
		CartRecovery: cfg.CartRecoveryEnabled,
	}
	if cfg.CartRecoveryEnabled {
		deps.Notifier = notify.NewCartRecovery(aws.NewPublisher(clients.SQS, cfg.CartRecoveryQueueURL))
	}

	return &Components{
		Service:     lifecycle.NewService(deps),
		Idempotency: idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL),
		Commands:    aws.NewPublisher(clients.SQS, cfg.CommandsQueueURL),
		Metrics:     metrics,
	}
}
