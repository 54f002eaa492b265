package lifecycle

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-checkout-orchestrator/internal/gateway"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/jsondoc"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/logging"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/notify"
	"github.com/imrishuroy/go-checkout-orchestrator/internal/transactions"
)

// Create opens the checkout on the gateway and creates the transaction, or
// refreshes the checkout of an existing one.
func (s *Service) Create(ctx context.Context, req Request) (*Response, error) {
	return s.run(ctx, StageCreate, req, s.create)
}

func (s *Service) create(ctx context.Context, in *stageInput) (*Response, error) {
	cfg, err := s.loadShopConfig(ctx, in.shop)
	if err != nil {
		return nil, err
	}
	gw, err := s.gatewayFor(in.method)
	if err != nil {
		return nil, err
	}

	res, err := gw.CreateOrder(ctx, gateway.Call{Shop: in.shop, Config: cfg, Checkout: in.checkout, Payment: in.payment})
	if err != nil {
		return nil, err
	}
	if err := requireOK("Payment Process", res); err != nil {
		return nil, err
	}

	paymentToken := s.newToken()
	checkout := in.checkout
	if in.method == gateway.MethodShopify {
		checkout = res.Body.Clone()
	}
	checkoutToken := checkout.Str("token")
	result := withPlatformFields(res.Body, in.shop, "", paymentToken)

	tx, err := s.Transactions.Get(ctx, in.id)
	if err != nil {
		return nil, fmt.Errorf("load transaction %s: %w", in.id, err)
	}
	if tx == nil {
		tx = &transactions.Transaction{
			ID:                in.id,
			ShopDomainOrderID: transactions.OrderKey(in.shop, ""),
			ShopDomain:        in.shop,
			PaymentToken:      paymentToken,
			PaymentGateway:    in.method,
			Payment:           result,
			Email:             checkout.Str("email"),
			OrderName:         checkout.Str("name"),
		}
	}
	tx.Checkout = checkout
	tx.ShopDomainCheckoutToken = transactions.CheckoutKey(in.shop, checkoutToken)
	tx.Status = transactions.StatusCreated

	if tx, err = s.Transactions.Put(ctx, tx); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}

	return &Response{
		Code:                    http.StatusOK,
		Message:                 "Payment Order Created Successfully by " + in.method,
		TransactionID:           in.id,
		Shop:                    in.shop,
		ShopifyDomain:           in.shop,
		Checkout:                &CheckoutEnvelope{Checkout: checkout},
		CheckoutToken:           checkoutToken,
		PaymentToken:            paymentToken,
		PaymentMethod:           in.method,
		Payment:                 result,
		Order:                   tx.Order,
		ShopDomainCheckoutToken: tx.ShopDomainCheckoutToken,
		Status:                  tx.Status,
	}, nil
}

// Authorize creates the payment on the gateway and stores it on the transaction.
func (s *Service) Authorize(ctx context.Context, req Request) (*Response, error) {
	return s.run(ctx, StageAuthorize, req, s.authorize)
}

func (s *Service) authorize(ctx context.Context, in *stageInput) (*Response, error) {
	tx, err := s.loadTransaction(ctx, in.id)
	if err != nil {
		return nil, err
	}
	cfg, err := s.loadShopConfig(ctx, in.shop)
	if err != nil {
		return nil, err
	}
	gw, err := s.gatewayFor(in.method)
	if err != nil {
		return nil, err
	}

	setIfPresent(in.payment, "ip_address", in.ip)
	setIfPresent(in.payment, "user_agent", in.agent)
	checkoutToken := in.checkout.Str("token")
	paymentToken := in.payment.Str("payment_token")

	res, err := gw.AuthorizeOrder(ctx, gateway.Call{
		Shop:        in.shop,
		Config:      cfg,
		Checkout:    in.checkout,
		Payment:     in.payment,
		Transaction: tx,
	})
	if err != nil {
		return nil, err
	}

	result := withPlatformFields(res.Body, in.shop, checkoutToken, paymentToken)
	tx.Payment = result
	tx.Status = transactions.StatusAuthorized
	tx.CheckoutUpdatedAt = in.checkout.Str("updated_at")
	if due, ok := in.checkout.Float("payment_due"); ok {
		tx.PlatformFee = cfg.PlatformFee(due)
	}

	if tx, err = s.Transactions.Put(ctx, tx); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}

	return &Response{
		Code:          http.StatusOK,
		Message:       fmt.Sprintf("Payment Order authorization by %s is successful", in.method),
		TransactionID: in.id,
		Shop:          in.shop,
		ShopifyDomain: in.shop,
		Checkout:      &CheckoutEnvelope{Checkout: in.checkout},
		CheckoutToken: checkoutToken,
		PaymentToken:  paymentToken,
		PaymentMethod: in.method,
		Payment:       result,
		Order:         tx.Order,
		Status:        tx.Status,
	}, nil
}

// Update pushes the adjusted checkout to the gateway, records the buyer and
// stores the refreshed checkout.
func (s *Service) Update(ctx context.Context, req Request) (*Response, error) {
	return s.run(ctx, StageUpdate, req, s.update)
}

func (s *Service) update(ctx context.Context, in *stageInput) (*Response, error) {
	keys, err := s.loadAppKeys(ctx, in.shop)
	if err != nil {
		return nil, err
	}
	tx, err := s.loadTransaction(ctx, in.id)
	if err != nil {
		return nil, err
	}
	cfg, err := s.loadShopConfig(ctx, in.shop)
	if err != nil {
		return nil, err
	}
	cfg.BrandEmail = brandEmail(cfg, keys)
	gw, err := s.gatewayFor(in.method)
	if err != nil {
		return nil, err
	}

	paymentToken := firstNonEmpty(in.payment.Str("payment_token"), s.newToken())
	checkoutToken := in.checkout.Str("token")

	res, err := gw.OrderUpdate(ctx, gateway.Call{
		Shop:        in.shop,
		Config:      cfg,
		Checkout:    in.checkout,
		Payment:     in.payment,
		Email:       in.body.Email,
		Transaction: tx,
	})
	if err != nil {
		return nil, err
	}
	if err := requireOK("Update Checkout Order", res); err != nil {
		return nil, err
	}

	result := withPlatformFields(res.Body, in.shop, checkoutToken, paymentToken)
	email := updateEmail(in.checkout, in.body, tx)

	checkout := in.checkout
	if in.method != gateway.MethodShopify {
		refreshed, err := s.Storefront.RefreshCheckout(ctx, in.shop, cfg.ShopifyToken, checkoutToken, in.checkout)
		if err != nil {
			return nil, err
		}
		checkout = unwrapCheckout(refreshed)
		setIfPresent(checkout, "email", email)
	}

	var customerID string
	if email != "" {
		c, err := s.upsertCustomer(ctx, email, in.checkout)
		if err != nil {
			return nil, err
		}
		if c != nil {
			customerID = c.ID
		}
	}

	tx.Payment = result
	tx.Checkout = checkout
	if email != "" {
		tx.Email = email
	}
	if customerID != "" {
		tx.CustomerID = customerID
	}
	tx.Status = transactions.StatusUpdated
	tx.CheckoutUpdatedAt = in.checkout.Str("updated_at")

	if tx, err = s.Transactions.Put(ctx, tx); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}

	return &Response{
		Code:          http.StatusOK,
		Message:       "Update an authorized amount has been successfully processed by " + in.method,
		TransactionID: in.id,
		Shop:          in.shop,
		ShopifyDomain: in.shop,
		Checkout:      &CheckoutEnvelope{Checkout: tx.Checkout},
		CheckoutToken: checkoutToken,
		PaymentToken:  paymentToken,
		PaymentMethod: in.method,
		Payment:       result,
		Order:         tx.Order,
		Status:        tx.Status,
	}, nil
}

// Complete turns the checkout into an order, merges it into the transaction
// and emits the cart-recovery event when enabled.
func (s *Service) Complete(ctx context.Context, req Request) (*Response, error) {
	return s.run(ctx, StageComplete, req, s.complete)
}

func (s *Service) complete(ctx context.Context, in *stageInput) (*Response, error) {
	keys, err := s.loadAppKeys(ctx, in.shop)
	if err != nil {
		return nil, err
	}
	tx, err := s.loadTransaction(ctx, in.id)
	if err != nil {
		return nil, err
	}
	cfg, err := s.loadShopConfig(ctx, in.shop)
	if err != nil {
		return nil, err
	}
	cfg.BrandEmail = brandEmail(cfg, keys)
	gw, err := s.gatewayFor(in.method)
	if err != nil {
		return nil, err
	}

	checkout := in.checkout
	landing := landingSite(checkout)
	setIfPresent(in.payment, "ip_address", in.ip)
	setIfPresent(in.payment, "browser_ip", in.ip)
	setIfPresent(in.payment, "landing_site", landing)
	setIfPresent(in.payment, "user_agent", in.agent)
	checkoutToken := checkout.Str("token")
	paymentToken := in.payment.Str("payment_token")

	res, err := gw.PostOrder(ctx, gateway.Call{
		Shop:        in.shop,
		Config:      cfg,
		Checkout:    checkout,
		Payment:     in.payment,
		Transaction: tx,
	})
	if err != nil {
		return nil, err
	}
	posted := res.Body

	for _, k := range []string{"shipping_address", "billing_address"} {
		if checkout.Empty(k) && !posted.Empty(k) {
			checkout[k] = posted[k]
		}
	}

	var order jsondoc.Doc
	if in.method != gateway.MethodShopify {
		if checkout.Empty("shipping_lines") && checkout.Has("shipping_line") {
			checkout["shipping_lines"] = []interface{}{checkout["shipping_line"]}
		}
		if checkout.Empty("transactions") {
			checkout["transactions"] = []interface{}{jsondoc.Doc{
				"amount":   checkout["total_price"],
				"currency": checkout["currency"],
				"gateway":  in.method,
				"status":   "success",
				"kind":     "capture",
			}}
		}
		checkout["browser_ip"] = in.ip
		checkout["landing_site"] = landing
		checkout["user_agent"] = in.agent
		checkout["email"] = firstNonEmpty(checkout.Str("email"), tx.Email)

		if order, err = s.Storefront.CreateOrder(ctx, in.shop, cfg.ShopifyToken, checkout); err != nil {
			return nil, err
		}
		order = unwrapOrder(order)
	} else {
		order = posted.Clone()
	}
	if order == nil {
		order = jsondoc.Doc{}
	}

	orderID := order.Str("id")
	if !checkout.Empty("tax_lines") && order.Empty("tax_lines") {
		order["tax_lines"] = checkout["tax_lines"]
	}
	order["orderId"] = orderID

	tx.Payment = posted
	tx.Order = order
	tx.OrderID = orderID
	tx.Settlement = settlement(order)
	tx.PaymentGateway = in.method
	tx.Checkout = checkout
	tx.Status = transactions.StatusCompleted
	if email := completionEmail(order, tx, checkout); email != "" {
		tx.Email = email
	}
	if name := orderName(order, tx, checkout); name != "" {
		tx.OrderName = name
	}
	tx.ShopDomainOrderID = transactions.OrderKey(in.shop, orderID)
	tx.CheckoutUpdatedAt = checkout.Str("updated_at")

	customer, err := s.upsertCustomer(ctx, checkout.Str("email"), checkout)
	if err != nil {
		return nil, err
	}
	if customer != nil {
		tx.CustomerID = customer.ID
	}

	if tx, err = s.Transactions.Put(ctx, tx); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}

	if s.CartRecovery && s.Notifier != nil {
		if err := s.Notifier.SendCartRecoveryMessage(ctx, in.shop, in.id, customer, checkout, notify.EventOrder); err != nil {
			logging.From(ctx).Error("cart recovery notification failed", zap.Error(err))
		}
	}

	return &Response{
		Code:              http.StatusOK,
		Message:           "Order Completed Successfully by " + in.method,
		TransactionID:     in.id,
		Shop:              in.shop,
		ShopifyDomain:     in.shop,
		Checkout:          &CheckoutEnvelope{Checkout: tx.Checkout},
		CheckoutToken:     checkoutToken,
		PaymentToken:      paymentToken,
		PaymentMethod:     in.method,
		Payment:           posted,
		Order:             tx.Order,
		OrderID:           orderID,
		ShopDomainOrderID: tx.ShopDomainOrderID,
		Status:            tx.Status,
	}, nil
}

func setIfPresent(d jsondoc.Doc, key, value string) {
	if value != "" {
		d[key] = value
	}
}

// unwrapOrder accepts both {order: {...}} and the bare order.
func unwrapOrder(d jsondoc.Doc) jsondoc.Doc {
	if inner := d.Doc("order"); inner != nil {
		return inner
	}
	return d
}
