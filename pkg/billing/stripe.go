package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// centsPerUnit converts major currency units to the smallest unit Stripe expects.
var centsPerUnit = decimal.NewFromInt(100)

// Config holds Stripe settings. The key is injected at construction instead
// of being set on a package-level global, so tests and multi-account setups
// can run isolated clients.
type Config struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	Currency      string `env:"BILLING_CURRENCY" envDefault:"eur"`
}

// StripeProcessor implements Processor against the Stripe API.
type StripeProcessor struct {
	api      *client.API
	currency string
}

// NewStripeProcessor creates a Stripe-backed processor.
func NewStripeProcessor(cfg Config) (*StripeProcessor, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingAPIKey
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	currency := cfg.Currency
	if currency == "" {
		currency = "eur"
	}

	return &StripeProcessor{api: api, currency: currency}, nil
}

func (p *StripeProcessor) CreateCustomer(ctx context.Context, params CreateCustomerParams) (string, error) {
	cp := &stripe.CustomerParams{}
	cp.Context = ctx
	if params.Email != "" {
		cp.Email = stripe.String(params.Email)
	}
	if params.Name != "" {
		cp.Name = stripe.String(params.Name)
	}
	cp.AddMetadata("user_id", params.UserID)
	cp.AddMetadata("account_id", params.TenantID)

	cust, err := p.api.Customers.New(cp)
	if err != nil {
		return "", wrap(err)
	}
	return cust.ID, nil
}

func (p *StripeProcessor) CreatePrice(ctx context.Context, params CreatePriceParams) (string, error) {
	currency := params.Currency
	if currency == "" {
		currency = p.currency
	}

	pp := &stripe.PriceParams{
		UnitAmount: stripe.Int64(params.Amount.Mul(centsPerUnit).IntPart()),
		Currency:   stripe.String(currency),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(string(params.Interval)),
		},
		ProductData: &stripe.PriceProductDataParams{
			Name: stripe.String(params.ProductName),
		},
	}
	pp.Context = ctx

	price, err := p.api.Prices.New(pp)
	if err != nil {
		return "", wrap(err)
	}
	return price.ID, nil
}

func (p *StripeProcessor) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*SubscriptionRef, error) {
	if params.CustomerID == "" {
		return nil, ErrMissingCustomerID
	}
	if params.PriceID == "" {
		return nil, ErrMissingPriceID
	}

	sp := &stripe.SubscriptionParams{
		Customer: stripe.String(params.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(params.PriceID)},
		},
	}
	sp.Context = ctx
	if !params.BillingCycleAnchor.IsZero() {
		sp.BillingCycleAnchor = stripe.Int64(params.BillingCycleAnchor.Unix())
	}
	for k, v := range params.Metadata {
		sp.AddMetadata(k, v)
	}

	sub, err := p.api.Subscriptions.New(sp)
	if err != nil {
		return nil, wrap(err)
	}

	return &SubscriptionRef{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
	}, nil
}

func (p *StripeProcessor) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error {
	if atPeriodEnd {
		sp := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(true)}
		sp.Context = ctx
		_, err := p.api.Subscriptions.Update(subscriptionID, sp)
		return wrap(err)
	}

	cp := &stripe.SubscriptionCancelParams{}
	cp.Context = ctx
	_, err := p.api.Subscriptions.Cancel(subscriptionID, cp)
	return wrap(err)
}

func (p *StripeProcessor) CreateCharge(ctx context.Context, params CreateChargeParams) (string, error) {
	if params.CustomerID == "" {
		return "", ErrMissingCustomerID
	}
	if !params.Amount.IsPositive() {
		return "", ErrInvalidAmount
	}

	currency := params.Currency
	if currency == "" {
		currency = p.currency
	}

	pip := &stripe.PaymentIntentParams{
		Customer:    stripe.String(params.CustomerID),
		Amount:      stripe.Int64(params.Amount.Mul(centsPerUnit).IntPart()),
		Currency:    stripe.String(currency),
		Description: stripe.String(params.Description),
		Confirm:     stripe.Bool(true),
		OffSession:  stripe.Bool(true),
	}
	pip.Context = ctx
	for k, v := range params.Metadata {
		pip.AddMetadata(k, v)
	}

	pi, err := p.api.PaymentIntents.New(pip)
	if err != nil {
		return "", wrap(err)
	}
	return pi.ID, nil
}

// wrap tags Stripe failures with ErrProcessor, keeping the Stripe error
// available for unwrapping when callers need the decline code.
func wrap(err error) error {
	if err == nil {
		return nil
	}

	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		return errors.Join(ErrProcessor, fmt.Errorf("stripe: %s (%s)", sErr.Msg, sErr.Code), err)
	}
	return errors.Join(ErrProcessor, err)
}
