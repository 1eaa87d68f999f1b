// Package billing mounts the billing core behind a thin REST surface:
// subscription reads and lifecycle actions, a fee preview, the processor
// webhook, and manual triggers for the two scheduled sweeps.
package billing

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/payflowhq/payflow/pkg/account"
	"github.com/payflowhq/payflow/pkg/billing"
	"github.com/payflowhq/payflow/pkg/dunning"
	"github.com/payflowhq/payflow/pkg/plan"
	"github.com/payflowhq/payflow/pkg/subscription"
)

// Module wires the billing core's services behind HTTP handlers.
type Module struct {
	resolver  *account.Resolver
	subs      *subscription.Service
	converter *subscription.Converter
	engine    *dunning.Engine
	plans     plan.Store
	verifier  *billing.WebhookVerifier
	log       *slog.Logger
}

// ModuleOptions lists the collaborators a Module needs. Verifier is optional;
// without it the webhook endpoint is not mounted.
type ModuleOptions struct {
	Resolver  *account.Resolver
	Subs      *subscription.Service
	Converter *subscription.Converter
	Engine    *dunning.Engine
	Plans     plan.Store
	Verifier  *billing.WebhookVerifier
	Logger    *slog.Logger
}

// NewModule creates the billing HTTP module.
func NewModule(opts ModuleOptions) *Module {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Module{
		resolver:  opts.Resolver,
		subs:      opts.Subs,
		converter: opts.Converter,
		engine:    opts.Engine,
		plans:     opts.Plans,
		verifier:  opts.Verifier,
		log:       log,
	}
}

// Router mounts all billing routes.
func (m *Module) Router() chi.Router {
	r := chi.NewRouter()

	r.Route("/billing", func(r chi.Router) {
		r.Get("/subscription", m.handleGetSubscription)
		r.Post("/trial", m.handleStartTrial)
		r.Post("/upgrade", m.handleUpgrade)
		r.Post("/cancel", m.handleCancel)
		r.Get("/plans", m.handleListPlans)
		r.Get("/fees/preview", m.handleFeePreview)
		if m.verifier != nil {
			r.Post("/webhook", m.handleWebhook)
		}
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/convert-trials", m.handleConvertTrials)
		r.Post("/run-dunning", m.handleRunDunning)
	})

	return r
}
