package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgbilling "github.com/payflowhq/payflow/pkg/billing"
	"github.com/payflowhq/payflow/pkg/fees"
	"github.com/payflowhq/payflow/pkg/subscription"
)

// Identity headers are injected by the upstream auth gateway; this module
// trusts them and only resolves them to a billing account.
const (
	headerUserID    = "X-User-Id"
	headerUserEmail = "X-User-Email"
	headerUserName  = "X-User-Name"
)

const maxWebhookBody = 1 << 20 // Stripe caps payloads well below 1 MiB

type subscriptionDTO struct {
	ID                     uuid.UUID  `json:"id"`
	AccountID              uuid.UUID  `json:"account_id"`
	Status                 string     `json:"status"`
	PlanSlug               string     `json:"plan_slug,omitempty"`
	PlanName               string     `json:"plan_name,omitempty"`
	TrialEndDate           *time.Time `json:"trial_end_date,omitempty"`
	TrialDaysRemaining     int        `json:"trial_days_remaining"`
	CurrentPeriodStart     *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool       `json:"cancel_at_period_end"`
	CanceledAt             *time.Time `json:"canceled_at,omitempty"`
	RequiresUpgradePrompt  bool       `json:"requires_upgrade_prompt"`
}

func (m *Module) subscriptionDTO(r *http.Request, sub *subscription.Subscription) subscriptionDTO {
	dto := subscriptionDTO{
		ID:                 sub.ID,
		AccountID:          sub.AccountID,
		Status:             string(sub.Status),
		TrialEndDate:       sub.TrialEndDate,
		TrialDaysRemaining: sub.TrialDaysRemaining(time.Now()),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CanceledAt:         sub.CanceledAt,
	}
	if pl, err := m.plans.GetByID(r.Context(), sub.PlanID); err == nil {
		dto.PlanSlug = pl.Slug
		dto.PlanName = pl.Name
		dto.RequiresUpgradePrompt = sub.RequiresUpgradePrompt(time.Now(), pl.Slug)
	}
	return dto
}

// resolveAccount maps the request identity to its billing account, creating
// the default account on first contact.
func (m *Module) resolveAccount(r *http.Request) (string, uuid.UUID, error) {
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		return "", uuid.Nil, errUnauthenticated
	}
	accountID, err := m.resolver.Resolve(r.Context(), userID)
	if err != nil {
		return "", uuid.Nil, err
	}
	return userID, accountID, nil
}

func (m *Module) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	_, accountID, err := m.resolveAccount(r)
	if err != nil {
		respondError(w, err)
		return
	}

	sub, err := m.subs.Current(r.Context(), accountID)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, m.subscriptionDTO(r, sub))
}

func (m *Module) handleStartTrial(w http.ResponseWriter, r *http.Request) {
	userID, accountID, err := m.resolveAccount(r)
	if err != nil {
		respondError(w, err)
		return
	}

	sub, err := m.subs.StartTrial(r.Context(), userID, accountID,
		r.Header.Get(headerUserEmail), r.Header.Get(headerUserName))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusCreated, m.subscriptionDTO(r, sub))
}

type upgradeRequest struct {
	Plan   string `json:"plan"`
	Yearly bool   `json:"yearly"`
}

func (m *Module) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	_, accountID, err := m.resolveAccount(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req upgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Plan == "" {
		respondError(w, fmt.Errorf("%w: plan is required", errBadRequest))
		return
	}

	sub, err := m.subs.Upgrade(r.Context(), accountID, req.Plan, req.Yearly)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, m.subscriptionDTO(r, sub))
}

type cancelRequest struct {
	AtPeriodEnd bool `json:"at_period_end"`
}

func (m *Module) handleCancel(w http.ResponseWriter, r *http.Request) {
	_, accountID, err := m.resolveAccount(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req cancelRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, fmt.Errorf("%w: invalid body", errBadRequest))
			return
		}
	}

	sub, err := m.subs.Cancel(r.Context(), accountID, req.AtPeriodEnd)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, m.subscriptionDTO(r, sub))
}

type planDTO struct {
	Slug         string          `json:"slug"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	PriceMonthly decimal.Decimal `json:"price_monthly"`
	PriceYearly  decimal.Decimal `json:"price_yearly"`
	Features     []string        `json:"features,omitempty"`
}

func (m *Module) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := m.plans.ListActive(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	out := make([]planDTO, 0, len(plans))
	for _, pl := range plans {
		out = append(out, planDTO{
			Slug:         pl.Slug,
			Name:         pl.Name,
			Description:  pl.Description,
			PriceMonthly: pl.PriceMonthly,
			PriceYearly:  pl.PriceYearly,
			Features:     pl.Features,
		})
	}
	respond(w, http.StatusOK, out)
}

func (m *Module) handleFeePreview(w http.ResponseWriter, r *http.Request) {
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil || amount.IsNegative() {
		respondError(w, fmt.Errorf("%w: amount must be a non-negative decimal", errBadRequest))
		return
	}

	planSlug := r.URL.Query().Get("plan")
	respond(w, http.StatusOK, fees.Calculate(amount, planSlug))
}

func (m *Module) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, fmt.Errorf("%w: unreadable body", errBadRequest))
		return
	}

	evt, err := m.verifier.Parse(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, pkgbilling.ErrUnhandledEvent) {
			// acknowledged so the processor stops retrying
			respond(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		respondError(w, err)
		return
	}

	if err := m.subs.ApplyProcessorEvent(r.Context(), evt); err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "applied"})
}

func (m *Module) handleConvertTrials(w http.ResponseWriter, r *http.Request) {
	report, err := m.converter.Run(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, report)
}

func (m *Module) handleRunDunning(w http.ResponseWriter, r *http.Request) {
	report, err := m.engine.Run(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, report)
}
