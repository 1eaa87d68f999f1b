package billing_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflowhq/payflow/modules/billing"
	"github.com/payflowhq/payflow/pkg/account"
	pkgbilling "github.com/payflowhq/payflow/pkg/billing"
	"github.com/payflowhq/payflow/pkg/dunning"
	"github.com/payflowhq/payflow/pkg/invoice"
	"github.com/payflowhq/payflow/pkg/plan"
	"github.com/payflowhq/payflow/pkg/subscription"
)

type stubProcessor struct{ subs int }

func (p *stubProcessor) CreateCustomer(context.Context, pkgbilling.CreateCustomerParams) (string, error) {
	return "cus_1", nil
}

func (p *stubProcessor) CreatePrice(context.Context, pkgbilling.CreatePriceParams) (string, error) {
	return "price_1", nil
}

func (p *stubProcessor) CreateSubscription(context.Context, pkgbilling.CreateSubscriptionParams) (*pkgbilling.SubscriptionRef, error) {
	p.subs++
	now := time.Now().UTC()
	return &pkgbilling.SubscriptionRef{
		ID:                 fmt.Sprintf("sub_%d", p.subs),
		Status:             "active",
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
	}, nil
}

func (p *stubProcessor) CancelSubscription(context.Context, string, bool) error { return nil }

func (p *stubProcessor) CreateCharge(context.Context, pkgbilling.CreateChargeParams) (string, error) {
	return "ch_1", nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	log := slog.New(slog.DiscardHandler)
	subsStore := subscription.NewMemoryStore()
	plans := plan.NewMemoryStore(
		&plan.Plan{ID: uuid.New(), Name: "Basic", Slug: plan.BasicSlug,
			PriceMonthly: decimal.RequireFromString("29"), IsActive: true},
		&plan.Plan{ID: uuid.New(), Name: "Pro", Slug: "pro",
			PriceMonthly: decimal.RequireFromString("79"), IsActive: true},
	)
	proc := &stubProcessor{}
	svc := subscription.NewService(subsStore, plans, proc, subscription.WithLogger(log))

	mod := billing.NewModule(billing.ModuleOptions{
		Resolver:  account.NewResolver(account.NewMemoryStore(), log),
		Subs:      svc,
		Converter: subscription.NewConverter(subsStore, plans, proc, subscription.WithConverterLogger(log)),
		Engine: dunning.NewEngine(dunning.NewMemoryStore(), invoice.NewMemoryStore(),
			dunning.NewMemoryStore(), dunning.NewEmailNotifier(nil, log), dunning.WithEngineLogger(log)),
		Plans:  plans,
		Logger: log,
	})

	srv := httptest.NewServer(mod.Router())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, userID, body string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
		req.Header.Set("X-User-Email", userID+"@example.com")
		req.Header.Set("X-User-Name", "Test User")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var envelope map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	return resp, envelope
}

func TestBillingFlow(t *testing.T) {
	srv := newTestServer(t)
	userID := uuid.NewString()

	// no identity header -> 401
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/billing/subscription", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// no subscription yet -> 404
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/billing/subscription", userID, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// start a trial
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/billing/trial", userID, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "trial", data["status"])
	assert.Equal(t, "basic", data["plan_slug"])

	// starting again is idempotent
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/billing/trial", userID, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, data["id"], body["data"].(map[string]any)["id"])

	// upgrade to pro
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/billing/upgrade", userID, `{"plan":"pro"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data = body["data"].(map[string]any)
	assert.Equal(t, "active", data["status"])
	assert.Equal(t, "pro", data["plan_slug"])

	// cancel, then cancel again -> conflict
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/billing/cancel", userID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/billing/cancel", userID, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	errDetail := body["error"].(map[string]any)
	assert.Equal(t, "already_canceled", errDetail["code"])
}

func TestUpgradeUnknownPlan(t *testing.T) {
	srv := newTestServer(t)
	userID := uuid.NewString()

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/billing/trial", userID, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/billing/upgrade", userID, `{"plan":"platinum"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "plan_not_found", body["error"].(map[string]any)["code"])
}

func TestFeePreview(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/billing/fees/preview?amount=100&plan=free", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	assert.Equal(t, "3.2", data["processor_fee"])
	assert.Equal(t, "4.2", data["total_fee"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/billing/fees/preview?amount=oops", "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/jobs/convert-trials", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := body["data"].(map[string]any)
	assert.Equal(t, float64(0), report["selected"])

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/jobs/run-dunning", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report = body["data"].(map[string]any)
	assert.Equal(t, float64(0), report["invoices"])
}
