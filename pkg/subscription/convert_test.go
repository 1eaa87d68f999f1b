package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payflowhq/payflow/pkg/plan"
	"github.com/payflowhq/payflow/pkg/subscription"
	"github.com/payflowhq/payflow/pkg/tenantlock"
)

func expiredTrial(store *subscription.MemoryStore, t *testing.T, customerID string, endedDaysAgo int) *subscription.Subscription {
	t.Helper()

	sub := subscription.NewTrial("user-"+uuid.NewString()[:8], uuid.New(), uuid.New(), 14, customerID)
	start := time.Now().UTC().AddDate(0, 0, -14-endedDaysAgo)
	end := time.Now().UTC().AddDate(0, 0, -endedDaysAgo)
	sub.TrialStartDate = &start
	sub.TrialEndDate = &end
	require.NoError(t, store.Create(context.Background(), sub))
	return sub
}

func TestConverterRun(t *testing.T) {
	t.Parallel()

	store := subscription.NewMemoryStore()
	pl := basicPlan()
	plans := plan.NewMemoryStore(pl)
	proc := newFakeProcessor()
	conv := subscription.NewConverter(store, plans, proc)

	expired := expiredTrial(store, t, "cus_1", 1)
	expiredTrial(store, t, "", 1) // no processor customer, never selected
	fresh := subscription.NewTrial("user-f", uuid.New(), uuid.New(), 14, "cus_f")
	require.NoError(t, store.Create(context.Background(), fresh))

	report, err := conv.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Selected)
	assert.Equal(t, 1, report.Converted)
	assert.Equal(t, 0, report.Failed)

	got, err := store.GetByAccount(context.Background(), expired.AccountID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, got.Status)
	assert.Equal(t, pl.ID, got.PlanID)
	assert.Nil(t, got.TrialEndDate)
	assert.NotEmpty(t, got.ProcessorSubscriptionID)

	stillTrial, err := store.GetByAccount(context.Background(), fresh.AccountID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusTrial, stillTrial.Status)

	recs := store.BillingRecords()
	require.Len(t, recs, 1)
	assert.Equal(t, subscription.ReasonSubscriptionCreate, recs[0].Reason)
	assert.Equal(t, subscription.BillingSucceeded, recs[0].Status)
}

func TestConverterBackdatesAnchor(t *testing.T) {
	t.Parallel()

	store := subscription.NewMemoryStore()
	plans := plan.NewMemoryStore(basicPlan())
	proc := newFakeProcessor()
	conv := subscription.NewConverter(store, plans, proc)

	sub := expiredTrial(store, t, "cus_late", 3)
	trialEnd := sub.TrialEndDate.UTC()

	_, err := conv.Run(context.Background())
	require.NoError(t, err)

	anchor, ok := proc.anchors["cus_late"]
	require.True(t, ok)
	assert.Equal(t, trialEnd, anchor,
		"a late sweep bills from the trial end, not from now")
}

func TestConverterIsolatesFailures(t *testing.T) {
	t.Parallel()

	store := subscription.NewMemoryStore()
	plans := plan.NewMemoryStore(basicPlan())
	proc := newFakeProcessor()
	proc.failCharge["cus_bad"] = true
	conv := subscription.NewConverter(store, plans, proc)

	bad := expiredTrial(store, t, "cus_bad", 1)
	good := expiredTrial(store, t, "cus_good", 1)

	report, err := conv.Run(context.Background())
	require.NoError(t, err, "individual conversion failures never abort the sweep")
	assert.Equal(t, 2, report.Selected)
	assert.Equal(t, 1, report.Converted)
	assert.Equal(t, 1, report.Failed)

	gotBad, err := store.GetByAccount(context.Background(), bad.AccountID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusPastDue, gotBad.Status,
		"a declined card downgrades to past_due")
	assert.Nil(t, gotBad.TrialEndDate)

	gotGood, err := store.GetByAccount(context.Background(), good.AccountID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, gotGood.Status)
}

func TestConverterSecondRunSelectsNothing(t *testing.T) {
	t.Parallel()

	store := subscription.NewMemoryStore()
	plans := plan.NewMemoryStore(basicPlan())
	proc := newFakeProcessor()
	proc.failCharge["cus_bad"] = true
	conv := subscription.NewConverter(store, plans, proc)

	expiredTrial(store, t, "cus_ok", 1)
	expiredTrial(store, t, "cus_bad", 1)

	_, err := conv.Run(context.Background())
	require.NoError(t, err)

	report, err := conv.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Selected,
		"converted and past_due rows both leave the selection set")
	assert.Equal(t, 1, proc.subscriptions, "no double charging across runs")
}

func TestConverterSweepGuard(t *testing.T) {
	t.Parallel()

	store := subscription.NewMemoryStore()
	plans := plan.NewMemoryStore(basicPlan())
	guard := tenantlock.NewMutex()
	conv := subscription.NewConverter(store, plans, newFakeProcessor(),
		subscription.WithSweepGuard(guard))

	expiredTrial(store, t, "cus_1", 1)

	// hold the sweep lock as a concurrent run would
	release, err := guard.Acquire(context.Background(), "sweep:trial-conversion")
	require.NoError(t, err)

	report, err := conv.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Equal(t, 0, report.Selected)

	release()

	report, err = conv.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 1, report.Converted)
}

func TestConverterExpiringSoon(t *testing.T) {
	t.Parallel()

	store := subscription.NewMemoryStore()
	conv := subscription.NewConverter(store, plan.NewMemoryStore(basicPlan()), newFakeProcessor())

	soon := subscription.NewTrial("user-s", uuid.New(), uuid.New(), 2, "cus_s")
	require.NoError(t, store.Create(context.Background(), soon))
	far := subscription.NewTrial("user-f", uuid.New(), uuid.New(), 14, "cus_f")
	require.NoError(t, store.Create(context.Background(), far))

	got, err := conv.ExpiringSoon(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, soon.ID, got[0].ID)
}
