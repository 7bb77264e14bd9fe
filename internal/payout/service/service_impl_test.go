package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/territorio/backend/internal/clock"
	"github.com/territorio/backend/internal/config"
	ledgerdomain "github.com/territorio/backend/internal/ledger/domain"
	ledgerservice "github.com/territorio/backend/internal/ledger/service"
	payoutdomain "github.com/territorio/backend/internal/payout/domain"
	"github.com/territorio/backend/internal/payout/gateway"
	payoutrepo "github.com/territorio/backend/internal/payout/repository"
	selltxdomain "github.com/territorio/backend/internal/sellertxn/domain"
	selltxrepo "github.com/territorio/backend/internal/sellertxn/repository"
	"github.com/territorio/backend/internal/testdb"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// fakeGateway records transfers and fails on demand per store.
type fakeGateway struct {
	failFor map[snowflake.ID]error
	calls   []payoutdomain.TransferRequest
}

func (g *fakeGateway) Transfer(ctx context.Context, req payoutdomain.TransferRequest) (*payoutdomain.TransferResult, error) {
	g.calls = append(g.calls, req)
	if err, ok := g.failFor[req.StoreID]; ok && err != nil {
		return nil, err
	}
	return &payoutdomain.TransferResult{ProviderRef: "test-" + req.Reference}, nil
}

type fakeFactory struct {
	gw *fakeGateway
}

func (f *fakeFactory) Provider() string { return "test" }

func (f *fakeFactory) NewGateway() (payoutdomain.TransferGateway, error) { return f.gw, nil }

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	gw        *fakeGateway
	svc       payoutdomain.Service
	sellerTxs selltxdomain.Repository
	payouts   payoutdomain.Repository
	ledger    ledgerdomain.Service
}

func newFixture(t *testing.T, defaults *config.SettlementDefaultsHolder) *fixture {
	t.Helper()
	db := testdb.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)) // a Monday
	log := zap.NewNop()

	gw := &fakeGateway{failFor: map[snowflake.ID]error{}}
	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fakeClock,
	})
	sellerTxs := selltxrepo.Provide()
	payouts := payoutrepo.ProvideRepository()

	svc := NewService(Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     fakeClock,
		Configs:   payoutrepo.ProvideConfigRepository(),
		Payouts:   payouts,
		SellerTxs: sellerTxs,
		Ledger:    ledgerSvc,
		Registry:  gateway.NewRegistry(&fakeFactory{gw: gw}),
		Defaults:  defaults,
	})
	return &fixture{
		db:        db,
		node:      node,
		clock:     fakeClock,
		gw:        gw,
		svc:       svc,
		sellerTxs: sellerTxs,
		payouts:   payouts,
		ledger:    ledgerSvc,
	}
}

func (f *fixture) activateConfig(t *testing.T, territoryID snowflake.ID, mutate func(*payoutdomain.TerritoryPayoutConfig)) *payoutdomain.TerritoryPayoutConfig {
	t.Helper()
	cfg := &payoutdomain.TerritoryPayoutConfig{
		TerritoryID:         territoryID,
		RetentionDays:       7,
		MinimumPayoutAmount: 1000,
		Frequency:           payoutdomain.FrequencyDaily,
		AutoPayoutEnabled:   true,
		Gateway:             "test",
		Currency:            "USD",
	}
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, f.svc.ActivateConfig(context.Background(), cfg))
	return cfg
}

func (f *fixture) seedSellerTxn(t *testing.T, territoryID, storeID snowflake.ID, net int64, settledAt time.Time, status selltxdomain.Status) snowflake.ID {
	t.Helper()
	txn := &selltxdomain.SellerTransaction{
		ID:          f.node.Generate(),
		TerritoryID: territoryID,
		StoreID:     storeID,
		CheckoutID:  f.node.Generate(),
		GrossAmount: net,
		NetAmount:   net,
		Currency:    "USD",
		Status:      status,
		SettledAt:   settledAt,
	}
	require.NoError(t, f.sellerTxs.InsertTx(context.Background(), f.db, txn))
	return txn.ID
}

func (f *fixture) sellerTxnStatus(t *testing.T, id snowflake.ID) selltxdomain.Status {
	t.Helper()
	var status string
	require.NoError(t, f.db.Raw(`SELECT status FROM seller_transactions WHERE id = ?`, id).Scan(&status).Error)
	return selltxdomain.Status(status)
}

func (f *fixture) listPayouts(t *testing.T, territoryID snowflake.ID, status payoutdomain.PayoutStatus) []payoutdomain.Payout {
	t.Helper()
	items, err := f.payouts.ListByTerritory(context.Background(), f.db, territoryID, status)
	require.NoError(t, err)
	return items
}

func TestProcessPendingPayouts_RetentionAndMinimum(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	territoryID := f.node.Generate()
	storeID := f.node.Generate()
	f.activateConfig(t, territoryID, nil)

	now := f.clock.Now()
	retained := f.seedSellerTxn(t, territoryID, storeID, 1000, now.AddDate(0, 0, -8), selltxdomain.StatusPending)
	fresh := f.seedSellerTxn(t, territoryID, storeID, 5000, now.AddDate(0, 0, -2), selltxdomain.StatusPending)

	paid, err := f.svc.ProcessPendingPayouts(ctx, territoryID, "operator:test")
	require.NoError(t, err)
	assert.Equal(t, 1, paid)

	// The retained row hit exactly the minimum and was paid; the fresh
	// row is still inside the retention window.
	assert.Equal(t, selltxdomain.StatusPaid, f.sellerTxnStatus(t, retained))
	assert.Equal(t, selltxdomain.StatusPending, f.sellerTxnStatus(t, fresh))

	paidPayouts := f.listPayouts(t, territoryID, payoutdomain.PayoutStatusPaid)
	require.Len(t, paidPayouts, 1)
	assert.Equal(t, int64(1000), paidPayouts[0].Amount)
	assert.Equal(t, "operator:test", paidPayouts[0].InitiatedBy)
	assert.NotEmpty(t, paidPayouts[0].ProviderRef)

	bal, err := f.ledger.BalanceFor(ctx, territoryID)
	require.NoError(t, err)
	require.NotNil(t, bal)
	assert.Equal(t, int64(1000), bal.TotalExpenses)
}

func TestProcessPendingPayouts_BelowMinimumSkipped(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	territoryID := f.node.Generate()
	storeID := f.node.Generate()
	f.activateConfig(t, territoryID, nil)

	id := f.seedSellerTxn(t, territoryID, storeID, 999, f.clock.Now().AddDate(0, 0, -8), selltxdomain.StatusPending)

	paid, err := f.svc.ProcessPendingPayouts(ctx, territoryID, "operator:test")
	require.NoError(t, err)
	assert.Equal(t, 0, paid)
	assert.Empty(t, f.gw.calls)

	// Promoted to ready, waiting for more sales to clear the minimum.
	assert.Equal(t, selltxdomain.StatusReadyForPayout, f.sellerTxnStatus(t, id))
}

func TestProcessPendingPayouts_PerSellerFailureIsolation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	territoryID := f.node.Generate()
	storeA := f.node.Generate()
	storeB := f.node.Generate()
	f.activateConfig(t, territoryID, nil)

	transferErr := errors.New("account frozen")
	f.gw.failFor[storeB] = transferErr

	old := f.clock.Now().AddDate(0, 0, -8)
	aID := f.seedSellerTxn(t, territoryID, storeA, 2000, old, selltxdomain.StatusPending)
	bID := f.seedSellerTxn(t, territoryID, storeB, 3000, old, selltxdomain.StatusPending)

	paid, err := f.svc.ProcessPendingPayouts(ctx, territoryID, "operator:test")
	require.Error(t, err)
	assert.ErrorIs(t, err, transferErr)
	assert.Equal(t, 1, paid)

	assert.Equal(t, selltxdomain.StatusPaid, f.sellerTxnStatus(t, aID))
	// The failed seller's funds are back in the ready pool.
	assert.Equal(t, selltxdomain.StatusReadyForPayout, f.sellerTxnStatus(t, bID))

	failed := f.listPayouts(t, territoryID, payoutdomain.PayoutStatusFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, storeB, failed[0].StoreID)
	assert.Contains(t, failed[0].FailureReason, "account frozen")

	// Once the account thaws the next run pays the remainder.
	delete(f.gw.failFor, storeB)
	paid, err = f.svc.ProcessPendingPayouts(ctx, territoryID, "operator:test")
	require.NoError(t, err)
	assert.Equal(t, 1, paid)
	assert.Equal(t, selltxdomain.StatusPaid, f.sellerTxnStatus(t, bID))
}

func TestProcessPendingPayouts_MaximumCapsPerRun(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	territoryID := f.node.Generate()
	storeID := f.node.Generate()
	f.activateConfig(t, territoryID, func(cfg *payoutdomain.TerritoryPayoutConfig) {
		cfg.MaximumPayoutAmount = 5000
	})

	old := f.clock.Now().AddDate(0, 0, -8)
	first := f.seedSellerTxn(t, territoryID, storeID, 3000, old, selltxdomain.StatusPending)
	second := f.seedSellerTxn(t, territoryID, storeID, 2500, old.Add(time.Minute), selltxdomain.StatusPending)
	// Larger than the cap on its own; eventually paid alone since the
	// amount cannot be divided.
	third := f.seedSellerTxn(t, territoryID, storeID, 6000, old.Add(2*time.Minute), selltxdomain.StatusPending)

	// Run 1 pays only the oldest row (3000 + 2500 would break the cap);
	// the rest stays ready for later runs.
	paid, err := f.svc.ProcessPendingPayouts(ctx, territoryID, "operator:test")
	require.NoError(t, err)
	assert.Equal(t, 1, paid)
	assert.Equal(t, selltxdomain.StatusPaid, f.sellerTxnStatus(t, first))
	assert.Equal(t, selltxdomain.StatusReadyForPayout, f.sellerTxnStatus(t, second))
	assert.Equal(t, selltxdomain.StatusReadyForPayout, f.sellerTxnStatus(t, third))

	// Run 2 pays the next row; the oversized one still waits.
	paid, err = f.svc.ProcessPendingPayouts(ctx, territoryID, "operator:test")
	require.NoError(t, err)
	assert.Equal(t, 1, paid)
	assert.Equal(t, selltxdomain.StatusPaid, f.sellerTxnStatus(t, second))

	// Run 3 pays the oversized row alone.
	paid, err = f.svc.ProcessPendingPayouts(ctx, territoryID, "operator:test")
	require.NoError(t, err)
	assert.Equal(t, 1, paid)
	assert.Equal(t, selltxdomain.StatusPaid, f.sellerTxnStatus(t, third))

	paidPayouts := f.listPayouts(t, territoryID, payoutdomain.PayoutStatusPaid)
	require.Len(t, paidPayouts, 3)
	amounts := []int64{paidPayouts[0].Amount, paidPayouts[1].Amount, paidPayouts[2].Amount}
	assert.ElementsMatch(t, []int64{3000, 2500, 6000}, amounts)
}

func TestProcessPendingPayouts_MixedCurrencyRowsHeldBack(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	territoryID := f.node.Generate()
	storeID := f.node.Generate()
	f.activateConfig(t, territoryID, nil)

	old := f.clock.Now().AddDate(0, 0, -8)
	usd := f.seedSellerTxn(t, territoryID, storeID, 2000, old, selltxdomain.StatusPending)

	eurTxn := &selltxdomain.SellerTransaction{
		ID:          f.node.Generate(),
		TerritoryID: territoryID,
		StoreID:     storeID,
		CheckoutID:  f.node.Generate(),
		GrossAmount: 3000,
		NetAmount:   3000,
		Currency:    "EUR",
		Status:      selltxdomain.StatusPending,
		SettledAt:   old.Add(time.Minute),
	}
	require.NoError(t, f.sellerTxs.InsertTx(ctx, f.db, eurTxn))

	paid, err := f.svc.ProcessPendingPayouts(ctx, territoryID, "operator:test")
	require.NoError(t, err)
	assert.Equal(t, 1, paid)

	// Only the currency of the oldest ready row went out; the other row
	// stays ready rather than joining a transfer it cannot share.
	assert.Equal(t, selltxdomain.StatusPaid, f.sellerTxnStatus(t, usd))
	assert.Equal(t, selltxdomain.StatusReadyForPayout, f.sellerTxnStatus(t, eurTxn.ID))

	paidPayouts := f.listPayouts(t, territoryID, payoutdomain.PayoutStatusPaid)
	require.Len(t, paidPayouts, 1)
	assert.Equal(t, int64(2000), paidPayouts[0].Amount)
	assert.Equal(t, "USD", paidPayouts[0].Currency)
}

func TestProcessPendingPayouts_SecondRunIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	territoryID := f.node.Generate()
	storeID := f.node.Generate()
	f.activateConfig(t, territoryID, nil)
	f.seedSellerTxn(t, territoryID, storeID, 2000, f.clock.Now().AddDate(0, 0, -8), selltxdomain.StatusPending)

	paid, err := f.svc.ProcessPendingPayouts(ctx, territoryID, "operator:test")
	require.NoError(t, err)
	require.Equal(t, 1, paid)

	paid, err = f.svc.ProcessPendingPayouts(ctx, territoryID, "operator:test")
	require.NoError(t, err)
	assert.Equal(t, 0, paid)
	assert.Len(t, f.gw.calls, 1)
}

func TestApprovalFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	territoryID := f.node.Generate()
	storeID := f.node.Generate()
	f.activateConfig(t, territoryID, func(cfg *payoutdomain.TerritoryPayoutConfig) {
		cfg.RequiresApproval = true
	})

	id := f.seedSellerTxn(t, territoryID, storeID, 2000, f.clock.Now().AddDate(0, 0, -8), selltxdomain.StatusPending)

	paid, err := f.svc.ProcessPendingPayouts(ctx, territoryID, "operator:test")
	require.NoError(t, err)
	assert.Equal(t, 0, paid)
	assert.Empty(t, f.gw.calls)

	held := f.listPayouts(t, territoryID, payoutdomain.PayoutStatusAwaitingApproval)
	require.Len(t, held, 1)
	assert.Equal(t, selltxdomain.StatusPayoutRequested, f.sellerTxnStatus(t, id))

	require.NoError(t, f.svc.ApprovePayout(ctx, held[0].ID, "admin:reviewer"))
	assert.Equal(t, selltxdomain.StatusPaid, f.sellerTxnStatus(t, id))
	require.Len(t, f.gw.calls, 1)

	got, err := f.svc.GetPayout(ctx, held[0].ID)
	require.NoError(t, err)
	assert.Equal(t, payoutdomain.PayoutStatusPaid, got.Status)

	// Approving twice is rejected.
	err = f.svc.ApprovePayout(ctx, held[0].ID, "admin:reviewer")
	assert.ErrorIs(t, err, payoutdomain.ErrPayoutNotAwaiting)
}

func TestRejectPayout_ReleasesFunds(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	territoryID := f.node.Generate()
	storeID := f.node.Generate()
	f.activateConfig(t, territoryID, func(cfg *payoutdomain.TerritoryPayoutConfig) {
		cfg.RequiresApproval = true
	})

	id := f.seedSellerTxn(t, territoryID, storeID, 2000, f.clock.Now().AddDate(0, 0, -8), selltxdomain.StatusPending)

	_, err := f.svc.ProcessPendingPayouts(ctx, territoryID, "operator:test")
	require.NoError(t, err)
	held := f.listPayouts(t, territoryID, payoutdomain.PayoutStatusAwaitingApproval)
	require.Len(t, held, 1)

	require.NoError(t, f.svc.RejectPayout(ctx, held[0].ID, "admin:reviewer", "bank details unverified"))
	assert.Equal(t, selltxdomain.StatusReadyForPayout, f.sellerTxnStatus(t, id))

	got, err := f.svc.GetPayout(ctx, held[0].ID)
	require.NoError(t, err)
	assert.Equal(t, payoutdomain.PayoutStatusRejected, got.Status)
	assert.Equal(t, "bank details unverified", got.FailureReason)

	err = f.svc.RejectPayout(ctx, held[0].ID, "admin:reviewer", "again")
	assert.ErrorIs(t, err, payoutdomain.ErrPayoutNotAwaiting)
}

func TestRecoverStuckPayouts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	territoryID := f.node.Generate()
	storeID := f.node.Generate()
	now := f.clock.Now()

	// A claim left behind by a run that died before the transfer finished.
	id := f.seedSellerTxn(t, territoryID, storeID, 2000, now.AddDate(0, 0, -8), selltxdomain.StatusReadyForPayout)
	payoutID := f.node.Generate()
	claimed, err := f.sellerTxs.ClaimForPayoutTx(ctx, f.db, []snowflake.ID{id}, payoutID, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), claimed)
	require.NoError(t, f.payouts.InsertTx(ctx, f.db, &payoutdomain.Payout{
		ID:          payoutID,
		Reference:   "ref-stuck",
		TerritoryID: territoryID,
		StoreID:     storeID,
		Amount:      2000,
		Currency:    "USD",
		Status:      payoutdomain.PayoutStatusRequested,
		Gateway:     "test",
		InitiatedBy: "system:payout-worker",
		RequestedAt: now.Add(-time.Hour),
	}))

	recovered, err := f.svc.RecoverStuckPayouts(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	assert.Equal(t, selltxdomain.StatusReadyForPayout, f.sellerTxnStatus(t, id))
	got, err := f.svc.GetPayout(ctx, payoutID)
	require.NoError(t, err)
	assert.Equal(t, payoutdomain.PayoutStatusFailed, got.Status)

	// Nothing left to recover.
	recovered, err = f.svc.RecoverStuckPayouts(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, recovered)
}

func TestRecoverStuckPayouts_LeavesApprovalHolds(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	territoryID := f.node.Generate()
	storeID := f.node.Generate()
	f.activateConfig(t, territoryID, func(cfg *payoutdomain.TerritoryPayoutConfig) {
		cfg.RequiresApproval = true
	})
	id := f.seedSellerTxn(t, territoryID, storeID, 2000, f.clock.Now().AddDate(0, 0, -8), selltxdomain.StatusPending)

	_, err := f.svc.ProcessPendingPayouts(ctx, territoryID, "operator:test")
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	recovered, err := f.svc.RecoverStuckPayouts(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 0, recovered)
	assert.Equal(t, selltxdomain.StatusPayoutRequested, f.sellerTxnStatus(t, id))
}

func TestResolveConfig_DefaultsFallback(t *testing.T) {
	holder := config.NewStaticSettlementDefaultsHolder(config.SettlementDefaults{
		FeeMode:            "percentage",
		FeeBasisPoints:     1000,
		Currency:           "USD",
		RetentionDays:      14,
		MinimumPayoutCents: 2500,
	})
	f := newFixture(t, holder)

	cfg, err := f.svc.ResolveConfig(context.Background(), f.node.Generate())
	require.NoError(t, err)
	assert.Equal(t, 14, cfg.RetentionDays)
	assert.Equal(t, int64(2500), cfg.MinimumPayoutAmount)
	assert.Equal(t, payoutdomain.FrequencyManual, cfg.Frequency)
	assert.False(t, cfg.AutoPayoutEnabled)
}

func TestActivateConfig_SecondActiveRejected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	territoryID := f.node.Generate()
	f.activateConfig(t, territoryID, nil)

	err := f.svc.ActivateConfig(ctx, &payoutdomain.TerritoryPayoutConfig{
		TerritoryID:         territoryID,
		RetentionDays:       3,
		MinimumPayoutAmount: 500,
		Frequency:           payoutdomain.FrequencyWeekly,
		Gateway:             "test",
		Currency:            "USD",
	})
	assert.ErrorIs(t, err, payoutdomain.ErrConfigAlreadyActive)
}

func TestActivateConfig_Validation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	err := f.svc.ActivateConfig(ctx, &payoutdomain.TerritoryPayoutConfig{
		TerritoryID:         f.node.Generate(),
		RetentionDays:       7,
		MinimumPayoutAmount: 1000,
		MaximumPayoutAmount: 500,
		Frequency:           payoutdomain.FrequencyDaily,
		Gateway:             "test",
		Currency:            "USD",
	})
	assert.ErrorIs(t, err, payoutdomain.ErrInvalidConfig)

	err = f.svc.ActivateConfig(ctx, &payoutdomain.TerritoryPayoutConfig{
		TerritoryID:         f.node.Generate(),
		RetentionDays:       7,
		MinimumPayoutAmount: 1000,
		Frequency:           payoutdomain.FrequencyDaily,
		Gateway:             "unknown",
		Currency:            "USD",
	})
	assert.ErrorIs(t, err, payoutdomain.ErrGatewayNotFound)
}
