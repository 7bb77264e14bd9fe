package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/territorio/backend/internal/clock"
	ledgerdomain "github.com/territorio/backend/internal/ledger/domain"
	"github.com/territorio/backend/internal/testdb"
	"github.com/territorio/backend/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (ledgerdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()
	db := testdb.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
	})
	return svc, db, node
}

func TestRecordTx_IdempotentOnSource(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()

	territoryID := node.Generate()
	checkoutID := node.Generate()

	txn := &ledgerdomain.FinancialTransaction{
		TerritoryID:       territoryID,
		Type:              ledgerdomain.TransactionTypePlatformFee,
		Status:            ledgerdomain.TransactionStatusCompleted,
		Amount:            1500,
		Currency:          "USD",
		RelatedEntityType: "checkout",
		RelatedEntityID:   checkoutID,
	}
	inserted, err := svc.RecordTx(ctx, db, txn)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := &ledgerdomain.FinancialTransaction{
		TerritoryID:       territoryID,
		Type:              ledgerdomain.TransactionTypePlatformFee,
		Status:            ledgerdomain.TransactionStatusCompleted,
		Amount:            9999,
		Currency:          "USD",
		RelatedEntityType: "checkout",
		RelatedEntityID:   checkoutID,
	}
	inserted, err = svc.RecordTx(ctx, db, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	rows, err := svc.ListByRelated(ctx, "checkout", checkoutID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1500), rows[0].Amount)

	// A different type against the same entity is a distinct ledger row.
	refund := &ledgerdomain.FinancialTransaction{
		TerritoryID:       territoryID,
		Type:              ledgerdomain.TransactionTypeRefund,
		Status:            ledgerdomain.TransactionStatusPending,
		Amount:            100,
		Currency:          "USD",
		RelatedEntityType: "checkout",
		RelatedEntityID:   checkoutID,
	}
	inserted, err = svc.RecordTx(ctx, db, refund)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestRecordTx_Validation(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordTx(ctx, db, &ledgerdomain.FinancialTransaction{
		Type:              ledgerdomain.TransactionTypeSeller,
		Amount:            1,
		Currency:          "USD",
		RelatedEntityType: "seller_transaction",
		RelatedEntityID:   node.Generate(),
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidTerritory)

	_, err = svc.RecordTx(ctx, db, &ledgerdomain.FinancialTransaction{
		TerritoryID:       node.Generate(),
		Type:              ledgerdomain.TransactionTypeSeller,
		Amount:            -1,
		Currency:          "USD",
		RelatedEntityType: "seller_transaction",
		RelatedEntityID:   node.Generate(),
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)

	_, err = svc.RecordTx(ctx, db, &ledgerdomain.FinancialTransaction{
		TerritoryID:       node.Generate(),
		Type:              "bogus",
		Amount:            1,
		Currency:          "USD",
		RelatedEntityType: "seller_transaction",
		RelatedEntityID:   node.Generate(),
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidTransactionType)

	_, err = svc.RecordTx(ctx, db, &ledgerdomain.FinancialTransaction{
		TerritoryID:       node.Generate(),
		Type:              ledgerdomain.TransactionTypeSeller,
		Amount:            1,
		Currency:          "USD",
		RelatedEntityType: "",
		RelatedEntityID:   node.Generate(),
	})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidRelatedEntity)
}

func TestUpdateStatusTx_TransitionsAndHistory(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()

	txn := &ledgerdomain.FinancialTransaction{
		TerritoryID:       node.Generate(),
		Type:              ledgerdomain.TransactionTypePayment,
		Status:            ledgerdomain.TransactionStatusPending,
		Amount:            1000,
		Currency:          "USD",
		RelatedEntityType: "payment",
		RelatedEntityID:   node.Generate(),
	}
	_, err := svc.RecordTx(ctx, db, txn)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatusTx(ctx, db, txn.ID, ledgerdomain.TransactionStatusCompleted, "captured"))
	require.NoError(t, svc.UpdateStatusTx(ctx, db, txn.ID, ledgerdomain.TransactionStatusReversed, "chargeback"))

	// Reversed is terminal.
	err = svc.UpdateStatusTx(ctx, db, txn.ID, ledgerdomain.TransactionStatusCompleted, "")
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidStatusTransition)

	err = svc.UpdateStatusTx(ctx, db, node.Generate(), ledgerdomain.TransactionStatusCompleted, "")
	assert.ErrorIs(t, err, ledgerdomain.ErrTransactionNotFound)

	got, err := svc.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.TransactionStatusReversed, got.Status)

	var historyCount int64
	require.NoError(t, db.Raw(
		`SELECT COUNT(*) FROM financial_transaction_status_history WHERE transaction_id = ?`, txn.ID,
	).Scan(&historyCount).Error)
	assert.Equal(t, int64(2), historyCount)
}

func TestBalances_UpsertAccumulates(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()

	territoryID := node.Generate()

	require.NoError(t, svc.AddRevenueTx(ctx, db, territoryID, 1500, "USD"))
	require.NoError(t, svc.AddRevenueTx(ctx, db, territoryID, 500, "USD"))
	require.NoError(t, svc.AddExpenseTx(ctx, db, territoryID, 1200, "USD"))

	bal, err := svc.BalanceFor(ctx, territoryID)
	require.NoError(t, err)
	require.NotNil(t, bal)
	assert.Equal(t, int64(2000), bal.TotalRevenue)
	assert.Equal(t, int64(1200), bal.TotalExpenses)
	assert.Equal(t, int64(800), bal.NetBalance)

	missing, err := svc.BalanceFor(ctx, node.Generate())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListByTerritory_CursorPaging(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()

	territoryID := node.Generate()
	otherTerritory := node.Generate()

	var ids []snowflake.ID
	for i := 0; i < 5; i++ {
		txn := &ledgerdomain.FinancialTransaction{
			TerritoryID:       territoryID,
			Type:              ledgerdomain.TransactionTypeSeller,
			Status:            ledgerdomain.TransactionStatusCompleted,
			Amount:            int64(100 * (i + 1)),
			Currency:          "USD",
			RelatedEntityType: "seller_transaction",
			RelatedEntityID:   node.Generate(),
		}
		_, err := svc.RecordTx(ctx, db, txn)
		require.NoError(t, err)
		ids = append(ids, txn.ID)
	}
	_, err := svc.RecordTx(ctx, db, &ledgerdomain.FinancialTransaction{
		TerritoryID:       otherTerritory,
		Type:              ledgerdomain.TransactionTypeSeller,
		Status:            ledgerdomain.TransactionStatusCompleted,
		Amount:            999,
		Currency:          "USD",
		RelatedEntityType: "seller_transaction",
		RelatedEntityID:   node.Generate(),
	})
	require.NoError(t, err)

	first, pageInfo, err := svc.ListByTerritory(ctx, territoryID, pagination.Pagination{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.NotNil(t, pageInfo)
	assert.True(t, pageInfo.HasMore)
	assert.Equal(t, ids[0], first[0].ID)
	assert.Equal(t, ids[1], first[1].ID)

	second, pageInfo, err := svc.ListByTerritory(ctx, territoryID, pagination.Pagination{
		PageToken: pageInfo.NextPageToken,
		PageSize:  2,
	})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.True(t, pageInfo.HasMore)
	assert.Equal(t, ids[2], second[0].ID)
	assert.Equal(t, ids[3], second[1].ID)

	last, pageInfo, err := svc.ListByTerritory(ctx, territoryID, pagination.Pagination{
		PageToken: pageInfo.NextPageToken,
		PageSize:  2,
	})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.False(t, pageInfo.HasMore)
	assert.Equal(t, ids[4], last[0].ID)

	_, _, err = svc.ListByTerritory(ctx, 0, pagination.Pagination{})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidTerritory)
}

func TestRecordRevenueAndExpense_Idempotent(t *testing.T) {
	svc, db, node := newTestService(t)
	ctx := context.Background()

	territoryID := node.Generate()
	checkoutID := node.Generate()
	payoutID := node.Generate()

	recorded, err := svc.RecordRevenueTx(ctx, db, &ledgerdomain.PlatformRevenueTransaction{
		TerritoryID: territoryID,
		CheckoutID:  checkoutID,
		Amount:      1500,
		Currency:    "USD",
	})
	require.NoError(t, err)
	assert.True(t, recorded)

	recorded, err = svc.RecordRevenueTx(ctx, db, &ledgerdomain.PlatformRevenueTransaction{
		TerritoryID: territoryID,
		CheckoutID:  checkoutID,
		Amount:      1500,
		Currency:    "USD",
	})
	require.NoError(t, err)
	assert.False(t, recorded)

	recorded, err = svc.RecordExpenseTx(ctx, db, &ledgerdomain.PlatformExpenseTransaction{
		TerritoryID: territoryID,
		PayoutID:    payoutID,
		Amount:      900,
		Currency:    "USD",
	})
	require.NoError(t, err)
	assert.True(t, recorded)

	recorded, err = svc.RecordExpenseTx(ctx, db, &ledgerdomain.PlatformExpenseTransaction{
		TerritoryID: territoryID,
		PayoutID:    payoutID,
		Amount:      900,
		Currency:    "USD",
	})
	require.NoError(t, err)
	assert.False(t, recorded)
}
