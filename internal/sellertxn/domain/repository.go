package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists seller transactions. Status moves go through the
// *Tx methods, which run conditional updates so concurrent workers
// cannot double-claim or double-pay a row.
type Repository interface {
	InsertTx(ctx context.Context, tx *gorm.DB, txn *SellerTransaction) error
	ListByCheckout(ctx context.Context, db *gorm.DB, checkoutID snowflake.ID) ([]SellerTransaction, error)

	// MarkReadyTx promotes pending rows settled at or before cutoff to
	// ready_for_payout. It returns the number of rows promoted.
	MarkReadyTx(ctx context.Context, tx *gorm.DB, territoryID snowflake.ID, cutoff, now time.Time) (int64, error)

	ListReadyForPayout(ctx context.Context, db *gorm.DB, territoryID snowflake.ID) ([]SellerTransaction, error)

	// ClaimForPayoutTx moves the given ready rows to payout_requested,
	// stamping the payout id. It returns how many rows were claimed;
	// a short count means another worker got there first.
	ClaimForPayoutTx(ctx context.Context, tx *gorm.DB, ids []snowflake.ID, payoutID snowflake.ID, now time.Time) (int64, error)

	// MarkPaidTx completes all rows claimed by a payout.
	MarkPaidTx(ctx context.Context, tx *gorm.DB, payoutID snowflake.ID, paidAt time.Time) (int64, error)

	// RevertClaimTx releases all rows claimed by a payout back to
	// ready_for_payout after a failed transfer.
	RevertClaimTx(ctx context.Context, tx *gorm.DB, payoutID snowflake.ID, now time.Time) (int64, error)

	// ListStuckPayoutIDs returns payout ids that still hold claimed rows
	// older than cutoff.
	ListStuckPayoutIDs(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]snowflake.ID, error)

	GetByPayoutID(ctx context.Context, db *gorm.DB, payoutID snowflake.ID) ([]SellerTransaction, error)
}
