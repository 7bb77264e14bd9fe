package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/territorio/backend/internal/sellertxn/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// guard keeps the allowed-transition map authoritative for the
// conditional UPDATEs below. Each mutation names its move once here and
// once in its WHERE clause.
func guard(from, to domain.Status) error {
	if !domain.CanTransition(from, to) {
		return &domain.TransitionError{From: from, To: to}
	}
	return nil
}

func (r *repo) InsertTx(ctx context.Context, tx *gorm.DB, txn *domain.SellerTransaction) error {
	if err := txn.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	return tx.WithContext(ctx).Exec(
		`INSERT INTO seller_transactions (
			id, territory_id, store_id, checkout_id,
			gross_amount, fee_amount, net_amount, currency,
			status, payout_id, settled_at, ready_at, paid_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (checkout_id, store_id) DO NOTHING`,
		txn.ID,
		txn.TerritoryID,
		txn.StoreID,
		txn.CheckoutID,
		txn.GrossAmount,
		txn.FeeAmount,
		txn.NetAmount,
		txn.Currency,
		string(txn.Status),
		txn.PayoutID,
		txn.SettledAt,
		txn.ReadyAt,
		txn.PaidAt,
		now,
		now,
	).Error
}

func (r *repo) ListByCheckout(ctx context.Context, db *gorm.DB, checkoutID snowflake.ID) ([]domain.SellerTransaction, error) {
	var items []domain.SellerTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM seller_transactions WHERE checkout_id = ? ORDER BY store_id`,
		checkoutID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkReadyTx(ctx context.Context, tx *gorm.DB, territoryID snowflake.ID, cutoff, now time.Time) (int64, error) {
	if err := guard(domain.StatusPending, domain.StatusReadyForPayout); err != nil {
		return 0, err
	}
	res := tx.WithContext(ctx).Exec(
		`UPDATE seller_transactions
		 SET status = ?, ready_at = ?, updated_at = ?
		 WHERE territory_id = ? AND status = ? AND settled_at <= ?`,
		string(domain.StatusReadyForPayout),
		now,
		now,
		territoryID,
		string(domain.StatusPending),
		cutoff,
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) ListReadyForPayout(ctx context.Context, db *gorm.DB, territoryID snowflake.ID) ([]domain.SellerTransaction, error) {
	var items []domain.SellerTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM seller_transactions
		 WHERE territory_id = ? AND status = ?
		 ORDER BY settled_at, id`,
		territoryID,
		string(domain.StatusReadyForPayout),
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ClaimForPayoutTx(ctx context.Context, tx *gorm.DB, ids []snowflake.ID, payoutID snowflake.ID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if err := guard(domain.StatusReadyForPayout, domain.StatusPayoutRequested); err != nil {
		return 0, err
	}
	res := tx.WithContext(ctx).Exec(
		`UPDATE seller_transactions
		 SET status = ?, payout_id = ?, updated_at = ?
		 WHERE id IN ? AND status = ?`,
		string(domain.StatusPayoutRequested),
		payoutID,
		now,
		ids,
		string(domain.StatusReadyForPayout),
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) MarkPaidTx(ctx context.Context, tx *gorm.DB, payoutID snowflake.ID, paidAt time.Time) (int64, error) {
	if err := guard(domain.StatusPayoutRequested, domain.StatusPaid); err != nil {
		return 0, err
	}
	res := tx.WithContext(ctx).Exec(
		`UPDATE seller_transactions
		 SET status = ?, paid_at = ?, updated_at = ?
		 WHERE payout_id = ? AND status = ?`,
		string(domain.StatusPaid),
		paidAt,
		paidAt,
		payoutID,
		string(domain.StatusPayoutRequested),
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) RevertClaimTx(ctx context.Context, tx *gorm.DB, payoutID snowflake.ID, now time.Time) (int64, error) {
	if err := guard(domain.StatusPayoutRequested, domain.StatusReadyForPayout); err != nil {
		return 0, err
	}
	res := tx.WithContext(ctx).Exec(
		`UPDATE seller_transactions
		 SET status = ?, payout_id = NULL, updated_at = ?
		 WHERE payout_id = ? AND status = ?`,
		string(domain.StatusReadyForPayout),
		now,
		payoutID,
		string(domain.StatusPayoutRequested),
	)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repo) ListStuckPayoutIDs(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT payout_id FROM seller_transactions
		 WHERE status = ? AND payout_id IS NOT NULL AND updated_at <= ?`,
		string(domain.StatusPayoutRequested),
		cutoff,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) GetByPayoutID(ctx context.Context, db *gorm.DB, payoutID snowflake.ID) ([]domain.SellerTransaction, error) {
	var items []domain.SellerTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM seller_transactions WHERE payout_id = ? ORDER BY id`,
		payoutID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
