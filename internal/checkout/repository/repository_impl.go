package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/territorio/backend/internal/checkout/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Checkout, error) {
	var item domain.Checkout
	err := db.WithContext(ctx).Raw(
		`SELECT id, territory_id, buyer_id, currency, total_amount, status, created_at, updated_at
		 FROM checkouts
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, checkoutID snowflake.ID) ([]domain.CheckoutItem, error) {
	var items []domain.CheckoutItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, checkout_id, store_id, item_id, item_type, title, quantity,
			unit_price, subtotal, fee_amount, total_amount, currency, created_at
		 FROM checkout_items
		 WHERE checkout_id = ?
		 ORDER BY id`,
		checkoutID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkSettledTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (bool, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE checkouts
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.CheckoutStatusSettled,
		time.Now().UTC(),
		id,
		domain.CheckoutStatusConfirmed,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
