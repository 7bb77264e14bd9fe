package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/territorio/backend/internal/payout/domain"
	"gorm.io/gorm"
)

type configRepo struct{}

func ProvideConfigRepository() domain.ConfigRepository {
	return &configRepo{}
}

func (r *configRepo) FindActive(ctx context.Context, db *gorm.DB, territoryID snowflake.ID) (*domain.TerritoryPayoutConfig, error) {
	var cfg domain.TerritoryPayoutConfig
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM territory_payout_configs
		 WHERE territory_id = ? AND active = ?
		 LIMIT 1`,
		territoryID,
		true,
	).Scan(&cfg).Error
	if err != nil {
		return nil, err
	}
	if cfg.ID == 0 {
		return nil, nil
	}
	return &cfg, nil
}

func (r *configRepo) Insert(ctx context.Context, db *gorm.DB, cfg *domain.TerritoryPayoutConfig) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Exec(
		`INSERT INTO territory_payout_configs (
			id, territory_id, retention_days, minimum_payout_amount, maximum_payout_amount,
			frequency, auto_payout_enabled, requires_approval, gateway, currency, active,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID,
		cfg.TerritoryID,
		cfg.RetentionDays,
		cfg.MinimumPayoutAmount,
		cfg.MaximumPayoutAmount,
		string(cfg.Frequency),
		cfg.AutoPayoutEnabled,
		cfg.RequiresApproval,
		cfg.Gateway,
		cfg.Currency,
		cfg.Active,
		now,
		now,
	).Error
}

func (r *configRepo) Deactivate(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE territory_payout_configs
		 SET active = ?, updated_at = ?
		 WHERE id = ? AND active = ?`,
		false,
		time.Now().UTC(),
		id,
		true,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

type payoutRepo struct{}

func ProvideRepository() domain.Repository {
	return &payoutRepo{}
}

func (r *payoutRepo) InsertTx(ctx context.Context, tx *gorm.DB, payout *domain.Payout) error {
	now := time.Now().UTC()
	return tx.WithContext(ctx).Exec(
		`INSERT INTO payouts (
			id, reference, territory_id, store_id, amount, currency,
			status, gateway, provider_ref, initiated_by, failure_reason,
			requested_at, paid_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payout.ID,
		payout.Reference,
		payout.TerritoryID,
		payout.StoreID,
		payout.Amount,
		payout.Currency,
		string(payout.Status),
		payout.Gateway,
		payout.ProviderRef,
		payout.InitiatedBy,
		payout.FailureReason,
		payout.RequestedAt,
		payout.PaidAt,
		now,
		now,
	).Error
}

func (r *payoutRepo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payout, error) {
	var payout domain.Payout
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM payouts WHERE id = ? LIMIT 1`,
		id,
	).Scan(&payout).Error
	if err != nil {
		return nil, err
	}
	if payout.ID == 0 {
		return nil, nil
	}
	return &payout, nil
}

func (r *payoutRepo) UpdateStatusTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, from, to domain.PayoutStatus, providerRef, failureReason string, paidAt *time.Time, now time.Time) (bool, error) {
	res := tx.WithContext(ctx).Exec(
		`UPDATE payouts
		 SET status = ?, provider_ref = ?, failure_reason = ?, paid_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(to),
		providerRef,
		failureReason,
		paidAt,
		now,
		id,
		string(from),
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *payoutRepo) ListByTerritory(ctx context.Context, db *gorm.DB, territoryID snowflake.ID, status domain.PayoutStatus) ([]domain.Payout, error) {
	var items []domain.Payout
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM payouts
		 WHERE territory_id = ? AND status = ?
		 ORDER BY requested_at, id`,
		territoryID,
		string(status),
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
