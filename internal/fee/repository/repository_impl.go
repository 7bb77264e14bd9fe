package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/territorio/backend/internal/fee/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB, territoryID snowflake.ID, itemType string, now time.Time) (*domain.PlatformFeeConfig, error) {
	var item domain.PlatformFeeConfig
	err := db.WithContext(ctx).Raw(
		`SELECT id, territory_id, item_type, fee_mode, fee_value, currency, active,
			valid_from, valid_until, created_at, updated_at
		 FROM platform_fee_configs
		 WHERE territory_id = ? AND item_type = ? AND active = ?
		   AND (valid_until IS NULL OR valid_until > ?)
		 LIMIT 1`,
		territoryID,
		itemType,
		true,
		now,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, cfg *domain.PlatformFeeConfig) error {
	now := time.Now().UTC()
	if cfg.ValidFrom.IsZero() {
		cfg.ValidFrom = now
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO platform_fee_configs (
			id, territory_id, item_type, fee_mode, fee_value, currency, active,
			valid_from, valid_until, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID,
		cfg.TerritoryID,
		cfg.ItemType,
		string(cfg.FeeMode),
		cfg.FeeValue,
		cfg.Currency,
		cfg.Active,
		cfg.ValidFrom,
		cfg.ValidUntil,
		now,
		now,
	).Error
}

func (r *repo) Deactivate(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE platform_fee_configs
		 SET active = ?, valid_until = ?, updated_at = ?
		 WHERE id = ? AND active = ?`,
		false,
		time.Now().UTC(),
		time.Now().UTC(),
		id,
		true,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
