package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/territorio/backend/internal/territory/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Territory, error) {
	var item domain.Territory
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM territories WHERE id = ? LIMIT 1`,
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

func (r *repo) ListActive(ctx context.Context, db *gorm.DB) ([]domain.Territory, error) {
	var items []domain.Territory
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM territories WHERE active = ? ORDER BY id`,
		true,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
