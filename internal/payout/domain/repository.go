package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ConfigRepository persists per-territory payout policies.
type ConfigRepository interface {
	FindActive(ctx context.Context, db *gorm.DB, territoryID snowflake.ID) (*TerritoryPayoutConfig, error)
	Insert(ctx context.Context, db *gorm.DB, cfg *TerritoryPayoutConfig) error
	Deactivate(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}

// Repository persists payout rows. Status moves use conditional updates
// keyed on the expected current status.
type Repository interface {
	InsertTx(ctx context.Context, tx *gorm.DB, payout *Payout) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payout, error)
	// UpdateStatusTx moves status from one value to another and reports
	// whether the row matched.
	UpdateStatusTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, from, to PayoutStatus, providerRef, failureReason string, paidAt *time.Time, now time.Time) (bool, error)
	ListByTerritory(ctx context.Context, db *gorm.DB, territoryID snowflake.ID, status PayoutStatus) ([]Payout, error)
}
