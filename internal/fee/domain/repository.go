package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// FindActive resolves the active config for the pair as of now; a
	// row whose valid_until has passed no longer prices anything even
	// when its active flag was never cleared.
	FindActive(ctx context.Context, db *gorm.DB, territoryID snowflake.ID, itemType string, now time.Time) (*PlatformFeeConfig, error)
	// Insert persists the config; the partial unique index on active rows
	// rejects a second active config for the same pair.
	Insert(ctx context.Context, db *gorm.DB, cfg *PlatformFeeConfig) error
	Deactivate(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}
