package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// FeeMode selects how the platform fee is derived from a line amount.
type FeeMode string

const (
	FeeModeFixed      FeeMode = "fixed"
	FeeModePercentage FeeMode = "percentage"
)

// PlatformDefaultTerritoryID marks the platform-wide fallback row. A
// config stored under this territory applies wherever no territory-level
// config is active.
const PlatformDefaultTerritoryID snowflake.ID = 0

// PlatformFeeConfig is the active fee policy for a (territory, item type)
// pair. Percentage values are basis points (1000 = 10%) so the calculator
// stays in integer math; fixed values are cents.
type PlatformFeeConfig struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	TerritoryID snowflake.ID `gorm:"not null;index"`
	ItemType    string       `gorm:"type:text;not null"`
	FeeMode     FeeMode      `gorm:"type:text;not null"`
	FeeValue    int64        `gorm:"not null"`
	Currency    string       `gorm:"type:text;not null"`
	Active      bool         `gorm:"not null;default:false"`
	ValidFrom   time.Time    `gorm:"not null"`
	ValidUntil  *time.Time
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PlatformFeeConfig) TableName() string { return "platform_fee_configs" }
