package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PayoutFrequency is how often the worker may batch payouts for a
// territory. Manual territories are only paid through an operator call.
type PayoutFrequency string

const (
	FrequencyDaily   PayoutFrequency = "daily"
	FrequencyWeekly  PayoutFrequency = "weekly"
	FrequencyMonthly PayoutFrequency = "monthly"
	FrequencyManual  PayoutFrequency = "manual"
)

// TerritoryPayoutConfig is the per-territory payout policy. At most one
// active config exists per territory, enforced by a partial unique
// index.
type TerritoryPayoutConfig struct {
	ID                  snowflake.ID    `gorm:"primaryKey"`
	TerritoryID         snowflake.ID    `gorm:"not null;index"`
	RetentionDays       int             `gorm:"not null"`
	MinimumPayoutAmount int64           `gorm:"not null"`
	MaximumPayoutAmount int64           `gorm:"not null"` // zero means no cap per payout
	Frequency           PayoutFrequency `gorm:"type:text;not null"`
	AutoPayoutEnabled   bool            `gorm:"not null"`
	RequiresApproval    bool            `gorm:"not null"`
	Gateway             string          `gorm:"type:text;not null"`
	Currency            string          `gorm:"type:text;not null"`
	Active              bool            `gorm:"not null"`
	CreatedAt           time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TerritoryPayoutConfig) TableName() string { return "territory_payout_configs" }

type PayoutStatus string

const (
	PayoutStatusRequested        PayoutStatus = "requested"
	PayoutStatusAwaitingApproval PayoutStatus = "awaiting_approval"
	PayoutStatusPaid             PayoutStatus = "paid"
	PayoutStatusFailed           PayoutStatus = "failed"
	PayoutStatusRejected         PayoutStatus = "rejected"
)

// Payout is one transfer of a seller's accumulated net amounts. The
// Reference is handed to the transfer gateway so retries stay
// idempotent on the provider side.
type Payout struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	Reference     string       `gorm:"type:text;not null;uniqueIndex"`
	TerritoryID   snowflake.ID `gorm:"not null;index"`
	StoreID       snowflake.ID `gorm:"not null;index"`
	Amount        int64        `gorm:"not null"`
	Currency      string       `gorm:"type:text;not null"`
	Status        PayoutStatus `gorm:"type:text;not null;index"`
	Gateway       string       `gorm:"type:text;not null"`
	ProviderRef   string       `gorm:"type:text"`
	InitiatedBy   string       `gorm:"type:text;not null"`
	FailureReason string       `gorm:"type:text"`
	RequestedAt   time.Time    `gorm:"not null"`
	PaidAt        *time.Time
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Payout) TableName() string { return "payouts" }
