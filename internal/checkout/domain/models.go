package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CheckoutStatus is the lifecycle of a purchase intent. The settlement
// engine only consumes Confirmed checkouts and moves them to Settled.
type CheckoutStatus string

const (
	CheckoutStatusPending   CheckoutStatus = "pending"
	CheckoutStatusConfirmed CheckoutStatus = "confirmed"
	CheckoutStatusSettled   CheckoutStatus = "settled"
	CheckoutStatusCancelled CheckoutStatus = "cancelled"
)

// Checkout is a completed purchase intent, immutable once created except
// for its status.
type Checkout struct {
	ID          snowflake.ID   `gorm:"primaryKey"`
	TerritoryID snowflake.ID   `gorm:"not null;index"`
	BuyerID     snowflake.ID   `gorm:"not null;index"`
	Currency    string         `gorm:"type:text;not null"`
	TotalAmount int64          `gorm:"not null"`
	Status      CheckoutStatus `gorm:"type:text;not null;index"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Checkout) TableName() string { return "checkouts" }

// CheckoutItem is one purchased line with its price snapshot. Amounts are
// integer minor units (cents).
type CheckoutItem struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	CheckoutID  snowflake.ID `gorm:"not null;index"`
	StoreID     snowflake.ID `gorm:"not null;index"`
	ItemID      snowflake.ID `gorm:"not null"`
	ItemType    string       `gorm:"type:text;not null"`
	Title       string       `gorm:"type:text;not null"`
	Quantity    int          `gorm:"not null"`
	UnitPrice   int64        `gorm:"not null"`
	Subtotal    int64        `gorm:"not null"`
	FeeAmount   int64        `gorm:"not null"`
	TotalAmount int64        `gorm:"not null"`
	Currency    string       `gorm:"type:text;not null"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CheckoutItem) TableName() string { return "checkout_items" }
