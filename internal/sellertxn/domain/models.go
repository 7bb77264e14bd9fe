package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status tracks a seller's share of a checkout from settlement through
// payout.
type Status string

const (
	StatusPending         Status = "pending"
	StatusReadyForPayout  Status = "ready_for_payout"
	StatusPayoutRequested Status = "payout_requested"
	StatusPaid            Status = "paid"
)

// transitions is the complete set of allowed status moves. The revert
// from payout_requested back to ready_for_payout exists so a failed
// transfer releases the claimed rows for the next batch.
var transitions = map[Status][]Status{
	StatusPending:         {StatusReadyForPayout},
	StatusReadyForPayout:  {StatusPayoutRequested},
	StatusPayoutRequested: {StatusPaid, StatusReadyForPayout},
	StatusPaid:            {},
}

// CanTransition reports whether moving from one status to another is
// allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError describes a rejected status move.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid_seller_transaction_transition: %s -> %s", e.From, e.To)
}

var (
	ErrInvalidSplit = errors.New("invalid_seller_transaction_split")
)

// SellerTransaction is one seller's slice of a settled checkout.
// GrossAmount always equals FeeAmount plus NetAmount.
type SellerTransaction struct {
	ID          snowflake.ID  `gorm:"primaryKey"`
	TerritoryID snowflake.ID  `gorm:"not null;index"`
	StoreID     snowflake.ID  `gorm:"not null;uniqueIndex:ux_seller_transactions_checkout_store,priority:2"`
	CheckoutID  snowflake.ID  `gorm:"not null;uniqueIndex:ux_seller_transactions_checkout_store,priority:1"`
	GrossAmount int64         `gorm:"not null"`
	FeeAmount   int64         `gorm:"not null"`
	NetAmount   int64         `gorm:"not null"`
	Currency    string        `gorm:"type:text;not null"`
	Status      Status        `gorm:"type:text;not null;index"`
	PayoutID    *snowflake.ID `gorm:"index"`
	SettledAt   time.Time     `gorm:"not null"`
	ReadyAt     *time.Time
	PaidAt      *time.Time
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SellerTransaction) TableName() string { return "seller_transactions" }

// Validate checks the amount split before insert.
func (t *SellerTransaction) Validate() error {
	if t.GrossAmount < 0 || t.FeeAmount < 0 || t.NetAmount < 0 {
		return ErrInvalidSplit
	}
	if t.GrossAmount != t.FeeAmount+t.NetAmount {
		return ErrInvalidSplit
	}
	return nil
}
