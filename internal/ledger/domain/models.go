package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// TransactionType classifies every monetary movement in the ledger.
type TransactionType string

const (
	TransactionTypeCheckout    TransactionType = "checkout"
	TransactionTypePayment     TransactionType = "payment"
	TransactionTypeSeller      TransactionType = "seller"
	TransactionTypePlatformFee TransactionType = "platform_fee"
	TransactionTypePayout      TransactionType = "payout"
	TransactionTypeRefund      TransactionType = "refund"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusReversed  TransactionStatus = "reversed"
)

// FinancialTransaction is an append-only ledger row. Rows are never
// deleted; corrections are new rows that reference the originals through
// RelatedTransactionIDs. Only the status column moves, and every move is
// mirrored into the status history table.
type FinancialTransaction struct {
	ID                    snowflake.ID      `gorm:"primaryKey"`
	TerritoryID           snowflake.ID      `gorm:"not null;index"`
	Type                  TransactionType   `gorm:"type:text;not null;uniqueIndex:ux_financial_transactions_source,priority:1"`
	Status                TransactionStatus `gorm:"type:text;not null"`
	Amount                int64             `gorm:"not null"`
	Currency              string            `gorm:"type:text;not null"`
	RelatedEntityType     string            `gorm:"type:text;not null;uniqueIndex:ux_financial_transactions_source,priority:2"`
	RelatedEntityID       snowflake.ID      `gorm:"not null;uniqueIndex:ux_financial_transactions_source,priority:3"`
	RelatedTransactionIDs datatypes.JSON    `gorm:"type:jsonb"`
	Metadata              datatypes.JSON    `gorm:"type:jsonb"`
	OccurredAt            time.Time         `gorm:"not null"`
	CreatedAt             time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (FinancialTransaction) TableName() string { return "financial_transactions" }

// TransactionStatusHistory is an append-only record of every status move.
type TransactionStatusHistory struct {
	ID            snowflake.ID      `gorm:"primaryKey"`
	TransactionID snowflake.ID      `gorm:"not null;index"`
	FromStatus    TransactionStatus `gorm:"type:text;not null"`
	ToStatus      TransactionStatus `gorm:"type:text;not null"`
	Reason        string            `gorm:"type:text"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TransactionStatusHistory) TableName() string {
	return "financial_transaction_status_history"
}

// PlatformRevenueTransaction records platform fee income, linked to the
// ledger row that carries it for reconciliation.
type PlatformRevenueTransaction struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	TerritoryID   snowflake.ID `gorm:"not null;index"`
	CheckoutID    snowflake.ID `gorm:"not null;uniqueIndex"`
	TransactionID snowflake.ID `gorm:"not null"`
	Amount        int64        `gorm:"not null"`
	Currency      string       `gorm:"type:text;not null"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PlatformRevenueTransaction) TableName() string { return "platform_revenue_transactions" }

// PlatformExpenseTransaction records payout expense, linked to the ledger
// row that carries it.
type PlatformExpenseTransaction struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	TerritoryID   snowflake.ID `gorm:"not null;index"`
	PayoutID      snowflake.ID `gorm:"not null;uniqueIndex"`
	TransactionID snowflake.ID `gorm:"not null"`
	Amount        int64        `gorm:"not null"`
	Currency      string       `gorm:"type:text;not null"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PlatformExpenseTransaction) TableName() string { return "platform_expense_transactions" }

// PlatformFinancialBalance is the per-territory running total, updated in
// the same transaction as the ledger writes that move it.
type PlatformFinancialBalance struct {
	TerritoryID   snowflake.ID `gorm:"primaryKey"`
	TotalRevenue  int64        `gorm:"not null"`
	TotalExpenses int64        `gorm:"not null"`
	NetBalance    int64        `gorm:"not null"`
	Currency      string       `gorm:"type:text;not null"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PlatformFinancialBalance) TableName() string { return "platform_financial_balances" }
