package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/territorio/backend/pkg/db/pagination"
	"gorm.io/gorm"
)

var (
	ErrInvalidTerritory        = errors.New("invalid_territory")
	ErrInvalidAmount           = errors.New("invalid_amount")
	ErrInvalidCurrency         = errors.New("invalid_currency")
	ErrInvalidTransactionType  = errors.New("invalid_transaction_type")
	ErrInvalidRelatedEntity    = errors.New("invalid_related_entity")
	ErrTransactionNotFound     = errors.New("transaction_not_found")
	ErrInvalidStatusTransition = errors.New("invalid_status_transition")
)

// Service owns the financial transaction log and the per-territory
// balances. The *Tx methods expect to run inside the caller's
// transaction so ledger writes commit atomically with the domain writes
// they describe.
type Service interface {
	// RecordTx appends a ledger row. The insert is idempotent on
	// (type, related entity); it reports whether a row was written.
	RecordTx(ctx context.Context, tx *gorm.DB, txn *FinancialTransaction) (bool, error)
	// UpdateStatusTx moves the status and appends a history row.
	UpdateStatusTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, to TransactionStatus, reason string) error
	RecordRevenueTx(ctx context.Context, tx *gorm.DB, rev *PlatformRevenueTransaction) (bool, error)
	RecordExpenseTx(ctx context.Context, tx *gorm.DB, exp *PlatformExpenseTransaction) (bool, error)
	AddRevenueTx(ctx context.Context, tx *gorm.DB, territoryID snowflake.ID, amount int64, currency string) error
	AddExpenseTx(ctx context.Context, tx *gorm.DB, territoryID snowflake.ID, amount int64, currency string) error

	GetByID(ctx context.Context, id snowflake.ID) (*FinancialTransaction, error)
	ListByRelated(ctx context.Context, relatedType string, relatedID snowflake.ID) ([]FinancialTransaction, error)
	// ListByTerritory pages through a territory's ledger in insertion
	// order for reconciliation exports.
	ListByTerritory(ctx context.Context, territoryID snowflake.ID, page pagination.Pagination) ([]FinancialTransaction, *pagination.PageInfo, error)
	BalanceFor(ctx context.Context, territoryID snowflake.ID) (*PlatformFinancialBalance, error)
}
