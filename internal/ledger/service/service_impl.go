package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/territorio/backend/internal/clock"
	ledgerdomain "github.com/territorio/backend/internal/ledger/domain"
	"github.com/territorio/backend/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

var statusTransitions = map[ledgerdomain.TransactionStatus][]ledgerdomain.TransactionStatus{
	ledgerdomain.TransactionStatusPending:   {ledgerdomain.TransactionStatusCompleted, ledgerdomain.TransactionStatusFailed},
	ledgerdomain.TransactionStatusCompleted: {ledgerdomain.TransactionStatusReversed},
	ledgerdomain.TransactionStatusFailed:    {},
	ledgerdomain.TransactionStatusReversed:  {},
}

func canTransition(from, to ledgerdomain.TransactionStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func validateTransaction(txn *ledgerdomain.FinancialTransaction) error {
	if txn.TerritoryID == 0 {
		return ledgerdomain.ErrInvalidTerritory
	}
	if txn.Amount < 0 {
		return ledgerdomain.ErrInvalidAmount
	}
	if strings.TrimSpace(txn.Currency) == "" {
		return ledgerdomain.ErrInvalidCurrency
	}
	switch txn.Type {
	case ledgerdomain.TransactionTypeCheckout,
		ledgerdomain.TransactionTypePayment,
		ledgerdomain.TransactionTypeSeller,
		ledgerdomain.TransactionTypePlatformFee,
		ledgerdomain.TransactionTypePayout,
		ledgerdomain.TransactionTypeRefund:
	default:
		return ledgerdomain.ErrInvalidTransactionType
	}
	if txn.RelatedEntityType == "" || txn.RelatedEntityID == 0 {
		return ledgerdomain.ErrInvalidRelatedEntity
	}
	return nil
}

func (s *Service) RecordTx(ctx context.Context, tx *gorm.DB, txn *ledgerdomain.FinancialTransaction) (bool, error) {
	if err := validateTransaction(txn); err != nil {
		return false, err
	}
	if txn.ID == 0 {
		txn.ID = s.genID.Generate()
	}
	if txn.Status == "" {
		txn.Status = ledgerdomain.TransactionStatusPending
	}
	now := s.clock.Now()
	if txn.OccurredAt.IsZero() {
		txn.OccurredAt = now
	}

	res := tx.WithContext(ctx).Exec(
		`INSERT INTO financial_transactions (
			id, territory_id, type, status, amount, currency,
			related_entity_type, related_entity_id,
			related_transaction_ids, metadata,
			occurred_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (type, related_entity_type, related_entity_id) DO NOTHING`,
		txn.ID,
		txn.TerritoryID,
		string(txn.Type),
		string(txn.Status),
		txn.Amount,
		txn.Currency,
		txn.RelatedEntityType,
		txn.RelatedEntityID,
		txn.RelatedTransactionIDs,
		txn.Metadata,
		txn.OccurredAt,
		now,
		now,
	)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		s.log.Debug("ledger entry already recorded",
			zap.String("type", string(txn.Type)),
			zap.String("related_entity_type", txn.RelatedEntityType),
			zap.String("related_entity_id", txn.RelatedEntityID.String()),
		)
		return false, nil
	}
	return true, nil
}

func (s *Service) UpdateStatusTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, to ledgerdomain.TransactionStatus, reason string) error {
	var current ledgerdomain.FinancialTransaction
	err := tx.WithContext(ctx).Raw(
		`SELECT id, status FROM financial_transactions WHERE id = ? LIMIT 1`,
		id,
	).Scan(&current).Error
	if err != nil {
		return err
	}
	if current.ID == 0 {
		return ledgerdomain.ErrTransactionNotFound
	}
	if !canTransition(current.Status, to) {
		return ledgerdomain.ErrInvalidStatusTransition
	}

	now := s.clock.Now()
	res := tx.WithContext(ctx).Exec(
		`UPDATE financial_transactions SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to),
		now,
		id,
		string(current.Status),
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ledgerdomain.ErrInvalidStatusTransition
	}

	return tx.WithContext(ctx).Exec(
		`INSERT INTO financial_transaction_status_history (id, transaction_id, from_status, to_status, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.genID.Generate(),
		id,
		string(current.Status),
		string(to),
		reason,
		now,
	).Error
}

func (s *Service) RecordRevenueTx(ctx context.Context, tx *gorm.DB, rev *ledgerdomain.PlatformRevenueTransaction) (bool, error) {
	if rev.TerritoryID == 0 {
		return false, ledgerdomain.ErrInvalidTerritory
	}
	if rev.Amount < 0 {
		return false, ledgerdomain.ErrInvalidAmount
	}
	if rev.ID == 0 {
		rev.ID = s.genID.Generate()
	}
	res := tx.WithContext(ctx).Exec(
		`INSERT INTO platform_revenue_transactions (id, territory_id, checkout_id, transaction_id, amount, currency, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (checkout_id) DO NOTHING`,
		rev.ID,
		rev.TerritoryID,
		rev.CheckoutID,
		rev.TransactionID,
		rev.Amount,
		rev.Currency,
		s.clock.Now(),
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) RecordExpenseTx(ctx context.Context, tx *gorm.DB, exp *ledgerdomain.PlatformExpenseTransaction) (bool, error) {
	if exp.TerritoryID == 0 {
		return false, ledgerdomain.ErrInvalidTerritory
	}
	if exp.Amount < 0 {
		return false, ledgerdomain.ErrInvalidAmount
	}
	if exp.ID == 0 {
		exp.ID = s.genID.Generate()
	}
	res := tx.WithContext(ctx).Exec(
		`INSERT INTO platform_expense_transactions (id, territory_id, payout_id, transaction_id, amount, currency, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (payout_id) DO NOTHING`,
		exp.ID,
		exp.TerritoryID,
		exp.PayoutID,
		exp.TransactionID,
		exp.Amount,
		exp.Currency,
		s.clock.Now(),
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) AddRevenueTx(ctx context.Context, tx *gorm.DB, territoryID snowflake.ID, amount int64, currency string) error {
	if territoryID == 0 {
		return ledgerdomain.ErrInvalidTerritory
	}
	if amount < 0 {
		return ledgerdomain.ErrInvalidAmount
	}
	return tx.WithContext(ctx).Exec(
		`INSERT INTO platform_financial_balances (territory_id, total_revenue, total_expenses, net_balance, currency, updated_at)
		 VALUES (?, ?, 0, ?, ?, ?)
		 ON CONFLICT (territory_id) DO UPDATE SET
			total_revenue = platform_financial_balances.total_revenue + excluded.total_revenue,
			net_balance = platform_financial_balances.net_balance + excluded.total_revenue,
			updated_at = excluded.updated_at`,
		territoryID,
		amount,
		amount,
		currency,
		s.clock.Now(),
	).Error
}

func (s *Service) AddExpenseTx(ctx context.Context, tx *gorm.DB, territoryID snowflake.ID, amount int64, currency string) error {
	if territoryID == 0 {
		return ledgerdomain.ErrInvalidTerritory
	}
	if amount < 0 {
		return ledgerdomain.ErrInvalidAmount
	}
	return tx.WithContext(ctx).Exec(
		`INSERT INTO platform_financial_balances (territory_id, total_revenue, total_expenses, net_balance, currency, updated_at)
		 VALUES (?, 0, ?, ?, ?, ?)
		 ON CONFLICT (territory_id) DO UPDATE SET
			total_expenses = platform_financial_balances.total_expenses + excluded.total_expenses,
			net_balance = platform_financial_balances.net_balance - excluded.total_expenses,
			updated_at = excluded.updated_at`,
		territoryID,
		amount,
		-amount,
		currency,
		s.clock.Now(),
	).Error
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*ledgerdomain.FinancialTransaction, error) {
	var txn ledgerdomain.FinancialTransaction
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM financial_transactions WHERE id = ? LIMIT 1`,
		id,
	).Scan(&txn).Error
	if err != nil {
		return nil, err
	}
	if txn.ID == 0 {
		return nil, ledgerdomain.ErrTransactionNotFound
	}
	return &txn, nil
}

func (s *Service) ListByRelated(ctx context.Context, relatedType string, relatedID snowflake.ID) ([]ledgerdomain.FinancialTransaction, error) {
	var items []ledgerdomain.FinancialTransaction
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM financial_transactions
		 WHERE related_entity_type = ? AND related_entity_id = ?
		 ORDER BY occurred_at, id`,
		relatedType,
		relatedID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) ListByTerritory(ctx context.Context, territoryID snowflake.ID, page pagination.Pagination) ([]ledgerdomain.FinancialTransaction, *pagination.PageInfo, error) {
	if territoryID == 0 {
		return nil, nil, ledgerdomain.ErrInvalidTerritory
	}
	size := page.PageSize
	if size <= 0 {
		size = 50
	}

	var afterID snowflake.ID
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, nil, err
		}
		afterID, err = snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, nil, err
		}
	}

	var rows []*ledgerdomain.FinancialTransaction
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM financial_transactions
		 WHERE territory_id = ? AND id > ?
		 ORDER BY id
		 LIMIT ?`,
		territoryID,
		afterID,
		size+1,
	).Scan(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(rows, size, func(txn *ledgerdomain.FinancialTransaction) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        txn.ID.String(),
			CreatedAt: txn.CreatedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(rows) > size {
		rows = rows[:size]
	}

	items := make([]ledgerdomain.FinancialTransaction, 0, len(rows))
	for _, row := range rows {
		items = append(items, *row)
	}
	return items, pageInfo, nil
}

func (s *Service) BalanceFor(ctx context.Context, territoryID snowflake.ID) (*ledgerdomain.PlatformFinancialBalance, error) {
	var bal ledgerdomain.PlatformFinancialBalance
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM platform_financial_balances WHERE territory_id = ? LIMIT 1`,
		territoryID,
	).Scan(&bal).Error
	if err != nil {
		return nil, err
	}
	if bal.TerritoryID == 0 {
		return nil, nil
	}
	return &bal, nil
}
