package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/territorio/backend/internal/clock"
	"github.com/territorio/backend/internal/config"
	ledgerdomain "github.com/territorio/backend/internal/ledger/domain"
	payoutdomain "github.com/territorio/backend/internal/payout/domain"
	"github.com/territorio/backend/internal/payout/gateway"
	selltxdomain "github.com/territorio/backend/internal/sellertxn/domain"
	"github.com/territorio/backend/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Configs   payoutdomain.ConfigRepository
	Payouts   payoutdomain.Repository
	SellerTxs selltxdomain.Repository
	Ledger    ledgerdomain.Service
	Registry  *gateway.Registry
	Defaults  *config.SettlementDefaultsHolder `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	configs   payoutdomain.ConfigRepository
	payouts   payoutdomain.Repository
	sellerTxs selltxdomain.Repository
	ledger    ledgerdomain.Service
	registry  *gateway.Registry
	defaults  *config.SettlementDefaultsHolder
}

func NewService(p Params) payoutdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payout.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		configs:   p.Configs,
		payouts:   p.Payouts,
		sellerTxs: p.SellerTxs,
		ledger:    p.Ledger,
		registry:  p.Registry,
		defaults:  p.Defaults,
	}
}

// batch is one payout's worth of claimed seller transactions.
type batch struct {
	storeID snowflake.ID
	rows    []selltxdomain.SellerTransaction
	amount  int64
}

func (s *Service) ProcessPendingPayouts(ctx context.Context, territoryID snowflake.ID, initiatedBy string) (int, error) {
	cfg, err := s.ResolveConfig(ctx, territoryID)
	if err != nil {
		return 0, err
	}

	gw, err := s.registry.NewGateway(cfg.Gateway)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	cutoff := now.AddDate(0, 0, -cfg.RetentionDays)

	promoted, err := s.sellerTxs.MarkReadyTx(ctx, s.db, territoryID, cutoff, now)
	if err != nil {
		return 0, err
	}
	if promoted > 0 {
		s.log.Debug("seller transactions promoted to ready",
			zap.String("territory_id", territoryID.String()),
			zap.Int64("promoted", promoted),
		)
	}

	ready, err := s.sellerTxs.ListReadyForPayout(ctx, s.db, territoryID)
	if err != nil {
		return 0, err
	}
	if len(ready) == 0 {
		return 0, nil
	}

	var (
		paid int
		errs []error
	)
	for _, b := range buildBatches(ready, cfg.MinimumPayoutAmount, cfg.MaximumPayoutAmount) {
		n, err := s.executeBatch(ctx, cfg, gw, b, initiatedBy)
		paid += n
		if err != nil {
			errs = append(errs, fmt.Errorf("store %s: %w", b.storeID, err))
		}
	}
	return paid, errors.Join(errs...)
}

// buildBatches groups ready rows per seller and drops sellers below the
// minimum. At most one batch per seller per run: under a maximum cap it
// takes rows oldest-first until the next row would exceed the cap, and
// the remainder stays ready for the next run. A single transaction
// larger than the cap still gets its own batch since the amount cannot
// be divided. Amounts in different currencies never share a transfer;
// rows not matching the seller's oldest ready row wait for a later run.
func buildBatches(ready []selltxdomain.SellerTransaction, minAmount, maxAmount int64) []batch {
	byStore := make(map[snowflake.ID][]selltxdomain.SellerTransaction)
	var order []snowflake.ID
	for _, row := range ready {
		if _, ok := byStore[row.StoreID]; !ok {
			order = append(order, row.StoreID)
		}
		byStore[row.StoreID] = append(byStore[row.StoreID], row)
	}

	var batches []batch
	for _, storeID := range order {
		currency := byStore[storeID][0].Currency
		var rows []selltxdomain.SellerTransaction
		for _, row := range byStore[storeID] {
			if row.Currency == currency {
				rows = append(rows, row)
			}
		}
		var total int64
		for _, row := range rows {
			total += row.NetAmount
		}
		if total < minAmount {
			continue
		}

		if maxAmount <= 0 {
			batches = append(batches, batch{storeID: storeID, rows: rows, amount: total})
			continue
		}

		current := batch{storeID: storeID}
		for _, row := range rows {
			if len(current.rows) > 0 && current.amount+row.NetAmount > maxAmount {
				break
			}
			current.rows = append(current.rows, row)
			current.amount += row.NetAmount
		}
		batches = append(batches, current)
	}
	return batches
}

func (s *Service) executeBatch(ctx context.Context, cfg *payoutdomain.TerritoryPayoutConfig, gw payoutdomain.TransferGateway, b batch, initiatedBy string) (int, error) {
	now := s.clock.Now()

	status := payoutdomain.PayoutStatusRequested
	if cfg.RequiresApproval {
		status = payoutdomain.PayoutStatusAwaitingApproval
	}

	payout := &payoutdomain.Payout{
		ID:          s.genID.Generate(),
		Reference:   uuid.NewString(),
		TerritoryID: cfg.TerritoryID,
		StoreID:     b.storeID,
		Amount:      b.amount,
		Currency:    b.rows[0].Currency,
		Status:      status,
		Gateway:     cfg.Gateway,
		InitiatedBy: initiatedBy,
		RequestedAt: now,
	}

	ids := make([]snowflake.ID, 0, len(b.rows))
	for _, row := range b.rows {
		ids = append(ids, row.ID)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := s.sellerTxs.ClaimForPayoutTx(ctx, tx, ids, payout.ID, now)
		if err != nil {
			return err
		}
		if claimed != int64(len(ids)) {
			return payoutdomain.ErrClaimConflict
		}
		return s.payouts.InsertTx(ctx, tx, payout)
	})
	if err != nil {
		if errors.Is(err, payoutdomain.ErrClaimConflict) {
			// Another worker claimed part of the batch; it will pay them.
			s.log.Warn("payout batch lost claim race",
				zap.String("territory_id", cfg.TerritoryID.String()),
				zap.String("store_id", b.storeID.String()),
			)
			return 0, nil
		}
		return 0, err
	}

	if cfg.RequiresApproval {
		s.log.Info("payout awaiting approval",
			zap.String("payout_id", payout.ID.String()),
			zap.String("store_id", b.storeID.String()),
			zap.Int64("amount", b.amount),
		)
		return 0, nil
	}

	return s.transferAndFinalize(ctx, gw, payout, payoutdomain.PayoutStatusRequested)
}

// transferAndFinalize runs the external transfer outside any database
// transaction, then either completes or reverts the claim. fromStatus is
// the payout status the finalizing update expects.
func (s *Service) transferAndFinalize(ctx context.Context, gw payoutdomain.TransferGateway, payout *payoutdomain.Payout, fromStatus payoutdomain.PayoutStatus) (int, error) {
	result, terr := gw.Transfer(ctx, payoutdomain.TransferRequest{
		Reference:   payout.Reference,
		TerritoryID: payout.TerritoryID,
		StoreID:     payout.StoreID,
		Amount:      payout.Amount,
		Currency:    payout.Currency,
	})
	now := s.clock.Now()

	if terr != nil {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if _, err := s.sellerTxs.RevertClaimTx(ctx, tx, payout.ID, now); err != nil {
				return err
			}
			_, err := s.payouts.UpdateStatusTx(ctx, tx, payout.ID, fromStatus, payoutdomain.PayoutStatusFailed, "", terr.Error(), nil, now)
			return err
		})
		if err != nil {
			return 0, errors.Join(terr, err)
		}
		s.log.Error("payout transfer failed",
			zap.String("payout_id", payout.ID.String()),
			zap.String("store_id", payout.StoreID.String()),
			zap.Error(terr),
		)
		return 0, fmt.Errorf("transfer payout %s: %w", payout.ID, terr)
	}

	var paid int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.sellerTxs.MarkPaidTx(ctx, tx, payout.ID, now)
		if err != nil {
			return err
		}
		paid = n

		ok, err := s.payouts.UpdateStatusTx(ctx, tx, payout.ID, fromStatus, payoutdomain.PayoutStatusPaid, result.ProviderRef, "", &now, now)
		if err != nil {
			return err
		}
		if !ok {
			return payoutdomain.ErrPayoutNotFound
		}

		payoutTxn := &ledgerdomain.FinancialTransaction{
			TerritoryID:       payout.TerritoryID,
			Type:              ledgerdomain.TransactionTypePayout,
			Status:            ledgerdomain.TransactionStatusCompleted,
			Amount:            payout.Amount,
			Currency:          payout.Currency,
			RelatedEntityType: "payout",
			RelatedEntityID:   payout.ID,
			OccurredAt:        now,
		}
		if _, err := s.ledger.RecordTx(ctx, tx, payoutTxn); err != nil {
			return err
		}

		recorded, err := s.ledger.RecordExpenseTx(ctx, tx, &ledgerdomain.PlatformExpenseTransaction{
			TerritoryID:   payout.TerritoryID,
			PayoutID:      payout.ID,
			TransactionID: payoutTxn.ID,
			Amount:        payout.Amount,
			Currency:      payout.Currency,
		})
		if err != nil {
			return err
		}
		if recorded {
			return s.ledger.AddExpenseTx(ctx, tx, payout.TerritoryID, payout.Amount, payout.Currency)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Info("payout paid",
		zap.String("payout_id", payout.ID.String()),
		zap.String("store_id", payout.StoreID.String()),
		zap.Int64("amount", payout.Amount),
		zap.Int64("seller_transactions", paid),
	)
	return int(paid), nil
}

func (s *Service) ApprovePayout(ctx context.Context, payoutID snowflake.ID, approvedBy string) error {
	payout, err := s.payouts.FindByID(ctx, s.db, payoutID)
	if err != nil {
		return err
	}
	if payout == nil {
		return payoutdomain.ErrPayoutNotFound
	}

	gw, err := s.registry.NewGateway(payout.Gateway)
	if err != nil {
		return err
	}

	// Move to requested first so only one approver executes the transfer.
	now := s.clock.Now()
	ok, err := s.payouts.UpdateStatusTx(ctx, s.db, payoutID, payoutdomain.PayoutStatusAwaitingApproval, payoutdomain.PayoutStatusRequested, "", "", nil, now)
	if err != nil {
		return err
	}
	if !ok {
		return payoutdomain.ErrPayoutNotAwaiting
	}

	s.log.Info("payout approved",
		zap.String("payout_id", payoutID.String()),
		zap.String("approved_by", approvedBy),
	)

	_, err = s.transferAndFinalize(ctx, gw, payout, payoutdomain.PayoutStatusRequested)
	return err
}

func (s *Service) RejectPayout(ctx context.Context, payoutID snowflake.ID, rejectedBy, reason string) error {
	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.payouts.UpdateStatusTx(ctx, tx, payoutID, payoutdomain.PayoutStatusAwaitingApproval, payoutdomain.PayoutStatusRejected, "", reason, nil, now)
		if err != nil {
			return err
		}
		if !ok {
			return payoutdomain.ErrPayoutNotAwaiting
		}
		_, err = s.sellerTxs.RevertClaimTx(ctx, tx, payoutID, now)
		return err
	})
	if err != nil {
		return err
	}
	s.log.Info("payout rejected",
		zap.String("payout_id", payoutID.String()),
		zap.String("rejected_by", rejectedBy),
		zap.String("reason", reason),
	)
	return nil
}

func (s *Service) GetPayout(ctx context.Context, payoutID snowflake.ID) (*payoutdomain.Payout, error) {
	payout, err := s.payouts.FindByID(ctx, s.db, payoutID)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, payoutdomain.ErrPayoutNotFound
	}
	return payout, nil
}

func (s *Service) ResolveConfig(ctx context.Context, territoryID snowflake.ID) (*payoutdomain.TerritoryPayoutConfig, error) {
	cfg, err := s.configs.FindActive(ctx, s.db, territoryID)
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		return cfg, nil
	}
	if s.defaults == nil {
		return nil, payoutdomain.ErrConfigNotFound
	}

	defaults := s.defaults.Get()
	return &payoutdomain.TerritoryPayoutConfig{
		TerritoryID:         territoryID,
		RetentionDays:       defaults.RetentionDays,
		MinimumPayoutAmount: defaults.MinimumPayoutCents,
		Frequency:           payoutdomain.FrequencyManual,
		AutoPayoutEnabled:   false,
		Gateway:             "manual",
		Currency:            defaults.Currency,
	}, nil
}

func (s *Service) ActivateConfig(ctx context.Context, cfg *payoutdomain.TerritoryPayoutConfig) error {
	if cfg == nil || cfg.TerritoryID == 0 {
		return payoutdomain.ErrInvalidConfig
	}
	if cfg.RetentionDays < 0 || cfg.MinimumPayoutAmount < 0 {
		return payoutdomain.ErrInvalidConfig
	}
	if cfg.MaximumPayoutAmount < 0 || (cfg.MaximumPayoutAmount > 0 && cfg.MaximumPayoutAmount < cfg.MinimumPayoutAmount) {
		return payoutdomain.ErrInvalidConfig
	}
	switch cfg.Frequency {
	case payoutdomain.FrequencyDaily, payoutdomain.FrequencyWeekly, payoutdomain.FrequencyMonthly, payoutdomain.FrequencyManual:
	default:
		return payoutdomain.ErrInvalidConfig
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		return payoutdomain.ErrInvalidConfig
	}
	if !s.registry.ProviderExists(cfg.Gateway) {
		return payoutdomain.ErrGatewayNotFound
	}

	if cfg.ID == 0 {
		cfg.ID = s.genID.Generate()
	}
	cfg.Active = true

	if err := s.configs.Insert(ctx, s.db, cfg); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return payoutdomain.ErrConfigAlreadyActive
		}
		return err
	}
	return nil
}

func (s *Service) RecoverStuckPayouts(ctx context.Context, olderThan time.Duration) (int, error) {
	now := s.clock.Now()
	cutoff := now.Add(-olderThan)

	stuck, err := s.sellerTxs.ListStuckPayoutIDs(ctx, s.db, cutoff)
	if err != nil {
		return 0, err
	}

	var (
		recovered int
		errs      []error
	)
	for _, payoutID := range stuck {
		payout, err := s.payouts.FindByID(ctx, s.db, payoutID)
		if err != nil {
			errs = append(errs, fmt.Errorf("payout %s: %w", payoutID, err))
			continue
		}

		if payout != nil && payout.Status == payoutdomain.PayoutStatusAwaitingApproval {
			// Held deliberately; approval or rejection resolves it.
			continue
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if payout != nil && payout.Status == payoutdomain.PayoutStatusPaid {
				// The payout completed but the claim finalization was lost.
				paidAt := now
				if payout.PaidAt != nil {
					paidAt = *payout.PaidAt
				}
				_, err := s.sellerTxs.MarkPaidTx(ctx, tx, payoutID, paidAt)
				return err
			}
			if payout != nil && payout.Status == payoutdomain.PayoutStatusRequested {
				if _, err := s.payouts.UpdateStatusTx(ctx, tx, payoutID, payoutdomain.PayoutStatusRequested, payoutdomain.PayoutStatusFailed, "", "recovered stuck claim", nil, now); err != nil {
					return err
				}
			}
			_, err := s.sellerTxs.RevertClaimTx(ctx, tx, payoutID, now)
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("payout %s: %w", payoutID, err))
			continue
		}

		recovered++
		s.log.Warn("recovered stuck payout claim",
			zap.String("payout_id", payoutID.String()),
			zap.Time("cutoff", cutoff),
		)
	}
	return recovered, errors.Join(errs...)
}
