package service

import (
	"context"
	"sort"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/territorio/backend/internal/checkout/domain"
	"github.com/territorio/backend/internal/clock"
	feedomain "github.com/territorio/backend/internal/fee/domain"
	ledgerdomain "github.com/territorio/backend/internal/ledger/domain"
	selltxdomain "github.com/territorio/backend/internal/sellertxn/domain"
	settlementdomain "github.com/territorio/backend/internal/settlement/domain"
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
	Checkouts checkoutdomain.Repository
	Fees      feedomain.Service
	SellerTxs selltxdomain.Repository
	Ledger    ledgerdomain.Service
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	checkouts checkoutdomain.Repository
	fees      feedomain.Service
	sellerTxs selltxdomain.Repository
	ledger    ledgerdomain.Service
}

func NewService(p Params) settlementdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("settlement.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		checkouts: p.Checkouts,
		fees:      p.Fees,
		sellerTxs: p.SellerTxs,
		ledger:    p.Ledger,
	}
}

func (s *Service) Settle(ctx context.Context, checkoutID snowflake.ID) (*settlementdomain.SettlementResult, error) {
	checkout, err := s.checkouts.FindByID(ctx, s.db, checkoutID)
	if err != nil {
		return nil, err
	}
	if checkout == nil {
		return nil, settlementdomain.ErrCheckoutNotFound
	}
	if checkout.Status == checkoutdomain.CheckoutStatusSettled {
		return s.settledResult(ctx, checkout)
	}
	if checkout.Status != checkoutdomain.CheckoutStatusConfirmed {
		return nil, settlementdomain.ErrCheckoutNotConfirmed
	}

	items, err := s.checkouts.ListItems(ctx, s.db, checkoutID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, settlementdomain.ErrEmptyCheckout
	}
	for _, item := range items {
		if item.Currency != checkout.Currency {
			return nil, settlementdomain.ErrCurrencyMismatch
		}
	}

	splits, totalFee, err := s.computeSplits(ctx, checkout.TerritoryID, items)
	if err != nil {
		return nil, err
	}

	result := &settlementdomain.SettlementResult{
		CheckoutID:  checkout.ID,
		TerritoryID: checkout.TerritoryID,
		Currency:    checkout.Currency,
		TotalFee:    totalFee,
		Splits:      splits,
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		settled, err := s.checkouts.MarkSettledTx(ctx, tx, checkout.ID)
		if err != nil {
			return err
		}
		if !settled {
			// Another settlement won the race; keep ours a no-op.
			result.AlreadySettled = true
			return nil
		}

		for _, split := range splits {
			sellerTx := &selltxdomain.SellerTransaction{
				ID:          s.genID.Generate(),
				TerritoryID: checkout.TerritoryID,
				StoreID:     split.StoreID,
				CheckoutID:  checkout.ID,
				GrossAmount: split.GrossAmount,
				FeeAmount:   split.FeeAmount,
				NetAmount:   split.NetAmount,
				Currency:    checkout.Currency,
				Status:      selltxdomain.StatusPending,
				SettledAt:   now,
			}
			if err := s.sellerTxs.InsertTx(ctx, tx, sellerTx); err != nil {
				return err
			}

			if _, err := s.ledger.RecordTx(ctx, tx, &ledgerdomain.FinancialTransaction{
				TerritoryID:       checkout.TerritoryID,
				Type:              ledgerdomain.TransactionTypeSeller,
				Status:            ledgerdomain.TransactionStatusCompleted,
				Amount:            split.NetAmount,
				Currency:          checkout.Currency,
				RelatedEntityType: "seller_transaction",
				RelatedEntityID:   sellerTx.ID,
				OccurredAt:        now,
			}); err != nil {
				return err
			}
		}

		feeTxn := &ledgerdomain.FinancialTransaction{
			TerritoryID:       checkout.TerritoryID,
			Type:              ledgerdomain.TransactionTypePlatformFee,
			Status:            ledgerdomain.TransactionStatusCompleted,
			Amount:            totalFee,
			Currency:          checkout.Currency,
			RelatedEntityType: "checkout",
			RelatedEntityID:   checkout.ID,
			OccurredAt:        now,
		}
		if _, err := s.ledger.RecordTx(ctx, tx, feeTxn); err != nil {
			return err
		}

		recorded, err := s.ledger.RecordRevenueTx(ctx, tx, &ledgerdomain.PlatformRevenueTransaction{
			TerritoryID:   checkout.TerritoryID,
			CheckoutID:    checkout.ID,
			TransactionID: feeTxn.ID,
			Amount:        totalFee,
			Currency:      checkout.Currency,
		})
		if err != nil {
			return err
		}
		if recorded {
			if err := s.ledger.AddRevenueTx(ctx, tx, checkout.TerritoryID, totalFee, checkout.Currency); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("checkout settled",
		zap.String("checkout_id", checkout.ID.String()),
		zap.String("territory_id", checkout.TerritoryID.String()),
		zap.Int64("total_fee", totalFee),
		zap.Int("sellers", len(splits)),
		zap.Bool("already_settled", result.AlreadySettled),
	)
	return result, nil
}

// computeSplits groups the checkout lines by store, resolves the fee
// configuration per line, and accumulates each seller's gross, fee and
// net share. Stores come back in ascending id order so the split is
// deterministic.
func (s *Service) computeSplits(ctx context.Context, territoryID snowflake.ID, items []checkoutdomain.CheckoutItem) ([]settlementdomain.SellerSplit, int64, error) {
	byStore := make(map[snowflake.ID]*settlementdomain.SellerSplit)
	var order []snowflake.ID
	var totalFee int64

	for _, item := range items {
		cfg, err := s.fees.ResolveActive(ctx, territoryID, item.ItemType)
		if err != nil {
			return nil, 0, err
		}
		fee, net, err := feedomain.Compute(item.Subtotal, cfg)
		if err != nil {
			return nil, 0, err
		}

		split, ok := byStore[item.StoreID]
		if !ok {
			split = &settlementdomain.SellerSplit{StoreID: item.StoreID}
			byStore[item.StoreID] = split
			order = append(order, item.StoreID)
		}
		split.GrossAmount += item.Subtotal
		split.FeeAmount += fee
		split.NetAmount += net
		totalFee += fee
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	splits := make([]settlementdomain.SellerSplit, 0, len(order))
	for _, storeID := range order {
		splits = append(splits, *byStore[storeID])
	}
	return splits, totalFee, nil
}

func (s *Service) settledResult(ctx context.Context, checkout *checkoutdomain.Checkout) (*settlementdomain.SettlementResult, error) {
	existing, err := s.sellerTxs.ListByCheckout(ctx, s.db, checkout.ID)
	if err != nil {
		return nil, err
	}
	result := &settlementdomain.SettlementResult{
		CheckoutID:     checkout.ID,
		TerritoryID:    checkout.TerritoryID,
		Currency:       checkout.Currency,
		AlreadySettled: true,
	}
	for _, txn := range existing {
		result.TotalFee += txn.FeeAmount
		result.Splits = append(result.Splits, settlementdomain.SellerSplit{
			StoreID:     txn.StoreID,
			GrossAmount: txn.GrossAmount,
			FeeAmount:   txn.FeeAmount,
			NetAmount:   txn.NetAmount,
		})
	}
	return result, nil
}
