package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrCheckoutNotFound     = errors.New("checkout_not_found")
	ErrCheckoutNotConfirmed = errors.New("checkout_not_confirmed")
	ErrCurrencyMismatch     = errors.New("checkout_currency_mismatch")
	ErrEmptyCheckout        = errors.New("checkout_has_no_items")
)

// SellerSplit is the per-seller outcome of settling one checkout.
type SellerSplit struct {
	StoreID     snowflake.ID
	GrossAmount int64
	FeeAmount   int64
	NetAmount   int64
}

// SettlementResult reports what a settlement produced. AlreadySettled is
// set when the checkout had been settled before and no writes happened.
type SettlementResult struct {
	CheckoutID     snowflake.ID
	TerritoryID    snowflake.ID
	Currency       string
	TotalFee       int64
	Splits         []SellerSplit
	AlreadySettled bool
}

// Service settles confirmed checkouts: it computes the platform fee per
// line, writes seller transactions and ledger entries, and marks the
// checkout settled, all in one database transaction.
type Service interface {
	Settle(ctx context.Context, checkoutID snowflake.ID) (*SettlementResult, error)
}
