package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the read model the settlement engine consumes. Checkouts
// are produced by the cart subsystem; the engine only flips Confirmed to
// Settled.
type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Checkout, error)
	ListItems(ctx context.Context, db *gorm.DB, checkoutID snowflake.ID) ([]CheckoutItem, error)
	// MarkSettledTx conditionally transitions Confirmed to Settled and
	// reports whether this caller won the transition.
	MarkSettledTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (bool, error)
}
