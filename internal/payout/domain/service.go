package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrPayoutNotFound      = errors.New("payout_not_found")
	ErrPayoutNotAwaiting   = errors.New("payout_not_awaiting_approval")
	ErrConfigNotFound      = errors.New("payout_config_not_found")
	ErrConfigAlreadyActive = errors.New("payout_config_already_active")
	ErrInvalidConfig       = errors.New("invalid_payout_config")
	ErrGatewayNotFound     = errors.New("payout_gateway_not_found")
	ErrClaimConflict       = errors.New("payout_claim_conflict")
)

// TransferRequest is what the gateway needs to move money to a seller.
type TransferRequest struct {
	Reference   string
	TerritoryID snowflake.ID
	StoreID     snowflake.ID
	Amount      int64
	Currency    string
}

// TransferResult carries the provider-side identifier of a completed
// transfer.
type TransferResult struct {
	ProviderRef string
}

// TransferGateway executes the external money movement. Implementations
// must treat Reference as an idempotency key.
type TransferGateway interface {
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

// GatewayFactory builds a gateway for a provider name.
type GatewayFactory interface {
	Provider() string
	NewGateway() (TransferGateway, error)
}

// Service batches ready seller transactions into payouts and drives them
// through the transfer gateway.
type Service interface {
	// ProcessPendingPayouts promotes retained funds, batches them per
	// seller under the territory's policy, and executes the transfers.
	// It returns how many seller transactions were paid. Failures are
	// isolated per seller and joined into the returned error.
	ProcessPendingPayouts(ctx context.Context, territoryID snowflake.ID, initiatedBy string) (int, error)

	// ApprovePayout executes the transfer for a payout held for manual
	// approval.
	ApprovePayout(ctx context.Context, payoutID snowflake.ID, approvedBy string) error
	// RejectPayout releases the claimed funds back to the ready pool.
	RejectPayout(ctx context.Context, payoutID snowflake.ID, rejectedBy, reason string) error

	GetPayout(ctx context.Context, payoutID snowflake.ID) (*Payout, error)
	ResolveConfig(ctx context.Context, territoryID snowflake.ID) (*TerritoryPayoutConfig, error)
	ActivateConfig(ctx context.Context, cfg *TerritoryPayoutConfig) error

	// RecoverStuckPayouts resolves claims older than olderThan whose
	// payout never reached a terminal state, releasing the rows for the
	// next batch. It returns the number of payouts recovered.
	RecoverStuckPayouts(ctx context.Context, olderThan time.Duration) (int, error)
}
