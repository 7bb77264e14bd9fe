package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrConfigurationMissing = errors.New("fee_configuration_missing")
	ErrConfigAlreadyActive  = errors.New("fee_config_already_active")
	ErrInvalidFeeMode       = errors.New("invalid_fee_mode")
	ErrInvalidFeeValue      = errors.New("invalid_fee_value")
	ErrInvalidLineAmount    = errors.New("invalid_line_amount")
	ErrInvalidItemType      = errors.New("invalid_item_type")
)

// Service resolves and administers fee configurations. Fee arithmetic
// itself lives in Compute.
type Service interface {
	// ResolveActive returns the active config for the pair, falling back
	// to the platform default row and then to the configured platform
	// defaults. ErrConfigurationMissing when nothing resolves.
	ResolveActive(ctx context.Context, territoryID snowflake.ID, itemType string) (PlatformFeeConfig, error)
	// Activate persists cfg as the single active config for its
	// (territory, item type) pair. ErrConfigAlreadyActive when one exists.
	Activate(ctx context.Context, cfg *PlatformFeeConfig) error
	Deactivate(ctx context.Context, id snowflake.ID) error
}
