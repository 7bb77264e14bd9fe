package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/territorio/backend/internal/clock"
	"github.com/territorio/backend/internal/config"
	feedomain "github.com/territorio/backend/internal/fee/domain"
	feerepo "github.com/territorio/backend/internal/fee/repository"
	"github.com/territorio/backend/internal/testdb"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, defaults *config.SettlementDefaultsHolder) (feedomain.Service, *gorm.DB, *snowflake.Node, *clock.FakeClock) {
	t.Helper()
	db := testdb.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fakeClock,
		Repo:     feerepo.Provide(),
		Defaults: defaults,
	})
	return svc, db, node, fakeClock
}

func TestResolveActive_FallbackChain(t *testing.T) {
	holder := config.NewStaticSettlementDefaultsHolder(config.SettlementDefaults{
		FeeMode:        "percentage",
		FeeBasisPoints: 500,
		Currency:       "USD",
	})
	svc, _, node, _ := newTestService(t, holder)
	ctx := context.Background()

	territoryID := node.Generate()

	// Nothing configured anywhere: platform defaults win.
	cfg, err := svc.ResolveActive(ctx, territoryID, "product")
	require.NoError(t, err)
	assert.Equal(t, feedomain.FeeModePercentage, cfg.FeeMode)
	assert.Equal(t, int64(500), cfg.FeeValue)

	// Platform-wide row beats the defaults holder.
	require.NoError(t, svc.Activate(ctx, &feedomain.PlatformFeeConfig{
		TerritoryID: feedomain.PlatformDefaultTerritoryID,
		ItemType:    "product",
		FeeMode:     feedomain.FeeModePercentage,
		FeeValue:    800,
		Currency:    "USD",
	}))
	cfg, err = svc.ResolveActive(ctx, territoryID, "product")
	require.NoError(t, err)
	assert.Equal(t, int64(800), cfg.FeeValue)

	// Territory-specific row beats the platform-wide row.
	require.NoError(t, svc.Activate(ctx, &feedomain.PlatformFeeConfig{
		TerritoryID: territoryID,
		ItemType:    "product",
		FeeMode:     feedomain.FeeModeFixed,
		FeeValue:    300,
		Currency:    "USD",
	}))
	cfg, err = svc.ResolveActive(ctx, territoryID, "product")
	require.NoError(t, err)
	assert.Equal(t, feedomain.FeeModeFixed, cfg.FeeMode)
	assert.Equal(t, int64(300), cfg.FeeValue)
}

func TestResolveActive_MissingWithoutDefaults(t *testing.T) {
	svc, _, node, _ := newTestService(t, nil)

	_, err := svc.ResolveActive(context.Background(), node.Generate(), "product")
	assert.ErrorIs(t, err, feedomain.ErrConfigurationMissing)

	_, err = svc.ResolveActive(context.Background(), node.Generate(), "  ")
	assert.ErrorIs(t, err, feedomain.ErrInvalidItemType)
}

func TestResolveActive_ExpiredWindowIgnored(t *testing.T) {
	svc, _, node, fakeClock := newTestService(t, nil)
	ctx := context.Background()

	territoryID := node.Generate()
	expired := fakeClock.Now().Add(-time.Hour)
	stale := &feedomain.PlatformFeeConfig{
		TerritoryID: territoryID,
		ItemType:    "product",
		FeeMode:     feedomain.FeeModePercentage,
		FeeValue:    1000,
		Currency:    "USD",
		ValidUntil:  &expired,
	}
	require.NoError(t, svc.Activate(ctx, stale))

	// The row is still flagged active but its window has closed.
	_, err := svc.ResolveActive(ctx, territoryID, "product")
	assert.ErrorIs(t, err, feedomain.ErrConfigurationMissing)

	// A config inside its window resolves.
	require.NoError(t, svc.Deactivate(ctx, stale.ID))
	future := fakeClock.Now().Add(24 * time.Hour)
	require.NoError(t, svc.Activate(ctx, &feedomain.PlatformFeeConfig{
		TerritoryID: territoryID,
		ItemType:    "product",
		FeeMode:     feedomain.FeeModePercentage,
		FeeValue:    1500,
		Currency:    "USD",
		ValidUntil:  &future,
	}))
	cfg, err := svc.ResolveActive(ctx, territoryID, "product")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), cfg.FeeValue)
}

func TestActivate_SecondActiveConfigRejected(t *testing.T) {
	svc, _, node, _ := newTestService(t, nil)
	ctx := context.Background()

	territoryID := node.Generate()
	require.NoError(t, svc.Activate(ctx, &feedomain.PlatformFeeConfig{
		TerritoryID: territoryID,
		ItemType:    "product",
		FeeMode:     feedomain.FeeModePercentage,
		FeeValue:    1000,
		Currency:    "USD",
	}))

	err := svc.Activate(ctx, &feedomain.PlatformFeeConfig{
		TerritoryID: territoryID,
		ItemType:    "product",
		FeeMode:     feedomain.FeeModePercentage,
		FeeValue:    2000,
		Currency:    "USD",
	})
	assert.ErrorIs(t, err, feedomain.ErrConfigAlreadyActive)

	// A different item type is fine.
	assert.NoError(t, svc.Activate(ctx, &feedomain.PlatformFeeConfig{
		TerritoryID: territoryID,
		ItemType:    "ticket",
		FeeMode:     feedomain.FeeModePercentage,
		FeeValue:    2000,
		Currency:    "USD",
	}))
}

func TestActivate_Validation(t *testing.T) {
	svc, _, node, _ := newTestService(t, nil)
	ctx := context.Background()

	err := svc.Activate(ctx, &feedomain.PlatformFeeConfig{
		TerritoryID: node.Generate(),
		ItemType:    "product",
		FeeMode:     feedomain.FeeModePercentage,
		FeeValue:    10001,
		Currency:    "USD",
	})
	assert.ErrorIs(t, err, feedomain.ErrInvalidFeeValue)

	err = svc.Activate(ctx, &feedomain.PlatformFeeConfig{
		TerritoryID: node.Generate(),
		ItemType:    "product",
		FeeMode:     "bogus",
		FeeValue:    100,
		Currency:    "USD",
	})
	assert.ErrorIs(t, err, feedomain.ErrInvalidFeeMode)
}

func TestDeactivate(t *testing.T) {
	svc, _, node, _ := newTestService(t, nil)
	ctx := context.Background()

	territoryID := node.Generate()
	cfg := &feedomain.PlatformFeeConfig{
		TerritoryID: territoryID,
		ItemType:    "product",
		FeeMode:     feedomain.FeeModePercentage,
		FeeValue:    1000,
		Currency:    "USD",
	}
	require.NoError(t, svc.Activate(ctx, cfg))
	require.NoError(t, svc.Deactivate(ctx, cfg.ID))

	_, err := svc.ResolveActive(ctx, territoryID, "product")
	assert.ErrorIs(t, err, feedomain.ErrConfigurationMissing)

	// Deactivating twice reports the config as gone.
	assert.ErrorIs(t, svc.Deactivate(ctx, cfg.ID), feedomain.ErrConfigurationMissing)
}
