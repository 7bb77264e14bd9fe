package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/territorio/backend/internal/clock"
	"github.com/territorio/backend/internal/config"
	feedomain "github.com/territorio/backend/internal/fee/domain"
	"github.com/territorio/backend/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     feedomain.Repository
	Defaults *config.SettlementDefaultsHolder `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     feedomain.Repository
	defaults *config.SettlementDefaultsHolder
}

func NewService(p Params) feedomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("fee.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		defaults: p.Defaults,
	}
}

func (s *Service) ResolveActive(ctx context.Context, territoryID snowflake.ID, itemType string) (feedomain.PlatformFeeConfig, error) {
	itemType = strings.TrimSpace(itemType)
	if itemType == "" {
		return feedomain.PlatformFeeConfig{}, feedomain.ErrInvalidItemType
	}

	now := s.clock.Now()
	cfg, err := s.repo.FindActive(ctx, s.db, territoryID, itemType, now)
	if err != nil {
		return feedomain.PlatformFeeConfig{}, err
	}
	if cfg != nil {
		return *cfg, nil
	}

	cfg, err = s.repo.FindActive(ctx, s.db, feedomain.PlatformDefaultTerritoryID, itemType, now)
	if err != nil {
		return feedomain.PlatformFeeConfig{}, err
	}
	if cfg != nil {
		return *cfg, nil
	}

	if s.defaults != nil {
		if fallback, ok := s.fallbackConfig(); ok {
			s.log.Debug("fee config resolved from platform defaults",
				zap.String("territory_id", territoryID.String()),
				zap.String("item_type", itemType),
			)
			return fallback, nil
		}
	}

	return feedomain.PlatformFeeConfig{}, feedomain.ErrConfigurationMissing
}

func (s *Service) Activate(ctx context.Context, cfg *feedomain.PlatformFeeConfig) error {
	if cfg == nil {
		return feedomain.ErrConfigurationMissing
	}
	cfg.ItemType = strings.TrimSpace(cfg.ItemType)
	if cfg.ItemType == "" {
		return feedomain.ErrInvalidItemType
	}
	switch cfg.FeeMode {
	case feedomain.FeeModeFixed:
		if cfg.FeeValue < 0 {
			return feedomain.ErrInvalidFeeValue
		}
	case feedomain.FeeModePercentage:
		if cfg.FeeValue < 0 || cfg.FeeValue > 10000 {
			return feedomain.ErrInvalidFeeValue
		}
	default:
		return feedomain.ErrInvalidFeeMode
	}

	if cfg.ID == 0 {
		cfg.ID = s.genID.Generate()
	}
	cfg.Active = true

	if err := s.repo.Insert(ctx, s.db, cfg); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return feedomain.ErrConfigAlreadyActive
		}
		return err
	}
	return nil
}

func (s *Service) Deactivate(ctx context.Context, id snowflake.ID) error {
	ok, err := s.repo.Deactivate(ctx, s.db, id)
	if err != nil {
		return err
	}
	if !ok {
		return feedomain.ErrConfigurationMissing
	}
	return nil
}

func (s *Service) fallbackConfig() (feedomain.PlatformFeeConfig, bool) {
	defaults := s.defaults.Get()
	cfg := feedomain.PlatformFeeConfig{
		TerritoryID: feedomain.PlatformDefaultTerritoryID,
		Currency:    defaults.Currency,
	}
	switch strings.ToLower(strings.TrimSpace(defaults.FeeMode)) {
	case string(feedomain.FeeModeFixed):
		cfg.FeeMode = feedomain.FeeModeFixed
		cfg.FeeValue = defaults.FeeFixedCents
	case string(feedomain.FeeModePercentage):
		cfg.FeeMode = feedomain.FeeModePercentage
		cfg.FeeValue = defaults.FeeBasisPoints
	default:
		return feedomain.PlatformFeeConfig{}, false
	}
	return cfg, true
}
