package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// SettlementDefaults is the platform-wide fallback policy applied when a
// territory has no active fee configuration of its own.
type SettlementDefaults struct {
	FeeMode            string `mapstructure:"feeMode"`
	FeeBasisPoints     int64  `mapstructure:"feeBasisPoints"`
	FeeFixedCents      int64  `mapstructure:"feeFixedCents"`
	Currency           string `mapstructure:"currency"`
	RetentionDays      int    `mapstructure:"retentionDays"`
	MinimumPayoutCents int64  `mapstructure:"minimumPayoutCents"`
}

func DefaultSettlementDefaults() SettlementDefaults {
	return SettlementDefaults{
		FeeMode:            "percentage",
		FeeBasisPoints:     1000, // 10%
		Currency:           "USD",
		RetentionDays:      7,
		MinimumPayoutCents: 1000,
	}
}

// SettlementDefaultsHolder exposes the current defaults and hot-reloads them
// when the config file changes.
type SettlementDefaultsHolder struct {
	current atomic.Value // holds SettlementDefaults
}

func NewSettlementDefaultsHolder() (*SettlementDefaultsHolder, error) {
	v := viper.New()

	v.SetConfigName("settlement")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/territorio/config")
	v.AddConfigPath("/etc/territorio")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TERRITORIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultSettlementDefaults()
		v.SetDefault("settlement.feeMode", defaults.FeeMode)
		v.SetDefault("settlement.feeBasisPoints", defaults.FeeBasisPoints)
		v.SetDefault("settlement.feeFixedCents", defaults.FeeFixedCents)
		v.SetDefault("settlement.currency", defaults.Currency)
		v.SetDefault("settlement.retentionDays", defaults.RetentionDays)
		v.SetDefault("settlement.minimumPayoutCents", defaults.MinimumPayoutCents)
	}

	var cfg SettlementDefaults
	if err := v.UnmarshalKey("settlement", &cfg); err != nil {
		return nil, err
	}
	if err := validateSettlementDefaults(cfg); err != nil {
		return nil, err
	}

	holder := &SettlementDefaultsHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SettlementDefaults
		if err := v.UnmarshalKey("settlement", &updated); err != nil {
			log.Printf("[settlement-config] reload failed: %v", err)
			return
		}
		if err := validateSettlementDefaults(updated); err != nil {
			log.Printf("[settlement-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[settlement-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticSettlementDefaultsHolder wraps fixed defaults without file
// watching, for tests and embedded callers.
func NewStaticSettlementDefaultsHolder(cfg SettlementDefaults) *SettlementDefaultsHolder {
	holder := &SettlementDefaultsHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *SettlementDefaultsHolder) Get() SettlementDefaults {
	return h.current.Load().(SettlementDefaults)
}

func validateSettlementDefaults(cfg SettlementDefaults) error {
	switch strings.ToLower(strings.TrimSpace(cfg.FeeMode)) {
	case "percentage":
		if cfg.FeeBasisPoints < 0 || cfg.FeeBasisPoints > 10000 {
			return errors.New("settlement.feeBasisPoints must be within [0, 10000]")
		}
	case "fixed":
		if cfg.FeeFixedCents < 0 {
			return errors.New("settlement.feeFixedCents cannot be negative")
		}
	default:
		return errors.New("settlement.feeMode must be percentage or fixed")
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("settlement.currency cannot be empty")
	}
	if cfg.RetentionDays < 0 {
		return errors.New("settlement.retentionDays cannot be negative")
	}
	if cfg.MinimumPayoutCents < 0 {
		return errors.New("settlement.minimumPayoutCents cannot be negative")
	}
	return nil
}
