package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Verdict policies for upstream operations still reported as in progress.
// The upstream API sends no retry-after hint, so the historical behavior
// is to treat an in-progress operation as settled. Operators can opt into
// a caller-visible pending verdict instead.
const (
	PendingVerdictSuccess = "success"
	PendingVerdictPending = "pending"
)

// DashboardConfig is operator-tunable dashboard behavior, hot-reloadable
// from dashboard.yml without a restart.
type DashboardConfig struct {
	// AdvancedFlow enables the two-step activation on the landing page:
	// activate under the purchaser's plan, then immediately move the
	// subscription back to BasePlanID when they differ.
	AdvancedFlow bool `mapstructure:"advancedFlow"`

	// BasePlanID is the plan every advanced-flow activation is parked on.
	BasePlanID string `mapstructure:"basePlanId"`

	// ShowUnsubscribed includes terminally cancelled subscriptions in the
	// dashboard list.
	ShowUnsubscribed bool `mapstructure:"showUnsubscribed"`

	// OperationPendingVerdict is PendingVerdictSuccess or PendingVerdictPending.
	OperationPendingVerdict string `mapstructure:"operationPendingVerdict"`
}

func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{
		AdvancedFlow:            false,
		BasePlanID:              "basic",
		ShowUnsubscribed:        false,
		OperationPendingVerdict: PendingVerdictSuccess,
	}
}

// DashboardHolder exposes the current DashboardConfig and swaps it
// atomically on file change.
type DashboardHolder struct {
	current atomic.Value // holds DashboardConfig
}

func NewDashboardHolder() (*DashboardHolder, error) {
	v := viper.New()

	v.SetConfigName("dashboard")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/marketfill/config")
	v.AddConfigPath("/etc/marketfill")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MARKETFILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultDashboardConfig()
		v.SetDefault("dashboard.advancedFlow", defaults.AdvancedFlow)
		v.SetDefault("dashboard.basePlanId", defaults.BasePlanID)
		v.SetDefault("dashboard.showUnsubscribed", defaults.ShowUnsubscribed)
		v.SetDefault("dashboard.operationPendingVerdict", defaults.OperationPendingVerdict)
	}

	var cfg DashboardConfig
	if err := v.UnmarshalKey("dashboard", &cfg); err != nil {
		return nil, err
	}
	if err := validateDashboardConfig(cfg); err != nil {
		return nil, err
	}

	holder := &DashboardHolder{}
	holder.current.Store(cfg)

	// The holder is built before fx wires the logger, so the watcher
	// reports through the global zap logger.
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log := zap.L().Named("dashboard.config")
		var updated DashboardConfig
		if err := v.UnmarshalKey("dashboard", &updated); err != nil {
			log.Warn("dashboard config reload failed", zap.Error(err))
			return
		}
		if err := validateDashboardConfig(updated); err != nil {
			log.Warn("invalid dashboard config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("dashboard config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *DashboardHolder) Get() DashboardConfig {
	return h.current.Load().(DashboardConfig)
}

// NewStaticDashboardHolder returns a holder pinned to cfg. Test helper.
func NewStaticDashboardHolder(cfg DashboardConfig) *DashboardHolder {
	holder := &DashboardHolder{}
	holder.current.Store(cfg)
	return holder
}

func validateDashboardConfig(cfg DashboardConfig) error {
	if strings.TrimSpace(cfg.BasePlanID) == "" {
		return errors.New("dashboard.basePlanId must not be empty")
	}
	switch cfg.OperationPendingVerdict {
	case "", PendingVerdictSuccess, PendingVerdictPending:
		return nil
	default:
		return errors.New("dashboard.operationPendingVerdict must be \"success\" or \"pending\"")
	}
}
