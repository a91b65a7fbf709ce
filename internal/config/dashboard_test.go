package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultDashboardConfig(t *testing.T) {
	cfg := DefaultDashboardConfig()
	assert.False(t, cfg.AdvancedFlow)
	assert.Equal(t, "basic", cfg.BasePlanID)
	assert.False(t, cfg.ShowUnsubscribed)
	assert.Equal(t, PendingVerdictSuccess, cfg.OperationPendingVerdict)
	assert.NoError(t, validateDashboardConfig(cfg))
}

// validateDashboardConfig guards both startup and the file watcher, so
// a bad reload must be rejected before it replaces the current config.
func TestValidateDashboardConfig(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*DashboardConfig)
		wantErr bool
	}{
		{"defaults pass", func(*DashboardConfig) {}, false},
		{"empty base plan", func(c *DashboardConfig) { c.BasePlanID = "" }, true},
		{"blank base plan", func(c *DashboardConfig) { c.BasePlanID = "   " }, true},
		{"pending verdict accepted", func(c *DashboardConfig) { c.OperationPendingVerdict = PendingVerdictPending }, false},
		{"empty verdict accepted", func(c *DashboardConfig) { c.OperationPendingVerdict = "" }, false},
		{"unknown verdict rejected", func(c *DashboardConfig) { c.OperationPendingVerdict = "retry" }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultDashboardConfig()
			tc.mutate(&cfg)
			err := validateDashboardConfig(cfg)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStaticDashboardHolder(t *testing.T) {
	cfg := DefaultDashboardConfig()
	cfg.AdvancedFlow = true

	holder := NewStaticDashboardHolder(cfg)
	assert.Equal(t, cfg, holder.Get())
}
