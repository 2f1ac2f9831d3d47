package hypervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Host:     "vc.example.com",
		User:     "admin",
		Password: "secret",
		PoolPath: "dc1/cluster1/pool1",
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config passes", func(c *Config) {}, false},
		{"missing host fails", func(c *Config) { c.Host = "" }, true},
		{"missing user fails", func(c *Config) { c.User = "" }, true},
		{"missing password fails", func(c *Config) { c.Password = "" }, true},
		{"missing pool path fails", func(c *Config) { c.PoolPath = "" }, true},
		{"pool path with wrong number of segments fails", func(c *Config) { c.PoolPath = "dc1/cluster1" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfigUsesOverlay(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"explicit nsx flag", Config{IsNsxNetwork: true}, true},
		{"nsx prefixed uplink", Config{Uplink: "nsx.uplink1"}, true},
		{"mixed case nsx prefix", Config{Uplink: "NSX.Uplink1"}, true},
		{"plain dvs uplink", Config{Uplink: "dvSwitch0"}, false},
		{"no uplink configured", Config{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.UsesOverlay())
		})
	}
}

func TestConfigKeepAlive(t *testing.T) {
	tests := []struct {
		name    string
		minutes int
		want    time.Duration
	}{
		{"default when unset", 0, 30 * time.Minute},
		{"default when negative", -5, 30 * time.Minute},
		{"configured value honored", 10, 10 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{KeepAliveMinutes: tt.minutes}
			assert.Equal(t, tt.want, cfg.keepAlive())
		})
	}
}

func TestConfigVmStoreFor(t *testing.T) {
	cfg := &Config{Host: "esx01.lab.example.com", VmStore: "[datastore1] vms/{host}"}
	assert.Equal(t, "[datastore1] vms/esx01", cfg.vmStoreFor())
}

func TestConfigPoolPathParts(t *testing.T) {
	cfg := &Config{PoolPath: "dc1/cluster1/pool1"}
	dc, cluster, pool := cfg.poolPathParts()
	assert.Equal(t, "dc1", dc)
	assert.Equal(t, "cluster1", cluster)
	assert.Equal(t, "pool1", pool)
}
