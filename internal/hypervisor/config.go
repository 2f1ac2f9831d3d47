package hypervisor

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Config is the endpoint configuration for a single Client. It is shared,
// mutable state only in the sense that Connect is idempotent and guarded by
// connectMu; callers should otherwise treat a Config as read-only after
// construction.
type Config struct {
	Host     string
	URL      string
	User     string
	Password string

	// PoolPath is "<datacenter>/<cluster>/<pool>", case-insensitive.
	PoolPath string

	// Uplink names a distributed switch or overlay uplink. A "nsx." prefix
	// selects the overlay network manager.
	Uplink string

	IsNsxNetwork bool
	Sddc         string

	// IsVCenter is normally inferred from ServiceContent.About.ApiType but
	// can be forced for tests against a standalone-host simulator.
	IsVCenter bool

	// VmStore is a datastore path pattern containing "{host}", replaced by
	// the first DNS label of Host.
	VmStore string

	// Tenant is matched against the suffix of a VM name after '#'.
	Tenant string

	// ExcludeNetworkMask is matched by the network manager to ignore port
	// groups it does not own.
	ExcludeNetworkMask string

	KeepAliveMinutes int

	IgnoreCertificateErrors bool
	DebugVerbose            bool

	connectMu sync.Mutex
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("hypervisor config: host is required")
	}
	if c.User == "" || c.Password == "" {
		return fmt.Errorf("hypervisor config: user and password are required")
	}
	if c.PoolPath == "" {
		return fmt.Errorf("hypervisor config: poolPath is required")
	}
	if len(strings.Split(c.PoolPath, "/")) != 3 {
		return fmt.Errorf("hypervisor config: poolPath %q must be <datacenter>/<cluster>/<pool>", c.PoolPath)
	}
	return nil
}

// UsesOverlay reports whether the configured uplink selects the overlay
// (NSX) network manager variant.
func (c *Config) UsesOverlay() bool {
	return c.IsNsxNetwork || strings.HasPrefix(strings.ToLower(c.Uplink), "nsx.")
}

func (c *Config) keepAlive() time.Duration {
	if c.KeepAliveMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.KeepAliveMinutes) * time.Minute
}

// vmStoreFor substitutes "{host}" in VmStore with the first DNS label of
// Host.
func (c *Config) vmStoreFor() string {
	label := c.Host
	if idx := strings.Index(label, "."); idx >= 0 {
		label = label[:idx]
	}
	return strings.ReplaceAll(c.VmStore, "{host}", label)
}

// poolPathParts splits PoolPath into datacenter/cluster/pool.
func (c *Config) poolPathParts() (datacenter, cluster, pool string) {
	parts := strings.Split(c.PoolPath, "/")
	return parts[0], parts[1], parts[2]
}
