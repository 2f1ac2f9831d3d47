package network

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
)

// HostManager is the Host variant: bound to a standalone
// host's configManager.networkSystem, used when the endpoint is not a
// vCenter cluster.
type HostManager struct {
	finder  *find.Finder
	host    *object.HostSystem
	netSys  *object.HostNetworkSystem
	exclude string

	mu    sync.Mutex
	owned map[string][]string // vm name -> port group names it provisioned
}

func NewHostManager(finder *find.Finder, host *object.HostSystem, excludeNetworkMask string) *HostManager {
	return &HostManager{finder: finder, host: host, exclude: excludeNetworkMask, owned: make(map[string][]string)}
}

func (m *HostManager) Initialize(ctx context.Context) error {
	netSys, err := m.host.ConfigManager().NetworkSystem(ctx)
	if err != nil {
		return fmt.Errorf("host network manager: fetch network system: %w", err)
	}
	m.netSys = netSys
	return nil
}

func (m *HostManager) Provision(ctx context.Context, owner string, tmpl Template) error {
	for _, nic := range tmpl.Nics {
		if err := m.ensurePortGroup(ctx, owner, nic.Network); err != nil {
			return err
		}
	}
	return nil
}

func (m *HostManager) ProvisionAll(ctx context.Context, owner string, nics []Nic, useUplinkSwitch bool) error {
	for _, nic := range nics {
		if err := m.ensurePortGroup(ctx, owner, nic.Network); err != nil {
			return err
		}
	}
	return nil
}

// ensurePortGroup is idempotent: an "already exists" error from
// AddPortGroup is treated as success, so no pre-check is needed.
func (m *HostManager) ensurePortGroup(ctx context.Context, owner, name string) error {
	if name == "" {
		return nil
	}
	spec := types.HostPortGroupSpec{
		Name:        name,
		VlanId:      0,
		VswitchName: "vSwitch0",
		Policy:      types.HostNetworkPolicy{},
	}
	if err := m.netSys.AddPortGroup(ctx, spec); err != nil && !alreadyExists(err) {
		return fmt.Errorf("host network manager: add port group %s: %w", name, err)
	}
	m.recordOwnership(owner, name)
	return nil
}

// recordOwnership associates a provisioned port group with the VM that
// uses it, so Unprovision and Clean know which groups are still in use.
func (m *HostManager) recordOwnership(owner, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.owned[owner] {
		if g == name {
			return
		}
	}
	m.owned[owner] = append(m.owned[owner], name)
}

func alreadyExists(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}

func (m *HostManager) Unprovision(ctx context.Context, owner string) error {
	m.mu.Lock()
	groups := m.owned[owner]
	delete(m.owned, owner)
	m.mu.Unlock()

	for _, g := range groups {
		if err := m.netSys.RemovePortGroup(ctx, g); err != nil {
			return fmt.Errorf("host network manager: remove port group %s: %w", g, err)
		}
	}
	return nil
}

func (m *HostManager) UpdateEthernetCardBacking(ctx context.Context, owner string, card types.BaseVirtualEthernetCard, portGroupName string) error {
	net, err := m.finder.Network(ctx, portGroupName)
	if err != nil {
		return fmt.Errorf("host network manager: find network %s: %w", portGroupName, err)
	}
	m.recordOwnership(owner, portGroupName)
	return updateEthernetCardBacking(ctx, net, card)
}

// Clean removes port groups on the host that no VM is recorded as owning;
// port groups whose name contains the exclude mask are left alone.
func (m *HostManager) Clean(ctx context.Context) error {
	var mhs mo.HostSystem
	if err := m.host.Properties(ctx, m.host.Reference(), []string{"config.network.portgroup"}, &mhs); err != nil {
		return fmt.Errorf("host network manager: fetch port groups: %w", err)
	}
	if mhs.Config == nil || mhs.Config.Network == nil {
		return nil
	}

	m.mu.Lock()
	inUse := make(map[string]bool)
	for _, groups := range m.owned {
		for _, g := range groups {
			inUse[g] = true
		}
	}
	m.mu.Unlock()

	for _, pg := range mhs.Config.Network.Portgroup {
		name := pg.Spec.Name
		if m.exclude != "" && strings.Contains(name, m.exclude) {
			continue
		}
		if inUse[name] {
			continue
		}
		if err := m.netSys.RemovePortGroup(ctx, name); err != nil && !notFound(err) {
			return fmt.Errorf("host network manager: clean port group %s: %w", name, err)
		}
	}
	return nil
}

func notFound(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "not found")
}
