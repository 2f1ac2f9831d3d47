package network

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"
)

// DistributedManager is the Distributed variant: bound to a
// named distributed virtual switch's uuid, used on a vCenter cluster
// endpoint whose uplink names a standard DVS.
type DistributedManager struct {
	finder *find.Finder
	dvs    *object.DistributedVirtualSwitch
	uuid   string

	exclude string
	vlans   VlanProvider

	mu    sync.Mutex
	owned map[string][]string // vm name -> port group names it provisioned
}

func NewDistributedManager(finder *find.Finder, dvs *object.DistributedVirtualSwitch, excludeNetworkMask string, vlans VlanProvider) *DistributedManager {
	if vlans == nil {
		vlans = NoopVlanProvider{}
	}
	return &DistributedManager{finder: finder, dvs: dvs, exclude: excludeNetworkMask, vlans: vlans, owned: make(map[string][]string)}
}

func (m *DistributedManager) Initialize(ctx context.Context) error {
	var mdvs mo.DistributedVirtualSwitch
	if err := m.dvs.Properties(ctx, m.dvs.Reference(), []string{"uuid"}, &mdvs); err != nil {
		return fmt.Errorf("distributed network manager: fetch dvs uuid: %w", err)
	}
	m.uuid = mdvs.Uuid
	return nil
}

func (m *DistributedManager) Provision(ctx context.Context, owner string, tmpl Template) error {
	for _, nic := range tmpl.Nics {
		if err := m.ensurePortgroup(ctx, owner, nic.Network); err != nil {
			return err
		}
	}
	return nil
}

func (m *DistributedManager) ProvisionAll(ctx context.Context, owner string, nics []Nic, useUplinkSwitch bool) error {
	for _, nic := range nics {
		if err := m.ensurePortgroup(ctx, owner, nic.Network); err != nil {
			return err
		}
	}
	return nil
}

func (m *DistributedManager) ensurePortgroup(ctx context.Context, owner, name string) error {
	if name == "" {
		return nil
	}
	if _, err := m.finder.Network(ctx, name); err == nil {
		m.recordOwnership(owner, name)
		return nil // idempotent: already exists
	}

	vlan, err := m.vlans.VlanFor(ctx, name)
	if err != nil {
		return fmt.Errorf("distributed network manager: vlan lookup for %s: %w", name, err)
	}

	spec := []types.DVPortgroupConfigSpec{{
		Name: name,
		Type: string(types.DistributedVirtualPortgroupPortgroupTypeEarlyBinding),
		DefaultPortConfig: &types.VMwareDVSPortSetting{
			Vlan: &types.VmwareDistributedVirtualSwitchVlanIdSpec{
				VlanId: vlan,
			},
		},
	}}

	task, err := m.dvs.AddPortgroup(ctx, spec)
	if err != nil {
		return fmt.Errorf("distributed network manager: add portgroup %s: %w", name, err)
	}
	if _, err := task.WaitForResult(ctx); err != nil {
		return fmt.Errorf("distributed network manager: add portgroup %s task: %w", name, err)
	}
	m.recordOwnership(owner, name)
	return nil
}

// recordOwnership associates a provisioned portgroup with the VM that
// uses it, so Unprovision and Clean know which groups are still in use.
func (m *DistributedManager) recordOwnership(owner, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.owned[owner] {
		if g == name {
			return
		}
	}
	m.owned[owner] = append(m.owned[owner], name)
}

func (m *DistributedManager) Unprovision(ctx context.Context, owner string) error {
	m.mu.Lock()
	groups := m.owned[owner]
	delete(m.owned, owner)
	m.mu.Unlock()

	for _, g := range groups {
		pg, err := m.finder.Network(ctx, g)
		if err != nil {
			continue
		}
		dpg, ok := pg.(*object.DistributedVirtualPortgroup)
		if !ok {
			continue
		}
		task, err := dpg.Destroy(ctx)
		if err != nil {
			return fmt.Errorf("distributed network manager: destroy portgroup %s: %w", g, err)
		}
		if _, err := task.WaitForResult(ctx); err != nil {
			return fmt.Errorf("distributed network manager: destroy portgroup %s task: %w", g, err)
		}
	}
	return nil
}

func (m *DistributedManager) UpdateEthernetCardBacking(ctx context.Context, owner string, card types.BaseVirtualEthernetCard, portGroupName string) error {
	net, err := m.finder.Network(ctx, portGroupName)
	if err != nil {
		return fmt.Errorf("distributed network manager: find portgroup %s: %w", portGroupName, err)
	}
	m.recordOwnership(owner, portGroupName)
	return updateEthernetCardBacking(ctx, net, card)
}

// Clean sweeps orphaned port groups on this switch, invoked every other
// session-monitor tick.
func (m *DistributedManager) Clean(ctx context.Context) error {
	pc := property.DefaultCollector(m.dvs.Client())

	var mdvs mo.DistributedVirtualSwitch
	if err := pc.RetrieveOne(ctx, m.dvs.Reference(), []string{"portgroup"}, &mdvs); err != nil {
		return fmt.Errorf("distributed network manager: fetch portgroups: %w", err)
	}

	var pgs []mo.DistributedVirtualPortgroup
	if len(mdvs.Portgroup) > 0 {
		if err := pc.Retrieve(ctx, mdvs.Portgroup, []string{"name", "config"}, &pgs); err != nil {
			return fmt.Errorf("distributed network manager: retrieve portgroups: %w", err)
		}
	}

	m.mu.Lock()
	inUse := make(map[string]bool)
	for _, groups := range m.owned {
		for _, g := range groups {
			inUse[g] = true
		}
	}
	m.mu.Unlock()

	for _, pg := range pgs {
		if m.exclude != "" && strings.Contains(pg.Name, m.exclude) {
			continue
		}
		if inUse[pg.Name] {
			continue
		}
		obj := object.NewDistributedVirtualPortgroup(m.dvs.Client(), pg.Self)
		task, err := obj.Destroy(ctx)
		if err != nil {
			continue
		}
		_, _ = task.WaitForResult(ctx)
	}
	return nil
}
