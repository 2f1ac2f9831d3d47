// Package network implements the Network Manager variant: one
// of HostManager, DistributedManager, OverlayManager,
// selected at Connect time by endpoint kind and uplink configuration.
package network

import (
	"context"

	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/types"
)

// VlanProvider is an external VLAN allocator. This package ships only a
// no-op implementation; a real allocation policy lives outside it.
type VlanProvider interface {
	VlanFor(ctx context.Context, networkName string) (int32, error)
}

// NoopVlanProvider never allocates a VLAN; callers asking for a tag get 0.
type NoopVlanProvider struct{}

func (NoopVlanProvider) VlanFor(context.Context, string) (int32, error) { return 0, nil }

// Template is the subset of a VM template the network manager needs to
// provision port groups, mirroring hypervisor.VmTemplate without importing
// the parent package (which imports this one).
type Template struct {
	Name string
	Nics []Nic
}

type Nic struct {
	Network string
}

// Manager is the common contract implemented by Host/Distributed/Overlay
// variants. owner identifies the VM a port group is provisioned for or
// released from; it is the VM name rather than its managed reference,
// since Provision runs before the VM exists and therefore before
// vSphere has assigned it a reference.
type Manager interface {
	Initialize(ctx context.Context) error
	Provision(ctx context.Context, owner string, tmpl Template) error
	ProvisionAll(ctx context.Context, owner string, nics []Nic, useUplinkSwitch bool) error
	Unprovision(ctx context.Context, owner string) error
	UpdateEthernetCardBacking(ctx context.Context, owner string, card types.BaseVirtualEthernetCard, portGroupName string) error
	Clean(ctx context.Context) error
}

// Kind names which Manager variant a configuration selects.
type Kind int

const (
	KindHost Kind = iota
	KindDistributed
	KindOverlay
)

// SelectKind picks a Manager variant by endpoint kind and overlay use.
func SelectKind(isVCenter, usesOverlay bool) Kind {
	if !isVCenter {
		return KindHost
	}
	if usesOverlay {
		return KindOverlay
	}
	return KindDistributed
}

// updateEthernetCardBacking is shared by the Host, Distributed and Overlay variants:
// it rewrites an existing VirtualEthernetCard device's backing in place to
// target the given network, grounded on vm-operator's
// object.VirtualDeviceList.SelectByType / EthernetCardBackingInfo idiom.
func updateEthernetCardBacking(ctx context.Context, net object.NetworkReference, card types.BaseVirtualEthernetCard) error {
	backing, err := net.EthernetCardBackingInfo(ctx)
	if err != nil {
		return err
	}
	card.GetVirtualEthernetCard().Backing = backing
	return nil
}
