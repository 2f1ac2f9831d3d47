package hypervisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/mo"
)

// resolver is the Reference Resolver: it turns the configured
// pool path into the datacenter/computeResource/resourcePool/folder object
// handles every other component needs, and answers name/ref lookups for
// VMs, networks and datastores against that scope.
type resolver struct {
	finder *find.Finder

	datacenter      *object.Datacenter
	computeResource *object.ComputeResource

	// cluster is computeResource re-typed as a ClusterComputeResource when
	// the endpoint is a vCenter cluster; nil for a standalone host.
	cluster *object.ClusterComputeResource
	// host is the first HostSystem under computeResource when the
	// endpoint is a standalone host; nil on a cluster endpoint.
	host *object.HostSystem

	resourcePool *object.ResourcePool
	vmFolder     *object.Folder
}

// newResolver resolves "<datacenter>/<computeResource>/<pool>" into live
// handles. Datacenter and compute resource names compare case-insensitively;
// the pool name is looked up as given. The compute resource is
// resolved generically: a standalone host's ComputeResource and a vCenter
// cluster's ClusterComputeResource both match, since an endpoint may be
// either.
func newResolver(ctx context.Context, a *adapter, cfg *Config) (*resolver, error) {
	finder := find.NewFinder(a.vim, false)

	dcName, crName, poolName := cfg.poolPathParts()

	dc, err := resolveDatacenter(ctx, finder, dcName)
	if err != nil {
		return nil, a.wrapFault("find datacenter "+dcName, err)
	}
	finder.SetDatacenter(dc)

	cr, err := resolveComputeResource(ctx, finder, crName)
	if err != nil {
		return nil, a.wrapFault("find compute resource "+crName, err)
	}

	var mcr mo.ComputeResource
	if err := cr.Properties(ctx, cr.Reference(), []string{"host", "resourcePool"}, &mcr); err != nil {
		return nil, a.wrapFault("fetch compute resource properties "+crName, err)
	}
	if mcr.ResourcePool == nil {
		return nil, a.wrapFault("find resource pool "+poolName, fmt.Errorf("compute resource %s has no root resource pool", cr.Name()))
	}
	rootPool := object.NewResourcePool(cr.Client(), *mcr.ResourcePool)

	pool, err := resolvePool(ctx, finder, cr, rootPool, poolName)
	if err != nil {
		return nil, a.wrapFault("find resource pool "+poolName, err)
	}

	var cluster *object.ClusterComputeResource
	var host *object.HostSystem
	if cr.Reference().Type == "ClusterComputeResource" {
		cluster = object.NewClusterComputeResource(cr.Client(), cr.Reference())
	} else if len(mcr.Host) > 0 {
		host = object.NewHostSystem(cr.Client(), mcr.Host[0])
	}

	vmFolder, err := dc.Folders(ctx)
	if err != nil {
		return nil, a.wrapFault("fetch datacenter folders", err)
	}

	return &resolver{
		finder:          finder,
		datacenter:      dc,
		computeResource: cr,
		cluster:         cluster,
		host:            host,
		resourcePool:    pool,
		vmFolder:        vmFolder.VmFolder,
	}, nil
}

// resolveDatacenter tries the finder's lookup of name, then a
// case-insensitive comparison against every datacenter, and falls back to
// the first datacenter in inventory order when neither matches, so a stale
// or misconfigured pool path degrades rather than aborting Connect.
func resolveDatacenter(ctx context.Context, finder *find.Finder, name string) (*object.Datacenter, error) {
	if dc, err := finder.Datacenter(ctx, name); err == nil {
		return dc, nil
	}
	dcs, err := finder.DatacenterList(ctx, "*")
	if err != nil {
		return nil, err
	}
	if len(dcs) == 0 {
		return nil, fmt.Errorf("no datacenter found")
	}
	for _, dc := range dcs {
		if strings.EqualFold(dc.Name(), name) {
			return dc, nil
		}
	}
	return dcs[0], nil
}

// resolveComputeResource tries the finder's lookup of name within the
// finder's current datacenter, then a case-insensitive comparison against
// every compute resource, and falls back to the first compute resource
// found when neither matches. ComputeResource is the generic type
// here on purpose: a standalone host's ComputeResource and a vCenter
// cluster's ClusterComputeResource are both valid matches, since this
// client can be pointed at either kind of endpoint.
func resolveComputeResource(ctx context.Context, finder *find.Finder, name string) (*object.ComputeResource, error) {
	if cr, err := finder.ComputeResource(ctx, name); err == nil {
		return cr, nil
	}
	crs, err := finder.ComputeResourceList(ctx, "*")
	if err != nil {
		return nil, err
	}
	if len(crs) == 0 {
		return nil, fmt.Errorf("no compute resource found")
	}
	for _, cr := range crs {
		if strings.EqualFold(cr.Name(), name) {
			return cr, nil
		}
	}
	return crs[0], nil
}

// resolvePool accepts either the compute resource's own top-level pool
// (named "Resources") or a named child pool under it.
func resolvePool(ctx context.Context, finder *find.Finder, cr *object.ComputeResource, root *object.ResourcePool, poolName string) (*object.ResourcePool, error) {
	if poolName == "" || poolName == "Resources" {
		return root, nil
	}

	pools, err := finder.ResourcePoolList(ctx, cr.InventoryPath+"/Resources/"+poolName)
	if err != nil {
		return nil, err
	}
	if len(pools) == 0 {
		return nil, fmt.Errorf("resource pool %q not found under compute resource %s", poolName, cr.Name())
	}
	return pools[0], nil
}

func (r *resolver) findVM(ctx context.Context, name string) (*object.VirtualMachine, error) {
	return r.finder.VirtualMachine(ctx, name)
}

func (r *resolver) networkByName(ctx context.Context, name string) (object.NetworkReference, error) {
	return r.finder.Network(ctx, name)
}

func (r *resolver) datastoreByName(ctx context.Context, name string) (*object.Datastore, error) {
	return r.finder.Datastore(ctx, name)
}

func (r *resolver) defaultFolder() *object.Folder {
	return r.vmFolder
}
