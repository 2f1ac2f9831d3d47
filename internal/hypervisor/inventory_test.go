package hypervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vmware/govmomi/vim25/types"
)

func TestOwnsVm(t *testing.T) {
	tests := []struct {
		name   string
		vmName string
		tenant string
		want   bool
	}{
		{"matching tenant suffix owned", "worker-1#tenantA", "tenantA", true},
		{"mismatched tenant suffix not owned", "worker-1#tenantB", "tenantA", false},
		{"no tag at all not owned", "worker-1", "tenantA", false},
		{"empty tenant requires empty suffix", "worker-1#", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ownsVm(tt.vmName, tt.tenant))
		})
	}
}

func TestVmTag(t *testing.T) {
	tests := []struct {
		name   string
		vmName string
		want   string
	}{
		{"tag present", "worker-1#ws-42", "ws-42"},
		{"no tag", "worker-1", ""},
		{"trailing hash", "worker-1#", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, vmTag(tt.vmName))
		})
	}
}

func TestPctOf(t *testing.T) {
	tests := []struct {
		name string
		used int64
		max  int64
		want int64
	}{
		{"half used", 50, 100, 50},
		{"zero max avoids divide by zero", 50, 0, 0},
		{"negative max avoids divide by zero", 50, -1, 0},
		{"fully used", 100, 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pctOf(tt.used, tt.max))
		})
	}
}

func TestDiskPathFromLayout(t *testing.T) {
	tests := []struct {
		name string
		l    *types.VirtualMachineFileLayoutEx
		want string
	}{
		{"nil layout yields empty path", nil, ""},
		{
			name: "picks the base vmdk over its flat and delta siblings",
			l: &types.VirtualMachineFileLayoutEx{
				File: []types.VirtualMachineFileLayoutExFileInfo{
					{Name: "[ds1] vm1/vm1-flat.vmdk"},
					{Name: "[ds1] vm1/vm1-000001-delta.vmdk"},
					{Name: "[ds1] vm1/vm1.vmdk"},
					{Name: "[ds1] vm1/vm1.vmx"},
				},
			},
			want: "[ds1] vm1/vm1.vmdk",
		},
		{
			name: "no vmdk entries yields empty path",
			l: &types.VirtualMachineFileLayoutEx{
				File: []types.VirtualMachineFileLayoutExFileInfo{
					{Name: "[ds1] vm1/vm1.vmx"},
				},
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, diskPathFromLayout(tt.l))
		})
	}
}

func TestMemInventoryLifecycle(t *testing.T) {
	store := newMemInventory()

	_, ok := store.Get("vm-1")
	assert.False(t, ok)

	store.Upsert(Vm{ID: "vm-1", Name: "one"})
	store.Upsert(Vm{ID: "vm-2", Name: "two"})

	v, ok := store.Get("vm-1")
	assert.True(t, ok)
	assert.Equal(t, "one", v.Name)
	assert.Len(t, store.All(), 2)

	store.Remove("vm-1")
	_, ok = store.Get("vm-1")
	assert.False(t, ok)
	assert.Len(t, store.All(), 1)
}

func TestMemInventoryReconcileEvictsStale(t *testing.T) {
	store := newMemInventory()
	store.Upsert(Vm{ID: "vm-1", Name: "stale"})
	store.Upsert(Vm{ID: "vm-2", Name: "kept"})

	store.Reconcile(map[string]Vm{
		"vm-2": {ID: "vm-2", Name: "kept-updated"},
		"vm-3": {ID: "vm-3", Name: "new"},
	})

	_, ok := store.Get("vm-1")
	assert.False(t, ok, "vm-1 was absent from observed and should be evicted")

	v2, ok := store.Get("vm-2")
	assert.True(t, ok)
	assert.Equal(t, "kept-updated", v2.Name)

	_, ok = store.Get("vm-3")
	assert.True(t, ok)

	assert.Len(t, store.All(), 2)
}
