package hypervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vmware/govmomi/vim25/types"
)

func TestPowerStateFrom(t *testing.T) {
	tests := []struct {
		name string
		in   types.VirtualMachinePowerState
		want PowerState
	}{
		{"powered on maps to running", types.VirtualMachinePowerStatePoweredOn, PowerRunning},
		{"powered off maps to off", types.VirtualMachinePowerStatePoweredOff, PowerOff},
		{"suspended maps to off", types.VirtualMachinePowerStateSuspended, PowerOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, powerStateFrom(tt.in))
		})
	}
}

func TestManagedRefRoundTrip(t *testing.T) {
	ref := types.ManagedObjectReference{Type: "VirtualMachine", Value: "vm-42"}
	mr := RefOf(ref)

	assert.Equal(t, "VirtualMachine", mr.Type)
	assert.Equal(t, "vm-42", mr.Value)
	assert.Equal(t, ref, mr.MoRef())
	assert.Equal(t, "VirtualMachine|vm-42", mr.String())
	assert.False(t, mr.IsZero())
	assert.True(t, ManagedRef{}.IsZero())
}

func TestParseDatastorePath(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		ok         bool
		topLevel   string
		folderPath string
		file       string
	}{
		{
			name:       "datastore file three levels deep",
			in:         "[datastore1] vmtemplates/myvm/myvm.vmx",
			ok:         true,
			topLevel:   "vmtemplates",
			folderPath: "vmtemplates/myvm",
			file:       "myvm.vmx",
		},
		{
			name:       "datastore top-level file",
			in:         "[datastore1] myvm.vmx",
			ok:         true,
			topLevel:   "myvm.vmx",
			folderPath: "",
			file:       "myvm.vmx",
		},
		{
			name: "malformed path has no brackets",
			in:   "not-a-datastore-path",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := ParseDatastorePath(tt.in)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.topLevel, p.TopLevelFolder())
			assert.Equal(t, tt.folderPath, p.FolderPath())
			assert.Equal(t, tt.file, p.File())
		})
	}
}

func TestSplitChangeValue(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantValue string
		wantLabel string
	}{
		{"no label", "/iso/path.iso", "/iso/path.iso", ""},
		{"value with label", "/iso/path.iso:cdrom-1", "/iso/path.iso", "cdrom-1"},
		{"value is empty with label", ":eth0", "", "eth0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, label := SplitChangeValue(tt.raw)
			assert.Equal(t, tt.wantValue, value)
			assert.Equal(t, tt.wantLabel, label)
		})
	}
}
