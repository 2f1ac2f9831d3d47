package hypervisor

import (
	"fmt"
	"strings"
	"time"

	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/types"
)

// PowerState narrows vSphere's power states to the two this client cares
// about; Suspended is treated as non-Running.
type PowerState string

const (
	PowerOff     PowerState = "Off"
	PowerRunning PowerState = "Running"
)

func powerStateFrom(s types.VirtualMachinePowerState) PowerState {
	if s == types.VirtualMachinePowerStatePoweredOn {
		return PowerRunning
	}
	return PowerOff
}

// Status is the lifecycle stage of a Vm as tracked by this client, not by
// the hypervisor itself.
type Status string

const (
	StatusInitialized Status = "initialized"
	StatusDeployed     Status = "deployed"
)

// ManagedRef is the opaque handle the hypervisor SDK uses to identify a
// remote object, stringified as "type|value".
type ManagedRef struct {
	Type  string
	Value string
}

func RefOf(r types.ManagedObjectReference) ManagedRef {
	return ManagedRef{Type: r.Type, Value: r.Value}
}

func (r ManagedRef) MoRef() types.ManagedObjectReference {
	return types.ManagedObjectReference{Type: r.Type, Value: r.Value}
}

func (r ManagedRef) String() string {
	return r.Type + "|" + r.Value
}

func (r ManagedRef) IsZero() bool {
	return r.Type == "" && r.Value == ""
}

// DatastorePath wraps govmomi's object.DatastorePath and adds the
// folder/file split the datastore browser needs.
type DatastorePath struct {
	object.DatastorePath
}

// ParseDatastorePath parses "[datastore] top/sub/dir/file".
func ParseDatastorePath(s string) (DatastorePath, bool) {
	var p DatastorePath
	if !p.FromString(s) {
		return p, false
	}
	return p, true
}

// TopLevelFolder returns the first path segment after the datastore name.
func (p DatastorePath) TopLevelFolder() string {
	parts := strings.SplitN(strings.Trim(p.Path, "/"), "/", 2)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// FolderPath returns everything but the last path segment (the file name).
func (p DatastorePath) FolderPath() string {
	idx := strings.LastIndex(p.Path, "/")
	if idx < 0 {
		return ""
	}
	return p.Path[:idx]
}

// File returns the last path segment, empty if the path names a folder.
func (p DatastorePath) File() string {
	idx := strings.LastIndex(p.Path, "/")
	if idx < 0 {
		return p.Path
	}
	return p.Path[idx+1:]
}

// VmQuestion models a pending interactive prompt raised by the hypervisor.
type VmQuestion struct {
	ID            string
	Prompt        string
	DefaultChoice string
	Choices       []string
}

// VmTask is the caller-visible progress of the single active long-running
// operation against a Vm.
type VmTask struct {
	Name        string
	WhenCreated time.Time
	Progress    int32 // -1 error, 0-99 in progress, 100 terminal success
}

// Vm is this client's view of a single virtual machine.
type Vm struct {
	ID       string
	Name     string
	Host     string
	Path     string
	DiskPath string
	State    PowerState
	Ref      ManagedRef
	Stats    string
	Status   Status
	Question *VmQuestion
	Task     *VmTask
}

// VmDisk declares one virtual disk in a VmTemplate.
type VmDisk struct {
	Path       string
	SizeGB     int32
	Controller string // lsiLogic, busLogic, ...
}

// VmNic declares one NIC in a VmTemplate.
type VmNic struct {
	Network string
}

// VmTemplate is the declarative input to Deploy.
type VmTemplate struct {
	Name            string
	GuestID         string
	CPU             int32
	MemoryMB        int32
	Disks           []VmDisk
	Nics            []VmNic
	ISO             string
	GuestInfo       map[string]string
	AutoStart       bool
	HostAffinityTag string
}

// VmKeyValue is the input to Change: a dialectal setting plus optional
// device-label suffix, split on ':'.
type VmKeyValue struct {
	Key   string // iso, net, eth, boot, guest
	Value string
}

func SplitChangeValue(raw string) (value, label string) {
	idx := strings.LastIndex(raw, ":")
	if idx < 0 {
		return raw, ""
	}
	return raw[:idx], raw[idx+1:]
}

func (r ManagedRef) GoString() string {
	return fmt.Sprintf("ManagedRef{%s}", r.String())
}
