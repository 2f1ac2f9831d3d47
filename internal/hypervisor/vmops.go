package hypervisor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/kubev2v/hypervisor-client/internal/hypervisor/network"
)

// VM Operations Surface. Every method here begins by calling Connect, so
// callers never need to call it themselves.

// Find reloads the cache and returns every Vm whose id or name contains
// term; an empty term returns all.
func (c *Client) Find(ctx context.Context, term string) ([]Vm, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	a, r, store := c.adapter, c.resolver, c.store
	c.mu.Unlock()

	if err := reloadVmCache(ctx, a, r, store, c.cfg.Tenant, c.cfg.Host, c.log); err != nil {
		return nil, err
	}

	var out []Vm
	for _, v := range store.All() {
		if term == "" || strings.Contains(v.ID, term) || strings.Contains(v.Name, term) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (c *Client) vmObjectFor(v Vm) *object.VirtualMachine {
	return object.NewVirtualMachine(c.adapter.vim, v.Ref.MoRef())
}

func (c *Client) mustVm(id string) (Vm, error) {
	v, ok := c.store.Get(id)
	if !ok {
		return Vm{}, &NotFoundError{ID: id}
	}
	return v, nil
}

// Start issues power-on if not already running, awaits it, and re-pushes
// guestinfo annotations via Reconfigure("guest", "", "").
func (c *Client) Start(ctx context.Context, id string) (Vm, error) {
	if err := c.Connect(ctx); err != nil {
		return Vm{}, err
	}

	c.mu.Lock()
	v, ok := c.store.Get(id)
	c.mu.Unlock()
	if !ok {
		return Vm{}, &NotFoundError{ID: id}
	}

	if v.State != PowerRunning {
		vmObj := c.vmObjectFor(v)
		task, err := vmObj.PowerOn(ctx)
		if err != nil {
			return Vm{}, c.adapter.wrapFault("power on "+id, err)
		}
		if _, err := waitTask(ctx, task); err != nil && !isAlreadyInDesiredPowerState(err, true) {
			return Vm{}, err
		}
		v.State = PowerRunning
		c.store.Upsert(v)
	}

	return c.Reconfigure(ctx, id, "guest", "", "")
}

// Stop issues power-off if running, awaits it, idempotent on "already off".
func (c *Client) Stop(ctx context.Context, id string) (Vm, error) {
	if err := c.Connect(ctx); err != nil {
		return Vm{}, err
	}

	v, err := c.mustVm(id)
	if err != nil {
		return Vm{}, err
	}

	if v.State == PowerRunning {
		vmObj := c.vmObjectFor(v)
		task, err := vmObj.PowerOff(ctx)
		if err != nil {
			return Vm{}, c.adapter.wrapFault("power off "+id, err)
		}
		if _, err := waitTask(ctx, task); err != nil && !isAlreadyInDesiredPowerState(err, false) {
			return Vm{}, err
		}
	}

	v.State = PowerOff
	c.store.Upsert(v)
	return v, nil
}

const rootSnapName = "Root Snap"

// Save refuses unless the disk path carries the VM's workspace tag, then
// creates a timestamped "Root Snap", consolidating away any prior one.
func (c *Client) Save(ctx context.Context, id string) (Vm, error) {
	if err := c.Connect(ctx); err != nil {
		return Vm{}, err
	}

	v, err := c.mustVm(id)
	if err != nil {
		return Vm{}, err
	}

	tag := vmTag(v.Name)
	if tag != "" && !strings.Contains(v.DiskPath, tag) {
		return Vm{}, &InvalidArgumentError{Reason: fmt.Sprintf("vm %s disk path %q does not carry workspace tag %q", id, v.DiskPath, tag)}
	}

	vmObj := c.vmObjectFor(v)

	prevSnap, _ := vmObj.FindSnapshot(ctx, rootSnapName)

	desc := time.Now().UTC().Format(time.RFC3339)
	snapTask, err := vmObj.CreateSnapshotEx(ctx, rootSnapName, desc, false, nil)
	if err != nil {
		return Vm{}, c.adapter.wrapFault("create snapshot "+id, err)
	}
	if _, err := waitTask(ctx, snapTask); err != nil {
		return Vm{}, err
	}

	if prevSnap != nil {
		consolidate := true
		removeTask, err := vmObj.RemoveSnapshot(ctx, prevSnap.Value, false, &consolidate)
		if err != nil {
			return Vm{}, c.adapter.wrapFault("remove previous snapshot "+id, err)
		}

		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
			return Vm{}, ctx.Err()
		}

		info, err := peekTaskInfo(ctx, c.tasks.pc, removeTask.Reference())
		if err != nil {
			return Vm{}, c.adapter.wrapFault("poll remove snapshot "+id, err)
		}
		switch info.State {
		case types.TaskInfoStateQueued, types.TaskInfoStateRunning:
			// Consolidation of a large root disk can run well past the
			// grace wait; track the rest asynchronously instead of
			// blocking Save on it.
			c.tasks.registerTask(id, "remove-snapshot", removeTask.Reference())
		case types.TaskInfoStateError:
			return Vm{}, taskErrorFrom(info)
		}
	}

	return v, nil
}

// Revert reverts to the current snapshot and restarts the VM if it was
// running beforehand.
func (c *Client) Revert(ctx context.Context, id string) (Vm, error) {
	if err := c.Connect(ctx); err != nil {
		return Vm{}, err
	}

	v, err := c.mustVm(id)
	if err != nil {
		return Vm{}, err
	}
	wasRunning := v.State == PowerRunning

	vmObj := c.vmObjectFor(v)
	task, err := vmObj.RevertToCurrentSnapshot(ctx, false)
	if err != nil {
		return Vm{}, c.adapter.wrapFault("revert "+id, err)
	}
	if _, err := waitTask(ctx, task); err != nil {
		return Vm{}, err
	}

	v.State = PowerOff
	c.store.Upsert(v)

	if wasRunning {
		return c.Start(ctx, id)
	}
	return v, nil
}

// Delete stops, unprovisions networking, unregisters the VM, deletes its
// datastore folder, and removes it from the cache (retried once on a
// race).
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}

	v, err := c.mustVm(id)
	if err != nil {
		return err
	}

	if v.State == PowerRunning {
		if _, err := c.Stop(ctx, id); err != nil {
			return err
		}
	}

	vmObj := c.vmObjectFor(v)

	if c.netMgr != nil {
		if err := c.netMgr.Unprovision(ctx, v.Name); err != nil {
			c.log.Warnw("unprovision network failed", "vm", id, "error", err)
		}
	}

	if err := vmObj.Unregister(ctx); err != nil {
		return c.adapter.wrapFault("unregister "+id, err)
	}

	folder := v.Path
	if idx := strings.LastIndex(folder, "/"); idx >= 0 {
		folder = folder[:idx]
	}
	if folder != "" {
		fm := object.NewFileManager(c.adapter.vim)
		delTask, err := fm.DeleteDatastoreFile(ctx, folder, c.resolver.datacenter)
		if err != nil {
			return c.adapter.wrapFault("delete vm folder "+folder, err)
		}
		if _, err := waitTask(ctx, delTask); err != nil {
			c.log.Warnw("delete vm folder task failed", "vm", id, "error", err)
		}
	}

	c.store.Remove(id)
	if _, stillThere := c.store.Get(id); stillThere {
		c.log.Warnw("cache remove raced", "error", &RaceRetryError{ID: id})
		time.Sleep(100 * time.Millisecond)
		c.store.Remove(id)
	}

	v.Status = StatusInitialized
	return nil
}

// Deploy provisions networking, builds a VirtualMachineConfigSpec from the
// template, creates the VM, loads it into the cache, snapshots it, and
// optionally starts it.
func (c *Client) Deploy(ctx context.Context, tmpl VmTemplate) (Vm, error) {
	if err := c.Connect(ctx); err != nil {
		return Vm{}, err
	}

	if err := c.netMgr.Provision(ctx, tmpl.Name, toNetworkTemplate(tmpl)); err != nil {
		return Vm{}, err
	}

	spec, err := c.buildConfigSpec(ctx, tmpl)
	if err != nil {
		return Vm{}, err
	}

	task, err := c.resolver.vmFolder.CreateVM(ctx, spec, c.resolver.resourcePool, nil)
	if err != nil {
		return Vm{}, c.adapter.wrapFault("create vm "+tmpl.Name, err)
	}
	info, err := waitTask(ctx, task)
	if err != nil {
		return Vm{}, err
	}

	ref, ok := info.Result.(types.ManagedObjectReference)
	if !ok {
		return Vm{}, fmt.Errorf("create vm %s: unexpected task result %v", tmpl.Name, info.Result)
	}

	id := loadVmUUID(ctx, c.adapter, ref)
	v := Vm{
		ID:       id,
		Name:     tmpl.Name,
		Host:     c.cfg.Host,
		Ref:      RefOf(ref),
		State:    PowerOff,
		Status:   StatusDeployed,
		DiskPath: c.cfg.vmStoreFor() + "/" + tmpl.Name,
	}
	c.store.Upsert(v)

	vmObj := object.NewVirtualMachine(c.adapter.vim, ref)
	snapTask, err := vmObj.CreateSnapshotEx(ctx, rootSnapName, time.Now().UTC().Format(time.RFC3339), false, nil)
	if err == nil {
		_, _ = waitTask(ctx, snapTask)
	}

	if tmpl.AutoStart {
		return c.Start(ctx, id)
	}
	return v, nil
}

// buildConfigSpec translates a VmTemplate into a VirtualMachineConfigSpec:
// one disk device per VmDisk on a shared SCSI controller, one ethernet
// card per VmNic backed by the network manager, and an ISO-backed CD-ROM
// when requested.
func (c *Client) buildConfigSpec(ctx context.Context, tmpl VmTemplate) (types.VirtualMachineConfigSpec, error) {
	spec := types.VirtualMachineConfigSpec{
		Name:     tmpl.Name,
		GuestId:  tmpl.GuestID,
		NumCPUs:  tmpl.CPU,
		MemoryMB: int64(tmpl.MemoryMB),
		Files: &types.VirtualMachineFileInfo{
			VmPathName: fmt.Sprintf("[%s] %s", datastoreNameFromPath(c.cfg.vmStoreFor()), tmpl.Name),
		},
	}

	scsiKey := int32(1000)
	spec.DeviceChange = append(spec.DeviceChange, &types.VirtualDeviceConfigSpec{
		Operation: types.VirtualDeviceConfigSpecOperationAdd,
		Device: &types.VirtualLsiLogicController{
			VirtualSCSIController: types.VirtualSCSIController{
				VirtualController: types.VirtualController{
					VirtualDevice: types.VirtualDevice{Key: scsiKey},
				},
			},
		},
	})

	for i, disk := range tmpl.Disks {
		unit := int32(i)
		spec.DeviceChange = append(spec.DeviceChange, &types.VirtualDeviceConfigSpec{
			Operation:     types.VirtualDeviceConfigSpecOperationAdd,
			FileOperation: types.VirtualDeviceConfigSpecFileOperationCreate,
			Device: &types.VirtualDisk{
				CapacityInKB: int64(disk.SizeGB) * 1024 * 1024,
				VirtualDevice: types.VirtualDevice{
					Key:           int32(2000 + i),
					ControllerKey: scsiKey,
					UnitNumber:    &unit,
					Backing: &types.VirtualDiskFlatVer2BackingInfo{
						DiskMode:        string(types.VirtualDiskModePersistent),
						ThinProvisioned: types.NewBool(true),
					},
				},
			},
		})
	}

	for i, nic := range tmpl.Nics {
		net, err := c.resolver.networkByName(ctx, nic.Network)
		if err != nil {
			return spec, c.adapter.wrapFault("find network "+nic.Network, err)
		}
		backing, err := net.EthernetCardBackingInfo(ctx)
		if err != nil {
			return spec, c.adapter.wrapFault("backing for network "+nic.Network, err)
		}
		spec.DeviceChange = append(spec.DeviceChange, &types.VirtualDeviceConfigSpec{
			Operation: types.VirtualDeviceConfigSpecOperationAdd,
			Device: &types.VirtualVmxnet3{
				VirtualVmxnet: types.VirtualVmxnet{
					VirtualEthernetCard: types.VirtualEthernetCard{
						VirtualDevice: types.VirtualDevice{
							Key:     int32(4000 + i),
							Backing: backing,
						},
						AddressType: string(types.VirtualEthernetCardMacTypeGenerated),
					},
				},
			},
		})
	}

	if tmpl.ISO != "" {
		spec.DeviceChange = append(spec.DeviceChange, &types.VirtualDeviceConfigSpec{
			Operation: types.VirtualDeviceConfigSpecOperationAdd,
			Device: &types.VirtualCdrom{
				VirtualDevice: types.VirtualDevice{
					Key: 3000,
					Backing: &types.VirtualCdromIsoBackingInfo{
						VirtualDeviceFileBackingInfo: types.VirtualDeviceFileBackingInfo{FileName: tmpl.ISO},
					},
					Connectable: &types.VirtualDeviceConnectInfo{Connected: true, StartConnected: true},
				},
			},
		})
	}

	if len(tmpl.GuestInfo) > 0 {
		for k, val := range tmpl.GuestInfo {
			spec.ExtraConfig = append(spec.ExtraConfig, &types.OptionValue{Key: "guestinfo." + k, Value: val})
		}
	}

	return spec, nil
}

func datastoreNameFromPath(path string) string {
	trimmed := strings.Trim(path, "/")
	parts := strings.SplitN(trimmed, "/", 2)
	return parts[0]
}

func loadVmUUID(ctx context.Context, a *adapter, ref types.ManagedObjectReference) string {
	// Best-effort: a freshly created VM's config.uuid is retrieved via the
	// property collector; fall back to a locally generated id only if that
	// lookup fails, since a stable hypervisor-issued id is preferred
	// whenever one is available.
	vmObj := object.NewVirtualMachine(a.vim, ref)
	var uuidProp struct {
		Config *types.VirtualMachineConfigInfo
	}
	if err := vmObj.Properties(ctx, ref, []string{"config.uuid"}, &uuidProp); err == nil && uuidProp.Config != nil {
		return uuidProp.Config.Uuid
	}
	return uuid.NewString()
}

func toNetworkTemplate(tmpl VmTemplate) network.Template {
	nt := network.Template{Name: tmpl.Name}
	for _, n := range tmpl.Nics {
		nt.Nics = append(nt.Nics, network.Nic{Network: n.Network})
	}
	return nt
}

// Change splits value on ':' (tail is an optional device label) and
// dispatches to Reconfigure.
func (c *Client) Change(ctx context.Context, id string, kv VmKeyValue) (Vm, error) {
	value, label := SplitChangeValue(kv.Value)
	return c.Reconfigure(ctx, id, kv.Key, label, value)
}

var blankDiskPattern = regexp.MustCompile(`^blank-(\d+)([^.]+)`)

// Reconfigure dispatches on feature and issues a single reconfigure RPC,
// returning the Vm as held in the cache; it is not re-read from the
// hypervisor afterwards.
func (c *Client) Reconfigure(ctx context.Context, id, feature, label, value string) (Vm, error) {
	if err := c.Connect(ctx); err != nil {
		return Vm{}, err
	}

	v, err := c.mustVm(id)
	if err != nil {
		return Vm{}, err
	}
	vmObj := c.vmObjectFor(v)

	devices, err := vmObj.Device(ctx)
	if err != nil {
		return Vm{}, c.adapter.wrapFault("list devices "+id, err)
	}

	spec := types.VirtualMachineConfigSpec{}

	switch feature {
	case "iso":
		cdrom, err := selectDevice(devices, (*types.VirtualCdrom)(nil), label)
		if err != nil {
			return Vm{}, err
		}
		c2 := cdrom.(*types.VirtualCdrom)
		c2.Backing = &types.VirtualCdromIsoBackingInfo{
			VirtualDeviceFileBackingInfo: types.VirtualDeviceFileBackingInfo{FileName: value},
		}
		c2.Connectable = &types.VirtualDeviceConnectInfo{Connected: true, StartConnected: true}
		spec.DeviceChange = append(spec.DeviceChange, &types.VirtualDeviceConfigSpec{
			Device:    c2,
			Operation: types.VirtualDeviceConfigSpecOperationEdit,
		})

	case "net", "eth":
		card, err := selectDevice(devices, (*types.VirtualEthernetCard)(nil), label)
		if err != nil {
			return Vm{}, err
		}
		base := card.(types.BaseVirtualEthernetCard)
		eth := base.GetVirtualEthernetCard()
		if strings.HasPrefix(value, "_none_") {
			eth.Connectable = &types.VirtualDeviceConnectInfo{Connected: false, StartConnected: false}
		} else {
			if err := c.netMgr.UpdateEthernetCardBacking(ctx, v.Name, base, value); err != nil {
				return Vm{}, err
			}
			eth.Connectable = &types.VirtualDeviceConnectInfo{Connected: true, StartConnected: true}
		}
		spec.DeviceChange = append(spec.DeviceChange, &types.VirtualDeviceConfigSpec{
			Device:    card,
			Operation: types.VirtualDeviceConfigSpecOperationEdit,
		})

	case "boot":
		delaySec, _ := strconv.Atoi(value)
		spec.BootOptions = &types.VirtualMachineBootOptions{BootDelay: int64(delaySec) * 1000}

	case "guest":
		var mvm mo.VirtualMachine
		if err := vmObj.Properties(ctx, vmObj.Reference(), []string{"config.annotation"}, &mvm); err != nil {
			return Vm{}, c.adapter.wrapFault("read annotation "+id, err)
		}
		ann := value
		if mvm.Config != nil {
			ann = mvm.Config.Annotation + value
		}
		if !strings.HasSuffix(ann, "\n") {
			ann += "\n"
		}
		spec.Annotation = ann
		if v.State == PowerRunning {
			if err := c.pushGuestInfo(ctx, vmObj, v, ann); err != nil {
				return Vm{}, err
			}
		}

	default:
		return Vm{}, &InvalidArgumentError{Reason: fmt.Sprintf("unknown reconfigure feature %q", feature)}
	}

	task, err := vmObj.Reconfigure(ctx, spec)
	if err != nil {
		return Vm{}, c.adapter.wrapFault("reconfigure "+id, err)
	}
	if _, err := waitTask(ctx, task); err != nil {
		return Vm{}, err
	}

	return v, nil
}

func (c *Client) pushGuestInfo(ctx context.Context, vmObj *object.VirtualMachine, v Vm, value string) error {
	lines := regexp.MustCompile(`\r\n|\r|\n`).Split(value, -1)
	spec := types.VirtualMachineConfigSpec{}
	for _, line := range lines {
		if line == "" {
			continue
		}
		val, label := SplitChangeValue(line)
		spec.ExtraConfig = append(spec.ExtraConfig, &types.OptionValue{Key: "guestinfo." + label, Value: val})
	}
	task, err := vmObj.Reconfigure(ctx, spec)
	if err != nil {
		return c.adapter.wrapFault("push guestinfo "+v.ID, err)
	}
	_, err = waitTask(ctx, task)
	return err
}

// selectDevice picks a device by label if given, trying in order a device
// key, a device name, and an integer index into the feature-typed device
// list; with no label it picks the first device of the kind.
func selectDevice(devices object.VirtualDeviceList, kind types.BaseVirtualDevice, label string) (types.BaseVirtualDevice, error) {
	list := devices.SelectByType(kind)
	if label != "" {
		if d := devices.FindByKey(keyFromLabel(label)); d != nil {
			return d, nil
		}
		for _, d := range list {
			if devices.Name(d) == label {
				return d, nil
			}
		}
		if n, err := strconv.Atoi(label); err == nil && n >= 0 && n < len(list) {
			return list[n], nil
		}
		return nil, &InvalidArgumentError{Reason: fmt.Sprintf("device label %q not found", label)}
	}
	if len(list) == 0 {
		return nil, &InvalidArgumentError{Reason: "device index out of range"}
	}
	return list[0], nil
}

func keyFromLabel(label string) int32 {
	n, _ := strconv.Atoi(label)
	return int32(n)
}

// GetTicket acquires an MKS/webmks ticket and formats it into a console
// URL of the form wss://<host><port>/ticket/<ticket>.
func (c *Client) GetTicket(ctx context.Context, id string) (string, error) {
	if err := c.Connect(ctx); err != nil {
		return "", err
	}
	v, err := c.mustVm(id)
	if err != nil {
		return "", err
	}
	vmObj := c.vmObjectFor(v)

	ticket, err := vmObj.AcquireTicket(ctx, string(types.VirtualMachineTicketTypeWebmks))
	if err != nil {
		return "", c.adapter.wrapFault("acquire ticket "+id, err)
	}

	host := ticket.Host
	if host == "" {
		host = c.cfg.Host
	}
	return formatTicketURL(host, ticket.Port, ticket.Ticket), nil
}

// formatTicketURL builds the console URL for an MKS/webmks ticket,
// omitting the default HTTPS port.
func formatTicketURL(host string, port int32, ticket string) string {
	portPart := ""
	if port != 0 && port != 443 {
		portPart = fmt.Sprintf(":%d", port)
	}
	return fmt.Sprintf("wss://%s%s/ticket/%s", host, portPart, ticket)
}

// AnswerVmQuestion submits the given answer and clears the pending
// question from the cache.
func (c *Client) AnswerVmQuestion(ctx context.Context, id, questionID, answer string) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	v, err := c.mustVm(id)
	if err != nil {
		return err
	}
	vmObj := c.vmObjectFor(v)

	if err := vmObj.Answer(ctx, questionID, answer); err != nil {
		return c.adapter.wrapFault("answer question "+id, err)
	}
	v.Question = nil
	c.store.Upsert(v)
	return nil
}

var blankAdapterNormalize = map[string]string{
	"lsilogic": "lsiLogic",
	"buslogic": "busLogic",
}

// CloneDisk creates a thin disk when src matches the blank-<size><adapter>
// template naming scheme, else copies src to dest.
func (c *Client) CloneDisk(ctx context.Context, src, dest string) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}

	fm := object.NewFileManager(c.adapter.vim)
	destDir := dest
	if idx := strings.LastIndex(dest, "/"); idx >= 0 {
		destDir = dest[:idx]
	}
	if err := fm.MakeDirectory(ctx, destDir, c.resolver.datacenter, true); err != nil && !alreadyExistsErr(err) {
		return c.adapter.wrapFault("make directory "+destDir, err)
	}

	dm := object.NewVirtualDiskManager(c.adapter.vim)

	var task *object.Task
	var err error
	if m := blankDiskPattern.FindStringSubmatch(src); m != nil {
		sizeGB, _ := strconv.Atoi(m[1])
		adapter := normalizeAdapter(m[2])
		spec := &types.FileBackedVirtualDiskSpec{
			VirtualDiskSpec: types.VirtualDiskSpec{
				AdapterType: adapter,
				DiskType:    string(types.VirtualDiskTypeThin),
			},
			CapacityKb: int64(sizeGB) * 1024 * 1024,
		}
		task, err = dm.CreateVirtualDisk(ctx, dest, c.resolver.datacenter, spec)
	} else {
		task, err = dm.CopyVirtualDisk(ctx, src, c.resolver.datacenter, dest, c.resolver.datacenter, nil, false)
	}
	if err != nil {
		return c.adapter.wrapFault("clone disk "+dest, err)
	}

	// Delay registration to dodge empty-info races on a just-created task.
	go func() {
		select {
		case <-time.After(1 * time.Second):
		case <-ctx.Done():
			return
		}
		c.tasks.registerTaskMap(dest, task.Reference())
	}()

	return nil
}

func normalizeAdapter(raw string) string {
	if v, ok := blankAdapterNormalize[strings.ToLower(raw)]; ok {
		return v
	}
	return raw
}

func alreadyExistsErr(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// TaskProgress exposes the Task Tracker's asynchronous monitor to callers.
func (c *Client) TaskProgress(key string) int32 {
	return c.tasks.taskProgress(key)
}

// CreateDisk is fire-and-forget, registering into the Task Tracker's
// taskMap exactly as CloneDisk does, with the same delayed registration
// to dodge empty-info races on a just-created task.
func (c *Client) CreateDisk(ctx context.Context, path string, sizeGB int32, controller string) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	dm := object.NewVirtualDiskManager(c.adapter.vim)
	spec := &types.FileBackedVirtualDiskSpec{
		VirtualDiskSpec: types.VirtualDiskSpec{
			AdapterType: controller,
			DiskType:    string(types.VirtualDiskTypeThin),
		},
		CapacityKb: int64(sizeGB) * 1024 * 1024,
	}
	task, err := dm.CreateVirtualDisk(ctx, path, c.resolver.datacenter, spec)
	if err != nil {
		return c.adapter.wrapFault("create disk "+path, err)
	}

	go func() {
		select {
		case <-time.After(1 * time.Second):
		case <-ctx.Done():
			return
		}
		c.tasks.registerTaskMap(path, task.Reference())
	}()

	return nil
}

// DeleteDisk is a straightforward RPC proxy.
func (c *Client) DeleteDisk(ctx context.Context, path string) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	dm := object.NewVirtualDiskManager(c.adapter.vim)
	task, err := dm.DeleteVirtualDisk(ctx, path, c.resolver.datacenter)
	if err != nil {
		return c.adapter.wrapFault("delete disk "+path, err)
	}
	_, err = waitTask(ctx, task)
	return err
}

// GetFiles, FolderExists, FileExists proxy the Datastore Browser.
func (c *Client) GetFiles(ctx context.Context, path string, recursive bool) ([]string, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c.datastores.getFiles(ctx, c.resolver.datacenter, path, recursive)
}

func (c *Client) FolderExists(ctx context.Context, path string) (bool, error) {
	if err := c.Connect(ctx); err != nil {
		return false, err
	}
	return c.datastores.folderExists(ctx, c.resolver.datacenter, path)
}

func (c *Client) FileExists(ctx context.Context, path string) (bool, error) {
	if err := c.Connect(ctx); err != nil {
		return false, err
	}
	return c.datastores.fileExists(ctx, c.resolver.datacenter, path)
}

// SetAffinity adds a mandatory enabled ClusterAffinityRule naming the
// given VMs, then optionally starts them concurrently.
func (c *Client) SetAffinity(ctx context.Context, tag string, vmIDs []string, start bool) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	isVCenter := c.cfg.IsVCenter || c.adapter.serviceContentDescribesVCenter()
	if !isVCenter || c.resolver.cluster == nil {
		return &InvalidArgumentError{Reason: "SetAffinity requires a cluster endpoint"}
	}

	var refs []types.ManagedObjectReference
	for _, id := range vmIDs {
		v, err := c.mustVm(id)
		if err != nil {
			return err
		}
		refs = append(refs, v.Ref.MoRef())
	}

	rule := &types.ClusterAffinityRuleSpec{
		ClusterRuleInfo: types.ClusterRuleInfo{
			Name:      "Affinity#" + tag,
			Enabled:   boolPtr(true),
			Mandatory: boolPtr(true),
		},
		Vm: refs,
	}

	spec := &types.ClusterConfigSpecEx{
		RulesSpec: []types.ClusterRuleSpec{{
			ArrayUpdateSpec: types.ArrayUpdateSpec{Operation: types.ArrayUpdateOperationAdd},
			Info:            rule,
		}},
	}

	task, err := c.resolver.cluster.Reconfigure(ctx, spec, true)
	if err != nil {
		return c.adapter.wrapFault("set affinity "+tag, err)
	}
	if _, err := waitTask(ctx, task); err != nil {
		return err
	}

	if !start {
		return nil
	}

	errCh := make(chan error, len(vmIDs))
	for _, id := range vmIDs {
		go func(id string) {
			_, err := c.Start(ctx, id)
			errCh <- err
		}(id)
	}
	for range vmIDs {
		if err := <-errCh; err != nil {
			return err
		}
	}
	return nil
}

func boolPtr(b bool) *bool { return &b }
