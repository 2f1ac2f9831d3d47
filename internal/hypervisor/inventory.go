package hypervisor

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vmware/govmomi/view"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/kubev2v/hypervisor-client/pkg/log"
)

// InventoryStore is the VM Inventory Cache as an explicit
// collaborator rather than package-level state, per redesign
// note: every Client gets its own store, so multiple endpoints in one
// process never share cache entries.
type InventoryStore interface {
	Get(id string) (Vm, bool)
	All() []Vm
	Upsert(v Vm)
	Remove(id string)
	Reconcile(observed map[string]Vm)
}

// memInventory is the default, in-memory InventoryStore.
type memInventory struct {
	mu sync.RWMutex
	vm map[string]Vm
}

func newMemInventory() *memInventory {
	return &memInventory{vm: make(map[string]Vm)}
}

func (s *memInventory) Get(id string) (Vm, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vm[id]
	return v, ok
}

func (s *memInventory) All() []Vm {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Vm, 0, len(s.vm))
	for _, v := range s.vm {
		out = append(out, v)
	}
	return out
}

func (s *memInventory) Upsert(v Vm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vm[v.ID] = v
}

func (s *memInventory) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.vm, id)
}

// Reconcile evicts any previously-owned id absent from observed so stale
// entries from deleted or migrated VMs never linger in the cache.
func (s *memInventory) Reconcile(observed map[string]Vm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.vm {
		if _, ok := observed[id]; !ok {
			delete(s.vm, id)
		}
	}
	for id, v := range observed {
		s.vm[id] = v
	}
}

// ownsVm reports whether a Vm belongs to the endpoint: its name must
// contain '#' with the suffix after '#' equal to the configured tenant.
func ownsVm(name, tenant string) bool {
	idx := strings.LastIndex(name, "#")
	if idx < 0 {
		return false
	}
	return name[idx+1:] == tenant
}

// vmTag returns the workspace tag embedded in a VM name (the text after
// '#'), or "" if the name carries none.
func vmTag(name string) string {
	idx := strings.LastIndex(name, "#")
	if idx < 0 {
		return ""
	}
	return name[idx+1:]
}

// reloadVmCache does the following: snapshot owned ids,
// retrieve summary/runtime/snapshot/layoutEx for every VM under the
// resolved pool, rebuild Vm entries, and reconcile.
func reloadVmCache(ctx context.Context, a *adapter, r *resolver, store InventoryStore, tenant, endpointName string, lg log.Logger) error {
	mgr := view.NewManager(a.vim)
	cv, err := mgr.CreateContainerView(ctx, r.resourcePool.Reference(), []string{"VirtualMachine"}, true)
	if err != nil {
		return a.wrapFault("create container view", err)
	}
	defer func() {
		if err := cv.Destroy(context.Background()); err != nil {
			lg.Warnw("destroy container view failed", "error", err)
		}
	}()

	var vms []mo.VirtualMachine
	if err := cv.Retrieve(ctx, []string{"VirtualMachine"}, []string{"summary", "runtime", "snapshot", "layoutEx", "config"}, &vms); err != nil {
		return a.wrapFault("retrieve vm properties", err)
	}

	observed := make(map[string]Vm, len(vms))
	for _, mvm := range vms {
		name := mvm.Summary.Config.Name
		if !ownsVm(name, tenant) {
			continue
		}

		id := mvm.Summary.Config.Uuid
		if id == "" {
			continue
		}

		v := Vm{
			ID:     id,
			Name:   name,
			Host:   endpointName,
			Path:   mvm.Summary.Config.VmPathName,
			State:  powerStateFrom(mvm.Runtime.PowerState),
			Ref:    RefOf(mvm.Self),
			Stats:  formatStats(mvm.Summary),
			Status: StatusDeployed,
		}
		v.DiskPath = diskPathFromLayout(mvm.LayoutEx)
		v.Question = questionFrom(mvm.Runtime.Question)

		observed[id] = v
	}

	store.Reconcile(observed)
	return nil
}

// formatStats renders "<overallStatus> | mem-<pct>% cpu-<pct>%" for the
// cached Vm.Stats field.
func formatStats(s types.VirtualMachineSummary) string {
	memPct := pctOf(int64(s.QuickStats.GuestMemoryUsage), int64(s.Runtime.MaxMemoryUsage))
	cpuPct := pctOf(int64(s.QuickStats.OverallCpuUsage), int64(s.Runtime.MaxCpuUsage))
	return fmt.Sprintf("%s | mem-%d%% cpu-%d%%", s.OverallStatus, memPct, cpuPct)
}

func pctOf(used, max int64) int64 {
	if max <= 0 {
		return 0
	}
	return (used * 100) / max
}

// questionFrom translates runtime.question into a VmQuestion, nil when the
// VM has no pending interactive prompt.
func questionFrom(q *types.VirtualMachineQuestionInfo) *VmQuestion {
	if q == nil {
		return nil
	}
	vq := &VmQuestion{ID: q.Id, Prompt: q.Text}
	for _, c := range q.Choice.ChoiceInfo {
		vq.Choices = append(vq.Choices, c.GetElementDescription().Key)
	}
	if q.Choice.DefaultIndex != nil {
		idx := int(*q.Choice.DefaultIndex)
		if idx >= 0 && idx < len(vq.Choices) {
			vq.DefaultChoice = vq.Choices[idx]
		}
	}
	return vq
}

func diskPathFromLayout(l *types.VirtualMachineFileLayoutEx) string {
	if l == nil {
		return ""
	}
	for _, f := range l.File {
		if strings.HasSuffix(f.Name, ".vmdk") && !strings.Contains(f.Name, "-flat") && !strings.Contains(f.Name, "-delta") {
			return f.Name
		}
	}
	return ""
}
