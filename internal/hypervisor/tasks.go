package hypervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/property"
	"github.com/vmware/govmomi/task"
	"github.com/vmware/govmomi/vim25/mo"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/kubev2v/hypervisor-client/pkg/log"
)

// vimHostTask is the internal bookkeeping entry for a VM's single active
// background operation.
type vimHostTask struct {
	taskRef     types.ManagedObjectReference
	action      string
	whenCreated time.Time
	progress    int32
}

// taskTracker is the Task Tracker. waitForVimTask is the
// synchronous await; tasks/taskMap back the asynchronous monitor driven by
// the task loop in the Session Monitor.
type taskTracker struct {
	pc  *property.Collector
	log log.Logger

	mu      sync.Mutex
	tasks   map[string]*vimHostTask // vm id -> active task
	taskMap map[string]*types.TaskInfo // arbitrary id (e.g. dest path) -> info
}

func newTaskTracker(pc *property.Collector, lg log.Logger) *taskTracker {
	return &taskTracker{
		pc:      pc,
		log:     lg,
		tasks:   make(map[string]*vimHostTask),
		taskMap: make(map[string]*types.TaskInfo),
	}
}

// waitForVimTask polls the task's TaskInfo every second until it leaves
// {queued, running}.
func (t *taskTracker) waitForVimTask(ctx context.Context, ref types.ManagedObjectReference) (*types.TaskInfo, error) {
	for {
		var mt mo.Task
		if err := t.pc.RetrieveOne(ctx, ref, []string{"info"}, &mt); err != nil {
			return nil, err
		}
		info := mt.Info

		if info.State != types.TaskInfoStateQueued && info.State != types.TaskInfoStateRunning {
			if info.State == types.TaskInfoStateError {
				return &info, taskErrorFrom(&info)
			}
			return &info, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
}

// peekTaskInfo retrieves a task's current TaskInfo once, without waiting
// for it to leave {queued, running}; callers that need to distinguish
// "still progressing" from "already terminal" after a short grace wait
// use this instead of waitForVimTask.
func peekTaskInfo(ctx context.Context, pc *property.Collector, ref types.ManagedObjectReference) (*types.TaskInfo, error) {
	var mt mo.Task
	if err := pc.RetrieveOne(ctx, ref, []string{"info"}, &mt); err != nil {
		return nil, err
	}
	return &mt.Info, nil
}

func taskErrorFrom(info *types.TaskInfo) error {
	return &TaskError{Name: info.DescriptionId, Message: taskDescription(info) + " - " + faultMessage(info)}
}

func taskDescription(info *types.TaskInfo) string {
	if info.Description == nil {
		return ""
	}
	return info.Description.Message
}

func faultMessage(info *types.TaskInfo) string {
	if info.Error == nil {
		return ""
	}
	return info.Error.LocalizedMessage
}

// registerTask records a fire-and-forget operation against a VM id, picked
// up by the task loop.
func (t *taskTracker) registerTask(id, action string, ref types.ManagedObjectReference) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[id] = &vimHostTask{taskRef: ref, action: action, whenCreated: time.Now()}
}

// registerTaskMap records a task under an arbitrary key (typically a
// destination datastore path for disk clones).
func (t *taskTracker) registerTaskMap(key string, ref types.ManagedObjectReference) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.taskMap[key] = &types.TaskInfo{Task: ref, State: types.TaskInfoStateQueued}
}

// taskProgress implements taskProgress(id) contract.
func (t *taskTracker) taskProgress(key string) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.taskMap[key]
	if !ok {
		return -1
	}
	switch info.State {
	case types.TaskInfoStateSuccess:
		return 100
	case types.TaskInfoStateError:
		return 100
	default:
		return int32(info.Progress)
	}
}

// pollOnce refreshes every active entry once; called by the task loop's
// jitterbug-driven 3 s tick.
func (t *taskTracker) pollOnce(ctx context.Context, onUpdate func(vmID string, progress int32, errMsg string)) {
	t.mu.Lock()
	ids := make([]string, 0, len(t.tasks))
	for id := range t.tasks {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	for _, id := range ids {
		t.mu.Lock()
		ht, ok := t.tasks[id]
		t.mu.Unlock()
		if !ok {
			continue
		}

		var mt mo.Task
		if err := t.pc.RetrieveOne(ctx, ht.taskRef, []string{"info"}, &mt); err != nil {
			t.log.Warnw("task poll failed", "vm", id, "error", err)
			continue
		}
		info := mt.Info

		switch info.State {
		case types.TaskInfoStateSuccess:
			onUpdate(id, 100, "")
			t.mu.Lock()
			delete(t.tasks, id)
			t.mu.Unlock()
		case types.TaskInfoStateError:
			onUpdate(id, -1, fmt.Sprintf("%s - %s", taskDescription(&info), faultMessage(&info)))
			t.mu.Lock()
			delete(t.tasks, id)
			t.mu.Unlock()
		default:
			onUpdate(id, int32(info.Progress), "")
		}
	}

	t.mu.Lock()
	keys := make([]string, 0, len(t.taskMap))
	for k := range t.taskMap {
		keys = append(keys, k)
	}
	t.mu.Unlock()

	for _, key := range keys {
		t.mu.Lock()
		prev, ok := t.taskMap[key]
		t.mu.Unlock()
		if !ok || prev.State == types.TaskInfoStateSuccess || prev.State == types.TaskInfoStateError {
			continue
		}

		var mt mo.Task
		if err := t.pc.RetrieveOne(ctx, prev.Task, []string{"info"}, &mt); err != nil {
			t.log.Warnw("taskMap poll failed", "key", key, "error", err)
			continue
		}

		t.mu.Lock()
		t.taskMap[key] = &mt.Info
		t.mu.Unlock()
	}
}

// waitTask is a thin helper over object.Task.WaitForResult used by
// operations that await inline rather than registering for async polling.
func waitTask(ctx context.Context, t *object.Task) (*types.TaskInfo, error) {
	info, err := t.WaitForResult(ctx)
	if err != nil {
		if terr, ok := err.(task.Error); ok {
			return info, terr
		}
		return info, err
	}
	return info, nil
}
