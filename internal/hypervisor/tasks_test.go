package hypervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vmware/govmomi/vim25/types"
)

func newTestTaskTracker() *taskTracker {
	return &taskTracker{
		tasks:   make(map[string]*vimHostTask),
		taskMap: make(map[string]*types.TaskInfo),
	}
}

func TestTaskProgress(t *testing.T) {
	tracker := newTestTaskTracker()

	assert.EqualValues(t, -1, tracker.taskProgress("missing"), "an untracked key reports -1")

	tracker.registerTaskMap("clone-1", types.ManagedObjectReference{Type: "Task", Value: "task-1"})
	assert.EqualValues(t, 0, tracker.taskProgress("clone-1"), "a freshly queued task reports 0 progress")

	tracker.mu.Lock()
	tracker.taskMap["clone-1"].State = types.TaskInfoStateRunning
	tracker.taskMap["clone-1"].Progress = 42
	tracker.mu.Unlock()
	assert.EqualValues(t, 42, tracker.taskProgress("clone-1"))

	tracker.mu.Lock()
	tracker.taskMap["clone-1"].State = types.TaskInfoStateSuccess
	tracker.mu.Unlock()
	assert.EqualValues(t, 100, tracker.taskProgress("clone-1"))

	tracker.mu.Lock()
	tracker.taskMap["clone-1"].State = types.TaskInfoStateError
	tracker.mu.Unlock()
	assert.EqualValues(t, 100, tracker.taskProgress("clone-1"), "an errored task still reports 100 (terminal), the caller distinguishes error via the async update callback")
}

func TestTaskErrorFrom(t *testing.T) {
	info := &types.TaskInfo{
		DescriptionId: "VirtualMachine.powerOn",
		Error: &types.LocalizedMethodFault{
			LocalizedMessage: "Insufficient resources",
		},
	}

	err := taskErrorFrom(info)
	var taskErr *TaskError
	assert.ErrorAs(t, err, &taskErr)
	assert.Equal(t, "VirtualMachine.powerOn", taskErr.Name)
	assert.Contains(t, taskErr.Error(), "Insufficient resources")
}

func TestRegisterTask(t *testing.T) {
	tracker := newTestTaskTracker()
	ref := types.ManagedObjectReference{Type: "Task", Value: "task-7"}

	tracker.registerTask("vm-1", "power-on", ref)

	tracker.mu.Lock()
	ht, ok := tracker.tasks["vm-1"]
	tracker.mu.Unlock()

	assert.True(t, ok)
	assert.Equal(t, "power-on", ht.action)
	assert.Equal(t, ref, ht.taskRef)
}
