package hypervisor

import (
	"fmt"
	"strings"
)

// TransportFaultError wraps an SDK call that failed at the transport level.
// It is not retried inline. The session monitor marks the session faulted
// and tears it down only for the server-busy class (isServerTooBusy); other
// transport faults leave the session state as it is.
type TransportFaultError struct {
	Op  string
	Err error
}

func (e *TransportFaultError) Error() string {
	return fmt.Sprintf("transport fault during %s: %v", e.Op, e.Err)
}

func (e *TransportFaultError) Unwrap() error { return e.Err }

// TaskError wraps a hypervisor task that terminated in the error state.
type TaskError struct {
	Name    string
	Message string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q failed: %s", e.Name, e.Message)
}

// InvalidArgumentError covers an unknown Reconfigure feature key, or a Save
// refused because the disk path does not carry the VM's workspace tag.
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string { return "invalid argument: " + e.Reason }

// NotFoundError is raised by callers when a VM id is absent from the cache.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("vm %q not found", e.ID) }

// RaceRetryError is recorded (never returned to the caller) when a cache
// remove lost a race and had to be retried.
type RaceRetryError struct {
	ID string
}

func (e *RaceRetryError) Error() string {
	return fmt.Sprintf("cache remove for %q raced, retrying", e.ID)
}

// isAlreadyInDesiredPowerState centralizes substring-based idempotence
// detection for power operations so locale drift in the hypervisor's
// localized error text is handled in one place rather than scattered
// across Start/Stop.
func isAlreadyInDesiredPowerState(err error, wantRunning bool) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if wantRunning {
		return strings.Contains(msg, "powered on")
	}
	return strings.Contains(msg, "powered off")
}
