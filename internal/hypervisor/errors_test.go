package hypervisor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAlreadyInDesiredPowerState(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantRunning bool
		want        bool
	}{
		{"nil error is never idempotent", nil, true, false},
		{"already powered on matches running", errors.New("The attempted operation cannot be performed in the current state (Powered on)"), true, true},
		{"lowercase already powered on", errors.New("vm is already powered on"), true, true},
		{"already powered off", errors.New("msg: already powered off"), false, true},
		{"unrelated error never matches", errors.New("host communication error"), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isAlreadyInDesiredPowerState(tt.err, tt.wantRunning))
		})
	}
}

func TestTransportFaultErrorUnwrap(t *testing.T) {
	inner := errors.New("connection refused")
	err := &TransportFaultError{Op: "dial", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "dial")
}

func TestNotFoundErrorMessage(t *testing.T) {
	err := &NotFoundError{ID: "vm-123"}
	assert.Contains(t, err.Error(), "vm-123")
}
