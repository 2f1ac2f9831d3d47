package hypervisor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/types"
)

// TestFormatTicketURL covers testable property 7: port 443 is omitted,
// any other port appears as ":<port>".
func TestFormatTicketURL(t *testing.T) {
	tests := []struct {
		name string
		host string
		port int32
		want string
	}{
		{"default https port omitted", "esx1.lab", 443, "wss://esx1.lab/ticket/abc"},
		{"zero port omitted", "esx1.lab", 0, "wss://esx1.lab/ticket/abc"},
		{"non-default port included", "esx1.lab", 9443, "wss://esx1.lab:9443/ticket/abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatTicketURL(tt.host, tt.port, "abc"))
		})
	}
}

// TestSelectDeviceByKey covers a numeric label that equals a device Key:
// the device with that Key is selected, not the one at that index.
func TestSelectDeviceByKey(t *testing.T) {
	cdrom1 := &types.VirtualCdrom{VirtualDevice: types.VirtualDevice{Key: 3000}}
	cdrom2 := &types.VirtualCdrom{VirtualDevice: types.VirtualDevice{Key: 3001}}
	devices := object.VirtualDeviceList{cdrom1, cdrom2}

	got, err := selectDevice(devices, (*types.VirtualCdrom)(nil), "3001")
	require.NoError(t, err)
	assert.Same(t, cdrom2, got)
}

// TestSelectDeviceDefaultsToFirst covers the no-label path: the first
// device of the requested kind is picked.
func TestSelectDeviceDefaultsToFirst(t *testing.T) {
	cdrom1 := &types.VirtualCdrom{VirtualDevice: types.VirtualDevice{Key: 3000}}
	cdrom2 := &types.VirtualCdrom{VirtualDevice: types.VirtualDevice{Key: 3001}}
	devices := object.VirtualDeviceList{cdrom1, cdrom2}

	got, err := selectDevice(devices, (*types.VirtualCdrom)(nil), "")
	require.NoError(t, err)
	assert.Same(t, cdrom1, got)
}

// TestSelectDeviceEmptyListErrors covers the no-label, no-device-of-kind
// case.
func TestSelectDeviceEmptyListErrors(t *testing.T) {
	_, err := selectDevice(object.VirtualDeviceList{}, (*types.VirtualCdrom)(nil), "")
	require.Error(t, err)
	var argErr *InvalidArgumentError
	assert.ErrorAs(t, err, &argErr)
}

// TestSelectDeviceLabelNotFoundErrors covers a label matching neither a
// device key nor a device name.
func TestSelectDeviceLabelNotFoundErrors(t *testing.T) {
	cdrom1 := &types.VirtualCdrom{VirtualDevice: types.VirtualDevice{Key: 3000}}
	devices := object.VirtualDeviceList{cdrom1}

	_, err := selectDevice(devices, (*types.VirtualCdrom)(nil), "nonexistent")
	require.Error(t, err)
	var argErr *InvalidArgumentError
	assert.ErrorAs(t, err, &argErr)
}

func TestNormalizeAdapter(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lsilogic normalizes case", "lsilogic", "lsiLogic"},
		{"buslogic normalizes case", "BusLogic", "busLogic"},
		{"unknown adapter passes through", "paravirtual", "paravirtual"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeAdapter(tt.in))
		})
	}
}

func TestAlreadyExistsErr(t *testing.T) {
	assert.False(t, alreadyExistsErr(nil))
	assert.True(t, alreadyExistsErr(errors.New("port group ALREADY EXISTS on host")))
	assert.False(t, alreadyExistsErr(errors.New("not found")))
}

func TestDatastoreNameFromPath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single segment", "datastore1", "datastore1"},
		{"nested path", "datastore1/host01", "datastore1"},
		{"leading slash trimmed", "/datastore1/host01", "datastore1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, datastoreNameFromPath(tt.in))
		})
	}
}

func TestBlankDiskPattern(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		wantMatch  bool
		wantSizeGB string
		wantKind   string
	}{
		{"blank disk template matches", "blank-20lsilogic", true, "20", "lsilogic"},
		{"regular path does not match", "/vmfs/volumes/ds1/disk.vmdk", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := blankDiskPattern.FindStringSubmatch(tt.in)
			if !tt.wantMatch {
				assert.Nil(t, m)
				return
			}
			if assert.NotNil(t, m) {
				assert.Equal(t, tt.wantSizeGB, m[1])
				assert.Equal(t, tt.wantKind, m[2])
			}
		})
	}
}

func TestBoolPtr(t *testing.T) {
	p := boolPtr(true)
	assert.NotNil(t, p)
	assert.True(t, *p)
}
