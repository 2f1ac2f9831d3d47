package hypervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vmware/govmomi/vim25/types"
)

// TestObjectStoreSearchParams covers testable property 6: a classic
// datastore honors the caller's recursive flag and exact pattern
// (defaulting to "*"); an object-store (vSAN) datastore is forced
// recursive with the pattern widened to "*<ext>".
func TestObjectStoreSearchParams(t *testing.T) {
	tests := []struct {
		name          string
		pattern       string
		recursive     bool
		objStore      bool
		wantPattern   string
		wantRecursive bool
	}{
		{"classic datastore keeps exact pattern and flag", "vm1.vmdk", false, false, "vm1.vmdk", false},
		{"classic datastore defaults empty pattern to wildcard", "", true, false, "*", true},
		{"object store widens pattern and forces recursion", "vm1.vmdk", false, true, "*.vmdk", true},
		{"object store widens extensionless pattern to bare wildcard", "vm1", false, true, "*", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotPattern, gotRecursive := objectStoreSearchParams(tt.pattern, tt.recursive, tt.objStore)
			assert.Equal(t, tt.wantPattern, gotPattern)
			assert.Equal(t, tt.wantRecursive, gotRecursive)
		})
	}
}

// TestFormatSearchResult covers the other half of property 6: results
// from an object-store search have their UUID-based folder path rewritten
// back to the caller-visible top-level name.
func TestFormatSearchResult(t *testing.T) {
	r := types.HostDatastoreBrowserSearchResults{
		FolderPath: "[vsan1] 52f5a6a1-beef-cafe-0000-000000000000/sub",
		File: []types.BaseFileInfo{
			&types.FileInfo{Path: "a.vmdk"},
			&types.FileInfo{Path: "b.vmdk"},
		},
	}

	got := formatSearchResult(r, "ws1", "52f5a6a1-beef-cafe-0000-000000000000")
	assert.Equal(t, []string{
		"[vsan1] ws1/sub/a.vmdk",
		"[vsan1] ws1/sub/b.vmdk",
	}, got)
}

// TestFormatSearchResultNoUuidTop covers the classic-datastore path,
// where no substitution happens since uuidTop is empty.
func TestFormatSearchResultNoUuidTop(t *testing.T) {
	r := types.HostDatastoreBrowserSearchResults{
		FolderPath: "[ds1] vm1",
		File: []types.BaseFileInfo{
			&types.FileInfo{Path: "vm1.vmx"},
		},
	}

	got := formatSearchResult(r, "", "")
	assert.Equal(t, []string{"[ds1] vm1/vm1.vmx"}, got)
}

func TestParseBasename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"nested path returns final segment", "[ds1] vm1/disks/vm1.vmdk", "vm1.vmdk"},
		{"no slash returns input unchanged", "vm1.vmdk", "vm1.vmdk"},
		{"trailing slash returns empty segment", "vm1/disks/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseBasename(tt.in))
		})
	}
}
