package network

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectKind(t *testing.T) {
	tests := []struct {
		name      string
		isVCenter bool
		overlay   bool
		want      Kind
	}{
		{"standalone host always selects host manager", false, false, KindHost},
		{"standalone host ignores overlay flag", false, true, KindHost},
		{"vcenter cluster without overlay selects distributed", true, false, KindDistributed},
		{"vcenter cluster with overlay selects overlay", true, true, KindOverlay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectKind(tt.isVCenter, tt.overlay))
		})
	}
}

func TestNoopVlanProvider(t *testing.T) {
	var p VlanProvider = NoopVlanProvider{}
	vlan, err := p.VlanFor(context.Background(), "any-network")
	assert.NoError(t, err)
	assert.EqualValues(t, 0, vlan)
}
