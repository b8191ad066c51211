package addrmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityMapperLeavesAddressesUnchanged(t *testing.T) {
	m := Identity()
	for _, addr := range []uint32{0, 0x1000, 0x80001234, 0xFFFFFFFF} {
		assert.Equal(t, addr, m.Remap(addr))
	}
}

func TestRemapWithinRule(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.AddRule(0x80001000, 0x80002000, 0x10))
	m := b.Build()

	assert.Equal(t, uint32(0x80001010), m.Remap(0x80001000))
	assert.Equal(t, uint32(0x80002010), m.Remap(0x80002000))
	assert.Equal(t, uint32(0x80003000), m.Remap(0x80003000), "outside rule range is unchanged")
}

func TestNegativeDeltaSubtracts(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.AddRule(0x10, 0x20, -0x10))
	m := b.Build()
	assert.Equal(t, uint32(0x10), m.Remap(0x20))
}

func TestOverlappingRulesRejected(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.AddRule(0x1000, 0x2000, 0))
	err := b.AddRule(0x1500, 0x2500, 0)
	require.Error(t, err)
}

func TestNonMonotonicRulesRejected(t *testing.T) {
	b := NewBuilder(nil)
	require.NoError(t, b.AddRule(0x2000, 0x3000, 0))
	err := b.AddRule(0x1000, 0x1500, 0)
	require.Error(t, err)
}

func TestEndBeforeStartRejected(t *testing.T) {
	b := NewBuilder(nil)
	err := b.AddRule(0x2000, 0x1000, 0)
	require.Error(t, err)
}

func TestChildComposesWithParent(t *testing.T) {
	parentB := NewBuilder(nil)
	require.NoError(t, parentB.AddRule(0x80000000, 0x80000FFF, 0x100))
	parent := parentB.Build()

	childB := NewBuilder(parent)
	require.NoError(t, childB.AddRule(0x80001000, 0x80001FFF, 0x10))
	child := childB.Build()

	// Matched by child's own rule: delta applies directly, parent untouched.
	assert.Equal(t, uint32(0x80001010), child.Remap(0x80001000))
	// Falls through to parent's rule.
	assert.Equal(t, uint32(0x80000100), child.Remap(0x80000000))
	// Matches neither: unchanged.
	assert.Equal(t, uint32(0x80002000), child.Remap(0x80002000))
}
