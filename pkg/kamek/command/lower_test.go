package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manu343726/kamek/pkg/kamek/hooks"
	"github.com/Manu343726/kamek/pkg/kamek/word"
)

func TestLowerHooksBranch(t *testing.T) {
	descs := []hooks.Descriptor{
		{Type: hooks.TypeBranchLink, Args: []word.Word{word.Abs(0x80001000), word.Abs(0x80002000)}},
	}
	cmds, err := LowerHooks(descs)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, KindBranchLink, cmds[0].Kind)
	assert.Equal(t, word.Abs(0x80002000), cmds[0].Target)
}

func TestLowerHooksPatchExit(t *testing.T) {
	descs := []hooks.Descriptor{
		{Type: hooks.TypePatchExit, Args: []word.Word{word.Abs(0x80001000), word.Abs(0x80002000)}},
	}
	cmds, err := LowerHooks(descs)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.True(t, cmds[0].IsPatchExit)
}

func TestLowerHooksCondWrite(t *testing.T) {
	descs := []hooks.Descriptor{
		{Type: hooks.TypeCondWrite32, Args: []word.Word{word.Abs(0x80001000), word.Val(1), word.Val(0)}},
	}
	cmds, err := LowerHooks(descs)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	assert.Equal(t, KindCondWrite32, cmds[0].Kind)
	assert.True(t, cmds[0].HasOriginal)
}

func TestLowerHooksRejectsWrongArgCount(t *testing.T) {
	descs := []hooks.Descriptor{
		{Type: hooks.TypeWrite32, Args: []word.Word{word.Abs(0x80001000)}},
	}
	_, err := LowerHooks(descs)
	assert.Error(t, err)
}

func TestLowerHooksRejectsUnknownType(t *testing.T) {
	descs := []hooks.Descriptor{
		{Type: hooks.Type(999), Args: nil},
	}
	_, err := LowerHooks(descs)
	assert.Error(t, err)
}
