package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manu343726/kamek/pkg/kamek/elflink"
	"github.com/Manu343726/kamek/pkg/kamek/membuf"
	"github.com/Manu343726/kamek/pkg/kamek/word"
)

func TestBranchFoldsWhenAbsoluteAndInRange(t *testing.T) {
	mem := membuf.New(word.Abs(0x80001000), 0x10)
	cmd := NewBranch(word.Abs(0x80001000), word.Abs(0x80001010), false)

	applied, err := cmd.Apply(mem, nil)
	require.NoError(t, err)
	assert.True(t, applied)

	insn, err := mem.ReadU32(word.Abs(0x80001000))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x48000000)|uint32(0x10), insn)
}

func TestBranchDefersWhenRelative(t *testing.T) {
	mem := membuf.New(word.Rel(0), 0x10)
	cmd := NewBranch(word.Rel(0), word.Rel(0x10), false)

	applied, err := cmd.Apply(mem, nil)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestWriteNeverFoldsStatically(t *testing.T) {
	mem := membuf.New(word.Abs(0x80001000), 0x10)
	cmd := NewWrite(word.Abs(0x80001000), word.Val(0x42), Width32)

	applied, err := cmd.Apply(mem, nil)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestWritePointerNeverFoldsStaticallyEvenInsideBuffer(t *testing.T) {
	mem := membuf.New(word.Abs(0x80001000), 0x10)
	cmd := NewWrite(word.Abs(0x80001000), word.Abs(0x80001008), WidthPointer)

	applied, err := cmd.Apply(mem, nil)
	require.NoError(t, err)
	assert.False(t, applied, "a write-pointer hook must always stay in the deferred command stream")
}

func TestRel24FoldsForMatchingRelativeKinds(t *testing.T) {
	mem := membuf.New(word.Rel(0), 0x10)
	require.NoError(t, mem.WriteU32(word.Rel(0), 0x41000000)) // only the 0xFC000003 bits survive the patch

	f := elflink.Fixup{Type: elflink.RelocRel24, Source: word.Rel(0), Dest: word.Rel(8)}
	cmd, err := NewReloc(f)
	require.NoError(t, err)

	applied, err := cmd.Apply(mem, nil)
	require.NoError(t, err)
	assert.True(t, applied)

	insn, err := mem.ReadU32(word.Rel(0))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x40000000)|0x8, insn)
}

func TestAddr16HaRoundsUpOnHighBit(t *testing.T) {
	mem := membuf.New(word.Abs(0x80001000), 0x10)
	f := elflink.Fixup{Type: elflink.RelocAddr16Ha, Source: word.Abs(0x80001000), Dest: word.Abs(0x80018000)}
	cmd, err := NewReloc(f)
	require.NoError(t, err)

	applied, err := cmd.Apply(mem, nil)
	require.NoError(t, err)
	assert.True(t, applied)

	v, err := mem.ReadU16(word.Abs(0x80001000))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x8002), v)
}

func TestPatchExitValidatesBlrAndFolds(t *testing.T) {
	mem := membuf.New(word.Abs(0x80001000), 0x10)
	require.NoError(t, mem.WriteU32(word.Abs(0x80001000), 0x60000000)) // nop
	require.NoError(t, mem.WriteU32(word.Abs(0x80001004), 0x4E800020)) // blr

	sizes := map[word.Word]uint32{word.Abs(0x80001000): 8}
	cmd := NewPatchExit(word.Abs(0x80001000), word.Abs(0x80002000))

	applied, err := cmd.Apply(mem, sizes)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, word.Abs(0x80001004), cmd.EndAddress)
}

func TestPatchExitRejectsMissingBlr(t *testing.T) {
	mem := membuf.New(word.Abs(0x80001000), 0x10)
	require.NoError(t, mem.WriteU32(word.Abs(0x80001000), 0x60000000))
	require.NoError(t, mem.WriteU32(word.Abs(0x80001004), 0x60000000))

	sizes := map[word.Word]uint32{word.Abs(0x80001000): 8}
	cmd := NewPatchExit(word.Abs(0x80001000), word.Abs(0x80002000))

	_, err := cmd.Apply(mem, sizes)
	assert.Error(t, err)
}

func TestFoldRejectsDuplicateAddresses(t *testing.T) {
	mem := membuf.New(word.Rel(0), 0x10)
	a := NewWrite(word.Rel(0), word.Val(1), Width32)
	b := NewWrite(word.Rel(0), word.Val(2), Width32)

	_, err := Fold(mem, nil, []Command{a, b})
	assert.Error(t, err)
}

func TestFoldDropsAppliedCommandsPreservingOrder(t *testing.T) {
	mem := membuf.New(word.Abs(0x80001000), 0x20)
	branch := NewBranch(word.Abs(0x80001000), word.Abs(0x80001010), false)
	write := NewWrite(word.Abs(0x80001004), word.Val(0x1), Width32)

	kept, err := Fold(mem, nil, []Command{branch, write})
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, word.Abs(0x80001004), kept[0].Address)
}
