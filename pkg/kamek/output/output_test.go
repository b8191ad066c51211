package output

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manu343726/kamek/pkg/kamek/command"
	"github.com/Manu343726/kamek/pkg/kamek/dol"
	"github.com/Manu343726/kamek/pkg/kamek/elflink"
	"github.com/Manu343726/kamek/pkg/kamek/membuf"
	"github.com/Manu343726/kamek/pkg/kamek/word"
)

func smallLayout(codeSize, bssSize uint32) *elflink.Layout {
	base := word.Abs(0x80001000)
	mem := membuf.New(base, codeSize+bssSize)
	return &elflink.Layout{
		Memory:      mem,
		OutputStart: base,
		OutputEnd:   word.Abs(base.Value() + codeSize),
		BssStart:    word.Abs(base.Value() + codeSize),
		BssEnd:      word.Abs(base.Value() + codeSize + bssSize),
	}
}

func TestEncodeKbinHeaderAndEmptyCommandStream(t *testing.T) {
	layout := smallLayout(4, 8)
	require.NoError(t, layout.Memory.WriteU32(layout.OutputStart, 0x60000000))

	var buf bytes.Buffer
	require.NoError(t, EncodeKbin(&buf, layout, nil))

	out := buf.Bytes()
	require.True(t, len(out) >= 16)
	assert.Equal(t, "Kamek\x00\x00\x01", string(out[:8]))
	assert.Equal(t, uint32(8), binary.BigEndian.Uint32(out[8:12]))
	assert.Equal(t, uint32(4), binary.BigEndian.Uint32(out[12:16]))
	assert.Equal(t, []byte{0x60, 0x00, 0x00, 0x00}, out[16:20])
}

func TestEncodeKbinWritesRelativeInlineCommand(t *testing.T) {
	layout := smallLayout(4, 0)
	cmd := command.NewWrite(word.Rel(0x100), word.Val(0x42), command.Width32)

	var buf bytes.Buffer
	require.NoError(t, EncodeKbin(&buf, layout, []command.Command{cmd}))

	tail := buf.Bytes()[16:]
	header := binary.BigEndian.Uint32(tail[0:4])
	assert.Equal(t, uint32(32)<<24|0x100, header)
	assert.Equal(t, uint32(0x42), binary.BigEndian.Uint32(tail[4:8]))
}

func TestEncodeKbinEscapesAbsoluteAddress(t *testing.T) {
	layout := smallLayout(4, 0)
	cmd := command.NewWrite(word.Abs(0x80005000), word.Val(0x1), command.Width8)

	var buf bytes.Buffer
	require.NoError(t, EncodeKbin(&buf, layout, []command.Command{cmd}))

	tail := buf.Bytes()[16:]
	header := binary.BigEndian.Uint32(tail[0:4])
	assert.Equal(t, uint32(34)<<24|0xFFFFFE, header)
	assert.Equal(t, uint32(0x80005000), binary.BigEndian.Uint32(tail[4:8]))
}

func TestEncodeRiivolutionEmitsMemoryElement(t *testing.T) {
	cmd := command.NewWrite(word.Abs(0x80001000), word.Val(0x1234), command.Width16)
	var buf bytes.Buffer
	require.NoError(t, EncodeRiivolution(&buf, []command.Command{cmd}))
	assert.Contains(t, buf.String(), "<memory offset='0x80001000' value='1234' />")
}

func TestEncodeRiivolutionSkipsBranches(t *testing.T) {
	cmd := command.NewBranch(word.Rel(0), word.Rel(0x10), false)
	var buf bytes.Buffer
	require.NoError(t, EncodeRiivolution(&buf, []command.Command{cmd}))
	assert.NotContains(t, buf.String(), "<memory")
}

func TestEncodeGeckoProducesOneCodePerWrite(t *testing.T) {
	cmd := command.NewWrite(word.Abs(0x80001000), word.Val(0xCAFE), command.Width16)
	codes, err := EncodeGecko([]command.Command{cmd})
	require.NoError(t, err)
	require.Len(t, codes, 1)

	want := (uint64(0x80001000&0x01FFFFFF)|0x02000000)<<32 | 0xCAFE
	assert.Equal(t, want, codes[0])
}

func TestEncodeGeckoRejectsConditional(t *testing.T) {
	cmd := command.NewCondWrite(word.Abs(0x80001000), word.Val(1), word.Val(0), command.Width32)
	_, err := EncodeGecko([]command.Command{cmd})
	assert.Error(t, err)
}

func buildMinimalDOL() []byte {
	buf := make([]byte, 0x100)
	return buf
}

func TestEncodeDOLRejectsDynamicBase(t *testing.T) {
	layout := smallLayout(4, 0)
	f, err := dol.Open(bytes.NewReader(buildMinimalDOL()))
	require.NoError(t, err)

	err = EncodeDOL(f, layout, word.Rel(0), nil)
	assert.Error(t, err)
}

func TestEncodeDOLAppendsTextAndAppliesCommands(t *testing.T) {
	layout := smallLayout(8, 0)
	require.NoError(t, layout.Memory.WriteU32(layout.OutputStart, 0x60000000))
	require.NoError(t, layout.Memory.WriteU32(word.Abs(0x80001004), 0x60000000))

	f, err := dol.Open(bytes.NewReader(buildMinimalDOL()))
	require.NoError(t, err)

	cmd := command.NewBranch(word.Abs(0x80001004), word.Abs(0x80001000), false)
	require.NoError(t, EncodeDOL(f, layout, word.Abs(0x80001000), []command.Command{cmd}))

	nop, err := f.ReadU32(0x80001000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x60000000), nop)

	insn, err := f.ReadU32(0x80001004)
	require.NoError(t, err)
	// delta 0x80001000-0x80001004 = -4 (0xFFFFFFFC), masked to 0x03FFFFFC.
	assert.Equal(t, uint32(0x48000000)|0x03FFFFFC, insn)
}
