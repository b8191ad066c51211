package dol

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildMinimalDOL(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, headerSize)
	// One text section: file offset 0x100, address 0x80003000, size 0x10.
	binary.BigEndian.PutUint32(buf[offOffsets:], headerSize)
	binary.BigEndian.PutUint32(buf[offAddrs:], 0x80003000)
	binary.BigEndian.PutUint32(buf[offSizes:], 0x10)
	binary.BigEndian.PutUint32(buf[offEntry:], 0x80003000)
	buf = append(buf, make([]byte, 0x10)...)
	return buf
}

func TestOpenParsesSectionsAndReadsWrites(t *testing.T) {
	raw := buildMinimalDOL(t)
	f, err := Open(bytes.NewReader(raw))
	require.NoError(t, err)

	require.NoError(t, f.WriteU32(0x80003004, 0xDEADBEEF))
	v, err := f.ReadU32(0x80003004)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), v)
}

func TestAppendTextSectionUsesFreeSlot(t *testing.T) {
	raw := buildMinimalDOL(t)
	f, err := Open(bytes.NewReader(raw))
	require.NoError(t, err)

	code := []byte{0x60, 0x00, 0x00, 0x00}
	require.NoError(t, f.AppendTextSection(0x80004000, code))

	v, err := f.ReadU32(0x80004000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x60000000), v)
}

func TestReadAtUncoveredAddressFails(t *testing.T) {
	raw := buildMinimalDOL(t)
	f, err := Open(bytes.NewReader(raw))
	require.NoError(t, err)

	_, err = f.ReadU32(0x80009999)
	assert.Error(t, err)
}

func TestSaveRoundTrips(t *testing.T) {
	raw := buildMinimalDOL(t)
	f, err := Open(bytes.NewReader(raw))
	require.NoError(t, err)
	require.NoError(t, f.WriteU32(0x80003000, 0x11223344))

	var out bytes.Buffer
	require.NoError(t, f.Save(&out))

	f2, err := Open(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	v, err := f2.ReadU32(0x80003000)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x11223344), v)
}
