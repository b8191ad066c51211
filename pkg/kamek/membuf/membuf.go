// Package membuf is a small address-indexed view over the linker's laid-out
// output bytes, in the same spirit as the cucaracha BitView: a thin wrapper
// around a raw byte slice that adds bounds-checked, invariant-respecting
// reads and writes instead of raw slicing.
package membuf

import (
	"encoding/binary"

	"github.com/Manu343726/kamek/pkg/kamek/errs"
	"github.com/Manu343726/kamek/pkg/kamek/word"
)

// Buffer is the laid-out output image: Data[0] corresponds to address Base,
// and covers the whole output+bss+kamek region (spec §5's "one growable
// byte buffer of outputSize + bssSize + kamekSize").
type Buffer struct {
	Base word.Word
	Data []byte
}

// New allocates a zero-filled Buffer of the given size starting at base.
func New(base word.Word, size uint32) *Buffer {
	return &Buffer{Base: base, Data: make([]byte, size)}
}

// Contains reports whether addr falls within this buffer's range.
func (b *Buffer) Contains(addr word.Word) bool {
	off, err := b.offset(addr)
	if err != nil {
		return false
	}
	return off >= 0 && off < len(b.Data)
}

func (b *Buffer) offset(addr word.Word) (int, error) {
	off := int64(addr.Value()) - int64(b.Base.Value())
	if off < 0 || off > int64(len(b.Data)) {
		return 0, errs.Wrap(errs.ErrInvalidOperation, "address %s out of range of buffer [%s, %s)", addr, b.Base, word.New(b.Base.Value()+uint32(len(b.Data)), b.Base.Kind()))
	}
	return int(off), nil
}

func (b *Buffer) span(addr word.Word, width int) (int, error) {
	off, err := b.offset(addr)
	if err != nil {
		return 0, err
	}
	if off+width > len(b.Data) {
		return 0, errs.Wrap(errs.ErrInvalidOperation, "%d-byte access at %s overruns buffer", width, addr)
	}
	return off, nil
}

// ReadU8/ReadU16/ReadU32 read big-endian values at addr.
func (b *Buffer) ReadU8(addr word.Word) (uint8, error) {
	off, err := b.span(addr, 1)
	if err != nil {
		return 0, err
	}
	return b.Data[off], nil
}

func (b *Buffer) ReadU16(addr word.Word) (uint16, error) {
	off, err := b.span(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b.Data[off:]), nil
}

func (b *Buffer) ReadU32(addr word.Word) (uint32, error) {
	off, err := b.span(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b.Data[off:]), nil
}

// WriteU8/WriteU16/WriteU32 write big-endian values at addr.
func (b *Buffer) WriteU8(addr word.Word, v uint8) error {
	off, err := b.span(addr, 1)
	if err != nil {
		return err
	}
	b.Data[off] = v
	return nil
}

func (b *Buffer) WriteU16(addr word.Word, v uint16) error {
	off, err := b.span(addr, 2)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(b.Data[off:], v)
	return nil
}

func (b *Buffer) WriteU32(addr word.Word, v uint32) error {
	off, err := b.span(addr, 4)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(b.Data[off:], v)
	return nil
}

// WriteBytes copies data into the buffer starting at addr.
func (b *Buffer) WriteBytes(addr word.Word, data []byte) error {
	off, err := b.span(addr, len(data))
	if err != nil {
		return err
	}
	copy(b.Data[off:], data)
	return nil
}
