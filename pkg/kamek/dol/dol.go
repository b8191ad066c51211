// Package dol implements a small reader/writer for Nintendo DOL executables:
// enough to find the virtual-address range each section covers, append a new
// text section, and patch bytes at a virtual address in place. It carries no
// linker semantics of its own; command.DOLMemory is the only surface the
// linker core touches it through.
package dol

import (
	"encoding/binary"
	"io"

	"github.com/Manu343726/kamek/pkg/kamek/errs"
)

const (
	numTextSections = 7
	numDataSections = 11
	headerSize      = 0x100

	offOffsets  = 0x00
	offAddrs    = 0x48
	offSizes    = 0x90
	offBSSAddr  = 0xD8
	offBSSSize  = 0xDC
	offEntry    = 0xE0
)

// Section is one text or data section's placement, both in the file
// (Offset, 0 if unused) and in memory (Address, Size).
type Section struct {
	IsText  bool
	Offset  uint32
	Address uint32
	Size    uint32
}

// File is a parsed DOL image: its section table plus the raw backing bytes
// (header included) that the ReadU*/WriteU* accessors and Save operate on
// directly.
type File struct {
	Sections   []Section // numTextSections + numDataSections entries, in header order
	BSSAddress uint32
	BSSSize    uint32
	EntryPoint uint32

	image []byte
}

// Open parses a DOL header and loads every declared section's bytes.
func Open(r io.ReaderAt) (*File, error) {
	header := make([]byte, headerSize)
	if _, err := r.ReadAt(header, 0); err != nil {
		return nil, errs.Wrap(errs.ErrInvalidData, "reading DOL header: %v", err)
	}

	f := &File{Sections: make([]Section, numTextSections+numDataSections)}
	extent := uint32(headerSize)

	for i := range f.Sections {
		off := binary.BigEndian.Uint32(header[offOffsets+4*i:])
		addr := binary.BigEndian.Uint32(header[offAddrs+4*i:])
		size := binary.BigEndian.Uint32(header[offSizes+4*i:])
		f.Sections[i] = Section{IsText: i < numTextSections, Offset: off, Address: addr, Size: size}
		if off+size > extent {
			extent = off + size
		}
	}

	f.BSSAddress = binary.BigEndian.Uint32(header[offBSSAddr:])
	f.BSSSize = binary.BigEndian.Uint32(header[offBSSSize:])
	f.EntryPoint = binary.BigEndian.Uint32(header[offEntry:])

	image := make([]byte, extent)
	if _, err := r.ReadAt(image, 0); err != nil && err != io.EOF {
		return nil, errs.Wrap(errs.ErrInvalidData, "reading DOL body: %v", err)
	}
	f.image = image

	return f, nil
}

// AppendTextSection installs data at the first unused text slot, addressed
// at addr, appending its bytes to the end of the file image.
func (f *File) AppendTextSection(addr uint32, data []byte) error {
	for i := range f.Sections {
		if !f.Sections[i].IsText || f.Sections[i].Size != 0 {
			continue
		}
		f.Sections[i] = Section{
			IsText:  true,
			Offset:  uint32(len(f.image)),
			Address: addr,
			Size:    uint32(len(data)),
		}
		f.image = append(f.image, data...)
		return nil
	}
	return errs.Wrap(errs.ErrInvalidOperation, "no free text section slot to append at 0x%08x", addr)
}

func (f *File) translate(addr uint32, width uint32) (int, error) {
	for _, s := range f.Sections {
		if s.Size == 0 || addr < s.Address || addr >= s.Address+s.Size {
			continue
		}
		fileOff := s.Offset + (addr - s.Address)
		if uint64(fileOff)+uint64(width) > uint64(len(f.image)) {
			return 0, errs.Wrap(errs.ErrInvalidOperation, "address 0x%08x overruns its section's file data", addr)
		}
		return int(fileOff), nil
	}
	return 0, errs.Wrap(errs.ErrInvalidOperation, "address 0x%08x is not covered by any DOL section", addr)
}

// ReadU8/ReadU16/ReadU32 read big-endian values at a virtual address.
func (f *File) ReadU8(addr uint32) (uint8, error) {
	off, err := f.translate(addr, 1)
	if err != nil {
		return 0, err
	}
	return f.image[off], nil
}

func (f *File) ReadU16(addr uint32) (uint16, error) {
	off, err := f.translate(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(f.image[off:]), nil
}

func (f *File) ReadU32(addr uint32) (uint32, error) {
	off, err := f.translate(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(f.image[off:]), nil
}

// WriteU8/WriteU16/WriteU32 write big-endian values at a virtual address.
func (f *File) WriteU8(addr uint32, v uint8) error {
	off, err := f.translate(addr, 1)
	if err != nil {
		return err
	}
	f.image[off] = v
	return nil
}

func (f *File) WriteU16(addr uint32, v uint16) error {
	off, err := f.translate(addr, 2)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(f.image[off:], v)
	return nil
}

func (f *File) WriteU32(addr uint32, v uint32) error {
	off, err := f.translate(addr, 4)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(f.image[off:], v)
	return nil
}

// Save writes the current section table and image back out.
func (f *File) Save(w io.Writer) error {
	if len(f.image) < headerSize {
		padded := make([]byte, headerSize)
		copy(padded, f.image)
		f.image = padded
	}

	header := f.image[:headerSize]
	for i, s := range f.Sections {
		binary.BigEndian.PutUint32(header[offOffsets+4*i:], s.Offset)
		binary.BigEndian.PutUint32(header[offAddrs+4*i:], s.Address)
		binary.BigEndian.PutUint32(header[offSizes+4*i:], s.Size)
	}
	binary.BigEndian.PutUint32(header[offBSSAddr:], f.BSSAddress)
	binary.BigEndian.PutUint32(header[offBSSSize:], f.BSSSize)
	binary.BigEndian.PutUint32(header[offEntry:], f.EntryPoint)

	_, err := w.Write(f.image)
	return err
}
