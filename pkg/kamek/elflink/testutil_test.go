package elflink

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// elfBuilder assembles a minimal, valid big-endian ELF32 relocatable object
// byte-for-byte, so tests can exercise Collect/ResolveSymbols/
// ResolveRelocations against debug/elf's own decoder instead of a mock.
type elfBuilder struct {
	sections []builtSection
}

type builtSection struct {
	name      string
	shType    elf.SectionType
	data      []byte
	link      uint32
	info      uint32
	entsize   uint32
	addralign uint32
}

func (b *elfBuilder) add(s builtSection) int {
	b.sections = append(b.sections, s)
	return len(b.sections) // 1-based index; index 0 is the implicit NULL section
}

// stringTable builds a NUL-separated string table and returns each name's
// byte offset within it (offset 0 is always the empty string).
func stringTable(names []string) ([]byte, map[string]uint32) {
	data := []byte{0}
	offsets := make(map[string]uint32, len(names))
	for _, n := range names {
		offsets[n] = uint32(len(data))
		data = append(data, []byte(n)...)
		data = append(data, 0)
	}
	return data, offsets
}

func (b *elfBuilder) build(t *testing.T) *elf.File {
	t.Helper()

	allSections := append([]builtSection{{name: "", shType: elf.SHT_NULL}}, b.sections...)
	names := make([]string, 0, len(allSections))
	for _, s := range allSections {
		names = append(names, s.name)
	}
	names = append(names, ".shstrtab")
	shstrtabData, nameOffsets := stringTable(names)
	shstrndx := len(allSections)
	allSections = append(allSections, builtSection{name: ".shstrtab", shType: elf.SHT_STRTAB, data: shstrtabData, addralign: 1})

	const ehsize = 52
	const shentsize = 40

	// Lay out section data right after the ELF header, 4-byte aligned.
	offsets := make([]uint32, len(allSections))
	cursor := uint32(ehsize)
	for i, s := range allSections {
		if s.shType == elf.SHT_NULL {
			offsets[i] = 0
			continue
		}
		if cursor%4 != 0 {
			cursor += 4 - (cursor % 4)
		}
		offsets[i] = cursor
		cursor += uint32(len(s.data))
	}
	if cursor%4 != 0 {
		cursor += 4 - (cursor % 4)
	}
	shoff := cursor

	buf := new(bytes.Buffer)

	ident := make([]byte, 16)
	copy(ident, []byte{0x7f, 'E', 'L', 'F', 1, 2, 1, 0})
	buf.Write(ident)
	write16 := func(v uint16) { binary.Write(buf, binary.BigEndian, v) }
	write32 := func(v uint32) { binary.Write(buf, binary.BigEndian, v) }

	write16(1)                 // e_type = ET_REL
	write16(20)                 // e_machine = EM_PPC
	write32(1)                 // e_version
	write32(0)                 // e_entry
	write32(0)                 // e_phoff
	write32(shoff)             // e_shoff
	write32(0)                 // e_flags
	write16(ehsize)            // e_ehsize
	write16(0)                 // e_phentsize
	write16(0)                 // e_phnum
	write16(shentsize)         // e_shentsize
	write16(uint16(len(allSections))) // e_shnum
	write16(uint16(shstrndx))  // e_shstrndx

	for i, s := range allSections {
		for uint32(buf.Len()) < offsets[i] && s.shType != elf.SHT_NULL {
			buf.WriteByte(0)
		}
		buf.Write(s.data)
	}
	for uint32(buf.Len()) < shoff {
		buf.WriteByte(0)
	}

	for i, s := range allSections {
		write32(nameOffsets[s.name])
		write32(uint32(s.shType))
		write32(0) // sh_flags
		write32(0) // sh_addr
		write32(offsets[i])
		write32(uint32(len(s.data)))
		write32(s.link)
		write32(s.info)
		align := s.addralign
		if align == 0 {
			align = 4
		}
		write32(align)
		write32(s.entsize)
	}

	ef, err := elf.NewFile(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	return ef
}

// symEntry encodes one ELF32 Sym.
func symEntry(nameOff, value, size uint32, bind elf.SymBind, typ elf.SymType, shndx uint16) []byte {
	out := make([]byte, 16)
	binary.BigEndian.PutUint32(out[0:4], nameOff)
	binary.BigEndian.PutUint32(out[4:8], value)
	binary.BigEndian.PutUint32(out[8:12], size)
	out[12] = byte(bind)<<4 | byte(typ)
	out[13] = 0
	binary.BigEndian.PutUint16(out[14:16], shndx)
	return out
}

// relaEntry encodes one ELF32 Rela.
func relaEntry(offset uint32, sym uint32, relType uint32, addend int32) []byte {
	out := make([]byte, 12)
	binary.BigEndian.PutUint32(out[0:4], offset)
	binary.BigEndian.PutUint32(out[4:8], sym<<8|relType)
	binary.BigEndian.PutUint32(out[8:12], uint32(addend))
	return out
}
