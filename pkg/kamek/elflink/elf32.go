package elflink

import (
	"debug/elf"
	"encoding/binary"

	"github.com/Manu343726/kamek/pkg/kamek/errs"
)

// rawSymbol is one ELF32 Sym entry, index-aligned with the raw symbol table
// (index 0 is always the null symbol, matching the on-disk layout so that
// relocation symbol indices line up directly).
type rawSymbol struct {
	Name  string
	Value uint32
	Size  uint32
	Info  byte
	Shndx uint16
}

func (s rawSymbol) bind() elf.SymBind { return elf.SymBind(s.Info >> 4) }

// rawRela is one ELF32 Rela entry.
type rawRela struct {
	Offset uint32
	Sym    uint32
	Type   uint32
	Addend int32
}

// findSymtab locates the (symtab, strtab) section pair for an ELF file,
// validating the preconditions a Kamek linker relies on: a 16-byte entsize
// and an sh_link that actually points at a string table.
func findSymtab(ef *elf.File) (*elf.Section, *elf.Section, error) {
	for _, sec := range ef.Sections {
		if sec.Type != elf.SHT_SYMTAB {
			continue
		}
		if sec.Entsize != 16 {
			return nil, nil, errs.Wrap(errs.ErrInvalidData, "symbol table %s has sh_entsize %d, want 16", sec.Name, sec.Entsize)
		}
		link := int(sec.Link)
		if link <= 0 || link >= len(ef.Sections) {
			return nil, nil, errs.Wrap(errs.ErrInvalidTableLinkage, "symbol table %s sh_link %d out of range", sec.Name, link)
		}
		strtab := ef.Sections[link]
		if strtab.Type != elf.SHT_STRTAB {
			return nil, nil, errs.Wrap(errs.ErrInvalidTableLinkage, "symbol table %s is not linked to a string table", sec.Name)
		}
		return sec, strtab, nil
	}
	return nil, nil, nil
}

// readSymbols decodes every ELF32 Sym entry in symtab, index-aligned
// (including the leading null symbol), resolving names against strtab.
func readSymbols(symtab, strtab *elf.Section) ([]rawSymbol, error) {
	data, err := symtab.Data()
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidData, "reading symbol table %s: %v", symtab.Name, err)
	}
	strdata, err := strtab.Data()
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidData, "reading string table %s: %v", strtab.Name, err)
	}
	if len(data)%16 != 0 {
		return nil, errs.Wrap(errs.ErrInvalidData, "symbol table %s size %d is not a multiple of 16", symtab.Name, len(data))
	}

	count := len(data) / 16
	out := make([]rawSymbol, count)
	for i := 0; i < count; i++ {
		entry := data[i*16 : i*16+16]
		nameOff := binary.BigEndian.Uint32(entry[0:4])
		out[i] = rawSymbol{
			Name:  cString(strdata, nameOff),
			Value: binary.BigEndian.Uint32(entry[4:8]),
			Size:  binary.BigEndian.Uint32(entry[8:12]),
			Info:  entry[12],
			Shndx: binary.BigEndian.Uint16(entry[14:16]),
		}
	}
	return out, nil
}

// readRelas decodes every ELF32 Rela entry in a SHT_RELA section.
func readRelas(sec *elf.Section) ([]rawRela, error) {
	if sec.Entsize != 12 {
		return nil, errs.Wrap(errs.ErrInvalidData, "relocation section %s has sh_entsize %d, want 12", sec.Name, sec.Entsize)
	}
	data, err := sec.Data()
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalidData, "reading relocation section %s: %v", sec.Name, err)
	}
	if len(data)%12 != 0 {
		return nil, errs.Wrap(errs.ErrInvalidData, "relocation section %s size %d is not a multiple of 12", sec.Name, len(data))
	}

	count := len(data) / 12
	out := make([]rawRela, count)
	for i := 0; i < count; i++ {
		entry := data[i*12 : i*12+12]
		info := binary.BigEndian.Uint32(entry[4:8])
		out[i] = rawRela{
			Offset: binary.BigEndian.Uint32(entry[0:4]),
			Sym:    info >> 8,
			Type:   info & 0xFF,
			Addend: int32(binary.BigEndian.Uint32(entry[8:12])),
		}
	}
	return out, nil
}

func cString(data []byte, offset uint32) string {
	if int(offset) >= len(data) {
		return ""
	}
	end := int(offset)
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[offset:end])
}
