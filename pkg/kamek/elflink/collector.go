// Package elflink implements the core of the linker: laying out imported
// ELF section data into one contiguous image (Collector), resolving symbol
// names against that layout (Symbols), and walking RELA relocations into
// either ordinary fixups or consumed Kamek hook relocations (Relocations).
package elflink

import (
	"debug/elf"

	"github.com/Manu343726/kamek/pkg/kamek/errs"
	"github.com/Manu343726/kamek/pkg/kamek/membuf"
	"github.com/Manu343726/kamek/pkg/kamek/word"
)

// Module pairs an opened ELF object with the path it came from, used for
// diagnostics and as a stable per-module symbol namespace.
type Module struct {
	Path string
	ELF  *elf.File
}

// SectionKey identifies one section of one module in a Collector's layout.
type SectionKey struct {
	Module  int
	Section int
}

// Layout is the result of Collect: one flat memory image plus the address
// each imported section was placed at, and the region boundaries a Kamek
// binary reports in its header.
type Layout struct {
	Memory *membuf.Buffer
	Bases  map[SectionKey]word.Word
	Externs map[string]word.Word

	OutputStart, OutputEnd word.Word
	BssStart, BssEnd       word.Word
	KamekStart, KamekEnd   word.Word
}

type prefixGroup struct {
	prefix        string
	name          string
	sectionAlign  uint32
	groupEndAlign uint32
	groupExtraPad uint32
}

var codeGroups = []prefixGroup{
	{".init", "init", 4, 0, 0},
	{".fini", "fini", 4, 0, 0},
	{".text", "text", 4, 0, 0},
	{".ctors", "ctors", 4, 32, 4},
	{".dtors", "dtors", 4, 32, 4},
	{".rodata", "rodata", 32, 0, 0},
	{".data", "data", 32, 0, 0},
}

var bssGroup = prefixGroup{prefix: ".bss", name: "bss", sectionAlign: 32}
var kamekGroup = prefixGroup{prefix: ".kamek", name: "kamek", sectionAlign: 4}

func alignUp(v, align uint32) uint32 {
	if align == 0 {
		return v
	}
	rem := v % align
	if rem == 0 {
		return v
	}
	return v + (align - rem)
}

// Collect lays out every section of every module whose name matches one of
// the fixed prefix groups (.init, .fini, .text, .ctors, .dtors, .rodata,
// .data, then .bss, then .kamek), in that order, modules processed in the
// order given. Modules must already be sorted the way the caller wants
// (human/alphanumeric order, per the module's CLI contract).
func Collect(modules []Module, base word.Word) (*Layout, error) {
	layout := &Layout{
		Bases:   make(map[SectionKey]word.Word),
		Externs: make(map[string]word.Word),
	}

	var chunks [][]byte
	cursor := base.Value()
	layout.OutputStart = base

	appendGroup := func(g prefixGroup) error {
		groupStart := cursor
		imported := false

		for mi, mod := range modules {
			for si, sec := range mod.ELF.Sections {
				if !matchesPrefix(sec.Name, g.prefix) {
					continue
				}
				layout.Bases[SectionKey{Module: mi, Section: si}] = word.New(cursor, base.Kind())

				var raw []byte
				if sec.Type != elf.SHT_NOBITS {
					data, err := sec.Data()
					if err != nil {
						return errs.Wrap(errs.ErrInvalidData, "reading section %s of %s: %v", sec.Name, mod.Path, err)
					}
					raw = data
				}
				padded := alignUp(uint32(len(raw)), g.sectionAlign)
				if padded < uint32(sec.Size) {
					padded = alignUp(uint32(sec.Size), g.sectionAlign)
				}
				buf := make([]byte, padded)
				copy(buf, raw)
				chunks = append(chunks, buf)
				cursor += padded
				imported = true
			}
		}

		if !imported {
			return nil
		}

		rawEnd := cursor
		layout.Externs["_f_"+g.name] = word.New(groupStart, base.Kind())
		layout.Externs["_e_"+g.name] = word.New(rawEnd, base.Kind())

		if g.groupEndAlign > 0 {
			aligned := alignUp(rawEnd, g.groupEndAlign)
			if aligned > rawEnd {
				chunks = append(chunks, make([]byte, aligned-rawEnd))
			}
			cursor = aligned
		}
		if g.groupExtraPad > 0 {
			chunks = append(chunks, make([]byte, g.groupExtraPad))
			cursor += g.groupExtraPad
		}
		return nil
	}

	for _, g := range codeGroups {
		if err := appendGroup(g); err != nil {
			return nil, err
		}
	}
	layout.OutputEnd = word.New(cursor, base.Kind())

	layout.BssStart = word.New(cursor, base.Kind())
	if err := appendGroup(bssGroup); err != nil {
		return nil, err
	}
	layout.BssEnd = word.New(cursor, base.Kind())

	layout.KamekStart = word.New(cursor, base.Kind())
	if err := appendGroup(kamekGroup); err != nil {
		return nil, err
	}
	layout.KamekEnd = word.New(cursor, base.Kind())

	total := cursor - base.Value()
	mem := membuf.New(base, total)
	offset := uint32(0)
	for _, c := range chunks {
		if err := mem.WriteBytes(word.New(base.Value()+offset, base.Kind()), c); err != nil {
			return nil, err
		}
		offset += uint32(len(c))
	}
	layout.Memory = mem

	return layout, nil
}

func matchesPrefix(name, prefix string) bool {
	return len(name) >= len(prefix) && name[:len(prefix)] == prefix
}
