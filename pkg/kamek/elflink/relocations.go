package elflink

import (
	"debug/elf"

	"github.com/Manu343726/kamek/pkg/kamek/errs"
	"github.com/Manu343726/kamek/pkg/kamek/word"
)

// RelocType is one of the PowerPC ELF relocation types kamek understands.
// The numeric values deliberately match R_PPC_* so they also double as
// packed-command IDs for the low-numbered commands.
type RelocType uint32

const (
	RelocAddr32   RelocType = 1
	RelocAddr16Lo RelocType = 4
	RelocAddr16Hi RelocType = 5
	RelocAddr16Ha RelocType = 6
	RelocRel24    RelocType = 10
)

// Fixup is one relocation that must be carried into the command stream
// (i.e. it did not land inside the .kamek hook-descriptor region).
type Fixup struct {
	Type   RelocType
	Source word.Word
	Dest   word.Word
}

// ResolveRelocations walks every SHT_RELA section of every module. Entries
// whose source address falls inside the .kamek region are consumed into
// kamekRelocs (for the hook extractor) instead of becoming Fixups; every
// other entry becomes a Fixup describing where and how to patch.
func ResolveRelocations(modules []Module, layout *Layout, symtab *SymbolTable, base word.Word) ([]Fixup, map[word.Word]word.Word, error) {
	var fixups []Fixup
	kamekRelocs := make(map[word.Word]word.Word)

	for mi, mod := range modules {
		for _, sec := range mod.ELF.Sections {
			if sec.Type == elf.SHT_REL {
				return nil, nil, errs.Wrap(errs.ErrNotImplemented, "%s: REL-format relocations are not supported, only RELA", mod.Path)
			}
		}

		for si, sec := range mod.ELF.Sections {
			if sec.Type != elf.SHT_RELA {
				continue
			}

			affectedIdx := int(sec.Info)
			symtabIdx := int(sec.Link)
			if affectedIdx <= 0 || affectedIdx >= len(mod.ELF.Sections) {
				return nil, nil, errs.Wrap(errs.ErrInvalidData, "%s: relocation section %s is not linked to a section", mod.Path, sec.Name)
			}
			if symtabIdx <= 0 || symtabIdx >= len(mod.ELF.Sections) {
				return nil, nil, errs.Wrap(errs.ErrInvalidData, "%s: relocation section %s is not linked to a symbol table", mod.Path, sec.Name)
			}

			affectedKey := SectionKey{Module: mi, Section: affectedIdx}
			affectedBase, imported := layout.Bases[affectedKey]
			if !imported {
				continue
			}

			relaSymtab := mod.ELF.Sections[symtabIdx]
			if relaSymtab.Type != elf.SHT_SYMTAB {
				return nil, nil, errs.Wrap(errs.ErrInvalidData, "%s: relocation section %s symbol table link is not SHT_SYMTAB", mod.Path, sec.Name)
			}
			relaStrtab := mod.ELF.Sections[relaSymtab.Link]
			names, err := readSymbols(relaSymtab, relaStrtab)
			if err != nil {
				return nil, nil, errs.Wrap(errs.ErrInvalidData, "%s: %v", mod.Path, err)
			}

			relas, err := readRelas(sec)
			if err != nil {
				return nil, nil, errs.Wrap(errs.ErrInvalidData, "%s: %v", mod.Path, err)
			}

			_ = si
			for _, rela := range relas {
				if rela.Sym == 0 {
					return nil, nil, errs.Wrap(errs.ErrInvalidData, "%s: relocation in %s links to undefined symbol", mod.Path, sec.Name)
				}
				if int(rela.Sym) >= len(names) {
					return nil, nil, errs.Wrap(errs.ErrInvalidData, "%s: relocation in %s references out-of-range symbol index %d", mod.Path, sec.Name, rela.Sym)
				}
				symName := names[rela.Sym].Name

				resolved, err := symtab.Lookup(mi, symName)
				if err != nil {
					return nil, nil, errs.Wrap(errs.ErrInvalidData, "%s: %v", mod.Path, err)
				}

				source := affectedBase.Add(word.Val(int64(rela.Offset)))
				dest := resolved.Address.Add(word.Val(int64(rela.Addend)))

				consumed, err := tryConsumeKamekReloc(layout, RelocType(rela.Type), source, dest, kamekRelocs)
				if err != nil {
					return nil, nil, err
				}
				if consumed {
					continue
				}

				fixups = append(fixups, Fixup{Type: RelocType(rela.Type), Source: source, Dest: dest})
			}
		}
	}

	return fixups, kamekRelocs, nil
}

func tryConsumeKamekReloc(layout *Layout, relType RelocType, source, dest word.Word, kamekRelocs map[word.Word]word.Word) (bool, error) {
	if source.Value() < layout.KamekStart.Value() || source.Value() >= layout.KamekEnd.Value() {
		return false, nil
	}
	if relType != RelocAddr32 {
		return false, errs.Wrap(errs.ErrInvalidOperation, "unsupported relocation type %d in the kamek hook data section", relType)
	}
	kamekRelocs[source] = dest
	return true, nil
}
