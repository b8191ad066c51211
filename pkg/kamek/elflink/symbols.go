package elflink

import (
	"debug/elf"

	"github.com/Manu343726/kamek/pkg/kamek/errs"
	"github.com/Manu343726/kamek/pkg/kamek/word"
)

// Symbol is a resolved address plus the metadata the linker needs to
// validate and fold commands against it.
type Symbol struct {
	Address word.Word
	Size    uint32
	Weak    bool
}

// LocalSymbol is a named local symbol in its on-disk symbol-table order,
// used by the hook extractor to find every "_kHook*" entry deterministically.
type LocalSymbol struct {
	Name   string
	Symbol Symbol
}

// SymbolTable resolves names to addresses for a set of linked modules: each
// module's own locals, then the globals shared across every module, then
// the caller-supplied externs.
type SymbolTable struct {
	locals      []map[string]Symbol
	localsOrder [][]LocalSymbol
	globals     map[string]Symbol
	externs     map[string]word.Word
	Sizes       map[word.Word]uint32
}

// Lookup resolves name as seen from module moduleIdx: module locals first,
// then globals, then externs.
func (st *SymbolTable) Lookup(moduleIdx int, name string) (Symbol, error) {
	if locals := st.locals[moduleIdx]; locals != nil {
		if sym, ok := locals[name]; ok {
			return sym, nil
		}
	}
	if sym, ok := st.globals[name]; ok {
		return sym, nil
	}
	if addr, ok := st.externs[name]; ok {
		return Symbol{Address: addr}, nil
	}
	return Symbol{}, errs.Wrap(errs.ErrInvalidData, "undefined symbol %q", name)
}

// LocalsWithPrefix returns moduleIdx's local symbols whose name starts with
// prefix, in on-disk symbol-table order.
func (st *SymbolTable) LocalsWithPrefix(moduleIdx int, prefix string) []LocalSymbol {
	var out []LocalSymbol
	for _, ls := range st.localsOrder[moduleIdx] {
		if matchesPrefix(ls.Name, prefix) {
			out = append(out, ls)
		}
	}
	return out
}

// ResolveSymbols builds the local/global/extern symbol tables for a set of
// already-laid-out modules. externs maps extern names to fixed absolute
// addresses (already remapped by the caller's AddressMapper).
func ResolveSymbols(modules []Module, layout *Layout, externs map[string]uint32) (*SymbolTable, error) {
	st := &SymbolTable{
		locals:      make([]map[string]Symbol, len(modules)),
		localsOrder: make([][]LocalSymbol, len(modules)),
		globals:     make(map[string]Symbol),
		externs:     make(map[string]word.Word, len(externs)),
		Sizes:       make(map[word.Word]uint32),
	}
	for name, addr := range externs {
		st.externs[name] = word.Abs(addr)
	}
	for name, addr := range layout.Externs {
		st.externs[name] = addr
	}

	for mi, mod := range modules {
		symtab, strtab, err := findSymtab(mod.ELF)
		if err != nil {
			return nil, errs.Wrap(errs.ErrInvalidData, "%s: %v", mod.Path, err)
		}
		locals := make(map[string]Symbol)
		st.locals[mi] = locals
		if symtab == nil {
			continue
		}

		syms, err := readSymbols(symtab, strtab)
		if err != nil {
			return nil, errs.Wrap(errs.ErrInvalidData, "%s: %v", mod.Path, err)
		}

		for _, sym := range syms {
			if sym.Name == "" || sym.Shndx == uint16(elf.SHN_UNDEF) {
				continue
			}

			var addr word.Word
			switch {
			case sym.Shndx == uint16(elf.SHN_ABS):
				addr = word.Abs(sym.Value)
			case sym.Shndx < uint16(elf.SHN_LORESERVE):
				key := SectionKey{Module: mi, Section: int(sym.Shndx)}
				base, ok := layout.Bases[key]
				if !ok {
					continue
				}
				addr = base.Add(word.Val(int64(sym.Value)))
			default:
				return nil, errs.Wrap(errs.ErrInvalidData, "%s: symbol %q has unsupported st_shndx 0x%x", mod.Path, sym.Name, sym.Shndx)
			}

			resolved := Symbol{Address: addr, Size: sym.Size}

			switch sym.bind() {
			case elf.STB_LOCAL:
				if _, exists := locals[sym.Name]; exists {
					return nil, errs.Wrap(errs.ErrAlreadyExists, "%s: redefinition of local symbol %q", mod.Path, sym.Name)
				}
				locals[sym.Name] = resolved
				st.localsOrder[mi] = append(st.localsOrder[mi], LocalSymbol{Name: sym.Name, Symbol: resolved})
				st.Sizes[addr] = sym.Size
			case elf.STB_GLOBAL:
				if existing, exists := st.globals[sym.Name]; exists && !existing.Weak {
					return nil, errs.Wrap(errs.ErrAlreadyExists, "redefinition of global symbol %q", sym.Name)
				}
				st.globals[sym.Name] = resolved
				st.Sizes[addr] = sym.Size
			case elf.STB_WEAK:
				resolved.Weak = true
				if _, exists := st.globals[sym.Name]; !exists {
					st.globals[sym.Name] = resolved
					st.Sizes[addr] = sym.Size
				}
			}
		}
	}

	return st, nil
}
