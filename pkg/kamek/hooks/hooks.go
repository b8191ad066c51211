// Package hooks extracts Kamek hook descriptors compiled into an object's
// .kamek section: compiler-emitted "_kHook*" local symbols whose value
// points at a small in-memory descriptor (an argument count, a type tag,
// and that many 32-bit argument words, each either a raw value or a
// relocation consumed by the linker's relocation pass).
package hooks

import (
	"github.com/Manu343726/kamek/pkg/kamek/elflink"
	"github.com/Manu343726/kamek/pkg/kamek/errs"
	"github.com/Manu343726/kamek/pkg/kamek/word"
)

// Type identifies what a hook descriptor asks the linker to do. The values
// are a closed, kamek-internal enum (distinct from the packed command IDs
// in package command, whose reloc-derived kinds mirror ELF relocation
// numbers instead).
type Type uint32

const (
	TypeBranch           Type = 0
	TypeBranchLink       Type = 1
	TypePatchExit        Type = 2
	TypeWrite8           Type = 3
	TypeWrite16          Type = 4
	TypeWrite32          Type = 5
	TypeWritePointer     Type = 6
	TypeCondWrite8       Type = 7
	TypeCondWrite16      Type = 8
	TypeCondWrite32      Type = 9
	TypeCondWritePointer Type = 10
)

const descriptorPrefix = "_kHook"

var typeNames = map[Type]string{
	TypeBranch:           "Branch",
	TypeBranchLink:       "BranchLink",
	TypePatchExit:        "PatchExit",
	TypeWrite8:           "Write8",
	TypeWrite16:          "Write16",
	TypeWrite32:          "Write32",
	TypeWritePointer:     "WritePointer",
	TypeCondWrite8:       "CondWrite8",
	TypeCondWrite16:      "CondWrite16",
	TypeCondWrite32:      "CondWrite32",
	TypeCondWritePointer: "CondWritePointer",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// Descriptor is one decoded hook: its type tag and its resolved argument
// words (addresses where the slot carried a consumed relocation, otherwise
// a plain VALUE word of the raw 32 bits stored there).
type Descriptor struct {
	Type Type
	Args []word.Word
}

// Extract scans every module's local symbols for the "_kHook" prefix, in
// on-disk order, and decodes each one's descriptor out of the laid-out
// memory image.
func Extract(modules []elflink.Module, layout *elflink.Layout, symtab *elflink.SymbolTable, kamekRelocs map[word.Word]word.Word) ([]Descriptor, error) {
	var out []Descriptor

	for mi := range modules {
		for _, local := range symtab.LocalsWithPrefix(mi, descriptorPrefix) {
			cmdAddr := local.Symbol.Address

			argCount, err := layout.Memory.ReadU32(cmdAddr)
			if err != nil {
				return nil, errs.Wrap(errs.ErrInvalidData, "hook %q: %v", local.Name, err)
			}
			rawType, err := layout.Memory.ReadU32(cmdAddr.Add(word.Val(4)))
			if err != nil {
				return nil, errs.Wrap(errs.ErrInvalidData, "hook %q: %v", local.Name, err)
			}

			args := make([]word.Word, 0, argCount)
			for i := uint32(0); i < argCount; i++ {
				argAddr := cmdAddr.Add(word.Val(int64(8 + i*4)))
				if dest, ok := kamekRelocs[argAddr]; ok {
					args = append(args, dest)
					continue
				}
				raw, err := layout.Memory.ReadU32(argAddr)
				if err != nil {
					return nil, errs.Wrap(errs.ErrInvalidData, "hook %q arg %d: %v", local.Name, i, err)
				}
				args = append(args, word.Val(int64(raw)))
			}

			out = append(out, Descriptor{Type: Type(rawType), Args: args})
		}
	}

	return out, nil
}
