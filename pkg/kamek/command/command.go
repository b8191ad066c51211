// Package command models the uniform command stream a Kamek link produces:
// every relocation fixup and every compiled hook collapses into one of a
// small set of Command kinds, each of which may fold into a direct write
// against the linked memory image (and is dropped from the stream) or be
// carried forward for the output encoders to serialize or apply at load
// time / DOL-patch time.
package command

import (
	"github.com/Manu343726/kamek/pkg/kamek/elflink"
	"github.com/Manu343726/kamek/pkg/kamek/errs"
	"github.com/Manu343726/kamek/pkg/kamek/membuf"
	"github.com/Manu343726/kamek/pkg/kamek/word"
)

// Kind identifies a command's shape; WireID gives the packed-format command
// ID it serializes as (equal to Kind for every kind except
// KindWritePointer). The reloc-derived kinds deliberately reuse the
// matching R_PPC_* numeric value.
type Kind uint32

const (
	KindAddr32   Kind = Kind(elflink.RelocAddr32)
	KindAddr16Lo Kind = Kind(elflink.RelocAddr16Lo)
	KindAddr16Hi Kind = Kind(elflink.RelocAddr16Hi)
	KindAddr16Ha Kind = Kind(elflink.RelocAddr16Ha)
	KindRel24    Kind = Kind(elflink.RelocRel24)

	// KindWritePointer is a distinct internal Kind (never a switch-case
	// collision with KindAddr32) even though it packs to the same wire id 1
	// as KindAddr32 — see WireID. A write-pointer hook and an Addr32
	// relocation serialize and DOL-patch identically (both write a resolved
	// absolute address), but only the former is eligible for
	// riivolution/Gecko output, and only the latter folds in Apply.
	KindWritePointer     Kind = 1000
	KindWrite32          Kind = 32
	KindWrite16          Kind = 33
	KindWrite8           Kind = 34
	KindCondWritePointer Kind = 35
	KindCondWrite32      Kind = 36
	KindCondWrite16      Kind = 37
	KindCondWrite8       Kind = 38

	KindBranch     Kind = 64
	KindBranchLink Kind = 65
)

// Width is the access width a Write/CondWrite/Addr16* command patches.
type Width int

const (
	Width8 Width = iota
	Width16
	Width32
	WidthPointer
)

// Command is a tagged union over every packed-format command shape. Only
// the fields relevant to Kind are meaningful; this mirrors the "one struct,
// a switch on Kind" shape used for the source material's Command variants,
// favoring one flat type over a parallel interface hierarchy.
type Command struct {
	Kind    Kind
	Address word.Word // where the command patches, a.k.a. "source"

	// Branch / BranchLink / PatchExit / Reloc*
	Target word.Word

	// PatchExit only: the function's last instruction, computed during Fold.
	EndAddress word.Word

	// Write* / CondWrite*
	Width    Width
	Value    word.Word
	Original word.Word // only set for CondWrite*; meaningful only when HasOriginal is true
	HasOriginal bool

	// IsPatchExit distinguishes a PatchExit from a plain Branch: both share
	// KindBranch (PatchExit deliberately never serializes as BranchLink),
	// but only PatchExit runs the blr-shape validation during Fold.
	IsPatchExit bool
}

// DOLMemory is the subset of a DOL file's addressed read/write surface a
// Command needs to patch it directly, decoupling this package from the dol
// package's concrete type.
type DOLMemory interface {
	ReadU8(addr uint32) (uint8, error)
	ReadU16(addr uint32) (uint16, error)
	ReadU32(addr uint32) (uint32, error)
	WriteU8(addr uint32, v uint8) error
	WriteU16(addr uint32, v uint16) error
	WriteU32(addr uint32, v uint32) error
}

// NewBranch builds a Branch or BranchLink command.
func NewBranch(source, target word.Word, link bool) Command {
	k := KindBranch
	if link {
		k = KindBranchLink
	}
	return Command{Kind: k, Address: source, Target: target}
}

// NewPatchExit builds a PatchExit command. It always serializes and applies
// as a plain Branch (never BranchLink): this mirrors the source material's
// PatchExitCommand, which hard-codes KCmdID.Branch and never consults
// isLink because a function exit is never called with link.
func NewPatchExit(source, target word.Word) Command {
	return Command{Kind: KindBranch, Address: source, Target: target, IsPatchExit: true}
}

// NewWrite builds an unconditional write of width w. A pointer-width write
// carries its value in Target rather than Value: it serializes and
// DOL-patches exactly like an Addr32 relocation (writing a resolved absolute
// pointer), but unlike Addr32 it never folds in Apply, and its Kind makes it
// eligible for riivolution/Gecko output.
func NewWrite(address, value word.Word, w Width) Command {
	if w == WidthPointer {
		return Command{Kind: KindWritePointer, Address: address, Target: value}
	}
	return Command{Kind: writeKind(w), Address: address, Value: value, Width: w}
}

// WireID is the packed-format command id this Kind serializes as.
// KindWritePointer shares wire id 1 with KindAddr32.
func (k Kind) WireID() uint32 {
	if k == KindWritePointer {
		return uint32(KindAddr32)
	}
	return uint32(k)
}

// NewCondWrite builds a write that only takes effect (at DOL-patch time) if
// the memory at address currently holds original.
func NewCondWrite(address, value, original word.Word, w Width) Command {
	return Command{Kind: condWriteKind(w), Address: address, Value: value, Original: original, Width: w, HasOriginal: true}
}

func writeKind(w Width) Kind {
	switch w {
	case Width8:
		return KindWrite8
	case Width16:
		return KindWrite16
	default:
		return KindWrite32
	}
}

func condWriteKind(w Width) Kind {
	switch w {
	case Width8:
		return KindCondWrite8
	case Width16:
		return KindCondWrite16
	case Width32:
		return KindCondWrite32
	default:
		return KindCondWritePointer
	}
}

// NewReloc builds a relocation-derived command from an elflink.Fixup.
func NewReloc(f elflink.Fixup) (Command, error) {
	var k Kind
	switch f.Type {
	case elflink.RelocAddr32:
		k = KindAddr32
	case elflink.RelocAddr16Lo:
		k = KindAddr16Lo
	case elflink.RelocAddr16Hi:
		k = KindAddr16Hi
	case elflink.RelocAddr16Ha:
		k = KindAddr16Ha
	case elflink.RelocRel24:
		k = KindRel24
	default:
		return Command{}, errs.Wrap(errs.ErrNotImplemented, "unrecognized relocation type %d", f.Type)
	}
	return Command{Kind: k, Address: f.Source, Target: f.Dest}, nil
}

func ha16(v uint32) uint32 {
	if v&0x8000 != 0 {
		return ((v >> 16) + 1) & 0xFFFF
	}
	return (v >> 16) & 0xFFFF
}

// Apply attempts to fold a command into a direct write against mem,
// returning true if it was applied (and should be dropped from the
// deferred stream). symbolSizes is consulted only by PatchExit.
func (c *Command) Apply(mem *membuf.Buffer, symbolSizes map[word.Word]uint32) (bool, error) {
	if c.IsPatchExit {
		return ApplyPatchExit(c, mem, symbolSizes)
	}

	switch c.Kind {
	case KindBranch, KindBranchLink:
		if !foldableBranch(c.Address, c.Target) || !mem.Contains(c.Address) {
			return false, nil
		}
		insn, err := branchInstruction(c.Address, c.Target, c.Kind == KindBranchLink)
		if err != nil {
			return false, err
		}
		if err := mem.WriteU32(c.Address, insn); err != nil {
			return false, err
		}
		return true, nil

	case KindWrite8, KindWrite16, KindWrite32, KindWritePointer,
		KindCondWrite8, KindCondWrite16, KindCondWrite32, KindCondWritePointer:
		// Unconditional and conditional writes always defer to the command
		// stream, even when their target address happens to fall inside
		// this buffer: a WritePointer hook patches a live game address, not
		// the module being linked, and must never be folded into the
		// link-time image.
		return false, nil

	case KindAddr32:
		if c.Target.Kind() != word.Absolute {
			return false, nil
		}
		return true, mem.WriteU32(c.Address, c.Target.Value())

	case KindAddr16Lo:
		if c.Target.Kind() != word.Absolute {
			return false, nil
		}
		return true, mem.WriteU16(c.Address, uint16(c.Target.Value()&0xFFFF))

	case KindAddr16Hi:
		if c.Target.Kind() != word.Absolute {
			return false, nil
		}
		return true, mem.WriteU16(c.Address, uint16((c.Target.Value()>>16)&0xFFFF))

	case KindAddr16Ha:
		if c.Target.Kind() != word.Absolute {
			return false, nil
		}
		return true, mem.WriteU16(c.Address, uint16(ha16(c.Target.Value())))

	case KindRel24:
		if c.Address.Kind() != c.Target.Kind() || c.Target.Kind() == word.Value {
			return false, nil
		}
		existing, err := mem.ReadU32(c.Address)
		if err != nil {
			return false, err
		}
		delta := c.Target.Sub(c.Address)
		insn := (delta.Value() & 0x03FFFFFC) | (existing & 0xFC000003)
		return true, mem.WriteU32(c.Address, insn)

	default:
		return false, errs.Wrap(errs.ErrInvalidCommand, "unknown command kind %d", c.Kind)
	}
}

// ApplyPatchExit runs PatchExit's unconditional shape validation (the
// function must end in blr and contain no early returns) and, if it folds,
// writes the branch directly. This is split out from Apply because it
// needs symbolSizes and sets EndAddress as a side effect, unlike every
// other kind.
func ApplyPatchExit(c *Command, mem *membuf.Buffer, symbolSizes map[word.Word]uint32) (bool, error) {
	funcSize, ok := symbolSizes[c.Address]
	if !ok {
		return false, errs.Wrap(errs.ErrInvalidData, "no symbol size recorded for patch-exit address %s", c.Address)
	}
	if funcSize < 4 {
		return false, errs.Wrap(errs.ErrInvalidOperation, "patch-exit function at %s is too small", c.Address)
	}

	funcEnd := c.Address.Add(word.Val(int64(funcSize) - 4))
	last, err := mem.ReadU32(funcEnd)
	if err != nil {
		return false, err
	}
	if last != 0x4E800020 {
		return false, errs.Wrap(errs.ErrInvalidOperation, "patch-exit function at %s does not end in blr", c.Address)
	}

	for cursor := c.Address; cursor.Value() < funcEnd.Value(); cursor = cursor.Add(word.Val(4)) {
		insn, err := mem.ReadU32(cursor)
		if err != nil {
			return false, err
		}
		if insn&0xFC00FFFF == 0x4C000020 {
			return false, errs.Wrap(errs.ErrInvalidOperation, "patch-exit function at %s contains a return partway through", c.Address)
		}
	}

	c.EndAddress = funcEnd

	if !foldableBranch(c.Address, c.Target) || !mem.Contains(c.Address) {
		return false, nil
	}
	insn, err := branchInstruction(c.Address, c.Target, false)
	if err != nil {
		return false, err
	}
	return true, mem.WriteU32(c.EndAddress, insn)
}

func foldableBranch(source, target word.Word) bool {
	return source.Kind() == word.Absolute && target.Kind() == word.Absolute
}

func branchInstruction(source, target word.Word, link bool) (uint32, error) {
	if err := target.AssertNotAmbiguous(); err != nil {
		return 0, err
	}
	delta := target.Sub(source)
	insn := uint32(0x48000000)
	if link {
		insn |= 1
	}
	return insn | (delta.Value() & 0x03FFFFFC), nil
}

// ApplyToDOL applies c directly against a DOL image (used for the static
// direct-patch output path).
func (c *Command) ApplyToDOL(dol DOLMemory) error {
	if c.IsPatchExit {
		// A PatchExit always folds during Fold() when statically linked
		// (the only mode a DOL patch is valid for), so none should ever
		// reach direct DOL serialization; left unimplemented like the
		// source material's PatchExitCommand.apply_to_dol.
		return errs.Wrap(errs.ErrNotImplemented, "patch-exit command at %s did not fold before DOL serialization", c.Address)
	}

	switch c.Kind {
	case KindBranch, KindBranchLink:
		if err := c.Address.AssertAbsolute(); err != nil {
			return err
		}
		if err := c.Target.AssertAbsolute(); err != nil {
			return err
		}
		insn, err := branchInstruction(c.Address, c.Target, c.Kind == KindBranchLink)
		if err != nil {
			return err
		}
		return dol.WriteU32(c.Address.Value(), insn)

	case KindWrite8, KindWrite16, KindWrite32,
		KindCondWrite8, KindCondWrite16, KindCondWrite32, KindCondWritePointer:
		return c.applyWriteToDOL(dol)

	case KindAddr32, KindWritePointer:
		return dol.WriteU32(c.Address.Value(), c.Target.Value())

	case KindAddr16Lo:
		// Preserved quirk: the source material calls its 32-bit write
		// helper here instead of a 16-bit one, zero-extending the 16-bit
		// half-value and clobbering the next two bytes.
		return dol.WriteU32(c.Address.Value(), c.Target.Value()&0xFFFF)

	case KindAddr16Hi:
		return dol.WriteU32(c.Address.Value(), (c.Target.Value()>>16)&0xFFFF)

	case KindAddr16Ha:
		return dol.WriteU32(c.Address.Value(), ha16(c.Target.Value()))

	case KindRel24:
		if err := c.Address.AssertAbsolute(); err != nil {
			return err
		}
		if err := c.Target.AssertAbsolute(); err != nil {
			return err
		}
		existing, err := dol.ReadU32(c.Address.Value())
		if err != nil {
			return err
		}
		delta := c.Target.Sub(c.Address)
		insn := (delta.Value() & 0x03FFFFFC) | (existing & 0xFC000003)
		return dol.WriteU32(c.Address.Value(), insn)

	default:
		return errs.Wrap(errs.ErrInvalidCommand, "unknown command kind %d", c.Kind)
	}
}

func (c *Command) applyWriteToDOL(dol DOLMemory) error {
	if c.HasOriginal {
		ok, err := c.matchesOriginal(dol)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	switch c.Width {
	case Width8:
		return dol.WriteU8(c.Address.Value(), uint8(c.Value.Value()))
	case Width16:
		return dol.WriteU16(c.Address.Value(), uint16(c.Value.Value()))
	default:
		return dol.WriteU32(c.Address.Value(), c.Value.Value())
	}
}

func (c *Command) matchesOriginal(dol DOLMemory) (bool, error) {
	switch c.Width {
	case Width8:
		v, err := dol.ReadU8(c.Address.Value())
		return uint32(v) == c.Original.Value(), err
	case Width16:
		v, err := dol.ReadU16(c.Address.Value())
		return uint32(v) == c.Original.Value(), err
	default:
		v, err := dol.ReadU32(c.Address.Value())
		return v == c.Original.Value(), err
	}
}
