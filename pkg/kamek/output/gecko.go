package output

import (
	"github.com/Manu343726/kamek/pkg/kamek/command"
	"github.com/Manu343726/kamek/pkg/kamek/errs"
)

// mem2Start is the boundary above which gecko writes are not yet supported.
const mem2Start = 0x90000000

// EncodeGecko turns every unconditional Value16/Value32/Pointer write into
// one 64-bit gecko code. Any non-write command (branch, relocation) is
// silently skipped — gecko has no encoding for those — but a write command
// this function cannot express (conditional, 8-bit, or MEM2-addressed) is a
// hard error rather than a silent drop.
func EncodeGecko(commands []command.Command) ([]uint64, error) {
	var codes []uint64

	for _, c := range commands {
		is8Bit, ok := isWriteCommand(c.Kind)
		if !ok {
			continue
		}

		if err := c.Address.AssertAbsolute(); err != nil {
			return nil, err
		}
		if c.HasOriginal {
			return nil, errs.Wrap(errs.ErrNotImplemented, "conditional writes not yet supported for gecko")
		}
		if c.Address.Value() >= mem2Start {
			return nil, errs.Wrap(errs.ErrNotImplemented, "MEM2 writes not yet supported for gecko")
		}
		if is8Bit {
			return nil, errs.Wrap(errs.ErrNotImplemented, "8-bit writes not supported for gecko")
		}

		kindMask, value, err := geckoPayload(c)
		if err != nil {
			return nil, err
		}

		high := uint64(c.Address.Value()&0x01FFFFFF) | kindMask
		codes = append(codes, high<<32|uint64(value))
	}

	return codes, nil
}

// isWriteCommand reports whether k is any Write*/CondWrite* kind (is8Bit
// distinguishes the one width gecko cannot express at all).
func isWriteCommand(k command.Kind) (is8Bit, ok bool) {
	switch k {
	case command.KindWrite8, command.KindCondWrite8:
		return true, true
	case command.KindWrite16, command.KindCondWrite16,
		command.KindWrite32, command.KindCondWrite32,
		command.KindWritePointer, command.KindCondWritePointer:
		return false, true
	default:
		return false, false
	}
}

func geckoPayload(c command.Command) (kindMask uint64, value uint32, err error) {
	switch c.Kind {
	case command.KindWrite16:
		if err := c.Value.AssertValue(); err != nil {
			return 0, 0, err
		}
		return 0x02000000, c.Value.Value(), nil
	case command.KindWrite32:
		if err := c.Value.AssertValue(); err != nil {
			return 0, 0, err
		}
		return 0x04000000, c.Value.Value(), nil
	case command.KindWritePointer:
		if err := c.Target.AssertAbsolute(); err != nil {
			return 0, 0, err
		}
		return 0x04000000, c.Target.Value(), nil
	default:
		return 0, 0, errs.Wrap(errs.ErrInvalidOperation, "unencodable gecko command kind %d", c.Kind)
	}
}
