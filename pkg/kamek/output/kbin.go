// Package output serializes the folded command stream into every format a
// Kamek link can produce: the compact binary command stream, a riivolution
// XML memory patch, Gecko codes, and a direct DOL patch.
package output

import (
	"encoding/binary"
	"io"

	"github.com/Manu343726/kamek/pkg/kamek/command"
	"github.com/Manu343726/kamek/pkg/kamek/elflink"
	"github.com/Manu343726/kamek/pkg/kamek/errs"
	"github.com/Manu343726/kamek/pkg/kamek/word"
)

// magic is the 8-byte header every Kamek binary starts with.
var magic = [8]byte{'K', 'a', 'm', 'e', 'k', 0, 0, 1}

const escapeAddrLow = 0xFFFFFE
const inlineAddrMax = 0xFFFFFF

// EncodeKbin writes the packed binary Kamek format: header, raw linked code,
// then the deferred command stream.
func EncodeKbin(w io.Writer, layout *elflink.Layout, commands []command.Command) error {
	codeSize := layout.OutputEnd.Value() - layout.OutputStart.Value()
	bssSize := layout.BssEnd.Value() - layout.BssStart.Value()

	if uint32(len(layout.Memory.Data)) < codeSize {
		return errs.Wrap(errs.ErrInvalidData, "laid-out memory is shorter than the declared code size")
	}
	code := layout.Memory.Data[:codeSize]

	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if err := writeU32(w, bssSize); err != nil {
		return err
	}
	if err := writeU32(w, codeSize); err != nil {
		return err
	}
	if _, err := w.Write(code); err != nil {
		return err
	}

	for _, c := range commands {
		if err := encodeCommand(w, c); err != nil {
			return err
		}
	}
	return nil
}

func encodeCommand(w io.Writer, c command.Command) error {
	var addrLow uint32
	writeFullAddr := false
	if c.Address.Kind() == word.Relative && c.Address.Value() <= inlineAddrMax {
		addrLow = c.Address.Value()
	} else {
		addrLow = escapeAddrLow
		writeFullAddr = true
	}

	header := c.Kind.WireID()<<24 | addrLow
	if err := writeU32(w, header); err != nil {
		return err
	}
	if writeFullAddr {
		if err := writeU32(w, c.Address.Value()); err != nil {
			return err
		}
	}

	switch c.Kind {
	case command.KindAddr32, command.KindWritePointer, command.KindAddr16Lo, command.KindAddr16Hi, command.KindAddr16Ha, command.KindRel24:
		if err := c.Target.AssertNotAmbiguous(); err != nil {
			return err
		}
		if err := writeU32(w, c.Target.Value()); err != nil {
			return err
		}

	case command.KindBranch, command.KindBranchLink:
		if err := c.Target.AssertNotAmbiguous(); err != nil {
			return err
		}
		if err := writeU32(w, c.Target.Value()); err != nil {
			return err
		}
		if c.IsPatchExit {
			if err := writeU32(w, c.EndAddress.Value()); err != nil {
				return err
			}
		}

	case command.KindWrite8, command.KindWrite16, command.KindWrite32:
		if err := c.Value.AssertValue(); err != nil {
			return err
		}
		if err := writeU32(w, c.Value.Value()); err != nil {
			return err
		}

	case command.KindCondWrite8, command.KindCondWrite16, command.KindCondWrite32:
		if err := c.Value.AssertValue(); err != nil {
			return err
		}
		if err := writeU32(w, c.Value.Value()); err != nil {
			return err
		}
		if err := c.Original.AssertNotRelative(); err != nil {
			return err
		}
		if err := writeU32(w, c.Original.Value()); err != nil {
			return err
		}

	case command.KindCondWritePointer:
		if err := c.Value.AssertNotAmbiguous(); err != nil {
			return err
		}
		if err := writeU32(w, c.Value.Value()); err != nil {
			return err
		}
		if err := c.Original.AssertNotRelative(); err != nil {
			return err
		}
		if err := writeU32(w, c.Original.Value()); err != nil {
			return err
		}

	default:
		return errs.Wrap(errs.ErrInvalidCommand, "unencodable command kind %d", c.Kind)
	}

	return nil
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}
