package output

import (
	"github.com/Manu343726/kamek/pkg/kamek/command"
	"github.com/Manu343726/kamek/pkg/kamek/dol"
	"github.com/Manu343726/kamek/pkg/kamek/elflink"
	"github.com/Manu343726/kamek/pkg/kamek/errs"
	"github.com/Manu343726/kamek/pkg/kamek/word"
)

// EncodeDOL appends the linked code as a new text section at base and then
// applies every remaining command directly against the DOL image. Only
// valid for a statically (ABSOLUTE-based) linked module.
func EncodeDOL(f *dol.File, layout *elflink.Layout, base word.Word, commands []command.Command) error {
	if base.Kind() == word.Relative {
		return errs.Wrap(errs.ErrInvalidOperation, "cannot patch a DOL for a dynamically linked binary")
	}

	codeSize := layout.OutputEnd.Value() - layout.OutputStart.Value()
	if uint32(len(layout.Memory.Data)) < codeSize {
		return errs.Wrap(errs.ErrInvalidData, "laid-out memory is shorter than the declared code size")
	}
	code := layout.Memory.Data[:codeSize]

	if err := f.AppendTextSection(base.Value(), code); err != nil {
		return err
	}

	for i := range commands {
		if err := commands[i].ApplyToDOL(f); err != nil {
			return err
		}
	}
	return nil
}
