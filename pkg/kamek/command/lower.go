package command

import (
	"github.com/Manu343726/kamek/pkg/kamek/errs"
	"github.com/Manu343726/kamek/pkg/kamek/hooks"
)

// LowerHooks translates decoded hook descriptors into Commands, validating
// each descriptor's argument count against what its Type requires.
func LowerHooks(descriptors []hooks.Descriptor) ([]Command, error) {
	out := make([]Command, 0, len(descriptors))

	for _, d := range descriptors {
		switch d.Type {
		case hooks.TypeBranch, hooks.TypeBranchLink:
			if err := requireArgs(d, 2); err != nil {
				return nil, err
			}
			out = append(out, NewBranch(d.Args[0], d.Args[1], d.Type == hooks.TypeBranchLink))

		case hooks.TypePatchExit:
			if err := requireArgs(d, 2); err != nil {
				return nil, err
			}
			out = append(out, NewPatchExit(d.Args[0], d.Args[1]))

		case hooks.TypeWrite8:
			if err := requireArgs(d, 2); err != nil {
				return nil, err
			}
			out = append(out, NewWrite(d.Args[0], d.Args[1], Width8))
		case hooks.TypeWrite16:
			if err := requireArgs(d, 2); err != nil {
				return nil, err
			}
			out = append(out, NewWrite(d.Args[0], d.Args[1], Width16))
		case hooks.TypeWrite32:
			if err := requireArgs(d, 2); err != nil {
				return nil, err
			}
			out = append(out, NewWrite(d.Args[0], d.Args[1], Width32))
		case hooks.TypeWritePointer:
			if err := requireArgs(d, 2); err != nil {
				return nil, err
			}
			out = append(out, NewWrite(d.Args[0], d.Args[1], WidthPointer))

		case hooks.TypeCondWrite8:
			if err := requireArgs(d, 3); err != nil {
				return nil, err
			}
			out = append(out, NewCondWrite(d.Args[0], d.Args[1], d.Args[2], Width8))
		case hooks.TypeCondWrite16:
			if err := requireArgs(d, 3); err != nil {
				return nil, err
			}
			out = append(out, NewCondWrite(d.Args[0], d.Args[1], d.Args[2], Width16))
		case hooks.TypeCondWrite32:
			if err := requireArgs(d, 3); err != nil {
				return nil, err
			}
			out = append(out, NewCondWrite(d.Args[0], d.Args[1], d.Args[2], Width32))
		case hooks.TypeCondWritePointer:
			if err := requireArgs(d, 3); err != nil {
				return nil, err
			}
			out = append(out, NewCondWrite(d.Args[0], d.Args[1], d.Args[2], WidthPointer))

		default:
			return nil, errs.Wrap(errs.ErrInvalidOperation, "unrecognized hook type %d", d.Type)
		}
	}

	return out, nil
}

func requireArgs(d hooks.Descriptor, n int) error {
	if len(d.Args) != n {
		return errs.Wrap(errs.ErrInvalidOperation, "hook type %d expects %d arguments, got %d", d.Type, n, len(d.Args))
	}
	return nil
}
