package output

import (
	"fmt"
	"io"

	"github.com/Manu343726/kamek/pkg/kamek/command"
)

// EncodeRiivolution writes one <memory .../> element per WriteCommand-shaped
// command (any other kind is silently skipped; riivolution XML has no way
// to express a branch or relocation). Widths format as 2, 4, or 8 hex
// digits; a conditional write also emits its original value.
func EncodeRiivolution(w io.Writer, commands []command.Command) error {
	if _, err := fmt.Fprintln(w, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "<wiidisc>"); err != nil {
		return err
	}

	for _, c := range commands {
		line, ok, err := riivoLine(c)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if _, err := fmt.Fprintln(w, "  "+line); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w, "</wiidisc>")
	return err
}

func riivoLine(c command.Command) (string, bool, error) {
	digits, ok := writeDigits(c.Kind)
	if !ok {
		return "", false, nil
	}

	if err := c.Address.AssertAbsolute(); err != nil {
		return "", false, err
	}
	if c.Kind == command.KindWritePointer {
		if err := c.Target.AssertAbsolute(); err != nil {
			return "", false, err
		}
	} else if err := c.Value.AssertValue(); err != nil {
		return "", false, err
	}

	value := c.Value.Value()
	if c.Kind == command.KindWritePointer {
		value = c.Target.Value()
	}

	if c.HasOriginal {
		if err := c.Original.AssertNotRelative(); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("<memory offset='0x%08X' value='%0*X' original='%0*X' />",
			c.Address.Value(), digits, value, digits, c.Original.Value()), true, nil
	}

	return fmt.Sprintf("<memory offset='0x%08X' value='%0*X' />", c.Address.Value(), digits, value), true, nil
}

func writeDigits(k command.Kind) (int, bool) {
	switch k {
	case command.KindWrite8, command.KindCondWrite8:
		return 2, true
	case command.KindWrite16, command.KindCondWrite16:
		return 4, true
	case command.KindWrite32, command.KindCondWrite32, command.KindWritePointer, command.KindCondWritePointer:
		return 8, true
	default:
		return 0, false
	}
}
