package command

import (
	"github.com/Manu343726/kamek/pkg/kamek/errs"
	"github.com/Manu343726/kamek/pkg/kamek/membuf"
	"github.com/Manu343726/kamek/pkg/kamek/word"
)

// Fold rejects duplicate command addresses (checked against the full
// snapshot before any folding happens) and then tries to apply each command
// directly against mem, dropping the ones that fold and returning the rest
// in their original order.
func Fold(mem *membuf.Buffer, symbolSizes map[word.Word]uint32, commands []Command) ([]Command, error) {
	seen := make(map[word.Word]bool, len(commands))
	for _, c := range commands {
		if seen[c.Address] {
			return nil, errs.Wrap(errs.ErrInvalidOperation, "duplicate commands for address %s", c.Address)
		}
		seen[c.Address] = true
	}

	kept := make([]Command, 0, len(commands))
	for i := range commands {
		c := commands[i]
		applied, err := c.Apply(mem, symbolSizes)
		if err != nil {
			return nil, err
		}
		if !applied {
			kept = append(kept, c)
		}
	}
	return kept, nil
}
