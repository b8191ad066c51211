// Package externals loads the externs map: symbol names the linked object
// files reference but that resolve to a fixed address outside any input
// ELF (typically a well-known address inside the game binary itself).
package externals

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/Manu343726/kamek/pkg/kamek/errs"
)

var lineRE = regexp.MustCompile(`^\s*([A-Za-z0-9_<>,\-$]+)\s*=\s*0x([0-9a-fA-F]+)\s*(#.*)?$`)

// Load parses an externs file of lines `name = 0xADDR [# comment]`. Blank
// lines and lines starting with # or // are ignored. Any other
// non-conforming line is a hard error citing its line number; duplicate
// names overwrite (no ordering is preserved since the result is a plain
// map, matching "Order is not preserved; duplicates overwrite").
func Load(r io.Reader) (map[string]uint32, error) {
	result := make(map[string]uint32)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}

		m := lineRE.FindStringSubmatch(line)
		if m == nil {
			return nil, errs.Wrap(errs.ErrInvalidData, "externs line %d: does not match 'name = 0xADDR': %q", lineNo, line)
		}

		name, hex := m[1], m[2]
		addr, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return nil, errs.Wrap(errs.ErrInvalidData, "externs line %d: invalid hex address %q: %v", lineNo, hex, err)
		}

		result[name] = uint32(addr)
	}

	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrInvalidData, "reading externs: %v", err)
	}

	return result, nil
}
