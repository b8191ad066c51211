package hooks

import (
	"fmt"
	"strings"
)

// allTypes in declaration order, for documentation purposes.
var allTypes = []Type{
	TypeBranch, TypeBranchLink, TypePatchExit,
	TypeWrite8, TypeWrite16, TypeWrite32, TypeWritePointer,
	TypeCondWrite8, TypeCondWrite16, TypeCondWrite32, TypeCondWritePointer,
}

// Documentation dumps the supported hook descriptor types as one multiline
// string, indented by leftpad spaces.
func Documentation(leftpad int) string {
	pad := strings.Repeat(" ", leftpad)
	var b strings.Builder

	b.WriteString(pad)
	b.WriteString(fmt.Sprintf("total hook types: %v\n\n", len(allTypes)))

	for _, t := range allTypes {
		b.WriteString(fmt.Sprintf("%v - %v (id %d)\n", pad, t, uint32(t)))
	}

	return b.String()
}

// DocString is Documentation with zero leftpad.
func DocString() string {
	return Documentation(0)
}
