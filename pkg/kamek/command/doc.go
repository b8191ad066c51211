package command

import (
	"fmt"
	"strings"
)

var kindNames = map[Kind]string{
	KindAddr32:           "Addr32",
	KindAddr16Lo:         "Addr16Lo",
	KindAddr16Hi:         "Addr16Hi",
	KindAddr16Ha:         "Addr16Ha",
	KindRel24:            "Rel24",
	KindWritePointer:     "WritePointer",
	KindWrite32:          "Write32",
	KindWrite16:          "Write16",
	KindWrite8:           "Write8",
	KindCondWritePointer: "CondWritePointer",
	KindCondWrite32:      "CondWrite32",
	KindCondWrite16:      "CondWrite16",
	KindCondWrite8:       "CondWrite8",
	KindBranch:           "Branch",
	KindBranchLink:       "BranchLink",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// allKinds in declaration order, for documentation purposes.
var allKinds = []Kind{
	KindAddr32, KindAddr16Lo, KindAddr16Hi, KindAddr16Ha, KindRel24,
	KindWritePointer, KindWrite32, KindWrite16, KindWrite8,
	KindCondWritePointer, KindCondWrite32, KindCondWrite16, KindCondWrite8,
	KindBranch, KindBranchLink,
}

// Documentation dumps the supported command kinds, their packed-format wire
// id, as one multiline string, indented by leftpad spaces.
func Documentation(leftpad int) string {
	pad := strings.Repeat(" ", leftpad)
	var b strings.Builder

	b.WriteString(pad)
	b.WriteString(fmt.Sprintf("total command kinds: %v\n\n", len(allKinds)))

	for _, k := range allKinds {
		b.WriteString(fmt.Sprintf("%v - %v (wire id %d)\n", pad, k, k.WireID()))
	}

	return b.String()
}

// DocString is Documentation with zero leftpad.
func DocString() string {
	return Documentation(0)
}
