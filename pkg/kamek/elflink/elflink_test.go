package elflink

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manu343726/kamek/pkg/kamek/word"
)

// buildModule assembles a single-module fixture: a 4-byte .text section, a
// global symbol "foo" at its start, and one R_PPC_ADDR32 relocation in
// .text pointing at "foo" with addend 0x10.
func buildModule(t *testing.T) Module {
	t.Helper()

	strtabData, strOff := stringTable([]string{"foo"})
	symtabData := append(symEntry(0, 0, 0, 0, 0, 0), symEntry(strOff["foo"], 0, 4, elf.STB_GLOBAL, elf.STT_FUNC, 1)...)
	relaData := relaEntry(0, 1, uint32(RelocAddr32), 0x10)

	b := &elfBuilder{}
	b.add(builtSection{name: ".text", shType: elf.SHT_PROGBITS, data: []byte{0, 0, 0, 0}})
	b.add(builtSection{name: ".symtab", shType: elf.SHT_SYMTAB, data: symtabData, link: 4, entsize: 16})
	b.add(builtSection{name: ".rela.text", shType: elf.SHT_RELA, data: relaData, link: 2, info: 1, entsize: 12})
	b.add(builtSection{name: ".strtab", shType: elf.SHT_STRTAB, data: strtabData, addralign: 1})

	ef := b.build(t)
	return Module{Path: "a.o", ELF: ef}
}

func TestCollectLaysOutTextSection(t *testing.T) {
	mod := buildModule(t)
	layout, err := Collect([]Module{mod}, word.Abs(0x80001000))
	require.NoError(t, err)

	base, ok := layout.Bases[SectionKey{Module: 0, Section: 1}]
	require.True(t, ok)
	assert.Equal(t, word.Abs(0x80001000), base)
	assert.Equal(t, word.Abs(0x80001004), layout.OutputEnd)
}

func TestResolveSymbolsFindsGlobal(t *testing.T) {
	mod := buildModule(t)
	layout, err := Collect([]Module{mod}, word.Abs(0x80001000))
	require.NoError(t, err)

	st, err := ResolveSymbols([]Module{mod}, layout, map[string]uint32{"ext1": 0x80100000})
	require.NoError(t, err)

	sym, err := st.Lookup(0, "foo")
	require.NoError(t, err)
	assert.Equal(t, word.Abs(0x80001000), sym.Address)
	assert.Equal(t, uint32(4), sym.Size)

	ext, err := st.Lookup(0, "ext1")
	require.NoError(t, err)
	assert.Equal(t, word.Abs(0x80100000), ext.Address)

	_, err = st.Lookup(0, "nope")
	assert.Error(t, err)
}

func TestResolveRelocationsProducesFixup(t *testing.T) {
	mod := buildModule(t)
	layout, err := Collect([]Module{mod}, word.Abs(0x80001000))
	require.NoError(t, err)
	st, err := ResolveSymbols([]Module{mod}, layout, nil)
	require.NoError(t, err)

	fixups, kamekRelocs, err := ResolveRelocations([]Module{mod}, layout, st, word.Abs(0x80001000))
	require.NoError(t, err)
	require.Empty(t, kamekRelocs)
	require.Len(t, fixups, 1)

	f := fixups[0]
	assert.Equal(t, RelocAddr32, f.Type)
	assert.Equal(t, word.Abs(0x80001000), f.Source)
	assert.Equal(t, word.Abs(0x80001010), f.Dest)
}
