// Package linker orchestrates one static or dynamic link: laying out every
// input module, resolving symbols and relocations, extracting and lowering
// hooks, and folding the combined command stream, in the fixed pipeline
// order Collect -> ResolveSymbols -> ResolveRelocations -> Extract ->
// LowerHooks -> Fold.
package linker

import (
	"github.com/Manu343726/kamek/pkg/kamek/command"
	"github.com/Manu343726/kamek/pkg/kamek/elflink"
	"github.com/Manu343726/kamek/pkg/kamek/errs"
	"github.com/Manu343726/kamek/pkg/kamek/hooks"
	"github.com/Manu343726/kamek/pkg/kamek/word"
)

// Result is everything the output encoders need: the laid-out memory image
// plus the command stream left over after static folding.
type Result struct {
	Layout   *elflink.Layout
	Symbols  *elflink.SymbolTable
	Commands []command.Command
}

// Linker performs exactly one link. A second call to LinkStatic/LinkDynamic
// on the same instance fails with ErrAlreadyLinked; build a fresh Linker per
// version when linking more than one.
type Linker struct {
	used bool
}

// New returns a ready-to-use, single-use Linker.
func New() *Linker {
	return &Linker{}
}

// LinkStatic links modules against a fixed absolute load address, producing
// a result that can also be serialized as a direct DOL patch.
func (l *Linker) LinkStatic(modules []elflink.Module, base uint32, externs map[string]uint32) (*Result, error) {
	return l.link(modules, word.Abs(base), externs)
}

// LinkDynamic links modules relative to a load base that is only known at
// runtime (a dynamically loaded Kamek binary).
func (l *Linker) LinkDynamic(modules []elflink.Module, externs map[string]uint32) (*Result, error) {
	return l.link(modules, word.Rel(0), externs)
}

func (l *Linker) link(modules []elflink.Module, base word.Word, externs map[string]uint32) (*Result, error) {
	if l.used {
		return nil, errs.Wrap(errs.ErrAlreadyLinked, "this linker instance has already performed a link")
	}
	l.used = true

	layout, err := elflink.Collect(modules, base)
	if err != nil {
		return nil, err
	}

	symtab, err := elflink.ResolveSymbols(modules, layout, externs)
	if err != nil {
		return nil, err
	}

	fixups, kamekRelocs, err := elflink.ResolveRelocations(modules, layout, symtab, base)
	if err != nil {
		return nil, err
	}

	descriptors, err := hooks.Extract(modules, layout, symtab, kamekRelocs)
	if err != nil {
		return nil, err
	}

	hookCommands, err := command.LowerHooks(descriptors)
	if err != nil {
		return nil, err
	}

	// Fixups are added to the command set before hooks, matching the order
	// relocations and hook descriptors were discovered in.
	all := make([]command.Command, 0, len(fixups)+len(hookCommands))
	for _, f := range fixups {
		c, err := command.NewReloc(f)
		if err != nil {
			return nil, err
		}
		all = append(all, c)
	}
	all = append(all, hookCommands...)

	folded, err := command.Fold(layout.Memory, symtab.Sizes, all)
	if err != nil {
		return nil, err
	}

	return &Result{Layout: layout, Symbols: symtab, Commands: folded}, nil
}
