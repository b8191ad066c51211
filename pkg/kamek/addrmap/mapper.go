// Package addrmap implements the per-version address translation table: an
// ordered list of (start, end) -> delta rules, optionally chained to a
// parent mapper, plus the loader that turns a version-map file into one
// Mapper per named game version.
package addrmap

import (
	"github.com/Manu343726/kamek/pkg/kamek/errs"
)

// Rule is one (start, end) -> delta translation entry. end is inclusive.
type Rule struct {
	Start uint32
	End   uint32
	Delta int64
}

func (r Rule) contains(addr uint32) bool {
	return addr >= r.Start && addr <= r.End
}

func (r Rule) apply(addr uint32) uint32 {
	return uint32(uint64(int64(addr)+r.Delta) & 0xFFFFFFFF)
}

// Mapper translates raw addresses for one game version. A Mapper with no
// rules and no parent is the identity mapping.
type Mapper struct {
	rules  []Rule
	parent *Mapper
}

// Identity returns a Mapper that leaves every address unchanged.
func Identity() *Mapper {
	return &Mapper{}
}

// Remap walks the mapper's rules in order; the first rule whose [Start, End]
// contains addr wins and its delta is applied. If no rule matches, lookup
// falls through to the parent mapper (if any), otherwise addr is returned
// unchanged.
func (m *Mapper) Remap(addr uint32) uint32 {
	for _, r := range m.rules {
		if r.contains(addr) {
			return r.apply(addr)
		}
	}
	if m.parent != nil {
		return m.parent.Remap(addr)
	}
	return addr
}

// Builder appends rules to produce an immutable Mapper, rejecting
// overlapping or non-monotonic intervals at build time.
type Builder struct {
	parent *Mapper
	rules  []Rule
}

// NewBuilder starts building a Mapper whose lookups fall through to parent
// (which may be nil).
func NewBuilder(parent *Mapper) *Builder {
	return &Builder{parent: parent}
}

// AddRule appends a translation rule. Rules must be added in non-decreasing
// Start order and must not overlap any previously added rule in this same
// builder.
func (b *Builder) AddRule(start, end uint32, delta int64) error {
	if end < start {
		return errs.Wrap(errs.ErrInvalidData, "mapper rule end 0x%x is before start 0x%x", end, start)
	}
	if len(b.rules) > 0 {
		last := b.rules[len(b.rules)-1]
		if start <= last.End {
			return errs.Wrap(errs.ErrInvalidData, "mapper rule [0x%x, 0x%x] overlaps or precedes previous rule [0x%x, 0x%x]", start, end, last.Start, last.End)
		}
	}
	b.rules = append(b.rules, Rule{Start: start, End: end, Delta: delta})
	return nil
}

// Build produces the immutable Mapper.
func (b *Builder) Build() *Mapper {
	rules := make([]Rule, len(b.rules))
	copy(rules, b.rules)
	return &Mapper{rules: rules, parent: b.parent}
}
