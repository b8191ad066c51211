package addrmap

import (
	"io"

	"github.com/Manu343726/kamek/pkg/kamek/errs"
	"gopkg.in/yaml.v3"
)

// DefaultVersion is the single version produced when no version-map file is
// supplied.
const DefaultVersion = "default"

// VersionMap is the ordered result of loading a version-map file: every
// named version extends the same root mapper, and name order is preserved
// for deterministic output generation ($KV$ substitution order).
type VersionMap struct {
	Root    *Mapper
	Names   []string
	Mappers map[string]*Mapper
}

// yamlRule mirrors a single rule entry as it appears in the version-map
// file: {start, end, delta}, all accepting either decimal or 0x-prefixed
// hex via yaml's native integer parsing.
type yamlRule struct {
	Start uint32 `yaml:"start"`
	End   uint32 `yaml:"end"`
	Delta int64  `yaml:"delta"`
}

type yamlVersionMap struct {
	Versions yaml.Node `yaml:"versions"`
}

// LoadVersionMap parses a version-map YAML document of the shape:
//
//	versions:
//	  PAL:
//	    - {start: 0x80000000, end: 0x80001000, delta: 16}
//	  NTSC-U:
//	    - {start: 0x80000000, end: 0x80002000, delta: -16}
//
// producing one child Mapper per version, each extending a shared identity
// root. Versions are returned in document order.
func LoadVersionMap(r io.Reader) (*VersionMap, error) {
	var doc yamlVersionMap
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, errs.Wrap(errs.ErrInvalidData, "parsing version map: %v", err)
	}

	root := Identity()
	vm := &VersionMap{
		Root:    root,
		Mappers: map[string]*Mapper{},
	}

	if doc.Versions.Kind == 0 {
		return Default(), nil
	}
	if doc.Versions.Kind != yaml.MappingNode {
		return nil, errs.Wrap(errs.ErrInvalidData, "versions must be a mapping of name -> rule list")
	}

	for i := 0; i+1 < len(doc.Versions.Content); i += 2 {
		name := doc.Versions.Content[i].Value
		var rules []yamlRule
		if err := doc.Versions.Content[i+1].Decode(&rules); err != nil {
			return nil, errs.Wrap(errs.ErrInvalidData, "version %q: %v", name, err)
		}

		b := NewBuilder(root)
		for _, rule := range rules {
			if err := b.AddRule(rule.Start, rule.End, rule.Delta); err != nil {
				return nil, errs.Wrap(errs.ErrInvalidData, "version %q: %v", name, err)
			}
		}

		vm.Names = append(vm.Names, name)
		vm.Mappers[name] = b.Build()
	}

	if len(vm.Names) == 0 {
		return Default(), nil
	}

	return vm, nil
}

// Default returns the implicit version map used when no file is given: a
// single version named "default" with an identity mapper.
func Default() *VersionMap {
	root := Identity()
	return &VersionMap{
		Root:    root,
		Names:   []string{DefaultVersion},
		Mappers: map[string]*Mapper{DefaultVersion: NewBuilder(root).Build()},
	}
}
