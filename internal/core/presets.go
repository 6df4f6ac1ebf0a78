package core

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Preset is a named delimiter pair offered to users.
type Preset struct {
	Name  string `json:"name" yaml:"name"`
	Label string `json:"label" yaml:"label"`
	Delimiters
}

// PresetSet is an ordered collection of presets with lookup by name.
type PresetSet struct {
	list   []Preset
	byName map[string]Preset
}

// DefaultPresets returns the built-in delimiter formats.
func DefaultPresets() *PresetSet {
	set, _ := newPresetSet([]Preset{
		{Name: "curly", Label: "Curly braces {{name}}", Delimiters: Delimiters{Start: "{{", End: "}}"}},
		{Name: "square", Label: "Square brackets [name]", Delimiters: Delimiters{Start: "[", End: "]"}},
		{Name: "angle", Label: "Angle brackets <name>", Delimiters: Delimiters{Start: "<", End: ">"}},
		{Name: "dollar", Label: "Dollar $(name)", Delimiters: Delimiters{Start: "$(", End: ")"}},
	}, "builtin")
	return set
}

type presetFile struct {
	Presets []presetEntry `yaml:"presets"`
}

type presetEntry struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// LoadPresets reads presets from a YAML file of the form
//
//	presets:
//	  - name: curly
//	    label: Curly braces
//	    start: "{{"
//	    end: "}}"
//
// An empty path returns DefaultPresets.
func LoadPresets(path string) (*PresetSet, error) {
	if path == "" {
		return DefaultPresets(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("presets: read %s: %w", path, err)
	}
	return ParsePresets(data, path)
}

// ParsePresets decodes a YAML preset document. source names it in errors.
func ParsePresets(data []byte, source string) (*PresetSet, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, fmt.Errorf("presets: file %s is empty", source)
	}

	var doc presetFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("presets: parse %s: %w", source, err)
	}
	if len(doc.Presets) == 0 {
		return nil, fmt.Errorf("presets: file %s defines no presets", source)
	}

	list := make([]Preset, 0, len(doc.Presets))
	for _, e := range doc.Presets {
		label := e.Label
		if label == "" {
			label = e.Name
		}
		list = append(list, Preset{
			Name:       strings.TrimSpace(e.Name),
			Label:      label,
			Delimiters: Delimiters{Start: e.Start, End: e.End},
		})
	}
	return newPresetSet(list, source)
}

func newPresetSet(list []Preset, source string) (*PresetSet, error) {
	set := &PresetSet{byName: make(map[string]Preset, len(list))}
	for _, p := range list {
		if p.Name == "" {
			return nil, fmt.Errorf("presets: %s defines a preset with an empty name", source)
		}
		if _, dup := set.byName[p.Name]; dup {
			return nil, fmt.Errorf("presets: %s defines duplicate preset %q", source, p.Name)
		}
		if err := p.Delimiters.Validate(); err != nil {
			return nil, fmt.Errorf("presets: %s preset %q: %w", source, p.Name, err)
		}
		set.byName[p.Name] = p
		set.list = append(set.list, p)
	}
	return set, nil
}

// List returns the presets in definition order.
func (s *PresetSet) List() []Preset {
	out := make([]Preset, len(s.list))
	copy(out, s.list)
	return out
}

// Lookup returns the delimiters for name.
func (s *PresetSet) Lookup(name string) (Delimiters, bool) {
	p, ok := s.byName[strings.TrimSpace(name)]
	return p.Delimiters, ok
}
