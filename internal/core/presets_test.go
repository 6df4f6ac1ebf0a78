package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultPresets(t *testing.T) {
	set := DefaultPresets()

	var names []string
	for _, p := range set.List() {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"curly", "square", "angle", "dollar"}, names); diff != "" {
		t.Errorf("preset names mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		name string
		want Delimiters
	}{
		{"curly", Delimiters{"{{", "}}"}},
		{"square", Delimiters{"[", "]"}},
		{"angle", Delimiters{"<", ">"}},
		{"dollar", Delimiters{"$(", ")"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := set.Lookup(tt.name)
			if !ok || got != tt.want {
				t.Errorf("Lookup(%q) = %+v, %v; want %+v", tt.name, got, ok, tt.want)
			}
		})
	}

	if _, ok := set.Lookup("pipes"); ok {
		t.Error("Lookup of unknown preset succeeded")
	}
}

func TestLoadPresets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.yaml")
	content := `presets:
  - name: pipes
    label: Pipes
    start: "||"
    end: "||"
  - name: percent
    start: "%"
    end: "%"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	set, err := LoadPresets(path)
	if err != nil {
		t.Fatalf("LoadPresets() error = %v", err)
	}
	want := []Preset{
		{Name: "pipes", Label: "Pipes", Delimiters: Delimiters{"||", "||"}},
		{Name: "percent", Label: "percent", Delimiters: Delimiters{"%", "%"}},
	}
	if diff := cmp.Diff(want, set.List()); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPresets_EmptyPath(t *testing.T) {
	set, err := LoadPresets("")
	if err != nil {
		t.Fatalf("LoadPresets(\"\") error = %v", err)
	}
	if len(set.List()) != 4 {
		t.Errorf("LoadPresets(\"\") returned %d presets, want the 4 built-ins", len(set.List()))
	}
}

func TestParsePresets_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"empty", "  \n", "is empty"},
		{"no presets", "presets: []\n", "defines no presets"},
		{"bad yaml", "presets: [\n", "parse"},
		{"missing name", "presets:\n  - start: a\n    end: b\n", "empty name"},
		{"duplicate", "presets:\n  - {name: a, start: x, end: y}\n  - {name: a, start: x, end: y}\n", "duplicate preset"},
		{"missing end", "presets:\n  - {name: a, start: x}\n", "end delimiter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePresets([]byte(tt.content), "test.yaml")
			if err == nil {
				t.Fatal("ParsePresets() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("ParsePresets() error = %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}
