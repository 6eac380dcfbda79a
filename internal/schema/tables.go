package schema

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed tables.yaml
var defaultTables []byte

// Direction selects which alias table a category value goes through.
type Direction int

const (
	// Read converts a remote label to its canonical form.
	Read Direction = iota
	// Write converts a canonical label to the remote display form.
	Write
)

func (d Direction) String() string {
	if d == Write {
		return "write"
	}
	return "read"
}

// Fallback is applied to category values no alias matches.
type Fallback string

const (
	FallbackKeep       Fallback = "keep"
	FallbackCapitalize Fallback = "capitalize"
	FallbackSnake      Fallback = "snake"
	FallbackTitle      Fallback = "title"
)

// Tables is the data that drives the mapper.
type Tables struct {
	Fields     []FieldSpec             `yaml:"fields"`
	Categories map[string]CategorySpec `yaml:"categories"`
}

// FieldSpec binds a canonical field to the remote property names it may appear under.
type FieldSpec struct {
	Name       string   `yaml:"name"`
	Kind       Kind     `yaml:"kind"`
	Write      Kind     `yaml:"write"`
	Category   string   `yaml:"category"`
	ReadOnly   bool     `yaml:"readonly"`
	Candidates []string `yaml:"candidates"`
}

// WriteKind is the encoding used when sending the field.
func (f FieldSpec) WriteKind() Kind {
	if f.Write != "" {
		return f.Write
	}
	return f.Kind
}

// CategorySpec holds both alias directions of one categorical field. Partial
// enables whole-word matching against alias keys on read; writes only ever
// use exact aliases.
type CategorySpec struct {
	Partial bool          `yaml:"partial"`
	Read    DirectionSpec `yaml:"read"`
	Write   DirectionSpec `yaml:"write"`
}

type DirectionSpec struct {
	Strip    string            `yaml:"strip"`
	Fallback Fallback          `yaml:"fallback"`
	Aliases  map[string]string `yaml:"aliases"`
}

type aliasTable struct {
	strip    string
	fallback Fallback
	aliases  map[string]string
	// partial lists alias keys longest first; nil disables word matching.
	partial []string
}

// minPartial is the shortest string allowed to take part in a word match.
const minPartial = 3

// DefaultTables parses the built-in tables.
func DefaultTables() (Tables, error) {
	return ParseTables(bytes.NewReader(defaultTables))
}

// ParseTables decodes YAML tables from r.
func ParseTables(r io.Reader) (Tables, error) {
	var t Tables
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Tables{}, fmt.Errorf("decode schema tables: %w", err)
	}
	return t, nil
}

// LoadTables reads tables from path, or the built-in tables when path is empty.
func LoadTables(path string) (Tables, error) {
	if path == "" {
		return DefaultTables()
	}
	f, err := os.Open(path)
	if err != nil {
		return Tables{}, fmt.Errorf("open schema tables: %w", err)
	}
	defer f.Close()
	return ParseTables(f)
}

func (t Tables) validate() error {
	seen := map[string]bool{}
	for _, f := range t.Fields {
		if _, ok := fieldSlot(nil, f.Name); !ok {
			return fmt.Errorf("field %q: unknown field", f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("field %q: defined twice", f.Name)
		}
		seen[f.Name] = true
		if !f.Kind.valid() {
			return fmt.Errorf("field %q: unknown kind %q", f.Name, f.Kind)
		}
		if f.Write != "" && !f.Write.valid() {
			return fmt.Errorf("field %q: unknown write kind %q", f.Name, f.Write)
		}
		if len(f.Candidates) == 0 {
			return fmt.Errorf("field %q: no candidate names", f.Name)
		}
		if f.Category != "" {
			if _, ok := t.Categories[f.Category]; !ok {
				return fmt.Errorf("field %q: unknown category %q", f.Name, f.Category)
			}
		}
	}
	for name, c := range t.Categories {
		for _, d := range []DirectionSpec{c.Read, c.Write} {
			switch d.Fallback {
			case "", FallbackKeep, FallbackCapitalize, FallbackSnake, FallbackTitle:
			default:
				return fmt.Errorf("category %q: unknown fallback %q", name, d.Fallback)
			}
		}
	}
	return nil
}

func compileTable(d DirectionSpec, partial bool) *aliasTable {
	t := &aliasTable{strip: d.Strip, fallback: d.Fallback, aliases: make(map[string]string, len(d.Aliases))}
	for k, v := range d.Aliases {
		t.aliases[strings.ToLower(strings.TrimSpace(k))] = v
	}
	if partial {
		for k := range t.aliases {
			if len(k) >= minPartial && k == wordsOf(k) {
				t.partial = append(t.partial, k)
			}
		}
		sort.Slice(t.partial, func(i, j int) bool {
			if len(t.partial[i]) != len(t.partial[j]) {
				return len(t.partial[i]) > len(t.partial[j])
			}
			return t.partial[i] < t.partial[j]
		})
	}
	return t
}

func (t *aliasTable) canonicalize(raw string) string {
	v := strings.TrimSpace(raw)
	if t.strip != "" {
		v = strings.TrimSpace(strings.TrimRight(v, t.strip))
	}
	if v == "" {
		return ""
	}
	lv := strings.ToLower(v)
	if out, ok := t.aliases[lv]; ok {
		return out
	}
	if len(lv) >= minPartial && len(t.partial) > 0 {
		words := " " + wordsOf(lv) + " "
		for _, k := range t.partial {
			if strings.Contains(words, " "+k+" ") || strings.Contains(" "+k+" ", words) {
				return t.aliases[k]
			}
		}
	}
	return applyFallback(t.fallback, v)
}

func applyFallback(f Fallback, v string) string {
	switch f {
	case FallbackCapitalize:
		r, size := utf8.DecodeRuneInString(v)
		return string(unicode.ToUpper(r)) + v[size:]
	case FallbackSnake:
		return strings.ReplaceAll(strings.ToLower(v), " ", "_")
	case FallbackTitle:
		return cases.Title(language.Und).String(strings.ReplaceAll(v, "_", " "))
	}
	return v
}

// wordsOf lowercases s and joins its letter and digit runs with single spaces.
func wordsOf(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}
