package schema

import (
	"fmt"
	"strings"

	"github.com/mycelian/contacts-service/internal/model"
)

// PageMeta is the per-record metadata the store reports next to the properties.
type PageMeta struct {
	ID             string
	CreatedTime    string
	LastEditedTime string
	Archived       bool
}

// Mapper translates between model.Contact and a property Bag. It holds no
// mutable state and is safe for concurrent use.
type Mapper struct {
	fields     []FieldSpec
	categories map[string][2]*aliasTable
}

// NewMapper validates t and compiles its alias tables.
func NewMapper(t Tables) (*Mapper, error) {
	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("schema tables: %w", err)
	}
	m := &Mapper{
		fields:     append([]FieldSpec(nil), t.Fields...),
		categories: make(map[string][2]*aliasTable, len(t.Categories)),
	}
	for name, c := range t.Categories {
		m.categories[name] = [2]*aliasTable{
			Read:  compileTable(c.Read, c.Partial),
			Write: compileTable(c.Write, false),
		}
	}
	return m, nil
}

// Default returns a mapper built from the embedded tables.
func Default() *Mapper {
	t, err := DefaultTables()
	if err != nil {
		panic(err)
	}
	m, err := NewMapper(t)
	if err != nil {
		panic(err)
	}
	return m
}

// Canonicalize maps raw through the alias table of axis in direction dir.
// Unknown axes only trim the value.
func (m *Mapper) Canonicalize(axis, raw string, dir Direction) string {
	tables, ok := m.categories[axis]
	if !ok {
		return strings.TrimSpace(raw)
	}
	return tables[dir].canonicalize(raw)
}

// ToCanonical builds a contact from bag. It never fails: fields that are
// missing or cannot be read are left at their zero value.
func (m *Mapper) ToCanonical(bag *Bag, meta PageMeta) model.Contact {
	var p model.Patch
	for _, f := range m.fields {
		key, ok := FindPropertyKey(bag, f.Candidates)
		if !ok {
			continue
		}
		v, ok := ExtractValue(bag, key, f.Kind)
		if !ok {
			continue
		}
		slot, _ := fieldSlot(&p, f.Name)
		switch s := slot.(type) {
		case **string:
			str := strings.TrimSpace(v.String())
			if f.Category != "" {
				str = m.Canonicalize(f.Category, str, Read)
			}
			if str != "" {
				*s = &str
			}
		case **int:
			if n, ok := v.Int(); ok {
				n = max(n, 0)
				*s = &n
			}
		}
	}

	c := model.Contact{ID: meta.ID, RemoteLastEditedAt: meta.LastEditedTime}
	p.Apply(&c)
	if strings.TrimSpace(c.Name) == "" {
		c.Name = model.UnnamedContact
	}
	c.FirstName, c.LastName = SplitName(c.Name)
	return c
}

// ToExternal builds the property bag for every non-blank field of c.
func (m *Mapper) ToExternal(c model.Contact, existing *Bag) *Bag {
	return m.ToExternalPatch(model.PatchFromContact(c), existing)
}

// ToExternalPatch builds the property bag for the supplied fields of p.
// Blank values and read-only fields are never written. Property names already
// present in existing are reused so repeated writes do not add new columns.
func (m *Mapper) ToExternalPatch(p model.Patch, existing *Bag) *Bag {
	out := NewBag()
	for _, f := range m.fields {
		if f.ReadOnly {
			continue
		}
		key, found := FindPropertyKey(existing, f.Candidates)
		if !found {
			key = f.Candidates[0]
		}

		slot, _ := fieldSlot(&p, f.Name)
		var (
			prop Property
			ok   bool
		)
		switch s := slot.(type) {
		case **string:
			if *s == nil {
				continue
			}
			v := strings.TrimSpace(**s)
			if f.Category != "" {
				v = m.Canonicalize(f.Category, v, Write)
			}
			if v == "" {
				continue
			}
			kind := f.WriteKind()
			if found {
				kind = preferExisting(kind, existing, key)
			}
			prop, ok = encodeText(kind, v)
		case **int:
			if *s == nil {
				continue
			}
			n := float64(**s)
			prop, ok = Property{Number: &n}, true
		}
		if ok {
			out.Set(key, prop)
		}
	}
	return out
}

// textKinds can carry an arbitrary string.
var textKinds = map[Kind]bool{
	KindTitle: true, KindRichText: true, KindPhone: true, KindEmail: true,
	KindURL: true, KindSelect: true, KindStatus: true,
}

func preferExisting(kind Kind, existing *Bag, key string) Kind {
	p, _ := existing.Get(key)
	own := Kind(p.Type)
	if textKinds[kind] && textKinds[own] {
		return own
	}
	return kind
}

func encodeText(kind Kind, v string) (Property, bool) {
	switch kind {
	case KindTitle:
		return Property{Title: textRuns(v)}, true
	case KindRichText:
		return Property{RichText: textRuns(v)}, true
	case KindPhone:
		return Property{PhoneNumber: &v}, true
	case KindEmail:
		return Property{Email: &v}, true
	case KindURL, KindLink:
		return Property{URL: &v}, true
	case KindSelect:
		return Property{Select: &Option{Name: v}}, true
	case KindStatus:
		return Property{Status: &Option{Name: v}}, true
	case KindDate:
		return Property{Date: &DateValue{Start: v}}, true
	}
	return Property{}, false
}

// fieldSlot returns a pointer to the Patch member that holds field name:
// a **string or a **int.
func fieldSlot(p *model.Patch, name string) (any, bool) {
	if p == nil {
		p = &model.Patch{}
	}
	switch name {
	case "name":
		return &p.Name, true
	case "email":
		return &p.Email, true
	case "phone":
		return &p.Phone, true
	case "status":
		return &p.Status, true
	case "type":
		return &p.Type, true
	case "group":
		return &p.Group, true
	case "relationship_type":
		return &p.RelationshipType, true
	case "title":
		return &p.Title, true
	case "company":
		return &p.Company, true
	case "industry":
		return &p.Industry, true
	case "location":
		return &p.Location, true
	case "linkedin_url":
		return &p.LinkedInURL, true
	case "notes":
		return &p.Notes, true
	case "followup_context":
		return &p.FollowupContext, true
	case "last_contact_date":
		return &p.LastContactDate, true
	case "created_date":
		return &p.CreatedDate, true
	case "next_followup_date":
		return &p.NextFollowupDate, true
	case "call_count":
		return &p.CallCount, true
	case "days_at_current_status":
		return &p.DaysAtStatus, true
	}
	return nil, false
}
