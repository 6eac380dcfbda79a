// Package schema translates between model.Contact and the remote store's
// property bag, whose field names and encodings vary per deployment.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Bag is an ordered key -> Property collection. The zero value is empty and ready to use.
type Bag struct {
	keys  []string
	props map[string]Property
}

// NewBag returns an empty bag.
func NewBag() *Bag { return &Bag{props: map[string]Property{}} }

// Keys returns property names in document order.
func (b *Bag) Keys() []string {
	if b == nil {
		return nil
	}
	out := make([]string, len(b.keys))
	copy(out, b.keys)
	return out
}

func (b *Bag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.keys)
}

// Get returns the property stored under key.
func (b *Bag) Get(key string) (Property, bool) {
	if b == nil || b.props == nil {
		return Property{}, false
	}
	p, ok := b.props[key]
	return p, ok
}

// Set stores p under key, appending key if it is new.
func (b *Bag) Set(key string, p Property) {
	if b.props == nil {
		b.props = map[string]Property{}
	}
	if _, ok := b.props[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.props[key] = p
}

// MarshalJSON writes properties in insertion order.
func (b *Bag) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if b != nil {
		for i, k := range b.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := json.Marshal(b.props[k])
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object while keeping key order. A property whose
// payload does not fit the typed encodings is kept with its id and type only.
func (b *Bag) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("properties: expected object, got %v", tok)
	}
	*b = Bag{props: map[string]Property{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("properties: unexpected key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("properties: %s: %w", key, err)
		}
		b.Set(key, decodeProperty(raw))
	}
	_, err = dec.Token()
	return err
}

func decodeProperty(raw json.RawMessage) Property {
	var p Property
	if err := json.Unmarshal(raw, &p); err == nil {
		return p
	}
	var head struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	_ = json.Unmarshal(raw, &head)
	return Property{ID: head.ID, Type: head.Type}
}

// Property is one entry of the bag. Exactly one encoding is normally populated.
type Property struct {
	ID          string     `json:"id,omitempty"`
	Type        string     `json:"type,omitempty"`
	Title       []RichText `json:"title,omitempty"`
	RichText    []RichText `json:"rich_text,omitempty"`
	PhoneNumber *string    `json:"phone_number,omitempty"`
	Email       *string    `json:"email,omitempty"`
	URL         *string    `json:"url,omitempty"`
	Select      *Option    `json:"select,omitempty"`
	Status      *Option    `json:"status,omitempty"`
	Formula     *Formula   `json:"formula,omitempty"`
	Date        *DateValue `json:"date,omitempty"`
	Number      *float64   `json:"number,omitempty"`
	Checkbox    *bool      `json:"checkbox,omitempty"`
}

// RichText is a single text run.
type RichText struct {
	Type      string    `json:"type,omitempty"`
	Text      *TextBody `json:"text,omitempty"`
	PlainText string    `json:"plain_text,omitempty"`
	Href      *string   `json:"href,omitempty"`
}

type TextBody struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

type Link struct {
	URL string `json:"url"`
}

// Plain returns the run's display text.
func (r RichText) Plain() string {
	if r.PlainText != "" {
		return r.PlainText
	}
	if r.Text != nil {
		return r.Text.Content
	}
	return ""
}

// Option is a select or status choice.
type Option struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Formula holds a computed result; which member is set depends on the formula.
type Formula struct {
	Type    string     `json:"type,omitempty"`
	Number  *float64   `json:"number,omitempty"`
	String  *string    `json:"string,omitempty"`
	Date    *DateValue `json:"date,omitempty"`
	Boolean *bool      `json:"boolean,omitempty"`
}

type DateValue struct {
	Start string  `json:"start"`
	End   *string `json:"end,omitempty"`
}

func joinRuns(runs []RichText) string {
	var sb strings.Builder
	for _, r := range runs {
		sb.WriteString(r.Plain())
	}
	return sb.String()
}

func textRuns(v string) []RichText {
	return []RichText{{Text: &TextBody{Content: v}}}
}
