package schema

import (
	"math"
	"strconv"
	"strings"
)

// Kind names a property encoding.
type Kind string

const (
	KindTitle    Kind = "title"
	KindRichText Kind = "rich_text"
	KindPhone    Kind = "phone_number"
	KindEmail    Kind = "email"
	KindURL      Kind = "url"
	KindSelect   Kind = "select"
	KindStatus   Kind = "status"
	KindFormula  Kind = "formula"
	KindDate     Kind = "date"
	KindNumber   Kind = "number"
	KindCheckbox Kind = "checkbox"
	// KindLink reads a hyperlink from whichever encoding carries it.
	KindLink Kind = "link"
)

func (k Kind) valid() bool {
	switch k {
	case KindTitle, KindRichText, KindPhone, KindEmail, KindURL, KindSelect,
		KindStatus, KindFormula, KindDate, KindNumber, KindCheckbox, KindLink:
		return true
	}
	return false
}

// Scalar is a value pulled out of a property.
type Scalar struct {
	Text    string
	Number  *float64
	Boolean *bool
}

// String renders the scalar as text; whole numbers have no decimal point.
func (s Scalar) String() string {
	switch {
	case s.Number != nil:
		return strconv.FormatFloat(*s.Number, 'f', -1, 64)
	case s.Boolean != nil:
		return strconv.FormatBool(*s.Boolean)
	}
	return s.Text
}

// Int returns the scalar as an integer when it holds a number or numeric text.
func (s Scalar) Int() (int, bool) {
	if s.Number != nil {
		return int(math.Round(*s.Number)), true
	}
	if s.Text != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s.Text), 64); err == nil {
			return int(math.Round(f)), true
		}
	}
	return 0, false
}

// ExtractValue reads key from bag as kind. Absent keys, empty collections and
// null values all report false. When kind does not match the stored encoding,
// the property's own declared type is tried.
func ExtractValue(bag *Bag, key string, kind Kind) (Scalar, bool) {
	p, ok := bag.Get(key)
	if !ok {
		return Scalar{}, false
	}
	if v, ok := extract(p, kind); ok {
		return v, true
	}
	if own := Kind(p.Type); own != "" && own != kind && own.valid() {
		return extract(p, own)
	}
	return Scalar{}, false
}

func extract(p Property, kind Kind) (Scalar, bool) {
	switch kind {
	case KindTitle:
		return text(strings.TrimSpace(joinRuns(p.Title)))
	case KindRichText:
		return text(strings.TrimSpace(joinRuns(p.RichText)))
	case KindPhone:
		return textPtr(p.PhoneNumber)
	case KindEmail:
		return textPtr(p.Email)
	case KindURL:
		return textPtr(p.URL)
	case KindSelect, KindStatus:
		if p.Status != nil && p.Status.Name != "" {
			return text(p.Status.Name)
		}
		if p.Select != nil {
			return text(p.Select.Name)
		}
	case KindDate:
		if p.Date != nil {
			return text(p.Date.Start)
		}
	case KindNumber:
		if p.Number != nil {
			return Scalar{Number: p.Number}, true
		}
	case KindCheckbox:
		if p.Checkbox != nil {
			return Scalar{Boolean: p.Checkbox}, true
		}
	case KindFormula:
		return extractFormula(p.Formula)
	case KindLink:
		if u, ok := ExtractLink(p); ok {
			return Scalar{Text: u}, true
		}
	}
	return Scalar{}, false
}

func extractFormula(f *Formula) (Scalar, bool) {
	if f == nil {
		return Scalar{}, false
	}
	switch {
	case f.Number != nil:
		return Scalar{Number: f.Number}, true
	case f.String != nil && *f.String != "":
		return Scalar{Text: *f.String}, true
	case f.Date != nil && f.Date.Start != "":
		return Scalar{Text: f.Date.Start}, true
	case f.Boolean != nil:
		return Scalar{Boolean: f.Boolean}, true
	}
	return Scalar{}, false
}

// ExtractLink finds a hyperlink in p: a url value, a link attached to a text
// run, a run href, text that looks like a URL, then a formula string.
func ExtractLink(p Property) (string, bool) {
	if p.URL != nil && strings.TrimSpace(*p.URL) != "" {
		return strings.TrimSpace(*p.URL), true
	}
	for _, runs := range [][]RichText{p.RichText, p.Title} {
		for _, r := range runs {
			if r.Text != nil && r.Text.Link != nil && r.Text.Link.URL != "" {
				return r.Text.Link.URL, true
			}
			if r.Href != nil && *r.Href != "" {
				return *r.Href, true
			}
		}
		if u, ok := SniffURL(joinRuns(runs)); ok {
			return u, true
		}
	}
	if p.Formula != nil && p.Formula.String != nil {
		s := strings.TrimSpace(*p.Formula.String)
		if strings.HasPrefix(s, "http") || strings.Contains(strings.ToLower(s), "linkedin.com") {
			return s, true
		}
	}
	return "", false
}

// SniffURL treats free text as a URL. Text starting with http(s) is returned
// unchanged, text mentioning linkedin.com gets an https scheme, and any other
// text longer than five characters is returned as-is. Shorter text is rejected.
func SniffURL(s string) (string, bool) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return "", false
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return s, true
	case strings.Contains(strings.ToLower(s), "linkedin.com"):
		return "https://" + s, true
	case len(s) > 5:
		return s, true
	}
	return "", false
}

func text(s string) (Scalar, bool) {
	if s == "" {
		return Scalar{}, false
	}
	return Scalar{Text: s}, true
}

func textPtr(s *string) (Scalar, bool) {
	if s == nil {
		return Scalar{}, false
	}
	return text(strings.TrimSpace(*s))
}
