package api

import (
	"cmp"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/mycelian/contacts-service/internal/model"
)

// listQuery holds the filters and ordering of GET /api/contacts.
type listQuery struct {
	status           string
	typ              string
	group            string
	relationshipType string
	search           string
	sortBy           string
	desc             bool
	refresh          bool
}

type sortKind int

const (
	sortText sortKind = iota
	sortDate
	sortNumber
)

var sortFields = map[string]sortKind{
	"name":                   sortText,
	"email":                  sortText,
	"phone":                  sortText,
	"status":                 sortText,
	"type":                   sortText,
	"group":                  sortText,
	"relationship_type":      sortText,
	"title":                  sortText,
	"company":                sortText,
	"industry":               sortText,
	"location":               sortText,
	"last_contact_date":      sortDate,
	"created_date":           sortDate,
	"next_followup_date":     sortDate,
	"call_count":             sortNumber,
	"days_at_current_status": sortNumber,
}

func parseListQuery(v url.Values) (listQuery, error) {
	q := listQuery{
		status:           v.Get("status"),
		typ:              v.Get("type"),
		group:            v.Get("group"),
		relationshipType: v.Get("relationship_type"),
		search:           strings.ToLower(strings.TrimSpace(v.Get("search"))),
		sortBy:           v.Get("sort_by"),
	}
	if q.sortBy == "" {
		q.sortBy = "name"
	}
	if _, ok := sortFields[q.sortBy]; !ok {
		return q, model.NewValidationError("sort_by", "unsupported sort field "+q.sortBy)
	}
	switch v.Get("sort_order") {
	case "", "asc":
	case "desc":
		q.desc = true
	default:
		return q, model.NewValidationError("sort_order", "sort_order must be asc or desc")
	}
	if raw := v.Get("refresh"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return q, model.NewValidationError("refresh", "refresh must be true or false")
		}
		q.refresh = b
	}
	return q, nil
}

// apply filters and sorts contacts. The result is never nil.
func (q listQuery) apply(contacts []model.Contact) []model.Contact {
	out := make([]model.Contact, 0, len(contacts))
	for _, c := range contacts {
		if q.matches(c) {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, q.compare)
	return out
}

func (q listQuery) matches(c model.Contact) bool {
	switch {
	case q.status != "" && c.Status != q.status:
		return false
	case q.typ != "" && c.Type != q.typ:
		return false
	case q.group != "" && c.Group != q.group:
		return false
	case q.relationshipType != "" && c.RelationshipType != q.relationshipType:
		return false
	}
	if q.search == "" {
		return true
	}
	for _, field := range []string{c.Name, c.Email, c.Phone, c.Company, c.Notes} {
		if strings.Contains(strings.ToLower(field), q.search) {
			return true
		}
	}
	return false
}

// compare orders by the sort field. Blank dates sort last in either direction.
func (q listQuery) compare(a, b model.Contact) int {
	dir := 1
	if q.desc {
		dir = -1
	}
	switch sortFields[q.sortBy] {
	case sortNumber:
		return dir * cmp.Compare(numberField(a, q.sortBy), numberField(b, q.sortBy))
	case sortDate:
		da, db := textField(a, q.sortBy), textField(b, q.sortBy)
		switch {
		case da == "" && db == "":
			return 0
		case da == "":
			return 1
		case db == "":
			return -1
		}
		return dir * strings.Compare(da, db)
	}
	return dir * strings.Compare(strings.ToLower(textField(a, q.sortBy)), strings.ToLower(textField(b, q.sortBy)))
}

func numberField(c model.Contact, field string) int {
	if field == "call_count" {
		return c.CallCount
	}
	return c.DaysAtStatus
}

func textField(c model.Contact, field string) string {
	switch field {
	case "email":
		return c.Email
	case "phone":
		return c.Phone
	case "status":
		return c.Status
	case "type":
		return c.Type
	case "group":
		return c.Group
	case "relationship_type":
		return c.RelationshipType
	case "title":
		return c.Title
	case "company":
		return c.Company
	case "industry":
		return c.Industry
	case "location":
		return c.Location
	case "last_contact_date":
		return c.LastContactDate
	case "created_date":
		return c.CreatedDate
	case "next_followup_date":
		return c.NextFollowupDate
	}
	return c.Name
}
