package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-openapi/strfmt"

	"github.com/mycelian/contacts-service/internal/model"
)

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// MaxTextLen is the longest value the store accepts in one text property.
const MaxTextLen = 2000

func invalid(field, format string, args ...any) error {
	return model.NewValidationError(field, fmt.Sprintf(format, args...))
}

func Email(v string) error {
	if len(v) > 320 || !emailRx.MatchString(v) || !strfmt.IsEmail(v) {
		return invalid("email", "invalid email")
	}
	return nil
}

func NonEmpty(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return invalid(field, "%s cannot be empty", field)
	}
	return nil
}

func MaxLen(field string, v *string, limit int) error {
	if v == nil {
		return nil
	}
	if len(*v) > limit {
		return invalid(field, "%s exceeds %d characters", field, limit)
	}
	return nil
}

// Enum accepts blank or a member of set.
func Enum(field, v string, set []string) error {
	if v == "" || model.OneOf(v, set) {
		return nil
	}
	return invalid(field, "%s must be one of %s", field, strings.Join(set, ", "))
}

// Date accepts blank, YYYY-MM-DD or RFC 3339.
func Date(field, v string) error {
	if v == "" {
		return nil
	}
	if strfmt.IsDate(v) || strfmt.IsDateTime(v) {
		return nil
	}
	return invalid(field, "%s must be an ISO-8601 date", field)
}

func NonNegative(field string, v int) error {
	if v < 0 {
		return invalid(field, "%s cannot be negative", field)
	}
	return nil
}

// -------- Request specific helpers ----------

// CreateContact validates a new record: a name, one way to reach the person,
// and well-formed optional fields.
func CreateContact(c model.Contact) error {
	if err := model.ValidateForCreate(c); err != nil {
		return err
	}
	if c.Email != "" {
		if err := Email(c.Email); err != nil {
			return err
		}
	}
	return fields(model.PatchFromContact(c))
}

// UpdateContact validates the supplied fields of a partial update.
func UpdateContact(p model.Patch) error {
	if p.IsEmpty() {
		return invalid("", "no fields to update")
	}
	if p.Name != nil {
		if err := NonEmpty("name", *p.Name); err != nil {
			return err
		}
	}
	if p.Email != nil && *p.Email != "" {
		if err := Email(*p.Email); err != nil {
			return err
		}
	}
	if p.DaysAtStatus != nil {
		if err := NonNegative("days_at_current_status", *p.DaysAtStatus); err != nil {
			return err
		}
	}
	return fields(p)
}

func fields(p model.Patch) error {
	deref := func(v *string) string {
		if v == nil {
			return ""
		}
		return *v
	}
	checks := []error{
		Enum("status", deref(p.Status), model.Statuses),
		Enum("type", deref(p.Type), model.Types),
		Enum("relationship_type", deref(p.RelationshipType), model.RelationshipTypes),
		Date("last_contact_date", deref(p.LastContactDate)),
		Date("created_date", deref(p.CreatedDate)),
		Date("next_followup_date", deref(p.NextFollowupDate)),
		MaxLen("notes", p.Notes, MaxTextLen),
		MaxLen("followup_context", p.FollowupContext, MaxTextLen),
	}
	if p.CallCount != nil {
		checks = append(checks, NonNegative("call_count", *p.CallCount))
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}
