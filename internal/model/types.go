package model

import "strings"

// UnnamedContact replaces blank names read from the remote store.
const UnnamedContact = "Unnamed Contact"

// Contact is the canonical contact record.
type Contact struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Status           string `json:"status,omitempty"`
	Type             string `json:"type,omitempty"`
	Group            string `json:"group,omitempty"`
	RelationshipType string `json:"relationship_type,omitempty"`
	Title            string `json:"title,omitempty"`
	Company          string `json:"company,omitempty"`
	Industry         string `json:"industry,omitempty"`
	Location         string `json:"location,omitempty"`
	LinkedInURL      string `json:"linkedin_url,omitempty"`
	Notes            string `json:"notes,omitempty"`
	FollowupContext  string `json:"followup_context,omitempty"`
	LastContactDate  string `json:"last_contact_date,omitempty"`
	CreatedDate      string `json:"created_date,omitempty"`
	NextFollowupDate string `json:"next_followup_date,omitempty"`
	CallCount        int    `json:"call_count"`
	DaysAtStatus     int    `json:"days_at_current_status"`

	// RemoteLastEditedAt is the store's own edit timestamp, kept verbatim.
	RemoteLastEditedAt string `json:"-"`
}

// Status values.
const (
	StatusWait          = "wait"
	StatusQueued        = "queued"
	StatusNeedToContact = "need_to_contact"
	StatusContacted     = "contacted"
	StatusCircleBack    = "circle_back"
	StatusScheduled     = "scheduled"
	StatusDone          = "done"
	StatusGhosted       = "ghosted"

	DefaultStatus = StatusQueued
)

var (
	Statuses = []string{
		StatusWait, StatusQueued, StatusNeedToContact, StatusContacted,
		StatusCircleBack, StatusScheduled, StatusDone, StatusGhosted,
	}
	Types             = []string{"existing", "2026_new"}
	RelationshipTypes = []string{"friend", "advisor", "potential_client", "colleague", "other"}
)

// OneOf reports whether v is a member of set.
func OneOf(v string, set []string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// ValidateForCreate enforces the fields every new record must carry.
func ValidateForCreate(c Contact) error {
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError("name", "name cannot be empty")
	}
	if strings.TrimSpace(c.Email) == "" && strings.TrimSpace(c.Phone) == "" {
		return NewValidationError("email", "at least one of email or phone is required")
	}
	return nil
}

// Patch carries the fields supplied by a partial update. Nil means "not supplied".
type Patch struct {
	Name             *string `json:"name,omitempty"`
	Email            *string `json:"email,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	Status           *string `json:"status,omitempty"`
	Type             *string `json:"type,omitempty"`
	Group            *string `json:"group,omitempty"`
	RelationshipType *string `json:"relationship_type,omitempty"`
	Title            *string `json:"title,omitempty"`
	Company          *string `json:"company,omitempty"`
	Industry         *string `json:"industry,omitempty"`
	Location         *string `json:"location,omitempty"`
	LinkedInURL      *string `json:"linkedin_url,omitempty"`
	Notes            *string `json:"notes,omitempty"`
	FollowupContext  *string `json:"followup_context,omitempty"`
	LastContactDate  *string `json:"last_contact_date,omitempty"`
	CreatedDate      *string `json:"created_date,omitempty"`
	NextFollowupDate *string `json:"next_followup_date,omitempty"`
	CallCount        *int    `json:"call_count,omitempty"`
	DaysAtStatus     *int    `json:"days_at_current_status,omitempty"`
}

// PatchFromContact converts every non-blank field of c into a patch.
// CallCount is always included; DaysAtStatus is derived remotely and never is.
func PatchFromContact(c Contact) Patch {
	str := func(v string) *string {
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return &v
	}
	calls := c.CallCount
	return Patch{
		Name:             str(c.Name),
		Email:            str(c.Email),
		Phone:            str(c.Phone),
		Status:           str(c.Status),
		Type:             str(c.Type),
		Group:            str(c.Group),
		RelationshipType: str(c.RelationshipType),
		Title:            str(c.Title),
		Company:          str(c.Company),
		Industry:         str(c.Industry),
		Location:         str(c.Location),
		LinkedInURL:      str(c.LinkedInURL),
		Notes:            str(c.Notes),
		FollowupContext:  str(c.FollowupContext),
		LastContactDate:  str(c.LastContactDate),
		CreatedDate:      str(c.CreatedDate),
		NextFollowupDate: str(c.NextFollowupDate),
		CallCount:        &calls,
	}
}

// IsEmpty reports whether no field was supplied.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Apply copies every supplied field onto c.
func (p Patch) Apply(c *Contact) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&c.Name, p.Name)
	set(&c.Email, p.Email)
	set(&c.Phone, p.Phone)
	set(&c.Status, p.Status)
	set(&c.Type, p.Type)
	set(&c.Group, p.Group)
	set(&c.RelationshipType, p.RelationshipType)
	set(&c.Title, p.Title)
	set(&c.Company, p.Company)
	set(&c.Industry, p.Industry)
	set(&c.Location, p.Location)
	set(&c.LinkedInURL, p.LinkedInURL)
	set(&c.Notes, p.Notes)
	set(&c.FollowupContext, p.FollowupContext)
	set(&c.LastContactDate, p.LastContactDate)
	set(&c.CreatedDate, p.CreatedDate)
	set(&c.NextFollowupDate, p.NextFollowupDate)
	if p.CallCount != nil {
		c.CallCount = *p.CallCount
	}
	if p.DaysAtStatus != nil {
		c.DaysAtStatus = *p.DaysAtStatus
	}
}
